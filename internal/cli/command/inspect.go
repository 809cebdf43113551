package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moeckpt/internal/storage/snapshot"
)

type componentRow struct {
	Component string    `json:"component" yaml:"component"`
	Snapshots int       `json:"snapshots" yaml:"snapshots"`
	Latest    string    `json:"latest" yaml:"latest"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size" table:"bytes"`
	TotalSize int64     `json:"total_size" yaml:"total_size" table:"bytes,wide"`
	Pointer   string    `json:"pointer_error,omitempty" yaml:"pointer_error,omitempty" table:"wide"`
}

type snapshotRow struct {
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size" table:"bytes"`
	Latest    bool      `json:"latest" yaml:"latest"`
	Path      string    `json:"path" yaml:"path" table:"wide"`
}

// ListCommand lists components, or the snapshots of one component.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "list components, or the snapshots of one component",
		ArgsUsage: "[COMPONENT]",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			if c.NArg() == 1 {
				return listSnapshots(c, s.Dir, c.Args().First())
			}
			return listComponents(c, s.Dir)
		},
	}
}

func listComponents(c *cli.Context, root string) error {
	names, err := components(root, nil)
	if err != nil {
		return err
	}
	rows := make([]componentRow, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(root, name)
		row := componentRow{Component: name}
		hs, err := snapshot.List(dir)
		if err != nil {
			return err
		}
		row.Snapshots = len(hs)
		for _, h := range hs {
			row.TotalSize += h.Size
		}
		latest, err := snapshot.Resolve(dir)
		switch {
		case err != nil:
			row.Pointer = err.Error()
		case latest != nil:
			row.Latest = latest.Name
			row.CreatedAt = latest.CreatedAt
			row.Size = latest.Size
		}
		rows = append(rows, row)
	}
	return render(c, rows)
}

func listSnapshots(c *cli.Context, root, name string) error {
	if _, err := components(root, []string{name}); err != nil {
		return err
	}
	dir := filepath.Join(root, name)
	hs, err := snapshot.List(dir)
	if err != nil {
		return err
	}
	latest, _ := snapshot.Resolve(dir)

	rows := make([]snapshotRow, 0, len(hs))
	for _, h := range hs {
		rows = append(rows, snapshotRow{
			Name:      h.Name,
			CreatedAt: h.CreatedAt,
			Size:      h.Size,
			Latest:    latest != nil && latest.Name == h.Name,
			Path:      h.Path,
		})
	}
	return render(c, rows)
}

// ShowCommand prints the header of one snapshot and can extract its
// payload.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show a snapshot (the latest by default)",
		ArgsUsage: "COMPONENT [SNAPSHOT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "payload",
				Usage: "write the decoded payload to `FILE` (- for stdout)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("show requires COMPONENT [SNAPSHOT]", 2)
			}
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			name := c.Args().Get(0)
			if _, err := components(s.Dir, []string{name}); err != nil {
				return err
			}
			dir := filepath.Join(s.Dir, name)

			var h *snapshot.Handle
			if c.NArg() == 2 {
				created, err := snapshot.ParseName(c.Args().Get(1))
				if err != nil {
					return err
				}
				h = &snapshot.Handle{Component: name, Name: c.Args().Get(1), Path: filepath.Join(dir, c.Args().Get(1)), CreatedAt: created}
			} else {
				h, err = snapshot.Resolve(dir)
				if err != nil {
					return err
				}
				if h == nil {
					return fmt.Errorf("component %q has no checkpoint", name)
				}
			}

			if dst := c.String("payload"); dst != "" {
				return extractPayload(c, s, h, dst)
			}
			info, err := snapshot.Inspect(h.Path)
			if err != nil {
				return err
			}
			return render(c, info)
		},
	}
}

func extractPayload(c *cli.Context, s *settings, h *snapshot.Handle, dst string) error {
	w, err := snapshot.NewWriter(snapshot.Config{Key: s.Key})
	if err != nil {
		return err
	}
	data, err := w.Read(c.Context, h)
	if err != nil {
		return err
	}
	if dst == "-" {
		_, err = writer(c).Write(data)
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

type verifyRow struct {
	Component string `json:"component" yaml:"component"`
	Name      string `json:"name" yaml:"name"`
	Status    string `json:"status" yaml:"status"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

const (
	statusOK         = "ok"
	statusCorrupt    = "corrupt"
	statusUnverified = "sealed"
	statusDangling   = "dangling"
)

// VerifyCommand checks every snapshot and pointer.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "verify checksums of every snapshot and resolve each checkpoint_last",
		ArgsUsage: "[COMPONENT...]",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			names, err := components(s.Dir, c.Args().Slice())
			if err != nil {
				return err
			}
			w, err := snapshot.NewWriter(snapshot.Config{Key: s.Key})
			if err != nil {
				return err
			}

			var rows []verifyRow
			bad := 0
			for _, name := range names {
				dir := filepath.Join(s.Dir, name)
				if _, err := snapshot.Resolve(dir); err != nil {
					status := statusCorrupt
					if errors.Is(err, snapshot.ErrDanglingPointer) {
						status = statusDangling
					}
					rows = append(rows, verifyRow{Component: name, Name: snapshot.LatestName, Status: status, Error: err.Error()})
					bad++
				}
				hs, err := snapshot.List(dir)
				if err != nil {
					return err
				}
				for _, h := range hs {
					row := verifyRow{Component: name, Name: h.Name, Status: statusOK}
					info, err := snapshot.Inspect(h.Path)
					switch {
					case err != nil:
						row.Status, row.Error = statusCorrupt, err.Error()
					case info.Encrypted && s.Key == nil:
						row.Status = statusUnverified
					case info.Encrypted:
						if _, err := w.Read(c.Context, h); err != nil {
							row.Status, row.Error = statusCorrupt, err.Error()
						}
					}
					if row.Status == statusCorrupt {
						bad++
					}
					rows = append(rows, row)
				}
			}

			if err := render(c, rows); err != nil {
				return err
			}
			if bad > 0 {
				return cli.Exit(fmt.Sprintf("%d problem(s) found", bad), 1)
			}
			return nil
		},
	}
}

type pruneRow struct {
	Component string   `json:"component" yaml:"component"`
	Removed   []string `json:"removed" yaml:"removed"`
}

// PruneCommand removes old snapshots.
func PruneCommand() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "remove old snapshots, keeping the newest N and the checkpoint_last target",
		ArgsUsage: "[COMPONENT...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "keep",
				Aliases:  []string{"k"},
				Usage:    "snapshots to keep per component",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			keep := c.Int("keep")
			if keep < 1 {
				return cli.Exit("--keep must be at least 1", 2)
			}
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			names, err := components(s.Dir, c.Args().Slice())
			if err != nil {
				return err
			}

			rows := make([]pruneRow, 0, len(names))
			for _, name := range names {
				removed, err := snapshot.Prune(filepath.Join(s.Dir, name), keep)
				if err != nil {
					return fmt.Errorf("prune %s: %w", name, err)
				}
				rows = append(rows, pruneRow{Component: name, Removed: removed})
			}
			return render(c, rows)
		},
	}
}
