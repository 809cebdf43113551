package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moeckpt/internal/cli/output"
	"github.com/yndnr/moeckpt/internal/infra/buildinfo"
	"github.com/yndnr/moeckpt/internal/infra/confloader"
	"github.com/yndnr/moeckpt/internal/server/config"
	"github.com/yndnr/moeckpt/pkg/crypto/adaptive"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "moeckpt",
		Usage:   "inspect and maintain moeckpt checkpoint directories",
		Version: buildinfo.Get().Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ListCommand(),
			ShowCommand(),
			VerifyCommand(),
			PruneCommand(),
			SaveCommand(),
			VersionCommand(),
		},
		HideVersion:          true,
		EnableBashCompletion: true,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "moeckpt-server config file to read checkpoint settings from",
			EnvVars: []string{"MOECKPT_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "checkpoint root (overrides the config file)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show more columns",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "omit table headers",
		},
	}
}

// settings is what commands need from flags and config.
type settings struct {
	Dir  string
	Key  []byte
	Addr string
}

func loadSettings(c *cli.Context) (*settings, error) {
	cfg := config.Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	s := &settings{Dir: cfg.Checkpoint.Dir, Addr: cfg.Server.MetricsAddr}
	if d := c.String("dir"); d != "" {
		s.Dir = d
	}
	if cfg.Checkpoint.EncryptionKey != "" {
		key, err := adaptive.ParseKey(cfg.Checkpoint.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("checkpoint.encryption_key: %w", err)
		}
		s.Key = key
	}
	return s, nil
}

func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	f := output.NewFormatter(format, c.Bool("wide"))
	if tf, ok := f.(*output.TableFormatter); ok {
		tf.NoHeaders = c.Bool("no-headers")
	}
	return f.Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// components returns the component directories under root, or the subset
// named in args.
func components(root string, args []string) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	if len(args) > 0 {
		for _, name := range args {
			if fi, err := os.Stat(filepath.Join(root, name)); err != nil || !fi.IsDir() {
				return nil, fmt.Errorf("no component %q under %s", name, root)
			}
		}
		return args, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
