package command

import (
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moeckpt/internal/cli/connection"
)

// SaveCommand asks a running server to checkpoint now.
func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "ask a running moeckpt-server to checkpoint now",
		ArgsUsage: "[COMPONENT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "server admin address (defaults to server.metrics_addr)",
				EnvVars: []string{"MOECKPT_CLI_SERVER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			addr := c.String("server")
			if addr == "" {
				addr = s.Addr
			}
			if addr == "" {
				return cli.Exit("no server address: set --server or server.metrics_addr", 2)
			}

			client := connection.NewClient(addr, c.Duration("timeout"))
			res, err := client.Save(c.Context, c.Args().First())
			var apiErr *connection.APIError
			if errors.As(err, &apiErr) && apiErr.Result != nil {
				if rerr := render(c, apiErr.Result); rerr != nil {
					return rerr
				}
				return cli.Exit(apiErr.Error(), 1)
			}
			if err != nil {
				return err
			}
			return render(c, res)
		},
	}
}
