package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func newCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the configured cache store",
		Commands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Remove expired entries",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(ctx, cmd)
					if err != nil {
						return err
					}
					defer s.Close()

					removed, err := s.cache.Purge(ctx)
					if err != nil {
						return err
					}
					return printJSON(s.out, map[string]int{"removed": removed})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every entry",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(ctx, cmd)
					if err != nil {
						return err
					}
					defer s.Close()

					if err := s.cache.Clear(ctx); err != nil {
						return err
					}
					return printJSON(s.out, map[string]bool{"cleared": true})
				},
			},
		},
	}
}
