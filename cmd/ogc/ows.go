package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ows"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
)

func newCapabilitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "capabilities",
		Usage: "Read the capabilities of a WMS, WFS or WMTS service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "service",
				Usage: "Service type: WMS, WFS or WMTS",
				Value: ows.ServiceWMS,
			},
			&cli.StringFlag{
				Name:  "version",
				Usage: "Protocol version to request",
			},
		},
		Action: capabilitiesAction,
	}
}

func capabilitiesAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(ctx, cmd, fetch.WithAccept(ows.AcceptXML))
	if err != nil {
		return err
	}
	defer s.Close()

	u, err := s.baseURL()
	if err != nil {
		return err
	}

	reg := worker.NewRegistry()
	ows.RegisterTasks(reg)
	runner := s.cfg.NewRunner(reg, s.logger)
	defer runner.Close()

	ep := ows.NewEndpoint(u, cmd.String("service"),
		ows.WithFetcher(s.fetcher),
		ows.WithCache(s.cache),
		ows.WithRunner(runner),
		ows.WithVersion(cmd.String("version")),
		ows.WithLogger(s.logger),
	)
	caps, err := ep.Capabilities(ctx)
	if err != nil {
		return err
	}
	return printJSON(s.out, caps)
}
