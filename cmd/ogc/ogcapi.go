package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcapi"
)

type serviceInfo struct {
	*ogcapi.Info
	URL      string `json:"url"`
	State    string `json:"state"`
	Features bool   `json:"features"`
	Records  bool   `json:"records"`
	Tiles    bool   `json:"tiles"`
	Styles   bool   `json:"styles"`
}

func openEndpoint(ctx context.Context, cmd *cli.Command) (*session, *ogcapi.Endpoint, error) {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.baseURL()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	ep := ogcapi.NewEndpoint(u,
		ogcapi.WithFetcher(s.fetcher),
		ogcapi.WithCache(s.cache),
		ogcapi.WithLogger(s.logger),
	)
	if _, err := ep.IsReady(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, ep, nil
}

func newInfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Describe an OGC API service",
		Action: infoAction,
	}
}

func infoAction(ctx context.Context, cmd *cli.Command) error {
	s, ep, err := openEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := ep.Info(ctx)
	if err != nil {
		return err
	}
	out := serviceInfo{Info: info, URL: ep.URL(), State: ep.State().String()}
	checks := []struct {
		dst *bool
		has func(context.Context) (bool, error)
	}{
		{&out.Features, ep.HasFeatures},
		{&out.Records, ep.HasRecords},
		{&out.Tiles, ep.HasTiles},
		{&out.Styles, ep.HasStyles},
	}
	for _, check := range checks {
		if *check.dst, err = check.has(ctx); err != nil {
			return err
		}
	}
	return printJSON(s.out, out)
}

func newConformanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "conformance",
		Usage: "List the conformance classes of an OGC API service",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, ep, err := openEndpoint(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			classes, err := ep.ConformanceClasses(ctx)
			if err != nil {
				return err
			}
			return printJSON(s.out, classes)
		},
	}
}

func newCollectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "collections",
		Usage: "List the collections of an OGC API service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only list collections of this kind (features, records, coverage, edr, stac)",
			},
		},
		Action: collectionsAction,
	}
}

func collectionsAction(ctx context.Context, cmd *cli.Command) error {
	var (
		kind   ogcapi.CollectionKind
		filter bool
	)
	if name := cmd.String("kind"); name != "" {
		parsed, err := ogcapi.ParseCollectionKind(name)
		if err != nil {
			return err
		}
		kind, filter = parsed, true
	}

	s, ep, err := openEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := ep.AllCollections(ctx)
	if err != nil {
		return err
	}
	out := make([]ogcapi.CollectionSummary, 0, len(all))
	for _, c := range all {
		if !filter || c.Kind == kind {
			out = append(out, c)
		}
	}
	return printJSON(s.out, out)
}

func newCollectionCommand() *cli.Command {
	return &cli.Command{
		Name:      "collection",
		Usage:     "Describe one collection",
		ArgsUsage: "<collection-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Print the items URL with this page size instead",
			},
		},
		Action: collectionAction,
	}
}

func collectionAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: collection id")
	}
	id := cmd.Args().First()

	s, ep, err := openEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.IsSet("limit") {
		itemsURL, err := ep.GetCollectionItemsURL(ctx, id, cmd.Int("limit"))
		if err != nil {
			return err
		}
		return printJSON(s.out, map[string]string{"itemsUrl": itemsURL})
	}

	info, err := ep.GetCollectionInfo(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(s.out, info)
}

func newEDRCommand() *cli.Command {
	return &cli.Command{
		Name:  "edr",
		Usage: "Work with OGC API Environmental Data Retrieval services",
		Commands: []*cli.Command{
			{
				Name:   "collections",
				Usage:  "List collections with their data queries",
				Action: edrCollectionsAction,
			},
			{
				Name:      "queries",
				Usage:     "List the data queries of a collection",
				ArgsUsage: "<collection-id>",
				Action:    edrQueriesAction,
			},
		},
	}
}

func openEDREndpoint(ctx context.Context, cmd *cli.Command) (*session, *ogcapi.EDREndpoint, error) {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.baseURL()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	ep, err := ogcapi.NewEDREndpoint(u,
		ogcapi.WithFetcher(s.fetcher),
		ogcapi.WithCache(s.cache),
		ogcapi.WithLogger(s.logger),
	).IsReady(ctx)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, ep, nil
}

func edrCollectionsAction(ctx context.Context, cmd *cli.Command) error {
	s, ep, err := openEDREndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	collections, err := ep.AllCollections(ctx)
	if err != nil {
		return err
	}
	return printJSON(s.out, collections)
}

func edrQueriesAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: collection id")
	}
	s, ep, err := openEDREndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	queries, err := ep.GetCollectionQueries(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	return printJSON(s.out, queries)
}
