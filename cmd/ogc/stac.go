package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"

	stac "github.com/planetlabs/go-stac"
	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-ogc-client/pkg/stacapi"
)

type collectionSummary struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	License     string       `json:"license,omitempty"`
	Extent      *stac.Extent `json:"extent,omitempty"`
	Links       []*stac.Link `json:"links,omitempty"`
}

func newCollectionSummary(collection *stac.Collection) *collectionSummary {
	return &collectionSummary{
		ID:          collection.Id,
		Title:       collection.Title,
		Description: collection.Description,
		License:     collection.License,
		Extent:      collection.Extent,
		Links:       collection.Links,
	}
}

type itemSummary struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection,omitempty"`
	BBox       []float64       `json:"bbox,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
	Links      []*stac.Link    `json:"links,omitempty"`
}

func newItemSummary(item *stac.Item) (*itemSummary, error) {
	geometry, err := json.Marshal(item.Geometry)
	if err != nil {
		return nil, fmt.Errorf("error encoding geometry of item %s: %w", item.Id, err)
	}
	return &itemSummary{
		ID:         item.Id,
		Collection: item.Collection,
		BBox:       item.Bbox,
		Geometry:   geometry,
		Properties: maps.Clone(item.Properties),
		Links:      item.Links,
	}, nil
}

func newSTACCommand() *cli.Command {
	return &cli.Command{
		Name:  "stac",
		Usage: "Work with STAC APIs",
		Commands: []*cli.Command{
			{
				Name:   "collections",
				Usage:  "List all collections",
				Action: stacCollectionsAction,
			},
			{
				Name:      "collection",
				Usage:     "Fetch a collection by ID",
				ArgsUsage: "<collection-id>",
				Action:    stacCollectionAction,
			},
			{
				Name:      "items",
				Usage:     "List the items of a collection",
				ArgsUsage: "<collection-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size requested from the server",
					},
					&cli.IntFlag{
						Name:  "max",
						Usage: "Stop after this many items (0 for all)",
					},
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Pause after every page of results",
					},
				},
				Action: stacItemsAction,
			},
		},
	}
}

func openSTACEndpoint(ctx context.Context, cmd *cli.Command) (*session, *stacapi.Endpoint, error) {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.baseURL()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	ep, err := stacapi.NewEndpoint(u,
		stacapi.WithFetcher(s.fetcher),
		stacapi.WithCache(s.cache),
		stacapi.WithLogger(s.logger),
	).IsReady(ctx)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, ep, nil
}

func stacCollectionsAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 0 {
		return fmt.Errorf("no arguments expected")
	}
	s, ep, err := openSTACEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	collections, err := ep.Collections(ctx)
	if err != nil {
		return err
	}
	summaries := make([]*collectionSummary, 0, len(collections))
	for _, c := range collections {
		summaries = append(summaries, newCollectionSummary(c))
	}
	return printJSON(s.out, summaries)
}

func stacCollectionAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: collection id")
	}
	s, ep, err := openSTACEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	collection, err := ep.GetCollection(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	return printJSON(s.out, newCollectionSummary(collection))
}

func stacItemsAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: collection id")
	}
	s, ep, err := openSTACEndpoint(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	seq := ep.Items(ctx, cmd.Args().First(), cmd.Int("limit"))
	marshal := func(item *stac.Item) ([]byte, error) {
		summary, err := newItemSummary(item)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(summary, "", "  ")
	}

	if cmd.Bool("interactive") {
		return printJSONArrayInteractive(s.out, os.Stderr, os.Stdin, seq, marshal)
	}
	entries, err := collectForCLI(seq, marshal, cmd.Int("max"))
	if err != nil {
		return err
	}
	return printJSONArray(s.out, entries)
}
