package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-ogc-client/internal/appconfig"
	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
)

// session holds what every command builds from the config and flags.
type session struct {
	cfg     *appconfig.Config
	logger  zerolog.Logger
	fetcher *fetch.Fetcher
	cache   *cache.Cache
	out     io.Writer
}

func newSession(ctx context.Context, cmd *cli.Command, fetchOpts ...fetch.Option) (*session, error) {
	cfg, err := appconfig.Load(cmd.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet(urlFlag.Name) {
		cfg.URL = cmd.String(urlFlag.Name)
	}
	if cmd.IsSet(timeoutFlag.Name) {
		cfg.HTTP.Timeout = cmd.Duration(timeoutFlag.Name)
	}
	if cmd.Bool(verboseFlag.Name) {
		cfg.Log.Level = "debug"
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	fetcher, err := cfg.NewFetcher(ctx, logger, fetchOpts...)
	if err != nil {
		return nil, err
	}
	c, err := cfg.NewCache(ctx, logger)
	if err != nil {
		return nil, err
	}

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	return &session{cfg: cfg, logger: logger, fetcher: fetcher, cache: c, out: out}, nil
}

func (s *session) baseURL() (string, error) {
	if s.cfg.URL == "" {
		return "", errors.New("a service URL is required (--url or OGC_URL)")
	}
	return s.cfg.URL, nil
}

func (s *session) Close() {
	if err := s.cache.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("error closing cache")
	}
}
