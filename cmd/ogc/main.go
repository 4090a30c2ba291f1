package main

import (
	"context"
	"fmt"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config file",
		Sources: cli.EnvVars("OGC_CONFIG_FILE"),
	}
	urlFlag = &cli.StringFlag{
		Name:    "url",
		Aliases: []string{"u"},
		Usage:   "Service URL (landing page or any document below it)",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "HTTP client timeout (e.g. 30s, 1m)",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log requests and cache decisions",
	}
)

func newRootCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "ogc",
		Usage:     "Discover OGC API, STAC and OWS services",
		Flags:     []cli.Flag{configFlag, urlFlag, timeoutFlag, verboseFlag},
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			newInfoCommand(),
			newConformanceCommand(),
			newCollectionsCommand(),
			newCollectionCommand(),
			newEDRCommand(),
			newSTACCommand(),
			newCapabilitiesCommand(),
			newCacheCommand(),
		},
	}
}

func main() {
	if err := newRootCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
