package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/nexusdb/sqlgateway/internal/common/logtrace"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/server"
	"github.com/rs/zerolog/log"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile *string
}

func main() {
	slog := log.With().Str("state", "init").Logger()
	opt := parseFlags()

	if *opt.configFile != "" {
		slog.Info().Str("config_file", *opt.configFile).Msg("loading config file")
	}
	if err := config.LoadConfig(*opt.configFile); err != nil {
		slog.Error().Str("config_file", *opt.configFile).Err(err).Msg("unable to load config file")
		os.Exit(1)
	}
	if config.Config().ServerPort == "" {
		slog.Error().Msg("server port not defined")
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := metastore.NewFromConfig(ctx)
	if err != nil {
		slog.Error().Err(err).Msg("unable to open metadata store")
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		slog.Error().Err(err).Msg("unable to migrate metadata store")
		os.Exit(1)
	}

	s, serr := server.CreateNewServer(store)
	if serr != nil {
		slog.Error().Err(serr).Msg("unable to create server")
		os.Exit(1)
	}
	s.MountHandlers()

	slog.Info().Str("port", config.Config().ServerPort).Msg("starting sql gateway")
	if err := http.ListenAndServe(":"+config.Config().ServerPort, s.Router); err != nil {
		slog.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
