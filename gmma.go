package gmma

import (
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gmma/gmma/internal/api"
	"github.com/gmma/gmma/internal/config"
	"github.com/gmma/gmma/internal/ingest"
	"github.com/gmma/gmma/internal/ladder"
	"github.com/gmma/gmma/internal/server"
	"github.com/gmma/gmma/internal/store"
	"github.com/gmma/gmma/internal/transcode"
)

var Service *Main

func init() {
	Service = &Main{
		ServerConfig: &config.Server{},
	}
}

type Main struct {
	ServerConfig *config.Server

	logger     zerolog.Logger
	apiManager *api.ApiManagerCtx
	server     *server.ServerManagerCtx
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) Start() {
	cfg := main.ServerConfig

	assets, err := store.NewFS(cfg.LibraryDir)
	if err != nil {
		main.logger.Panic().Err(err).Msg("unable to open asset library")
	}

	runner := transcode.NewFFmpeg(cfg.FFmpegBinary)

	profiles := map[string]ladder.Profile{}
	for name, profile := range cfg.VideoProfiles {
		profiles[name] = ladder.Profile{
			Width:   profile.Width,
			Height:  profile.Height,
			Bitrate: profile.Bitrate,
		}
	}
	renditions := ladder.New(profiles, cfg.AudioBitrate)

	orchestrator := transcode.NewOrchestrator(assets, runner, cfg.MaxEncodes)
	resolver := ingest.NewHTTPResolver(cfg.ResolverURL, nil)
	adapter := ingest.NewAdapter(assets, resolver, runner)

	main.apiManager = api.New(cfg, assets, adapter, orchestrator, renditions)

	main.server = server.New(cfg)
	main.server.Mount(main.apiManager.Mount)
	main.server.Start()
}

func (main *Main) Shutdown() {
	if err := main.server.Shutdown(); err != nil {
		main.logger.Err(err).Msg("server shutdown with an error")
	} else {
		main.logger.Debug().Msg("server shutdown")
	}
}

func (main *Main) ServeCommand(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	main.Start()
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.Shutdown()
	main.logger.Info().Msg("shutdown complete")
}
