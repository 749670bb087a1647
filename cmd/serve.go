package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gmma/gmma"
	"github.com/gmma/gmma/internal/config"
)

func init() {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve media server",
		Long:  `serve media asset ingestion and streaming server`,
		Run:   gmma.Service.ServeCommand,
	}

	configs := []config.Config{
		gmma.Service.ServerConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		gmma.Service.Preflight()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
