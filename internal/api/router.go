package api

import (
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gmma/gmma/internal/config"
	"github.com/gmma/gmma/internal/ingest"
	"github.com/gmma/gmma/internal/ladder"
	"github.com/gmma/gmma/internal/store"
	"github.com/gmma/gmma/internal/transcode"
)

type ApiManagerCtx struct {
	logger       zerolog.Logger
	config       *config.Server
	assets       store.Store
	adapter      *ingest.Adapter
	orchestrator *transcode.Orchestrator
	renditions   *ladder.Ladder
}

func New(config *config.Server, assets store.Store, adapter *ingest.Adapter, orchestrator *transcode.Orchestrator, renditions *ladder.Ladder) *ApiManagerCtx {
	return &ApiManagerCtx{
		logger:       log.With().Str("module", "api").Logger(),
		config:       config,
		assets:       assets,
		adapter:      adapter,
		orchestrator: orchestrator,
		renditions:   renditions,
	}
}

func (a *ApiManagerCtx) Mount(r *chi.Mux) {
	r.Get("/check", a.Check)

	r.Route("/assets", func(r chi.Router) {
		r.Post("/", a.CreateAsset)
		r.Get("/", a.ListAssets)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.GetAsset)
			r.Patch("/", a.UpdateAsset)
			r.Delete("/", a.DeleteAsset)
			r.Post("/upload", a.Upload)
			r.Post("/ingest", a.RemoteIngest)
		})
	})

	r.Get("/play/{id}", a.PlayFlat)
	r.Get("/stream/{id}/audio", a.PlayAudioRendition)
	r.Get("/video/{id}", a.ServeManifest)
	r.Get("/video/{id}/{file}", a.ServeChunk)
}
