package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/handler/chat"
	personahandler "github.com/zhouzirui/elile/backend/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/elile/backend/internal/middleware"
	personaModel "github.com/zhouzirui/elile/backend/internal/model/persona"
	"github.com/zhouzirui/elile/backend/pkg/utils"
)

// Status describes the wiring reported by the health endpoint.
type Status struct {
	Recognizer      string   `json:"recognizer"`
	Classifier      string   `json:"classifier"`
	Engines         []string `json:"engines"`
	SynthesisFormat string   `json:"synthesisFormat"`
}

// RouterConfig collects everything the HTTP layer needs.
type RouterConfig struct {
	Turns         chat.TurnService
	History       chat.HistoryReader
	Persona       personaModel.Persona
	Status        Status
	CORSOrigins   []string
	MaxAudioBytes int64
	HistoryWindow int
	Gatherer      prometheus.Gatherer
	Logger        zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.CORSOrigins))

	chatHandler := chat.New(cfg.Turns, cfg.History, cfg.MaxAudioBytes, cfg.HistoryWindow, cfg.Logger)
	personaHandler := personahandler.New(cfg.Persona)

	status := cfg.Status
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "Elile Backend is running.",
			"persona": cfg.Persona.Name,
			"wiring":  status,
		})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	chatHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterHistoryRoutes(api)
	})

	return r
}
