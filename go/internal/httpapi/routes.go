package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes builds the REST router.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/pages/{slug}", h.GetPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", h.ListCards)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", h.CreateRoom)
			r.Route("/{code}", func(r chi.Router) {
				r.Post("/join", h.JoinRoom)
				r.Post("/ready", h.SetReady)
				r.Post("/start", h.StartDraft)
				r.Post("/pick", h.SubmitPick)
				r.Get("/time", h.RemainingTime)
				r.Get("/state", h.GetState)
				r.Get("/deck/{side}/code", h.ExportDeckCode)
			})
		})
	})

	return r
}
