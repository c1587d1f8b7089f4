package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

// NewRouter registers every endpoint on a chi router.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The websocket feed is long-lived and stays outside the request timeout.
	r.Get("/ws", h.FeedHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/games", h.ListGamesHandler)

		r.Route("/points/{accountId}", func(r chi.Router) {
			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/ledger", h.GetLedgerHandler)
			r.Post("/earn", h.EarnHandler)
			r.Post("/spend", h.SpendHandler)
		})

		r.Route("/rounds", func(r chi.Router) {
			r.Post("/", h.CreateRoundHandler)
			r.Get("/open", h.GetOpenRoundHandler)

			r.Route("/{roundId}", func(r chi.Router) {
				r.Get("/", h.GetRoundHandler)
				r.Post("/bets", h.PlaceBetHandler)
				r.Get("/bets", h.ListBetsHandler)
				r.Post("/resolve", h.ResolveRoundHandler)
				r.Post("/settle", h.SettleRoundHandler)
				r.Post("/cancel", h.CancelRoundHandler)
				r.Post("/reconcile", h.ReconcileRoundHandler)
				r.Get("/verify", h.VerifyRoundHandler)
			})
		})
	})

	return r
}
