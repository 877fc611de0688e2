package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/config"
	red "dynamic-qr-platform/internal/infra/redis"
	"dynamic-qr-platform/internal/usecase"
)

// Server is the HTTP surface: the public redirect route at the root, the
// management API under /api/v1, and the payment webhook.
type Server struct {
	userUC     usecase.UserUseCase
	subUC      usecase.SubscriptionUseCase
	linkUC     usecase.LinkUseCase
	checkoutUC usecase.CheckoutUseCase

	auth    *AuthManager
	limiter *red.RateLimiter

	baseURL       string
	webhookSecret string
	redirectLimit int
	addr          string

	log  *zerolog.Logger
	http *http.Server
}

func NewServer(
	cfg *config.Config,
	userUC usecase.UserUseCase,
	subUC usecase.SubscriptionUseCase,
	linkUC usecase.LinkUseCase,
	checkoutUC usecase.CheckoutUseCase,
	limiter *red.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		userUC:        userUC,
		subUC:         subUC,
		linkUC:        linkUC,
		checkoutUC:    checkoutUC,
		auth:          NewAuthManager(cfg.Auth.HMACSecret),
		limiter:       limiter,
		baseURL:       strings.TrimRight(cfg.Server.BaseURL, "/"),
		webhookSecret: cfg.Payment.WebhookSecret,
		redirectLimit: cfg.RateLimit.RedirectPerMinute,
		addr:          fmt.Sprintf(":%d", cfg.Server.Port),
		log:           logger,
	}
}

// Router builds the chi router with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payment", s.handlePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Post("/users", s.handleRegister)
			r.Get("/users/me", s.handleGetMe)
			r.Delete("/users/me", s.handleDeleteMe)
			r.Get("/subscription", s.handleGetSubscription)
			r.Post("/checkout", s.handleOpenCheckout)
			r.Post("/links", s.handleCreateLink)
			r.Get("/links", s.handleListLinks)
			r.Patch("/links/{slug}", s.handleUpdateLink)
			r.Delete("/links/{slug}", s.handleDeleteLink)
		})
	})

	// Everything else at the root is a slug.
	r.Get("/{slug}", s.handleRedirect)

	return Chain(r,
		TraceID(),
		Recover(s.log),
		RequestLog(s.log),
		Timeout(15*time.Second),
	)
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
