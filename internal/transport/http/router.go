package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yuutasakka/zeroshin-verify/internal/application/admin"
	"github.com/yuutasakka/zeroshin-verify/internal/config"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/handler"
	appmiddleware "github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.CSRFHeader, appmiddleware.SessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	adminSvc := admin.NewService(deps.AdminUserRepo, deps.TokenManager, deps.Sessions)

	healthH := handler.NewHealthHandler()
	csrfH := handler.NewCSRFHandler(deps.CSRFRegistry, cfg.IsProduction())
	otpH := handler.NewOTPHandler(deps.OTPService, deps.Sessions)
	adminH := handler.NewAdminHandler(adminSvc, deps.TokenManager, deps.Sessions)
	sessionH := handler.NewSessionHandler(deps.Sessions)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	csrfMw := appmiddleware.CSRF(deps.CSRFRegistry)
	authMw := appmiddleware.Auth(deps.TokenManager)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Get("/csrf-token", csrfH.Token)

		r.With(sensitiveRL.Limit, csrfMw).Post("/send-otp", otpH.Send)
		r.With(sensitiveRL.Limit, csrfMw).Post("/verify-otp", otpH.Verify)

		// Verified-phone session surface: gated by the session token plus its
		// bound CSRF token.
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireSession(deps.Sessions))
			r.Get("/session", sessionH.Status)
			r.Post("/logout", sessionH.Logout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(sensitiveRL.Limit, csrfMw).Post("/login", adminH.Login)
			r.Post("/refresh", adminH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Post("/logout", adminH.Logout)
			})
		})
	})

	return r
}
