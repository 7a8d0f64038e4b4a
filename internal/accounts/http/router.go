package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/accounts/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimits

	store          store.Store
	metrics        *metrics.Metrics
	AccountService *service.AccountService
	TokenService   *service.TokenService
}

func NewRouter(
	accounts *service.AccountService,
	tokens *service.TokenService,
	st store.Store,
	m *metrics.Metrics,
	limits httpx.RateLimits,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		logger:         logger,
		limits:         limits,
		store:          st,
		metrics:        m,
		AccountService: accounts,
		TokenService:   tokens,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
	r.Mux.HandleFunc("/", httpx.NotFound)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AussieBroadWAN Accounts Service API
//	@version		0.1.0
//	@description	User accounts with email verification and password reset.
//	@description
//	@description				Register and login return an HS256-signed bearer token valid for 30 days.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/accounts
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from register or login. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Accounts: r.AccountService}

	// Credential and mail-sending endpoints share the strict profile, keyed by
	// IP + email so one address cannot be hammered from many requests.
	strict := func(route string, fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email", r.metrics.RateLimitHook(route)),
		)
	}

	r.Mux.Handle("POST /api/users/register", strict("register", h.Register))
	r.Mux.Handle("POST /api/users/login", strict("login", h.Login))
	r.Mux.Handle("POST /api/users/verify-email", strict("verify_email", h.VerifyEmail))
	r.Mux.Handle("POST /api/users/resend-verification", strict("resend_verification", h.ResendVerification))
	r.Mux.Handle("POST /api/users/forgot-password", strict("forgot_password", h.ForgotPassword))

	// Reset requests carry no email; the token is the secret, limit by IP.
	r.Mux.Handle("POST /api/users/reset-password",
		httpx.Chain(http.HandlerFunc(h.ResetPassword),
			httpx.RateLimitByIP(r.limits.Strict, r.metrics.RateLimitHook("reset_password")),
		),
	)

	r.Mux.Handle("GET /api/users/me",
		httpx.Chain(http.HandlerFunc(h.Me),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByAccount(r.limits.Moderate, r.metrics.RateLimitHook("me")),
		),
	)
}

func (r *Router) registerSystem() {
	public := func(h http.Handler) http.Handler {
		return httpx.Chain(h, httpx.RateLimitByIP(r.limits.Public))
	}

	r.Mux.Handle("GET /livez", public(LivezHandler(r.startTime, r.buildVersion)))
	r.Mux.Handle("GET /readyz", public(ReadyzHandler(r.startTime, r.buildVersion, r.store)))
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
