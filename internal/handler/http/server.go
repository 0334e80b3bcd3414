package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"LinkTrace-Backend/internal/auth"
	"LinkTrace-Backend/internal/gateway"
	"LinkTrace-Backend/internal/mailer"
	"LinkTrace-Backend/internal/repository"
	"LinkTrace-Backend/internal/service"
	"LinkTrace-Backend/pkg/useragent"
)

// Server bundles the HTTP handlers and routing.
type Server struct {
	authHandlers    *auth.AuthHandlers
	accessHandler   *AccessHandler
	trackersHandler *TrackersHandler
	emailsHandler   *EmailsHandler
	healthHandler   *HealthHandler
	authMiddleware  *auth.Middleware
	accessPrefix    string
	log             *zap.Logger
}

// NewServer wires all handlers together.
func NewServer(
	storage repository.Storage,
	gw *gateway.Gateway,
	tracking *service.TrackingService,
	mailerService *mailer.Service,
	dispatcher *mailer.Dispatcher,
	jwtService *auth.JWTService,
	passwordService *auth.PasswordService,
	uaParser *useragent.Parser,
	accessPrefix string,
	log *zap.Logger,
) *Server {
	return &Server{
		authHandlers:    auth.NewAuthHandlers(storage, jwtService, passwordService, log),
		accessHandler:   NewAccessHandler(gw, uaParser, accessPrefix, log),
		trackersHandler: NewTrackersHandler(storage, tracking, log),
		emailsHandler:   NewEmailsHandler(mailerService, log),
		healthHandler:   NewHealthHandler(storage, dispatcher, log),
		authMiddleware:  auth.NewMiddleware(jwtService, log),
		accessPrefix:    accessPrefix,
		log:             log,
	}
}

// SetupRoutes builds the route table.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (no auth)
	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)
	mux.HandleFunc("/metrics", s.healthHandler.Metrics)

	// Swagger UI
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Auth endpoints (no auth)
	mux.HandleFunc("/api/auth/register", s.withCORS(s.authHandlers.Register))
	mux.HandleFunc("/api/auth/login", s.withCORS(s.authHandlers.Login))

	// Admin API (auth required)
	mux.HandleFunc("/api/trackers", s.withCORS(s.authMiddleware.RequireAuth(s.trackersHandler.HandleTrackers)))
	mux.HandleFunc("/api/trackers/", s.withCORS(s.authMiddleware.RequireAuth(s.trackersHandler.Assign)))
	mux.HandleFunc("/api/visitors", s.withCORS(s.authMiddleware.RequireAuth(s.trackersHandler.HandleVisitors)))
	mux.HandleFunc("/api/instances/", s.withCORS(s.authMiddleware.RequireAuth(s.trackersHandler.GetInstance)))
	mux.HandleFunc("/api/urls", s.withCORS(s.authMiddleware.RequireAuth(s.trackersHandler.IssueURL)))
	mux.HandleFunc("/api/emails", s.withCORS(s.authMiddleware.RequireAuth(s.emailsHandler.Compose)))
	mux.HandleFunc("/api/emails/", s.withCORS(s.authMiddleware.RequireAuth(s.emailsHandler.Stats)))

	// Tracking access endpoint (no auth, hash-verified)
	mux.HandleFunc("/"+s.accessPrefix+"/", s.accessHandler.HandleAccess)

	return mux
}

// withCORS adds CORS headers to a handler.
func (s *Server) withCORS(handler http.HandlerFunc) http.HandlerFunc {
	return s.authMiddleware.CORS(handler)
}
