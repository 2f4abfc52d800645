package api

import (
    "context"
    "crypto/subtle"
    "net/http"
    "strings"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/go-chi/cors"

    "bottlereturn/internal/app"
    "bottlereturn/internal/store"
)

type Service interface {
    RegisterDonor(ctx context.Context, req app.SignupRequest) (int64, error)
    Authenticate(ctx context.Context, email, password string) (int64, error)
    ProcessScannerReturn(ctx context.Context, req *app.ScannerReturnRequest) (app.ScannerReturnResult, error)
    ProcessDonorReturn(ctx context.Context, req *app.DonorReturnRequest) (app.DonorReturnResult, error)
    GetReturn(ctx context.Context, id int64) (store.LedgerEntry, error)
    TotalDonated(ctx context.Context) (app.Total, error)
    Status() string
}

type Server struct {
    svc            Service
    authToken      string
    allowedOrigins []string
    logger         Logger
}

type Logger interface {
    Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NewServer builds the HTTP adapter. authToken guards the kiosk endpoint.
func NewServer(svc Service, authToken string, allowedOrigins []string, logger Logger) *Server {
    if logger == nil {
        logger = nopLogger{}
    }
    if len(allowedOrigins) == 0 {
        allowedOrigins = []string{"*"}
    }
    return &Server{
        svc:            svc,
        authToken:      authToken,
        allowedOrigins: allowedOrigins,
        logger:         logger,
    }
}

func (s *Server) Routes() http.Handler {
    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.RealIP)
    r.Use(middleware.Recoverer)
    r.Use(cors.Handler(cors.Options{
        AllowedOrigins: s.allowedOrigins,
        AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
        AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
        MaxAge:         300,
    }))

    r.Route("/v1", func(r chi.Router) {
        r.Get("/status", s.handleStatus)

        r.Post("/donors/signup", s.handleSignup)
        r.Post("/donors/login", s.handleLogin)

        r.Get("/returns/total", s.handleTotal)
        r.Get("/returns/{id}", s.handleGetReturn)
        r.With(s.authMiddleware).Post("/returns/scanner", s.handleScannerReturn)
        r.Post("/returns/donor", s.handleDonorReturn)
    })

    r.NotFound(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusNotFound, "not_found")
    })
    r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
    })
    return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        token := extractBearerToken(r.Header.Get("Authorization"))
        if !secureCompare(token, s.authToken) {
            s.logEvent("kiosk_auth_failed", map[string]any{
                "remote_addr": r.RemoteAddr,
            })
            writeError(w, http.StatusUnauthorized, "unauthorized")
            return
        }
        next.ServeHTTP(w, r)
    })
}

func extractBearerToken(header string) string {
    if header == "" {
        return ""
    }
    parts := strings.SplitN(header, " ", 2)
    if len(parts) != 2 {
        return ""
    }
    if !strings.EqualFold(parts[0], "Bearer") {
        return ""
    }
    return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
    if len(a) != len(b) {
        return false
    }
    return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
