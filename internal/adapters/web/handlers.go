package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-agent/internal/app"
	"invoice-agent/internal/metrics"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Options configure the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// Handler holds the ApplicationService and the per-user rate limiter.
type Handler struct {
	svc     app.ApplicationService
	limiter *userLimiter
	log     *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	h := &Handler{
		svc:     svc,
		limiter: newUserLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(opts.Metrics.Middleware)

	r.Get("/api/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(opts.JWTSecret))
		r.Use(RequestBodyLimit(maxBodyBytes))

		r.Post("/api/chat", h.chatMessage)
		r.Post("/api/classify", h.classify)
		r.Get("/api/numbers/next", h.nextNumber)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
