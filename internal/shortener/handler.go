package shortener

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
)

// HTTPCreateLinkRequest is the JSON body of POST /shortUrl.
type HTTPCreateLinkRequest struct {
	FullURL           string   `json:"fullUrl"`
	ExpirationMinutes *float64 `json:"expirationMinutes,omitempty"`
}

type VisitResponse struct {
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkResponse is the JSON form of a Link. ShortLink is the absolute redirect URL.
type LinkResponse struct {
	ID        string          `json:"id"`
	Full      string          `json:"full"`
	Short     string          `json:"short"`
	ShortLink string          `json:"shortLink"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Clicks    int64           `json:"clicks"`
	Analytics []VisitResponse `json:"analytics,omitempty"`
}

type AnalyticsResponse struct {
	ShortURL   string          `json:"shortUrl"`
	FullURL    string          `json:"fullUrl"`
	Clicks     int64           `json:"clicks"`
	Analytics  []VisitResponse `json:"analytics"`
	EventCount int64           `json:"eventCount"`
}

// Handler provides the HTTP endpoints for issuing, resolving and inspecting links.
type Handler struct {
	service  Service
	resolver Resolver
	logger   *slog.Logger
	baseURL  string
}

type HandlerConfig struct {
	Service  Service
	Resolver Resolver
	Logger   *slog.Logger
	BaseURL  string // e.g. "https://sho.rt"; redirect paths are appended to it
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:  cfg.Service,
		resolver: cfg.Resolver,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// RegisterRoutes mounts the link endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.ListLinks)
	mux.HandleFunc("POST /shortUrl", h.CreateLink)
	mux.HandleFunc("GET /shortUrls/{code}", h.ResolveLink)
	mux.HandleFunc("GET /analytics/{code}", h.GetAnalytics)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// ShortLink returns the absolute URL that redirects to code.
func (h *Handler) ShortLink(code string) string {
	return h.baseURL + "/shortUrls/" + code
}

func (h *Handler) toResponse(link Link) LinkResponse {
	return LinkResponse{
		ID:        link.ID.String(),
		Full:      link.FullURL,
		Short:     link.Code,
		ShortLink: h.ShortLink(link.Code),
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
		Clicks:    link.Clicks,
		Analytics: toVisitResponses(link.Visits),
	}
}

func toVisitResponses(visits []Visit) []VisitResponse {
	out := make([]VisitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, VisitResponse{IP: v.IP, Timestamp: v.Timestamp})
	}
	return out
}

// ListLinks handles GET /.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := h.service.List(ctx)
	if err != nil {
		h.writeError(ctx, h.requestLogger(r), w, err, "Unable to list links at this time")
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, h.toResponse(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// CreateLink handles POST /shortUrl.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](w, r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteKindError(w, err, errorMessage(err))
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		FullURL:           req.FullURL,
		ExpirationMinutes: req.ExpirationMinutes,
	})
	if err != nil {
		h.writeError(ctx, logger, w, err, "Unable to create short link at this time. Please try again.")
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"code", link.Code,
		"expires_at", link.ExpiresAt,
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// ResolveLink handles GET /shortUrls/{code} with a 302 to the full URL.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	target, err := h.resolver.Resolve(ctx, code, Visitor{
		RemoteIP:     httpx.RemoteIP(r),
		ForwardedFor: httpx.ForwardedFor(r),
	})
	if err != nil {
		h.writeError(ctx, h.requestLogger(r).With("code", code), w, err, "Unable to resolve this link at this time")
		return
	}

	httpx.Redirect(w, target)
}

// GetAnalytics handles GET /analytics/{code}.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	a, err := h.service.Analytics(ctx, code)
	if err != nil {
		h.writeError(ctx, h.requestLogger(r).With("code", code), w, err, "Unable to load analytics at this time")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, AnalyticsResponse{
		ShortURL:   a.Code,
		FullURL:    a.FullURL,
		Clicks:     a.Clicks,
		Analytics:  toVisitResponses(a.Visits),
		EventCount: a.EventCount,
	})
}

// writeError logs err at a level matching its kind and writes the JSON error.
// Server-side failures get fallback instead of the internal error text.
func (h *Handler) writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, fallback string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid:
		logger.WarnContext(ctx, "invalid request", logAttrs...)
		httpx.WriteKindError(w, err, errorMessage(err))

	case errx.NotFound:
		logger.InfoContext(ctx, "short link not found", logAttrs...)
		httpx.WriteKindError(w, err, "short link doesn't exist")

	case errx.Expired:
		logger.InfoContext(ctx, "short link expired", logAttrs...)
		httpx.WriteKindError(w, err, "short link has expired")

	case errx.Unavailable:
		logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteKindError(w, err, fallback)

	default:
		logger.ErrorContext(ctx, "unexpected error", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// errorMessage returns the innermost message of err, without op prefixes.
func errorMessage(err error) string {
	for {
		e, ok := err.(*errx.Error)
		if !ok || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}
