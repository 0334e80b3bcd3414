package http

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/gateway"
	"LinkTrace-Backend/pkg/useragent"
)

// accessPathRe splits the tracking path into hash, uuid and tail. The hash
// is at least 32 lowercase hex characters, the uuid exactly 32.
var accessPathRe = regexp.MustCompile(`^/([0-9a-f]{32,})/([0-9a-f]{32})/(.*)$`)

// AccessHandler serves the public tracking endpoint.
type AccessHandler struct {
	gateway *gateway.Gateway
	parser  *useragent.Parser
	prefix  string
	log     *zap.Logger
}

// NewAccessHandler creates the tracking access handler. The parser may be
// nil; device classification is then skipped.
func NewAccessHandler(gw *gateway.Gateway, parser *useragent.Parser, prefix string, log *zap.Logger) *AccessHandler {
	return &AccessHandler{
		gateway: gw,
		parser:  parser,
		prefix:  "/" + strings.Trim(prefix, "/"),
		log:     log,
	}
}

// HandleAccess processes one tracking request: parse the path, run it
// through the gateway and translate the outcome to HTTP.
func (h *AccessHandler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, h.prefix)
	if !ok {
		http.NotFound(w, r)
		return
	}

	m := accessPathRe.FindStringSubmatch(rest)
	if m == nil {
		h.log.Debug("malformed tracking path", zap.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	}
	hash, uuid, tail := m[1], m[2], m[3]

	meta := h.requestMeta(r)
	rawURL := r.URL.RequestURI()

	resp, err := h.gateway.HandleAccess(r.Context(), hash, uuid, tail, rawURL, meta)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("failed to handle tracking access",
			zap.String("uuid", uuid),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if resp.RedirectURL != "" {
		http.Redirect(w, r, resp.RedirectURL, resp.Status)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 && r.Method != http.MethodHead {
		if _, err := w.Write(resp.Body); err != nil {
			h.log.Debug("failed to write response body", zap.Error(err))
		}
	}
}

// requestMeta collects the access metadata attached to the recorded row.
func (h *AccessHandler) requestMeta(r *http.Request) gateway.Meta {
	meta := gateway.Meta{}

	if ip := extractIPAddress(r); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
		if h.parser != nil {
			deviceType := h.parser.ParseUserAgent(ua).DeviceType
			meta.DeviceType = &deviceType
		}
	}
	if ref := r.Referer(); ref != "" {
		meta.Referer = &ref
	}

	return meta
}

// extractIPAddress resolves the client IP, preferring proxy headers.
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For may hold a comma-separated chain
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
