package target

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/repository"
)

// Transparent 1x1 pixel payloads, decoded once at package init.
const (
	pixelGIFBase64 = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"
	pixelPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="
)

var (
	pixelGIF = mustDecodePixel(pixelGIFBase64)
	pixelPNG = mustDecodePixel(pixelPNGBase64)
)

func mustDecodePixel(encoded string) []byte {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		panic(fmt.Sprintf("invalid pixel payload: %v", err))
	}
	return data
}

var emailPageTmpl = template.Must(template.New("email").Parse(
	`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
{{.Body}}
</body>
</html>
`))

// Resolvers implements the handlers behind every built-in target kind.
type Resolvers struct {
	storage  repository.Storage
	pagesDir string
	log      *zap.Logger
}

// NewResolvers creates resolvers serving static pages from pagesDir and
// looking up email content through the given storage.
func NewResolvers(storage repository.Storage, pagesDir string, log *zap.Logger) *Resolvers {
	return &Resolvers{
		storage:  storage,
		pagesDir: pagesDir,
		log:      log,
	}
}

// Redirect resolves both external redirects (scheme plus domain, optional
// path) and local ones (path only, served from the same origin). The
// captured path goes into the destination verbatim, trailing slash included.
func (rs *Resolvers) Redirect(_ context.Context, req *Request) (*Response, error) {
	scheme := req.Params["scheme"]
	domain := req.Params["domain"]
	path := req.Params["filepath"]

	var url string
	switch {
	case domain != "":
		if scheme == "" {
			scheme = SchemeHTTP
		}
		url = scheme + "://" + domain + "/" + path
	case path != "":
		url = "/" + path
	default:
		return nil, fmt.Errorf("%w: redirect target without destination", ErrInvalidTarget)
	}

	return &Response{
		Status:      http.StatusFound,
		RedirectURL: url,
	}, nil
}

// HTMLPage serves a static page from the configured pages directory.
func (rs *Resolvers) HTMLPage(_ context.Context, req *Request) (*Response, error) {
	page := req.Params["filepath"]
	if page == "" {
		page = DefaultPage
	}
	if !cleanPath(page) {
		return nil, fmt.Errorf("%w: page path %q escapes pages directory", ErrInvalidTarget, page)
	}

	data, err := os.ReadFile(filepath.Join(rs.pagesDir, filepath.FromSlash(page)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			rs.log.Warn("tracking page not found",
				zap.String("page", page),
				zap.String("pages_dir", rs.pagesDir))
			return &Response{Status: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("failed to read page %q: %w", page, err)
	}

	return &Response{
		Status:      http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        data,
	}, nil
}

// PixelGIF serves the transparent GIF beacon.
func (rs *Resolvers) PixelGIF(_ context.Context, _ *Request) (*Response, error) {
	return &Response{
		Status:      http.StatusOK,
		ContentType: "image/gif",
		Body:        pixelGIF,
	}, nil
}

// PixelPNG serves the transparent PNG beacon.
func (rs *Resolvers) PixelPNG(_ context.Context, _ *Request) (*Response, error) {
	return &Response{
		Status:      http.StatusOK,
		ContentType: "image/png",
		Body:        pixelPNG,
	}, nil
}

// EmailRender serves the stored HTML body of the email sent to the instance
// behind the request.
func (rs *Resolvers) EmailRender(ctx context.Context, req *Request) (*Response, error) {
	instance, err := rs.storage.GetInstanceByUUID(ctx, req.UUID)
	if err != nil {
		if errors.Is(err, repository.ErrInstanceNotFound) {
			return &Response{Status: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("failed to look up instance for email render: %w", err)
	}

	email, err := rs.storage.GetEmailByTracker(ctx, instance.TrackerID)
	if err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			rs.log.Warn("no email stored for tracker",
				zap.Int64("tracker_id", instance.TrackerID),
				zap.String("uuid", req.UUID))
			return &Response{Status: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("failed to load email for tracker %d: %w", instance.TrackerID, err)
	}

	var buf bytes.Buffer
	err = emailPageTmpl.Execute(&buf, struct {
		Subject string
		Body    template.HTML
	}{
		Subject: email.Subject,
		Body:    template.HTML(email.HTMLBody),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render email page: %w", err)
	}

	return &Response{
		Status:      http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

// EmailAcknowledge confirms an explicit read receipt. The recording itself
// happens in the gateway like for any other target.
func (rs *Resolvers) EmailAcknowledge(_ context.Context, _ *Request) (*Response, error) {
	return &Response{
		Status:      http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte("Receipt acknowledged. Thank you.\n"),
	}, nil
}
