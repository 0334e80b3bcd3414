// Package target builds the canonical tail paths that describe where a
// tracking URL ultimately leads, matches inbound tail paths back to their
// resolvers, and implements the resolvers themselves.
package target

import (
	"fmt"
	"strings"
)

// Canonical parameterless tails.
const (
	TailPixelGIF         = "gpx"
	TailPixelPNG         = "ppx"
	TailEmailRender      = "email/render"
	TailEmailAcknowledge = "email/acknowledge-receipt"

	// DefaultPage is served by the HTML target when no filepath is given.
	DefaultPage = "default.html"
)

// Scheme names accepted by the external redirect target.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// ErrInvalidTarget signals that a target cannot be built or resolved from
// the given parameters.
var ErrInvalidTarget = fmt.Errorf("invalid target")

// NormalizeTail brings a tail path into the form that is hashed: exactly one
// leading slash, no trailing slash. Signing and verification both go through
// this, so a caller-supplied trailing slash never breaks a signature.
func NormalizeTail(tail string) string {
	tail = "/" + strings.Trim(tail, "/")
	return tail
}

// TailRedirect builds the tail for an external redirect over the given
// scheme. The filepath part is optional.
func TailRedirect(scheme, domain, filepath string) (string, error) {
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, scheme)
	}
	if domain == "" {
		return "", fmt.Errorf("%w: redirect requires a domain", ErrInvalidTarget)
	}
	if filepath == "" {
		return scheme + "/" + domain, nil
	}
	return scheme + "/" + domain + "/" + strings.TrimPrefix(filepath, "/"), nil
}

// TailLocalRedirect builds the tail for a redirect to an in-application path.
func TailLocalRedirect(path string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: local redirect requires a path", ErrInvalidTarget)
	}
	return "r/" + path, nil
}

// TailHTML builds the tail for a static HTML page. An empty filepath selects
// the default page.
func TailHTML(filepath string) string {
	filepath = strings.TrimPrefix(filepath, "/")
	if filepath == "" {
		filepath = DefaultPage
	}
	return "h/" + filepath
}

// AssembleURL puts together a full tracking URL:
//
//	<urlbase>/<prefix>/<hash>/<uuid>/<tailpath>
//
// The hash must be computed over the normalized tail before calling this.
func AssembleURL(urlbase, prefix, hash, uuid, tail string) string {
	return strings.TrimSuffix(urlbase, "/") + "/" +
		strings.Trim(prefix, "/") + "/" +
		hash + "/" + uuid + NormalizeTail(tail)
}
