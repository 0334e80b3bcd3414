package target

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository/memory"
)

func TestResolvers_Redirect(t *testing.T) {
	rs := NewResolvers(memory.New(), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	t.Run("external_with_path", func(t *testing.T) {
		resp, err := rs.Redirect(ctx, &Request{Params: Params{
			"scheme":   "https",
			"domain":   "example.com",
			"filepath": "some/page",
		}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, "https://example.com/some/page", resp.RedirectURL)
	})

	t.Run("external_domain_only", func(t *testing.T) {
		resp, err := rs.Redirect(ctx, &Request{Params: Params{
			"scheme": "http",
			"domain": "example.com",
		}})
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/", resp.RedirectURL)
	})

	t.Run("scheme_defaults_to_http", func(t *testing.T) {
		resp, err := rs.Redirect(ctx, &Request{Params: Params{
			"domain": "example.com",
		}})
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/", resp.RedirectURL)
	})

	t.Run("local_path_only", func(t *testing.T) {
		resp, err := rs.Redirect(ctx, &Request{Params: Params{
			"filepath": "dashboard/home",
		}})
		require.NoError(t, err)
		assert.Equal(t, "/dashboard/home", resp.RedirectURL)
	})

	t.Run("trailing_slash_survives", func(t *testing.T) {
		resp, err := rs.Redirect(ctx, &Request{Params: Params{
			"filepath": "app/page/",
		}})
		require.NoError(t, err)
		assert.Equal(t, "/app/page/", resp.RedirectURL)

		resp, err = rs.Redirect(ctx, &Request{Params: Params{
			"scheme":   "https",
			"domain":   "example.com",
			"filepath": "docs/",
		}})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/docs/", resp.RedirectURL)
	})

	t.Run("no_destination", func(t *testing.T) {
		_, err := rs.Redirect(ctx, &Request{Params: Params{}})
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
}

func TestResolvers_HTMLPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promo.html"), []byte("<h1>promo</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPage), []byte("<h1>default</h1>"), 0o644))

	rs := NewResolvers(memory.New(), dir, zap.NewNop())
	ctx := context.Background()

	t.Run("serves_page", func(t *testing.T) {
		resp, err := rs.HTMLPage(ctx, &Request{Params: Params{"filepath": "promo.html"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
		assert.Equal(t, "<h1>promo</h1>", string(resp.Body))
	})

	t.Run("empty_path_serves_default", func(t *testing.T) {
		resp, err := rs.HTMLPage(ctx, &Request{Params: Params{}})
		require.NoError(t, err)
		assert.Equal(t, "<h1>default</h1>", string(resp.Body))
	})

	t.Run("missing_page_is_error_response", func(t *testing.T) {
		resp, err := rs.HTMLPage(ctx, &Request{Params: Params{"filepath": "nope.html"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.True(t, resp.IsError())
	})

	t.Run("traversal_rejected", func(t *testing.T) {
		_, err := rs.HTMLPage(ctx, &Request{Params: Params{"filepath": "../secret.html"}})
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
}

func TestResolvers_Pixels(t *testing.T) {
	rs := NewResolvers(memory.New(), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	t.Run("gif", func(t *testing.T) {
		resp, err := rs.PixelGIF(ctx, &Request{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "image/gif", resp.ContentType)
		assert.Equal(t, "GIF89a", string(resp.Body[:6]))
	})

	t.Run("png", func(t *testing.T) {
		resp, err := rs.PixelPNG(ctx, &Request{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "image/png", resp.ContentType)
		assert.Equal(t, "\x89PNG", string(resp.Body[:4]))
	})
}

func TestResolvers_EmailRender(t *testing.T) {
	store := memory.New()
	rs := NewResolvers(store, t.TempDir(), zap.NewNop())
	ctx := context.Background()

	tracker := &domain.Tracker{Name: "_email_test"}
	require.NoError(t, store.CreateTracker(ctx, tracker))
	visitor := &domain.Visitor{Username: "alice"}
	require.NoError(t, store.CreateVisitor(ctx, visitor))
	instance, err := store.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)

	t.Run("no_email_for_tracker", func(t *testing.T) {
		resp, err := rs.EmailRender(ctx, &Request{UUID: instance.UUID})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	require.NoError(t, store.SaveEmail(ctx, &domain.SentEmail{
		TrackerID: tracker.ID,
		Subject:   "Quarterly report",
		HTMLBody:  "<p>Hello <b>there</b></p>",
	}))

	t.Run("renders_stored_body", func(t *testing.T) {
		resp, err := rs.EmailRender(ctx, &Request{UUID: instance.UUID})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
		assert.Contains(t, string(resp.Body), "<p>Hello <b>there</b></p>")
		assert.Contains(t, string(resp.Body), "Quarterly report")
	})

	t.Run("unknown_instance", func(t *testing.T) {
		resp, err := rs.EmailRender(ctx, &Request{UUID: "ffffffffffffffffffffffffffffffff"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})
}

func TestResolvers_EmailAcknowledge(t *testing.T) {
	rs := NewResolvers(memory.New(), t.TempDir(), zap.NewNop())

	resp, err := rs.EmailAcknowledge(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, resp.IsError())
}
