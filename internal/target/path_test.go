package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "gpx", "/gpx"},
		{"leading_slash", "/gpx", "/gpx"},
		{"trailing_slash", "gpx/", "/gpx"},
		{"both_slashes", "/gpx/", "/gpx"},
		{"nested", "http/example.com/page", "/http/example.com/page"},
		{"nested_trailing", "http/example.com/page/", "/http/example.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTail(tt.in))
		})
	}
}

func TestNormalizeTail_Idempotent(t *testing.T) {
	for _, tail := range []string{"gpx", "/gpx/", "http/example.com/a/b/"} {
		once := NormalizeTail(tail)
		assert.Equal(t, once, NormalizeTail(once))
	}
}

func TestTailRedirect(t *testing.T) {
	t.Run("domain_only", func(t *testing.T) {
		tail, err := TailRedirect(SchemeHTTPS, "example.com", "")
		require.NoError(t, err)
		assert.Equal(t, "https/example.com", tail)
	})

	t.Run("with_path", func(t *testing.T) {
		tail, err := TailRedirect(SchemeHTTP, "example.com", "some/page.html")
		require.NoError(t, err)
		assert.Equal(t, "http/example.com/some/page.html", tail)
	})

	t.Run("leading_slash_path", func(t *testing.T) {
		tail, err := TailRedirect(SchemeHTTP, "example.com", "/some/page")
		require.NoError(t, err)
		assert.Equal(t, "http/example.com/some/page", tail)
	})

	t.Run("bad_scheme", func(t *testing.T) {
		_, err := TailRedirect("ftp", "example.com", "")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("missing_domain", func(t *testing.T) {
		_, err := TailRedirect(SchemeHTTP, "", "page")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
}

func TestTailLocalRedirect(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		tail, err := TailLocalRedirect("dashboard/home")
		require.NoError(t, err)
		assert.Equal(t, "r/dashboard/home", tail)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := TailLocalRedirect("")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
}

func TestTailHTML(t *testing.T) {
	assert.Equal(t, "h/promo.html", TailHTML("promo.html"))
	assert.Equal(t, "h/"+DefaultPage, TailHTML(""))
	assert.Equal(t, "h/sub/page.html", TailHTML("/sub/page.html"))
}

func TestAssembleURL(t *testing.T) {
	url := AssembleURL("http://localhost:8080", "t", "abc123", "0123456789abcdef0123456789abcdef", "gpx")
	assert.Equal(t, "http://localhost:8080/t/abc123/0123456789abcdef0123456789abcdef/gpx", url)

	t.Run("trailing_slash_base", func(t *testing.T) {
		url := AssembleURL("http://localhost:8080/", "t", "abc", "def", "gpx/")
		assert.Equal(t, "http://localhost:8080/t/abc/def/gpx", url)
	})
}
