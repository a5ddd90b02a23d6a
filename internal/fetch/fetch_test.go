package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kennis/internal/testutil"
)

const articlePage = `<!DOCTYPE html>
<html lang="nl">
<head><title>Wondzorg na een operatie</title></head>
<body>
<article>
<h1>Wondzorg na een operatie</h1>
<p>Reinig de wond dagelijks met steriel water en controleer op roodheid of zwelling.
Gebruik alleen verbandmateriaal dat door de wondverpleegkundige is voorgeschreven.</p>
<p>Neem bij koorts boven de 38,5 graden direct contact op met de behandelend arts.
Registreer elke verbandwissel in het zorgdossier zodat het team het verloop kan volgen.</p>
</article>
</body>
</html>`

// newFetcher builds a Fetcher that accepts the loopback addresses the test
// servers listen on.
func newFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	f, err := New(testutil.DiscardLogger(), append([]Option{WithPrivateNetwork()}, opts...)...)
	require.NoError(t, err)
	return f
}

func TestArticle_ExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	art, err := newFetcher(t).Article(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, strings.TrimSuffix(art.URL, "/"))
	assert.Equal(t, "Wondzorg na een operatie", art.Title)
	assert.Contains(t, art.Text, "steriel water")
	assert.Contains(t, art.Text, "zorgdossier")
	assert.NotContains(t, art.Text, "<p>", "text is plain, not markup")
}

func TestArticle_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oud", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/nieuw", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/nieuw", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articlePage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	art, err := newFetcher(t).Article(context.Background(), srv.URL+"/oud")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/nieuw", art.URL, "final URL reflects the redirect target")
}

func TestArticle_RedirectLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/lus", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newFetcher(t).Article(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestArticle_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "niet gevonden", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher(t).Article(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestArticle_RejectsInvalidURLs(t *testing.T) {
	f := newFetcher(t)
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"ftp scheme", "ftp://example.com/bestand"},
		{"file scheme", "file:///etc/passwd"},
		{"missing host", "http:///pad"},
		{"bare path", "zomaar-tekst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Article(ctx, tt.url)
			assert.Error(t, err)
		})
	}
}

func TestArticle_UnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.7 nep")
	}))
	defer srv.Close()

	_, err := newFetcher(t).Article(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestArticle_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><script>var x = 1;</script></body></html>")
	}))
	defer srv.Close()

	_, err := newFetcher(t).Article(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestArticle_BodyCap(t *testing.T) {
	big := "<html><head><title>Groot</title></head><body><p>" +
		strings.Repeat("heel veel tekst ", 4096) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, big)
	}))
	defer srv.Close()

	art, err := newFetcher(t, WithMaxBody(4096)).Article(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Less(t, len(art.Text), 8192, "body is truncated at the cap before extraction")
}

func TestArticle_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	_, err := newFetcher(t, WithTimeout(50*time.Millisecond)).Article(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestArticle_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher(t).Article(ctx, "http://example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTitleFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"title element",
			`<html><head><title> Knox reset </title></head><body></body></html>`,
			"Knox reset",
		},
		{
			"og:title fallback",
			`<html><head><meta property="og:title" content="MFA instellen"></head><body></body></html>`,
			"MFA instellen",
		},
		{
			"title wins over og:title",
			`<html><head><title>Echte titel</title><meta property="og:title" content="OG titel"></head></html>`,
			"Echte titel",
		},
		{"no title", `<html><body><p>tekst</p></body></html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromHTML([]byte(tt.html)))
		})
	}
}

func TestFallbackText(t *testing.T) {
	page := `<html><head><title>Titel</title><style>p { color: red }</style></head>
<body><p>Eerste   regel.</p><script>alert("x")</script><p>Tweede regel.</p></body></html>`

	got := fallbackText([]byte(page))
	assert.Equal(t, "Eerste regel. Tweede regel.", got)
	assert.NotContains(t, got, "alert", "script content is skipped")
	assert.NotContains(t, got, "color", "style content is skipped")
	assert.NotContains(t, got, "Titel", "head content is skipped")
}
