package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/kennis/internal/testutil"
)

func TestHostGuard_CheckHost(t *testing.T) {
	g := &hostGuard{}

	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		// Public targets pass
		{"public hostname", "example.com", false},
		{"public IPv4", "93.184.216.34", false},
		{"public IPv6", "2606:2800:220:1:248:1893:25c8:1946", false},

		// Blocked hostnames
		{"localhost", "localhost", true},
		{"localhost mixed case", "LocalHost", true},
		{"gcp metadata", "metadata.google.internal", true},

		// Loopback
		{"ipv4 loopback", "127.0.0.1", true},
		{"ipv4 loopback high", "127.1.2.3", true},
		{"ipv6 loopback", "::1", true},

		// Private ranges
		{"rfc1918 10", "10.0.0.1", true},
		{"rfc1918 172", "172.16.0.1", true},
		{"rfc1918 192", "192.168.1.1", true},
		{"ipv6 unique local", "fd00::1", true},

		// Link-local, incl. cloud metadata
		{"metadata endpoint", "169.254.169.254", true},
		{"link-local", "169.254.1.1", true},
		{"ipv6 link-local", "fe80::1", true},

		// Unspecified
		{"ipv4 unspecified", "0.0.0.0", true},
		{"ipv6 unspecified", "::", true},

		// v6-mapped v4 normalizes before the check
		{"mapped loopback", "::ffff:127.0.0.1", true},
		{"mapped private", "::ffff:192.168.0.10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.checkHost(tt.host)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBlockedTarget)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHostGuard_NilAllowsEverything(t *testing.T) {
	var g *hostGuard

	assert.NoError(t, g.checkHost("127.0.0.1"))
	assert.NoError(t, g.checkIP(net.ParseIP("10.0.0.1")))
	assert.Nil(t, g.transport())

	u, err := url.Parse("http://localhost:8080/")
	require.NoError(t, err)
	assert.NoError(t, g.checkURL(u))
}

func TestHostGuard_DialContextBlocksIPLiteral(t *testing.T) {
	g := &hostGuard{}

	_, err := g.dialContext(context.Background(), "tcp", "127.0.0.1:80")
	assert.ErrorIs(t, err, ErrBlockedTarget)

	_, err = g.dialContext(context.Background(), "tcp", "192.168.1.1:443")
	assert.ErrorIs(t, err, ErrBlockedTarget)
}

func TestArticle_BlocksPrivateTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	// Default fetcher, no WithPrivateNetwork: the test server's loopback
	// address must be rejected before any request is made.
	f, err := New(testutil.DiscardLogger())
	require.NoError(t, err)

	_, err = f.Article(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBlockedTarget)
}
