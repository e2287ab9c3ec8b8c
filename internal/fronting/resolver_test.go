package fronting

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarwick/vget/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("", logger.LevelError, false)
	require.NoError(t, err)
	return log
}

// newDoHServer returns a TLS server acting as the fronting provider's DoH
// endpoint, and a resolver wired to dial it. The URLs the resolver builds
// point at front.example, which does not exist; every connection must land
// on the server through the fixed front address.
func newDoHServer(t *testing.T, hits *atomic.Int64, answer string) *Resolver {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "dns.resolver.example", r.Host)
		assert.Equal(t, "/resolve", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("name"))
		fmt.Fprint(w, answer)
	}))
	t.Cleanup(srv.Close)

	return NewResolver(ResolverConfig{
		FrontHost:    "front.example",
		FrontAddr:    srv.Listener.Addr().String(),
		ResolverHost: "dns.resolver.example",
		ResolverPath: "/resolve",
	}, testLogger(t))
}

func Test_Resolver_DirectAnswer(t *testing.T) {
	var hits atomic.Int64
	r := newDoHServer(t, &hits, `{
		"Question": [{"name": "media.example."}],
		"Answer": [{"name": "media.example.", "type": 1, "data": "93.184.216.34"}]
	}`)

	addr, err := r.Resolve(context.Background(), "media.example")
	require.NoError(t, err)
	assert.Equal(t, "93.184.216.34", addr)
}

func Test_Resolver_CNAMEChain(t *testing.T) {
	var hits atomic.Int64
	r := newDoHServer(t, &hits, `{
		"Question": [{"name": "media.example."}],
		"Answer": [
			{"name": "media.example.", "type": 5, "data": "edge.cdn.example."},
			{"name": "edge.cdn.example.", "type": 5, "data": "pop.cdn.example."},
			{"name": "pop.cdn.example.", "type": 1, "data": "203.0.113.7"}
		]
	}`)

	addr, err := r.Resolve(context.Background(), "media.example")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", addr)
}

func Test_Resolver_Memoized(t *testing.T) {
	var hits atomic.Int64
	r := newDoHServer(t, &hits, `{
		"Question": [{"name": "media.example."}],
		"Answer": [{"name": "media.example.", "type": 1, "data": "198.51.100.9"}]
	}`)

	for range 3 {
		addr, err := r.Resolve(context.Background(), "media.example")
		require.NoError(t, err)
		assert.Equal(t, "198.51.100.9", addr)
	}
	assert.Equal(t, int64(1), hits.Load(), "repeated lookups must hit the cache")
}

func Test_Resolver_NoAnswer(t *testing.T) {
	var hits atomic.Int64
	r := newDoHServer(t, &hits, `{
		"Question": [{"name": "media.example."}],
		"Answer": []
	}`)

	_, err := r.Resolve(context.Background(), "media.example")
	assert.Error(t, err)
}

func Test_Resolver_CNAMELoop(t *testing.T) {
	var hits atomic.Int64
	r := newDoHServer(t, &hits, `{
		"Question": [{"name": "a.example."}],
		"Answer": [
			{"name": "a.example.", "type": 5, "data": "b.example."},
			{"name": "b.example.", "type": 5, "data": "a.example."}
		]
	}`)

	// A malformed cyclic answer must terminate with an error rather than
	// spinning forever.
	_, err := r.Resolve(context.Background(), "a.example")
	assert.Error(t, err)
}
