package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct {
	calls int32
	err   error
	delay time.Duration
}

func (f *fakeAuth) Authenticate(ctx context.Context) (Token, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(f.delay)
	if f.err != nil {
		return Token{}, f.err
	}
	now := time.Now()
	return Token{Value: "tok-1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}, nil
}

func TestAuthenticate_CollapsesConcurrentCallers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// The delay keeps the first authentication in flight while the other
	// callers arrive, so they all overlap it.
	auth := &fakeAuth{delay: 100 * time.Millisecond}
	tr := New(DefaultConfig(srv.URL), auth, zap.NewNop())

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := tr.Authenticate(context.Background())
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))
}

func TestRequest_SucceedsAndUsesToken(t *testing.T) {
	var gotAuthHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	auth := &fakeAuth{}
	tr := New(DefaultConfig(srv.URL), auth, zap.NewNop())

	resp, err := tr.Request(context.Background(), "default", http.MethodGet, "/instruments/ES", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer tok-1", gotAuthHeader)
}

func TestRequest_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry.Base = time.Millisecond
	cfg.Retry.Cap = 10 * time.Millisecond
	tr := New(cfg, &fakeAuth{}, zap.NewNop())

	resp, err := tr.Request(context.Background(), "default", http.MethodGet, "/x", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
}

func TestInstrumentCache_MissThenHit(t *testing.T) {
	tr := New(DefaultConfig("http://example.invalid"), &fakeAuth{}, zap.NewNop())
	_, ok := tr.CachedInstrument("CON.F.CME.ES.Z25")
	assert.False(t, ok)

	tr.CacheInstrument("CON.F.CME.ES.Z25", "payload")
	v, ok := tr.CachedInstrument("CON.F.CME.ES.Z25")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)
}

func TestTokenShouldRefresh(t *testing.T) {
	now := time.Now()
	tok := Token{Value: "x", IssuedAt: now.Add(-90 * time.Minute), ExpiresAt: now.Add(30 * time.Minute)}
	assert.True(t, tok.ShouldRefresh(now))

	fresh := Token{Value: "x", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	assert.False(t, fresh.ShouldRefresh(now))
}
