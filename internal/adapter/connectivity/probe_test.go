package connectivity

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_InitialSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, healthPath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, time.Hour, http.DefaultClient, zerolog.Nop())
	defer p.Close()

	assert.True(t, p.Online())
}

func TestProber_InitiallyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewProber(srv.URL, time.Hour, http.DefaultClient, zerolog.Nop())
	defer p.Close()

	assert.False(t, p.Online())
}

func TestProber_ServerErrorCountsAsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, time.Hour, http.DefaultClient, zerolog.Nop())
	defer p.Close()

	assert.False(t, p.Online())
}

func TestProber_EmitsOnlyTransitions(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 10*time.Millisecond, http.DefaultClient, zerolog.Nop())
	defer p.Close()

	require.False(t, p.Online())

	healthy.Store(true)
	select {
	case online := <-p.Changes():
		assert.True(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition to online observed")
	}
	assert.True(t, p.Online())

	healthy.Store(false)
	select {
	case online := <-p.Changes():
		assert.False(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition to offline observed")
	}
	assert.False(t, p.Online())
}

func TestProber_CloseStopsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 10*time.Millisecond, http.DefaultClient, zerolog.Nop())
	p.Close()

	_, open := <-p.Changes()
	assert.False(t, open)
}
