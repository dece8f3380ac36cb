// Package connectivity provides a ports.ConnectivitySource backed by
// periodic HTTP reachability probes against the ledger's health
// endpoint. The raw stream it emits may flap; the monitor in
// internal/service debounces it.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const healthPath = "/health"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Prober polls the ledger health endpoint at a fixed interval and
// reports reachability changes on its Changes channel.
type Prober struct {
	baseURL    string
	interval   time.Duration
	httpClient HTTPClient
	log        zerolog.Logger

	online  atomic.Bool
	changes chan bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewProber creates a prober and takes an initial reachability sample
// synchronously, so Online reflects reality before the first tick.
func NewProber(baseURL string, interval time.Duration, httpClient HTTPClient, log zerolog.Logger) *Prober {
	p := &Prober{
		baseURL:    baseURL,
		interval:   interval,
		httpClient: httpClient,
		log:        log,
		changes:    make(chan bool, 8),
		done:       make(chan struct{}),
	}
	p.online.Store(p.probe())

	p.wg.Add(1)
	go p.run()
	return p
}

// Online reports the most recent probe result.
func (p *Prober) Online() bool {
	return p.online.Load()
}

// Changes returns the raw reachability change stream. Only transitions
// are emitted, not every probe result.
func (p *Prober) Changes() <-chan bool {
	return p.changes
}

// Close stops probing and closes the change stream.
func (p *Prober) Close() {
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		close(p.changes)
	})
}

func (p *Prober) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			online := p.probe()
			if online == p.online.Load() {
				continue
			}
			p.online.Store(online)
			p.log.Debug().Bool("online", online).Msg("ledger reachability changed")
			select {
			case p.changes <- online:
			case <-p.done:
				return
			}
		}
	}
}

func (p *Prober) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
