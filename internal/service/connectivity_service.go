package service

import (
	"sync"
	"time"

	"rupeeverse-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// ConnectivityMonitorImpl implements ports.ConnectivityMonitor. It samples
// the platform signal once at startup, then folds the raw change stream
// into debounced Online/Offline transitions: a reconnect is announced only
// after the signal has been stably online for the quiet window, so rapid
// flapping produces one notification per real transition.
type ConnectivityMonitorImpl struct {
	src      ports.ConnectivitySource
	debounce time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan ports.ConnectivityEvent
	nextID int
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewConnectivityMonitor creates and starts a monitor over src. debounce
// is the minimum quiet window before an offline-to-online transition is
// announced; zero disables debouncing.
func NewConnectivityMonitor(src ports.ConnectivitySource, debounce time.Duration, log zerolog.Logger) *ConnectivityMonitorImpl {
	m := &ConnectivityMonitorImpl{
		src:      src,
		debounce: debounce,
		log:      log,
		online:   src.Online(),
		subs:     make(map[int]chan ports.ConnectivityEvent),
		done:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run()
	return m
}

// IsOnline returns the current debounced state.
func (m *ConnectivityMonitorImpl) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a listener for debounced transitions. The returned
// cancel func releases the subscription; it is safe to call more than once.
func (m *ConnectivityMonitorImpl) Subscribe() (<-chan ports.ConnectivityEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan ports.ConnectivityEvent, 4)
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close stops the monitor and closes all subscriptions.
func (m *ConnectivityMonitorImpl) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

func (m *ConnectivityMonitorImpl) run() {
	defer m.wg.Done()

	var quiet *time.Timer
	var quietC <-chan time.Time
	stopQuiet := func() {
		if quiet != nil {
			quiet.Stop()
			quiet = nil
			quietC = nil
		}
	}
	defer stopQuiet()

	for {
		select {
		case <-m.done:
			return

		case raw, ok := <-m.src.Changes():
			if !ok {
				return
			}
			if !raw {
				// Going offline is announced immediately; a pending
				// reconnect announcement is abandoned.
				stopQuiet()
				m.transition(false)
				continue
			}
			if m.debounce <= 0 {
				m.transition(true)
				continue
			}
			// Restart the quiet window on every online signal so only a
			// stable connection announces a reconnect.
			stopQuiet()
			quiet = time.NewTimer(m.debounce)
			quietC = quiet.C

		case <-quietC:
			stopQuiet()
			m.transition(true)
		}
	}
}

// transition publishes a state change to all subscribers. A signal that
// matches the current state is dropped, so each real transition is
// announced exactly once. The sends happen under the mutex: cancel closes
// channels under the same mutex, so a send can never hit a closed channel.
func (m *ConnectivityMonitorImpl) transition(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online

	m.log.Info().Bool("online", online).Msg("connectivity transition")

	event := ports.ConnectivityEvent{Online: online, At: time.Now()}
	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; dropping beats blocking the monitor.
		}
	}
}
