package integration

import (
	"context"
	"fmt"
	"sync"

	"rupeeverse-engine/internal/core/domain"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/pkg/apperror"
)

// scriptedLedger is an in-memory ports.Transport. References listed in
// rejects fail with a ledger rejection; everything else is acknowledged
// with a deterministic transaction id. Submissions are recorded in order.
type scriptedLedger struct {
	mu      sync.Mutex
	rejects map[string]bool
	calls   []string
	nextTx  int
}

func newScriptedLedger() *scriptedLedger {
	return &scriptedLedger{rejects: make(map[string]bool)}
}

func (l *scriptedLedger) rejectReference(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejects[ref] = true
}

func (l *scriptedLedger) acceptReference(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rejects, ref)
}

func (l *scriptedLedger) submissions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *scriptedLedger) Submit(_ context.Context, entry *domain.PaymentEntry) (*ports.Ack, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, entry.Reference)
	if l.rejects[entry.Reference] {
		return nil, apperror.ErrLedgerRejected(fmt.Errorf("scripted rejection for %s", entry.Reference))
	}

	l.nextTx++
	return &ports.Ack{RemoteTxID: fmt.Sprintf("rtx-%03d", l.nextTx)}, nil
}

// manualSource is a hand-driven ports.ConnectivitySource.
type manualSource struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

func newManualSource(online bool) *manualSource {
	return &manualSource{online: online, changes: make(chan bool, 16)}
}

func (s *manualSource) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *manualSource) Changes() <-chan bool {
	return s.changes
}

func (s *manualSource) set(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	s.changes <- online
}
