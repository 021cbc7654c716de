// Package network tracks whether the streaming backend is reachable
package network

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor holds a single online/offline boolean refreshed by periodic
// reachability probes. There is no debouncing; a flapping connection
// produces flapping state, and every transition notifies subscribers.
type Monitor struct {
	probeURL   string
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	online      bool
	subscribers []func(online bool)
}

// New creates a monitor probing the given URL. The initial state is offline
// until the first probe or an explicit SetOnline.
func New(probeURL string) *Monitor {
	return &Monitor{
		probeURL: probeURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
}

// Online reports the current reachability state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on every state transition.
// Callbacks run on the probing goroutine and should return quickly.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// SetOnline forces the reachability state, notifying subscribers on change
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	m.logger.Info("network state changed", "online", online)

	for _, fn := range subscribers {
		fn(online)
	}
}

// Probe performs one reachability check and updates the state
func (m *Monitor) Probe(ctx context.Context) {
	m.SetOnline(m.reachable(ctx))
}

// Run probes on the given interval until the context is cancelled. An
// immediate probe runs first so the state is populated at startup.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "HEAD", m.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
