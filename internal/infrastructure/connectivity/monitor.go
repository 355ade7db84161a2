// Package connectivity polls the persistence API's health endpoint
// and exposes an advisory reachability signal. The signal only gates
// the periodic background session refresh; user-initiated sign-in and
// sign-out always go straight to the provider.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger probes the persistence API once
type Pinger interface {
	Ping(ctx context.Context) error
}

// MonitorConfig holds configuration for the monitor
type MonitorConfig struct {
	// PollInterval is how often the health endpoint is probed
	PollInterval time.Duration
	// ProbeTimeout bounds a single probe
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig returns default monitor configuration
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor periodically probes the API and tracks reachability.
// Before the first probe completes the API is assumed reachable, so
// a slow start never blocks a refresh attempt.
type Monitor struct {
	config MonitorConfig
	pinger Pinger
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	online    bool
}

// NewMonitor creates a new connectivity monitor
func NewMonitor(config MonitorConfig, pinger Pinger, logger *zap.Logger) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMonitorConfig().PollInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultMonitorConfig().ProbeTimeout
	}
	return &Monitor{
		config: config,
		pinger: pinger,
		logger: logger,
		online: true,
	}
}

// Online reports whether the API is believed reachable
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start begins polling. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runLoop(ctx)
}

// Stop stops polling and waits for the loop to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// probe performs one health check and records transitions
func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)

	m.mu.Lock()
	was := m.online
	m.online = err == nil
	now := m.online
	m.mu.Unlock()

	if was != now {
		if now {
			m.logger.Info("Persistence API reachable again")
		} else {
			m.logger.Warn("Persistence API unreachable", zap.Error(err))
		}
	}
}

// HTTPPinger probes an HTTP health endpoint
type HTTPPinger struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPPinger creates a pinger for the given health URL
func NewHTTPPinger(url, apiKey string) *HTTPPinger {
	return &HTTPPinger{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{},
	}
}

// Ping implements Pinger
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
