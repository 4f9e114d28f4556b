package netstate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Probe polls the origin health endpoint and feeds the result to a Monitor.
type Probe struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
	Monitor  *Monitor
	Logger   *slog.Logger
}

// Check performs one health request and records the result.
// Any HTTP answer below 500 counts as reachable.
func (p *Probe) Check(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err == nil {
		req.Header.Set("Cache-Control", "no-store")
		client := p.Client
		if client == nil {
			client = http.DefaultClient
		}
		var resp *http.Response
		resp, err = client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			online = resp.StatusCode < 500
		}
	}
	if err != nil {
		p.logger().Debug("health probe failed", "url", p.URL, "error", err)
	}
	p.Monitor.Set(online)
	return online
}

// Run checks immediately and then every Interval until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

func (p *Probe) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
