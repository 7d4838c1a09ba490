// Package probe polls the HTTP surface every exit node exposes on port
// 8080 once its cloud-init setup completes.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arfa79/tailscale/pkg/model"
)

// Result is one status observation of a node. TailscaleIP and
// TailscaleStatus are best effort and may be empty even when reachable.
type Result struct {
	Reachable       bool
	TailscaleIP     string
	TailscaleStatus json.RawMessage
}

// Prober checks a node's readiness over its public address.
type Prober interface {
	// WaitCheck probes the readiness marker once, returning a
	// HealthCheckError when the node is not ready yet.
	WaitCheck(ctx context.Context, ip string) error
	// Status performs the full marker + tailscale-ip + status-json probe
	// sequence. Ordinary network failures yield Reachable=false, not an
	// error.
	Status(ctx context.Context, ip string) Result
}

// HTTPProber probes the fixed endpoint set on port 8080.
type HTTPProber struct {
	client *http.Client
	port   int

	// Per-probe timeouts. The marker check gets longer during the
	// readiness wait than during routine status sweeps.
	waitTimeout      time.Duration
	markerTimeout    time.Duration
	secondaryTimeout time.Duration
}

// NewHTTPProber returns a prober with the default timeouts.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client:           &http.Client{},
		port:             8080,
		waitTimeout:      20 * time.Second,
		markerTimeout:    10 * time.Second,
		secondaryTimeout: 5 * time.Second,
	}
}

func (p *HTTPProber) url(ip, path string) string {
	return fmt.Sprintf("http://%s:%d%s", ip, p.port, path)
}

func (p *HTTPProber) get(ctx context.Context, url string, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// WaitCheck implements the readiness-marker probe for the provisioning wait.
func (p *HTTPProber) WaitCheck(ctx context.Context, ip string) error {
	code, _, err := p.get(ctx, p.url(ip, "/setup-complete"), p.waitTimeout)
	if err != nil {
		return &model.HealthCheckError{Target: ip, Err: err}
	}
	if code != http.StatusOK {
		return &model.HealthCheckError{Target: ip, Err: fmt.Errorf("setup-complete returned %d", code)}
	}
	return nil
}

// Status implements the full probe sequence used by health checks.
func (p *HTTPProber) Status(ctx context.Context, ip string) Result {
	code, _, err := p.get(ctx, p.url(ip, "/setup-complete"), p.markerTimeout)
	if err != nil || code != http.StatusOK {
		return Result{Reachable: false}
	}

	res := Result{Reachable: true}
	if code, body, err := p.get(ctx, p.url(ip, "/tailscale-ip.txt"), p.secondaryTimeout); err == nil && code == http.StatusOK {
		res.TailscaleIP = strings.TrimSpace(string(body))
	}
	if code, body, err := p.get(ctx, p.url(ip, "/tailscale-status.json"), p.secondaryTimeout); err == nil && code == http.StatusOK {
		if json.Valid(body) {
			res.TailscaleStatus = json.RawMessage(body)
		}
	}
	return res
}
