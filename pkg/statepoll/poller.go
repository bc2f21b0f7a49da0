// Package statepoll periodically fetches the robot's authoritative full
// pose from the daemon. The control session uses it to seed the initial
// target and to fill axes untouched by partial updates.
package statepoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robokit/go-teleop/internal/httpc"
	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/pose"
)

// DefaultInterval is how often the daemon state is refreshed.
const DefaultInterval = time.Second

// Poller polls the daemon's full-state endpoint.
type Poller struct {
	baseURL  string
	interval time.Duration
	client   *http.Client

	mu     sync.RWMutex
	last   pose.Pose
	seeded bool
}

// New creates a poller for the daemon at baseURL.
func New(baseURL string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		baseURL:  baseURL,
		interval: interval,
		client:   httpc.Client,
	}
}

// Poll fetches the full pose once.
func (p *Poller) Poll(ctx context.Context) (pose.Pose, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/state", nil)
	if err != nil {
		return pose.Pose{}, fmt.Errorf("build state request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return pose.Pose{}, fmt.Errorf("state request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pose.Pose{}, fmt.Errorf("daemon returned %s", resp.Status)
	}

	var full pose.Pose
	if err := json.NewDecoder(resp.Body).Decode(&full); err != nil {
		return pose.Pose{}, fmt.Errorf("decode state: %w", err)
	}

	p.mu.Lock()
	p.last = full
	p.seeded = true
	p.mu.Unlock()
	return full, nil
}

// Run polls until ctx is cancelled. Poll failures are logged; the last
// good state stays available.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				log.Debug("state poll failed", "err", err)
			}
		}
	}
}

// Last returns the most recent full pose and whether one was ever seen.
func (p *Poller) Last() (pose.Pose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.seeded
}
