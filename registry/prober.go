package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober periodically checks the health of every registered server.
type Prober struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProber creates a prober that checks all servers every interval.
func NewProber(registry *Registry, interval time.Duration) *Prober {
	return &Prober{
		registry: registry,
		interval: interval,
		logger:   slog.Default().With("component", "health-prober"),
	}
}

// Start launches the probe loop in a background goroutine.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.probeAll(ctx)
			}
		}
	}()
	p.logger.Info("health prober started", "interval", p.interval)
}

// Stop cancels the probe loop and waits for it to exit.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Prober) probeAll(ctx context.Context) {
	servers, err := p.registry.List(ctx)
	if err != nil {
		p.logger.Error("failed to list servers for probing", "err", err)
		return
	}

	for _, server := range servers {
		status, err := p.registry.CheckHealth(ctx, server.ID)
		if err != nil {
			p.logger.Warn("probe failed", "server", server.ID, "err", err)
			continue
		}
		p.logger.Debug("probed server", "server", server.ID, "status", status)
	}
}
