package knowledge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/metrics"
)

// BuildFunc constructs a chain for one domain. It is expensive (corpus
// loading and indexing) and runs once per process once it succeeds.
type BuildFunc func(ctx context.Context) (Chain, error)

// Manager owns the lazily built per-domain chains. The first caller of a
// domain triggers the build; concurrent callers block until it finishes.
// Successful builds are cached for the process lifetime. Failed builds are
// not cached, the next caller retries.
type Manager struct {
	mu       sync.Mutex
	builders map[string]BuildFunc
	slots    map[string]*buildSlot
	logger   *zap.Logger
}

type buildSlot struct {
	done  chan struct{}
	chain Chain
	err   error
}

func NewManager(builders map[string]BuildFunc, logger *zap.Logger) *Manager {
	return &Manager{
		builders: builders,
		slots:    make(map[string]*buildSlot),
		logger:   logger,
	}
}

// Chain returns the chain for domain, building it on first use.
func (m *Manager) Chain(ctx context.Context, domain string) (Chain, error) {
	m.mu.Lock()
	slot, ok := m.slots[domain]
	if ok {
		m.mu.Unlock()
		select {
		case <-slot.done:
			return slot.chain, slot.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	builder, ok := m.builders[domain]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("unknown knowledge domain %q", domain)
	}

	slot = &buildSlot{done: make(chan struct{})}
	m.slots[domain] = slot
	m.mu.Unlock()

	m.logger.Info("Building knowledge chain", zap.String("domain", domain))
	slot.chain, slot.err = builder(ctx)
	close(slot.done)

	if slot.err != nil {
		// Drop the slot so later callers rebuild. A cancelled prewarm or a
		// transient embedding outage must not pin the domain as broken.
		m.mu.Lock()
		if m.slots[domain] == slot {
			delete(m.slots, domain)
		}
		m.mu.Unlock()
		metrics.ChainBuilds.WithLabelValues(domain, "error").Inc()
		m.logger.Error("Knowledge chain build failed",
			zap.String("domain", domain),
			zap.Error(slot.err),
		)
	} else {
		metrics.ChainBuilds.WithLabelValues(domain, "ok").Inc()
		m.logger.Info("Knowledge chain ready", zap.String("domain", domain))
	}
	return slot.chain, slot.err
}

// Prewarm builds every registered domain eagerly. Errors are logged by
// Chain and retried on the next request; Prewarm returns the first one for
// startup reporting.
func (m *Manager) Prewarm(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, 0, len(m.builders))
	var errMu sync.Mutex

	for domain := range m.builders {
		wg.Add(1)
		go func(domain string) {
			defer wg.Done()
			if _, err := m.Chain(ctx, domain); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(domain)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
