package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gnsd/internal/domain"
)

// CollectorConfig sets the sampling cadence and quantization for the
// collection pipeline.
type CollectorConfig struct {
	CellResolution uint8
	Interval       time.Duration
	AutoPublish    bool
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.CellResolution == 0 {
		c.CellResolution = 7
	}
	if c.Interval <= 0 {
		c.Interval = 300 * time.Second
	}
	return c
}

type collectionState struct {
	cancel   context.CancelFunc
	interval time.Duration
}

// Collector runs the periodic sampling loop. Collection state is per
// identity: each identity is independently Idle or Collecting, so one
// daemon can collect for several identities at once.
type Collector struct {
	Chain     *ChainService
	Publisher *Publisher
	Provider  domain.LocationProvider
	Quantizer domain.CellQuantizer
	Clock     Clock
	Logger    *slog.Logger

	cfg CollectorConfig

	mu     sync.Mutex
	active map[string]*collectionState
}

func NewCollector(chain *ChainService, publisher *Publisher, provider domain.LocationProvider, quantizer domain.CellQuantizer, clock Clock, logger *slog.Logger, cfg CollectorConfig) *Collector {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		Chain:     chain,
		Publisher: publisher,
		Provider:  provider,
		Quantizer: quantizer,
		Clock:     clock,
		Logger:    logger,
		cfg:       cfg.withDefaults(),
		active:    make(map[string]*collectionState),
	}
}

// Start moves the identity from Idle to Collecting. Idempotent: a
// second start while collecting is a no-op.
func (c *Collector) Start(ctx context.Context, identity domain.Identity) error {
	if c.Provider == nil {
		return errors.New("no location provider configured")
	}

	c.mu.Lock()
	if _, ok := c.active[identity.ID]; ok {
		c.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.active[identity.ID] = &collectionState{cancel: cancel, interval: c.cfg.Interval}
	c.mu.Unlock()

	go c.run(loopCtx, identity)
	c.Logger.Info("collection started",
		"identity", identity.ID, "interval", c.cfg.Interval)
	return nil
}

// Stop moves the identity back to Idle.
func (c *Collector) Stop(identityID string) {
	c.mu.Lock()
	state, ok := c.active[identityID]
	if ok {
		delete(c.active, identityID)
	}
	c.mu.Unlock()
	if ok {
		state.cancel()
		c.Logger.Info("collection stopped", "identity", identityID)
	}
}

// Collecting reports whether the identity is actively sampling.
func (c *Collector) Collecting(identityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[identityID]
	return ok
}

func (c *Collector) run(ctx context.Context, identity domain.Identity) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.CollectOnce(ctx, identity); err != nil {
				c.Logger.Warn("collection tick failed",
					"identity", identity.ID, "error", err)
				continue
			}
			if c.cfg.AutoPublish {
				c.publishIfReady(ctx, identity)
			}
		}
	}
}

// CollectOnce samples the location provider, quantizes the coordinates
// and appends one breadcrumb. Raw coordinates never leave this frame.
func (c *Collector) CollectOnce(ctx context.Context, identity domain.Identity) (*domain.Breadcrumb, error) {
	sample, err := c.Provider.Sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("sample location: %w", err)
	}
	source := sample.Source
	if source == "" {
		source = domain.SourceGPS
	}
	cell, err := c.Quantizer.CellIndex(sample.Latitude, sample.Longitude, c.cfg.CellResolution)
	if err != nil {
		return nil, err
	}
	return c.Chain.Append(ctx, identity, cell, c.cfg.CellResolution, c.Clock(), sample.AccuracyMeters, source)
}

func (c *Collector) publishIfReady(ctx context.Context, identity domain.Identity) {
	_, err := c.Publisher.Publish(ctx, identity)
	var insufficient *domain.InsufficientBreadcrumbsError
	switch {
	case err == nil:
	case errors.As(err, &insufficient):
	default:
		c.Logger.Warn("auto-publish failed", "identity", identity.ID, "error", err)
	}
}

// Status summarizes the identity's collection pipeline.
func (c *Collector) Status(ctx context.Context, identity domain.Identity) (domain.CollectionStatus, error) {
	total, err := c.Chain.Crumbs.Count(ctx, identity.ID)
	if err != nil {
		return domain.CollectionStatus{}, err
	}
	pending, err := c.Chain.Crumbs.ListUnpublished(ctx, identity.ID)
	if err != nil {
		return domain.CollectionStatus{}, err
	}
	epochCount, err := c.Publisher.Epochs.Count(ctx, identity.ID)
	if err != nil {
		return domain.CollectionStatus{}, err
	}

	status := domain.CollectionStatus{
		Active:          c.Collecting(identity.ID),
		TotalCount:      total,
		PendingCount:    int64(len(pending)),
		EpochCount:      epochCount,
		CellResolution:  c.cfg.CellResolution,
		IntervalSeconds: int(c.cfg.Interval / time.Second),
	}

	head, err := c.Chain.Crumbs.Head(ctx, identity.ID)
	switch {
	case err == nil:
		ts := head.Timestamp
		status.LastBreadcrumbAt = &ts
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.CollectionStatus{}, err
	}

	latest, err := c.Publisher.Epochs.Latest(ctx, identity.ID)
	switch {
	case err == nil:
		ts := latest.EndTime
		status.LastEpochAt = &ts
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.CollectionStatus{}, err
	}
	return status, nil
}
