package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/parcelops/shippulse/internal/integrations/carrier"
	"github.com/parcelops/shippulse/internal/metrics"
	"github.com/parcelops/shippulse/internal/models"
)

type Repository interface {
	DueShipments(ctx context.Context, now time.Time, limit int) ([]*models.Shipment, error)
	CODCandidates(ctx context.Context, since time.Time) ([]*models.Order, error)
	LatestShipmentForOrder(ctx context.Context, orderID int64) (*models.Shipment, error)
}

type Persister interface {
	PersistTracking(ctx context.Context, awb string, snap *models.TrackingSnapshot) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Sweeper drives the two reconciliation passes: re-polling due
// shipments and hunting unpaid delivered COD orders.
type Sweeper struct {
	repo    Repository
	persist Persister

	bluedart   carrier.Client
	shiprocket carrier.Client

	rl                 RateLimiter
	rateLimitPerMinute int64

	interval    time.Duration
	batchSize   int
	concurrency int

	codChunkSize  int
	codChunkPause time.Duration
	codWindow     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	triggerCh chan struct{}

	startedAtUnixNano int64
	lastCycleUnixNano atomic.Int64
	totalDue          atomic.Int64
	totalProcessed    atomic.Int64
	totalErrors       atomic.Int64
	inFlight          atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(repo Repository, persist Persister, bluedart, shiprocket carrier.Client, rl RateLimiter) *Sweeper {
	return &Sweeper{
		repo:               repo,
		persist:            persist,
		bluedart:           bluedart,
		shiprocket:         shiprocket,
		rl:                 rl,
		rateLimitPerMinute: 120,
		interval:           5 * time.Minute,
		batchSize:          30,
		concurrency:        10,
		codChunkSize:       20,
		codChunkPause:      1 * time.Second,
		codWindow:          30 * 24 * time.Hour,
		now:                time.Now,
		sleep:              sleepCtx,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(interval time.Duration, batchSize, concurrency, codChunkSize int, codChunkPause, codWindow time.Duration, rlPerMin int64) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if codChunkSize > 0 {
		s.codChunkSize = codChunkSize
	}
	if codChunkPause > 0 {
		s.codChunkPause = codChunkPause
	}
	if codWindow > 0 {
		s.codWindow = codWindow
	}
	if rlPerMin > 0 {
		s.rateLimitPerMinute = rlPerMin
	}
	return s
}

// WithClock overrides the time source and disables pauses (tests).
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	s.sleep = func(context.Context, time.Duration) {}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Trigger forces an immediate due sweep (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Run loops the due sweep until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-s.triggerCh:
		}
		if _, err := s.RunDue(ctx, s.batchSize); err != nil {
			slog.Error("due sweep", "error", err.Error())
		}
	}
}

// RunDue re-polls up to maxBatch due shipments. Items run in parallel;
// one bad AWB never aborts the batch. Returns the number of shipments
// whose fresh status was persisted.
func (s *Sweeper) RunDue(ctx context.Context, maxBatch int) (int, error) {
	if maxBatch <= 0 {
		maxBatch = s.batchSize
	}
	now := s.now().UTC()
	s.lastCycleUnixNano.Store(now.UnixNano())

	items, err := s.repo.DueShipments(ctx, now, maxBatch)
	if err != nil {
		s.noteError(err)
		return 0, errors.Wrap(err, "select due shipments")
	}
	s.totalDue.Add(int64(len(items)))

	var processed atomic.Int64
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, sh := range items {
		sem <- struct{}{}
		wg.Add(1)
		shCopy := sh
		s.inFlight.Add(1)
		metrics.SweepInFlight.Inc()
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				metrics.SweepInFlight.Dec()
				<-sem
				wg.Done()
			}()
			if err := s.pollOne(ctx, shCopy); err != nil {
				s.totalErrors.Add(1)
				metrics.SweepErrors.Inc()
				s.noteError(err)
				slog.Error("poll shipment", "awb", shCopy.AWB, "error", err.Error())
				return
			}
			processed.Add(1)
			s.totalProcessed.Add(1)
			metrics.SweepProcessed.Inc()
		}()
	}
	wg.Wait()

	return int(processed.Load()), nil
}

func (s *Sweeper) pollOne(ctx context.Context, sh *models.Shipment) error {
	snap := s.TrackAny(ctx, sh.AWB)
	if snap == nil {
		return errors.New("no carrier returned a snapshot")
	}
	return s.persist.PersistTracking(ctx, sh.AWB, snap)
}

// TrackAny tries Blue Dart first, then Shiprocket. Any adapter error
// is a soft failure; nil means neither carrier knows the AWB.
func (s *Sweeper) TrackAny(ctx context.Context, awb string) *models.TrackingSnapshot {
	type source struct {
		name   string
		client carrier.Client
	}
	for _, src := range []source{
		{models.CourierBlueDart, s.bluedart},
		{models.CourierShiprocket, s.shiprocket},
	} {
		if src.client == nil {
			continue
		}
		s.throttle(ctx, src.name)
		snap, err := src.client.Track(ctx, awb)
		if err != nil {
			metrics.CarrierRequests.WithLabelValues(src.name, "error").Inc()
			slog.Debug("carrier track failed", "carrier", src.name, "awb", awb, "error", err.Error())
			continue
		}
		metrics.CarrierRequests.WithLabelValues(src.name, "ok").Inc()
		return snap
	}
	return nil
}

func (s *Sweeper) throttle(ctx context.Context, carrierName string) {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return
	}
	minuteKey := fmt.Sprintf("rl:carrier:%s:%s", carrierName, s.now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		// Redis being down must not stall the sweep.
		slog.Debug("rate limiter unavailable", "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("carrier rate limit exceeded", "carrier", carrierName, "count", n)
		s.sleep(ctx, 500*time.Millisecond)
	}
}

func (s *Sweeper) noteError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	TotalDue       int64      `json:"totalDue"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalDue:       s.totalDue.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}
