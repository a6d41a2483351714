package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// SummaryService builds the dashboard month overview.
type SummaryService struct {
	store store.MonthlySummer
	cache cache.Cache[core.MonthOverview]
	limit decimal.Decimal
	group singleflight.Group

	// mu orders cache writes against Invalidate. An overview computed
	// under an older generation is never stored.
	mu         sync.Mutex
	generation uint64
	inflight   map[string]int
}

// NewSummaryService wires the service. c may be nil to disable caching.
func NewSummaryService(st store.MonthlySummer, c cache.Cache[core.MonthOverview], limit decimal.Decimal) *SummaryService {
	return &SummaryService{store: st, cache: c, limit: limit, inflight: make(map[string]int)}
}

// Invalidate drops cached overviews after a write. Computations already
// running finish for their callers but are not cached, and later callers
// do not join them.
func (s *SummaryService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	for key := range s.inflight {
		s.group.Forget(key)
	}
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to invalidate summary cache", "error", err)
		}
	}
}

func (s *SummaryService) begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[key]++
	return s.generation
}

func (s *SummaryService) finish(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done(key)
}

func (s *SummaryService) done(key string) {
	if s.inflight[key]--; s.inflight[key] <= 0 {
		delete(s.inflight, key)
	}
}

// save caches ov unless a write invalidated the cache since gen was taken.
func (s *SummaryService) save(ctx context.Context, key string, gen uint64, ov core.MonthOverview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done(key)
	if s.cache == nil || gen != s.generation {
		return
	}
	if err := s.cache.Set(ctx, key, ov); err != nil {
		slog.WarnContext(ctx, "Summary cache write failed", "key", key, "error", err)
	}
}

// Overview compares the month containing now with the one before it.
// Concurrent callers for the same month share one store round-trip.
func (s *SummaryService) Overview(ctx context.Context, now time.Time) (core.MonthOverview, error) {
	year, month := now.Year(), int(now.Month())
	key := core.MonthKey(year, month)

	if s.cache != nil {
		ov, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "Summary cache read failed", "key", key, "error", err)
		} else if ok {
			return ov, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.begin(key)
		ov, err := s.compute(ctx, year, month)
		if err != nil {
			s.finish(key)
			return nil, err
		}
		s.save(ctx, key, gen, ov)
		return ov, nil
	})
	if err != nil {
		return core.MonthOverview{}, err
	}
	return v.(core.MonthOverview), nil
}

func (s *SummaryService) compute(ctx context.Context, year, month int) (core.MonthOverview, error) {
	py, pm := core.PreviousMonth(year, month)

	var current, previous core.Totals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.MonthlyTotals(gctx, year, month)
		if err != nil {
			return fmt.Errorf("current month totals: %w", err)
		}
		current = t
		return nil
	})
	g.Go(func() error {
		t, err := s.store.MonthlyTotals(gctx, py, pm)
		if err != nil {
			return fmt.Errorf("previous month totals: %w", err)
		}
		previous = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthOverview{}, fmt.Errorf("build overview: %w", err)
	}

	return core.NewMonthOverview(year, month, current, previous, s.limit), nil
}
