package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort reads approved ledger rows.
type RepositoryPort interface {
	ApprovedRows(ctx context.Context, from, to time.Time) ([]Row, error)
}

// CachePort stores built reports under a versioned key.
type CachePort interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// Config controls how reports are computed.
type Config struct {
	Location  *time.Location
	Valuation pricing.Valuation
}

// Service builds windowed profit and loss reports.
type Service struct {
	repo      RepositoryPort
	cache     CachePort
	location  *time.Location
	valuation pricing.Valuation
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewService constructs the reporting service. cache may be nil.
func NewService(repo RepositoryPort, cache CachePort, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Valuation == "" {
		cfg.Valuation = pricing.ValuationCurrent
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		location:  cfg.Location,
		valuation: cfg.Valuation,
		logger:    logger,
		now:       time.Now,
	}
}

// Report returns the summary for one window. Admin only.
func (s *Service) Report(ctx context.Context, actor shared.Actor, window Window) (Report, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Report{}, err
	}
	if _, err := ParseWindow(string(window)); err != nil {
		return Report{}, err
	}
	return s.build(ctx, window)
}

// All returns every window in display order. Admin only.
func (s *Service) All(ctx context.Context, actor shared.Actor) ([]Report, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.buildAll(ctx)
}

// Warm builds every window into the cache and returns how many were built.
func (s *Service) Warm(ctx context.Context) (int, error) {
	reports, err := s.buildAll(ctx)
	return len(reports), err
}

func (s *Service) buildAll(ctx context.Context) ([]Report, error) {
	out := make([]Report, len(Windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range Windows {
		g.Go(func() error {
			rep, err := s.build(gctx, w)
			if err != nil {
				return err
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) build(ctx context.Context, w Window) (Report, error) {
	now := s.now().In(s.location)
	from, to := w.Range(now)
	if s.cache == nil {
		return s.compute(ctx, w, from, to, now)
	}
	key, err := s.cache.BuildKey(ctx, "reports", string(w), string(s.valuation), from.Format(time.DateOnly))
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("window", string(w)), slog.Any("error", err))
		return s.compute(ctx, w, from, to, now)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var (
			cached     Report
			computed   *Report
			computeErr error
		)
		err := s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (any, error) {
			rep, err := s.compute(ctx, w, from, to, now)
			if err != nil {
				computeErr = err
				return nil, err
			}
			computed = &rep
			return rep, nil
		})
		switch {
		case err == nil:
			return cached, nil
		case computed != nil:
			s.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
			return *computed, nil
		case computeErr != nil:
			return nil, computeErr
		}
		s.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
		return s.compute(ctx, w, from, to, now)
	})
	if err != nil {
		return Report{}, shared.Store("reports.build", err)
	}
	return v.(Report), nil
}

func (s *Service) compute(ctx context.Context, w Window, from, to, now time.Time) (Report, error) {
	rows, err := s.repo.ApprovedRows(ctx, from, to)
	if err != nil {
		return Report{}, shared.Store("reports.approved_rows", err)
	}
	rep := Report{
		Window:      w,
		From:        from,
		To:          to,
		Valuation:   s.valuation,
		Items:       []ItemSummary{},
		TotalCost:   decimal.Zero,
		TotalSales:  decimal.Zero,
		Net:         decimal.Zero,
		Outcome:     OutcomeNoData,
		Empty:       true,
		GeneratedAt: now,
	}
	if len(rows) == 0 {
		return rep, nil
	}
	items, cost, sales := Aggregate(rows, s.valuation)
	net := sales.Sub(cost)
	rep.Items = items
	rep.TotalCost = pricing.Round2(cost)
	rep.TotalSales = pricing.Round2(sales)
	rep.Net = pricing.Round2(net)
	rep.Outcome = Classify(net)
	rep.Empty = false
	return rep, nil
}
