package billing

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/phonebill/internal/cache"
	"github.com/noah-isme/phonebill/internal/obs"
)

// JSONStore keeps JSON documents with a TTL. cache.Store implements it.
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service wraps the calculator with result caching, tracing and metrics.
type Service struct {
	Calc     *Calculator
	Cache    JSONStore
	CacheTTL time.Duration
	Logger   zerolog.Logger
	// Source labels metrics (http, job, cli).
	Source string
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Calculate prices the phone log, serving repeated logs from the cache when configured.
func (s *Service) Calculate(ctx context.Context, phoneLog string) (Bill, error) {
	ctx, span := obs.Tracer("billing").Start(ctx, "billing.calculate")
	defer span.End()
	span.SetAttributes(attribute.Int("billing.log_bytes", len(phoneLog)))

	calc := s.Calc
	if calc == nil {
		calc = &Calculator{}
	}

	key := s.cacheKey(calc, phoneLog)
	if bill, ok := s.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("billing.cache_hit", true))
		return bill, nil
	}

	start := s.now()
	bill, err := calc.Bill(phoneLog)
	elapsed := obs.DurationMillis(s.now().Sub(start))
	if err != nil {
		obs.ObserveBill(s.source(), "invalid", 0, 0, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid phone log")
		return Bill{}, err
	}

	free := bill.Calls - bill.BilledCalls
	obs.ObserveBill(s.source(), "ok", bill.BilledCalls, free, bill.Skipped, elapsed)
	span.SetAttributes(
		attribute.Int("billing.calls", bill.Calls),
		attribute.Int("billing.billed_calls", bill.BilledCalls),
		attribute.String("billing.total", bill.Total.String()),
	)
	s.store(ctx, key, bill)
	return bill, nil
}

func (s *Service) source() string {
	if s.Source == "" {
		return "unknown"
	}
	return s.Source
}

func (s *Service) cacheKey(calc *Calculator, phoneLog string) string {
	return cache.HashKey("bill", calc.tariff().Fingerprint(), strconv.FormatBool(calc.Parser.SkipInvalid), phoneLog)
}

func (s *Service) lookup(ctx context.Context, key string) (Bill, bool) {
	if s.Cache == nil || s.CacheTTL <= 0 {
		return Bill{}, false
	}
	var bill Bill
	ok, err := s.Cache.GetJSON(ctx, key, &bill)
	if err != nil {
		obs.ObserveCache("error")
		s.Logger.Warn().Err(err).Msg("bill cache lookup failed")
		return Bill{}, false
	}
	if !ok {
		obs.ObserveCache("miss")
		return Bill{}, false
	}
	obs.ObserveCache("hit")
	return bill, true
}

func (s *Service) store(ctx context.Context, key string, bill Bill) {
	if s.Cache == nil || s.CacheTTL <= 0 {
		return
	}
	if err := s.Cache.SetJSON(ctx, key, bill, s.CacheTTL); err != nil {
		s.Logger.Warn().Err(err).Msg("bill cache store failed")
	}
}
