package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tariff holds the per-minute rates and the peak window used to price calls.
type Tariff struct {
	PeakRate        decimal.Decimal
	OffPeakRate     decimal.Decimal
	ExtraMinuteRate decimal.Decimal
	// IncludedMinutes are billed at the peak or off-peak rate, later minutes at ExtraMinuteRate.
	IncludedMinutes int64
	// PeakStart is inclusive and PeakEnd exclusive, both measured from midnight.
	PeakStart time.Duration
	PeakEnd   time.Duration
}

// DefaultTariff returns the standard tariff: 1.0 peak, 0.5 off-peak, 0.2 after five minutes,
// peak between 08:00:00 and 16:00:00.
func DefaultTariff() Tariff {
	return Tariff{
		PeakRate:        decimal.RequireFromString("1.0"),
		OffPeakRate:     decimal.RequireFromString("0.5"),
		ExtraMinuteRate: decimal.RequireFromString("0.2"),
		IncludedMinutes: 5,
		PeakStart:       8 * time.Hour,
		PeakEnd:         16 * time.Hour,
	}
}

// Validate checks that the tariff can price calls.
func (t Tariff) Validate() error {
	if t.PeakRate.IsNegative() || t.OffPeakRate.IsNegative() || t.ExtraMinuteRate.IsNegative() {
		return invalidf("tariff rates must not be negative")
	}
	if t.IncludedMinutes < 0 {
		return invalidf("tariff included minutes must not be negative")
	}
	if t.PeakStart < 0 || t.PeakEnd > 24*time.Hour || t.PeakStart >= t.PeakEnd {
		return invalidf("tariff peak window %s-%s is invalid", FormatClock(t.PeakStart), FormatClock(t.PeakEnd))
	}
	return nil
}

// IsPeak reports whether a call starting at the given wall-clock time is billed at the peak rate.
func (t Tariff) IsPeak(start time.Time) bool {
	h, m, s := start.Clock()
	tod := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	return tod >= t.PeakStart && tod < t.PeakEnd
}

// BillableMinutes rounds a duration in seconds up to whole minutes.
func BillableMinutes(seconds int64) int64 {
	return (seconds + 59) / 60
}

// Cost prices a single call.
func (t Tariff) Cost(rec CallRecord) (decimal.Decimal, error) {
	if rec.DurationSeconds < 0 {
		return decimal.Zero, invalidf("call to %s has negative duration", rec.Destination)
	}
	rate := t.OffPeakRate
	if t.IsPeak(rec.Start) {
		rate = t.PeakRate
	}

	minutes := BillableMinutes(rec.DurationSeconds)
	if minutes <= t.IncludedMinutes {
		return rate.Mul(decimal.NewFromInt(minutes)), nil
	}
	included := rate.Mul(decimal.NewFromInt(t.IncludedMinutes))
	extra := t.ExtraMinuteRate.Mul(decimal.NewFromInt(minutes - t.IncludedMinutes))
	return included.Add(extra), nil
}

// Total sums the cost of every record.
func (t Tariff) Total(records []CallRecord) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, rec := range records {
		cost, err := t.Cost(rec)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(cost)
	}
	return total, nil
}

// Fingerprint identifies the tariff for cache keys.
func (t Tariff) Fingerprint() string {
	return strings.Join([]string{
		t.PeakRate.String(),
		t.OffPeakRate.String(),
		t.ExtraMinuteRate.String(),
		strconv.FormatInt(t.IncludedMinutes, 10),
		FormatClock(t.PeakStart),
		FormatClock(t.PeakEnd),
	}, "|")
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("clock: bad %q", value)
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("clock: bad %q: %w", value, err)
		}
		nums[i] = n
	}
	h, m, s := nums[0], nums[1], nums[2]
	if h == 24 && m == 0 && s == 0 {
		return 24 * time.Hour, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("clock: out of range %q", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// FormatClock renders an offset from midnight as HH:MM:SS.
func FormatClock(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
