package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func callAt(hour, minute, second int, duration int64) CallRecord {
	start := time.Date(2025, time.January, 13, hour, minute, second, 0, time.UTC)
	return CallRecord{
		Destination:     "420774567454",
		Start:           start,
		End:             start.Add(time.Duration(duration) * time.Second),
		DurationSeconds: duration,
	}
}

func TestBillableMinutes(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 1, 59: 1, 60: 1, 61: 2, 300: 5, 301: 6}
	for seconds, want := range cases {
		require.Equalf(t, want, BillableMinutes(seconds), "seconds=%d", seconds)
	}
}

func TestPeakWindowBoundaries(t *testing.T) {
	tariff := DefaultTariff()
	require.False(t, tariff.IsPeak(callAt(7, 59, 59, 0).Start))
	require.True(t, tariff.IsPeak(callAt(8, 0, 0, 0).Start))
	require.True(t, tariff.IsPeak(callAt(15, 59, 59, 0).Start))
	require.False(t, tariff.IsPeak(callAt(16, 0, 0, 0).Start))
	require.False(t, tariff.IsPeak(callAt(0, 0, 0, 0).Start))
}

func TestCost(t *testing.T) {
	tariff := DefaultTariff()
	cases := []struct {
		name string
		rec  CallRecord
		want string
	}{
		{name: "zero length", rec: callAt(9, 0, 0, 0), want: "0"},
		{name: "one second peak", rec: callAt(9, 0, 0, 1), want: "1.0"},
		{name: "exactly five minutes peak", rec: callAt(8, 0, 0, 300), want: "5.0"},
		{name: "five minutes and a second peak", rec: callAt(8, 0, 0, 301), want: "5.2"},
		{name: "exactly five minutes off-peak", rec: callAt(16, 0, 0, 300), want: "2.5"},
		{name: "five minutes and a second off-peak", rec: callAt(16, 0, 0, 301), want: "2.7"},
		{name: "long off-peak", rec: callAt(22, 0, 0, 3600), want: "13.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tariff.Cost(tc.rec)
			require.NoError(t, err)
			requireAmount(t, tc.want, got)
		})
	}
}

func TestCostRejectsNegativeDuration(t *testing.T) {
	_, err := DefaultTariff().Cost(callAt(9, 0, 0, -1))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTotalIsExact(t *testing.T) {
	records := make([]CallRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		records = append(records, callAt(9, 0, 0, 301))
	}
	total, err := DefaultTariff().Total(records)
	require.NoError(t, err)
	require.Equal(t, "5200.0", total.StringFixed(1))
	require.True(t, total.IsPositive())
}

func TestTariffValidate(t *testing.T) {
	require.NoError(t, DefaultTariff().Validate())

	bad := DefaultTariff()
	bad.OffPeakRate = bad.OffPeakRate.Neg()
	require.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = DefaultTariff()
	bad.PeakEnd = 25 * time.Hour
	require.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = DefaultTariff()
	bad.IncludedMinutes = -1
	require.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:00")
	require.NoError(t, err)
	require.Equal(t, 8*time.Hour, d)

	d, err = ParseClock("15:59:30")
	require.NoError(t, err)
	require.Equal(t, "15:59:30", FormatClock(d))

	d, err = ParseClock("24:00")
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, d)

	for _, bad := range []string{"", "8", "25:00", "12:60", "aa:bb", "1:2:3:4"} {
		_, err := ParseClock(bad)
		require.Errorf(t, err, "input %q", bad)
	}
}

func TestFingerprintChangesWithTariff(t *testing.T) {
	a := DefaultTariff()
	b := DefaultTariff()
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.IncludedMinutes = 3
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
