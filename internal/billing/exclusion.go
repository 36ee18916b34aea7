package billing

import "github.com/shopspring/decimal"

// MostFrequentDestination returns the destination called most often. Ties are broken by the
// numerically highest number. ok is false when no destination was called more than once.
func MostFrequentDestination(records []CallRecord) (destination string, ok bool) {
	counts := make(map[string]int, len(records))
	maxCount := 0
	for _, rec := range records {
		counts[rec.Destination]++
		if counts[rec.Destination] > maxCount {
			maxCount = counts[rec.Destination]
		}
	}
	if maxCount <= 1 {
		return "", false
	}

	var best decimal.Decimal
	for number, count := range counts {
		if count != maxCount {
			continue
		}
		value, err := decimal.NewFromString(number)
		if err != nil {
			continue
		}
		if !ok || value.GreaterThan(best) {
			best = value
			destination = number
			ok = true
		}
	}
	return destination, ok
}

// ExcludeMostFrequent drops every call to the most frequent destination and returns the
// remaining records in their original order along with the excluded number.
func ExcludeMostFrequent(records []CallRecord) ([]CallRecord, string) {
	free, ok := MostFrequentDestination(records)
	if !ok {
		return records, ""
	}
	kept := make([]CallRecord, 0, len(records))
	for _, rec := range records {
		if rec.Destination != free {
			kept = append(kept, rec)
		}
	}
	return kept, free
}
