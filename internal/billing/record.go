package billing

import (
	"errors"
	"regexp"
	"time"
)

// TimestampLayout is the layout of call start and end columns (dd-MM-yyyy HH:mm:ss).
const TimestampLayout = "02-01-2006 15:04:05"

// ErrInvalidInput is returned for every malformed log, record or tariff.
var ErrInvalidInput = errors.New("invalid input")

var destinationPattern = regexp.MustCompile(`^420\d{9}$`)

// CallRecord is one parsed line of the phone log.
type CallRecord struct {
	Line            int
	Destination     string
	Start           time.Time
	End             time.Time
	DurationSeconds int64
}

// ValidDestination reports whether the number is a 420 prefixed 12 digit number.
func ValidDestination(number string) bool {
	return destinationPattern.MatchString(number)
}

func newCallRecord(line int, destination string, start, end time.Time) (CallRecord, error) {
	if !ValidDestination(destination) {
		return CallRecord{}, invalidf("invalid phone number: %q", destination)
	}
	if end.Before(start) {
		return CallRecord{}, invalidf("end time %s cannot be before start time %s",
			end.Format(TimestampLayout), start.Format(TimestampLayout))
	}
	return CallRecord{
		Line:            line,
		Destination:     destination,
		Start:           start,
		End:             end,
		DurationSeconds: end.Unix() - start.Unix(),
	}, nil
}
