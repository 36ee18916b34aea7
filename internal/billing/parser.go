package billing

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"
)

const fieldsPerRecord = 3

// Parser turns a comma separated phone log into call records.
type Parser struct {
	// SkipInvalid drops malformed lines instead of failing the whole log.
	SkipInvalid bool
	// OnSkip is invoked for every dropped line when SkipInvalid is set.
	OnSkip func(line int, err error)
}

// Parse converts the log using the default abort-on-error parser.
func Parse(phoneLog string) ([]CallRecord, error) {
	return Parser{}.Parse(phoneLog)
}

// Parse converts every line of the log into a CallRecord, preserving line order.
func (p Parser) Parse(phoneLog string) ([]CallRecord, error) {
	records, _, err := p.parse(phoneLog)
	return records, err
}

func (p Parser) parse(phoneLog string) ([]CallRecord, int, error) {
	if strings.TrimSpace(phoneLog) == "" {
		return nil, 0, invalidf("phone log is empty")
	}

	cr := csv.NewReader(strings.NewReader(phoneLog))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		records []CallRecord
		skipped int
	)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line := 0
		if err == nil {
			line, _ = cr.FieldPos(0)
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, skipped, err
			}
			line = pe.StartLine
			err = invalidf("%v", pe.Err)
		} else if isBlankRow(fields) {
			continue
		} else {
			var rec CallRecord
			rec, err = parseFields(line, fields)
			if err == nil {
				records = append(records, rec)
				continue
			}
		}

		lineErr := &LineError{Line: line, Err: err}
		if !p.SkipInvalid {
			return nil, skipped, lineErr
		}
		skipped++
		if p.OnSkip != nil {
			p.OnSkip(line, lineErr)
		}
	}

	if len(records) == 0 {
		return nil, skipped, invalidf("phone log has no valid call records")
	}
	return records, skipped, nil
}

func parseFields(line int, fields []string) (CallRecord, error) {
	if len(fields) != fieldsPerRecord {
		return CallRecord{}, invalidf("expected %d fields, got %d", fieldsPerRecord, len(fields))
	}
	start, err := parseTimestamp(fields[1])
	if err != nil {
		return CallRecord{}, err
	}
	end, err := parseTimestamp(fields[2])
	if err != nil {
		return CallRecord{}, err
	}
	return newCallRecord(line, strings.TrimSpace(fields[0]), start, end)
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalidf("bad timestamp %q: %v", value, err)
	}
	return ts, nil
}

func isBlankRow(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}
