package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Bill is the outcome of pricing one phone log.
type Bill struct {
	Total           decimal.Decimal
	Calls           int
	BilledCalls     int
	FreeDestination string
	Skipped         int
}

// Calculator runs the parse, exclude and price pipeline. The zero value uses the default
// tariff and aborts on the first malformed line. It holds no mutable state.
type Calculator struct {
	Tariff *Tariff
	Parser Parser
	Logger zerolog.Logger
}

// NewCalculator builds a calculator after validating the tariff.
func NewCalculator(tariff Tariff, parser Parser, logger zerolog.Logger) (*Calculator, error) {
	if err := tariff.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{Tariff: &tariff, Parser: parser, Logger: logger}, nil
}

// Calculate returns the total amount to pay for every call in the log.
func (c *Calculator) Calculate(phoneLog string) (decimal.Decimal, error) {
	bill, err := c.Bill(phoneLog)
	if err != nil {
		return decimal.Zero, err
	}
	return bill.Total, nil
}

// Bill prices the log and reports how the total was reached.
func (c *Calculator) Bill(phoneLog string) (Bill, error) {
	if strings.TrimSpace(phoneLog) == "" {
		return Bill{}, invalidf("phone log is empty")
	}

	bill, err := c.bill(phoneLog)
	if err != nil {
		c.Logger.Error().Err(err).Msg("parsing or calculating call records failed")
		if !errors.Is(err, ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return Bill{}, fmt.Errorf("parsing or calculating call records failed: %w", err)
	}
	return bill, nil
}

func (c *Calculator) tariff() Tariff {
	if c.Tariff == nil {
		return DefaultTariff()
	}
	return *c.Tariff
}

func (c *Calculator) bill(phoneLog string) (Bill, error) {
	parser := c.Parser
	if parser.SkipInvalid {
		onSkip := parser.OnSkip
		parser.OnSkip = func(line int, err error) {
			c.Logger.Warn().Int("line", line).Err(err).Msg("skipping invalid call record")
			if onSkip != nil {
				onSkip(line, err)
			}
		}
	}

	records, skipped, err := parser.parse(phoneLog)
	if err != nil {
		return Bill{}, err
	}
	billed, free := ExcludeMostFrequent(records)
	total, err := c.tariff().Total(billed)
	if err != nil {
		return Bill{}, err
	}
	return Bill{
		Total:           total,
		Calls:           len(records),
		BilledCalls:     len(billed),
		FreeDestination: free,
		Skipped:         skipped,
	}, nil
}
