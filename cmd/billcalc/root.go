package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/phonebill/internal/billing"
	"github.com/noah-isme/phonebill/internal/config"
	"github.com/noah-isme/phonebill/internal/obs"
)

var (
	labelColor = color.New(color.Bold)
	totalColor = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

type options struct {
	skipInvalid bool
	jsonOut     bool
	noColor     bool
	logLevel    string
}

type billOutput struct {
	Total           string `json:"total"`
	Currency        string `json:"currency"`
	Calls           int    `json:"calls"`
	BilledCalls     int    `json:"billedCalls"`
	FreeDestination string `json:"freeDestination,omitempty"`
	Skipped         int    `json:"skipped,omitempty"`
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "billcalc [file]",
		Short: "Calculate the bill for a phone call log",
		Long: `billcalc prices a phone log with one call per line:

  420774567453,13-01-2025 18:10:15,13-01-2025 18:12:57

The log is read from the given file, or from stdin when the file is omitted or "-".
Calls to the most frequently dialled number are free.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			in := stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return run(cmd, opts, in, stdout, stderr)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.skipInvalid, "skip-invalid", false, "skip malformed lines instead of failing")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the bill as JSON")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func run(cmd *cobra.Command, opts *options, in io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLoggerTo(stderr, "console", opts.logLevel)

	parser := cfg.Parser()
	if cmd.Flags().Changed("skip-invalid") {
		parser.SkipInvalid = opts.skipInvalid
	}
	calc, err := billing.NewCalculator(cfg.Tariff, parser, logger)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(in, cfg.MaxLogBytes+1))
	if err != nil {
		return fmt.Errorf("read phone log: %w", err)
	}
	if int64(len(data)) > cfg.MaxLogBytes {
		return fmt.Errorf("phone log exceeds %d bytes", cfg.MaxLogBytes)
	}

	svc := &billing.Service{Calc: calc, Logger: logger, Source: "cli"}
	bill, err := svc.Calculate(cmd.Context(), string(data))
	if err != nil {
		return err
	}

	out := billOutput{
		Total:           bill.Total.StringFixed(1),
		Currency:        cfg.Currency,
		Calls:           bill.Calls,
		BilledCalls:     bill.BilledCalls,
		FreeDestination: bill.FreeDestination,
		Skipped:         bill.Skipped,
	}
	if opts.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printBill(stdout, out)
	return nil
}

func printBill(w io.Writer, out billOutput) {
	labelColor.Fprint(w, "Total: ")
	totalColor.Fprintf(w, "%s %s\n", out.Total, out.Currency)
	labelColor.Fprint(w, "Calls: ")
	fmt.Fprintf(w, "%d (%d billed)\n", out.Calls, out.BilledCalls)
	if out.FreeDestination != "" {
		labelColor.Fprint(w, "Free destination: ")
		fmt.Fprintln(w, out.FreeDestination)
	}
	if out.Skipped > 0 {
		warnColor.Fprintf(w, "Skipped %d invalid line(s)\n", out.Skipped)
	}
}
