// price-export CLI
// One-shot batch tool that downloads intraday futures bars, repairs gaps
// in the 15-minute series, converts timestamps to New York wall-clock time
// and writes the result as a formatted Excel workbook.
//
// Usage:
//
//	price-export fetch   --symbol nasdaq --days 59
//	price-export convert --input nq_15m_data.csv --output nq_15m_data.xlsx
//	price-export export  --symbol sp500
//
// For detailed help on any command, use: price-export <command> --help
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mserhatbalik/price-export/internal/config"
	"github.com/mserhatbalik/price-export/internal/logger"
	"github.com/mserhatbalik/price-export/internal/pipeline"
)

const (
	Version    = "1.0.0"
	AppName    = "price-export"
	ConfigFile = "price-export.json"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitFetchError  = 3
	ExitDataError   = 4
)

// symbolAliases maps the friendly market names to their Yahoo Finance
// futures tickers. A raw ticker is also accepted as-is.
var symbolAliases = map[string]string{
	"usdx":   "DX=F", // USDX futures
	"sp500":  "ES=F", // S&P 500 futures
	"nasdaq": "NQ=F", // NASDAQ futures
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "fetch":
		os.Exit(runFetch(ctx, args))
	case "convert":
		os.Exit(runConvert(ctx, args))
	case "export":
		os.Exit(runExport(ctx, args))
	case "--version", "-v", "version":
		fmt.Printf("%s version %s\n", AppName, Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}
}

// setup loads configuration, applies the shared flag overrides and builds
// the logger. Flag values win over environment and file values.
func setup(fs *flag.FlagSet, args []string) (*config.Config, *pipeline.Pipeline, func(), int) {
	configPath := fs.String("config", ConfigFile, "path to the JSON config file")
	symbol := fs.String("symbol", "", "market to download: usdx, sp500, nasdaq, or a raw ticker")
	days := fs.Int("days", 0, "trailing window in days")
	interval := fs.String("interval", "", "bar interval (e.g. 15m)")
	input := fs.String("input", "", "input CSV path (convert)")
	output := fs.String("output", "", "output spreadsheet path")
	sheet := fs.String("sheet", "", "output sheet name")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, ExitUsageError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return nil, nil, nil, ExitConfigError
	}

	if *symbol != "" {
		cfg.Fetch.Symbol = resolveSymbol(*symbol)
	}
	if *days > 0 {
		cfg.Fetch.WindowDays = *days
	}
	if *interval != "" {
		cfg.Fetch.Interval = *interval
	}
	if *input != "" {
		cfg.Output.InputFile = *input
	}
	if *output != "" {
		cfg.Output.OutputFile = *output
	}
	if *sheet != "" {
		cfg.Output.SheetName = *sheet
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return nil, nil, nil, ExitConfigError
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		return nil, nil, nil, ExitConfigError
	}

	cleanup := func() { closer.Close() }
	return cfg, pipeline.New(cfg, log), cleanup, ExitSuccess
}

func runFetch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	_, p, cleanup, code := setup(fs, args)
	if code != ExitSuccess {
		return code
	}
	defer cleanup()

	path, err := p.Fetch(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, pipeline.Describe(err))
		return ExitFetchError
	}
	fmt.Printf("Data saved to %s\n", path)
	return ExitSuccess
}

func runConvert(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	cfg, p, cleanup, code := setup(fs, args)
	if code != ExitSuccess {
		return code
	}
	defer cleanup()

	if cfg.Output.InputFile == "" {
		fmt.Fprintln(os.Stderr, "Error: convert requires --input")
		return ExitUsageError
	}

	if err := p.Convert(ctx, cfg.Output.InputFile); err != nil {
		fmt.Fprintln(os.Stderr, pipeline.Describe(err))
		return ExitDataError
	}
	fmt.Printf("Successfully created %s\n", cfg.Output.ResolveOutput(cfg.Output.InputFile))
	return ExitSuccess
}

func runExport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	_, p, cleanup, code := setup(fs, args)
	if code != ExitSuccess {
		return code
	}
	defer cleanup()

	if err := p.Export(ctx); err != nil {
		fmt.Fprintln(os.Stderr, pipeline.Describe(err))
		return ExitDataError
	}
	return ExitSuccess
}

// resolveSymbol maps a friendly market name to its ticker; anything not in
// the alias table is treated as a raw ticker.
func resolveSymbol(s string) string {
	if ticker, ok := symbolAliases[strings.ToLower(s)]; ok {
		return ticker
	}
	return s
}

func printUsage() {
	fmt.Printf(`%s - futures price bar download and spreadsheet export

Usage:
  %s <command> [options]

Commands:
  fetch     Download bars and write the intermediate CSV
  convert   Transform an existing CSV into a formatted spreadsheet
  export    Fetch and convert in one run
  version   Print version information
  help      Show this help

Common options:
  --config     Path to JSON config file (default %s)
  --symbol     Market to download: %s, or a raw ticker
  --days       Trailing window in days (default 59)
  --interval   Bar interval (default 15m)
  --input      Input CSV path (convert)
  --output     Output spreadsheet path (default: input with .xlsx extension)
  --sheet      Output sheet name (default PriceData_NY)
  --log-level  debug, info, warn, error

Examples:
  %s export --symbol nasdaq
  %s convert --input nq_15m_data.csv
`, AppName, AppName, ConfigFile, aliasList(), AppName, AppName)
}

func aliasList() string {
	names := make([]string, 0, len(symbolAliases))
	for name := range symbolAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
