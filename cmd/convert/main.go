// Command convert runs a single file-to-file conversion without the server:
// it reads an exchange export, correlates it into transaction records, and
// writes the CoinTracker CSV. The output file is only created after the whole
// batch has correlated successfully.
package main

import (
	"flag"
	stdlog "log"
	"os"
	"time"

	"github.com/username/coinfolio/backend/src/exporters/cointracker"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/parsers"
	"github.com/username/coinfolio/backend/src/processors"
)

func main() {
	inPath := flag.String("in", "", "path of the exchange export CSV")
	outPath := flag.String("out", "", "path of the CoinTracker CSV to write")
	source := flag.String("source", "binance", "export source")
	timezone := flag.String("timezone", "Local", "timezone of the output Date column")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger.InitLogger(*logLevel)

	if *inPath == "" || *outPath == "" {
		stdlog.Fatal("both -in and -out are required")
	}

	location := time.Local
	if *timezone != "Local" {
		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			stdlog.Fatalf("invalid -timezone %q: %v", *timezone, err)
		}
		location = loc
	}

	parser, err := parsers.GetParser(*source)
	if err != nil {
		stdlog.Fatalf("unsupported source: %v", err)
	}

	in, err := os.Open(*inPath)
	if err != nil {
		stdlog.Fatalf("failed to open input: %v", err)
	}
	defer in.Close()

	entries, err := parser.Parse(in)
	if err != nil {
		stdlog.Fatalf("failed to parse %s: %v", *inPath, err)
	}

	ledger, stats, err := processors.NewCorrelator().Correlate(entries)
	if err != nil {
		stdlog.Fatalf("correlation failed, no output written: %v", err)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		stdlog.Fatalf("failed to create output: %v", err)
	}
	defer out.Close()

	if err := cointracker.NewWriter(location).Write(ledger.Records(), out); err != nil {
		stdlog.Fatalf("failed to write output: %v", err)
	}

	logger.L.Info("Conversion complete",
		"in", *inPath,
		"out", *outPath,
		"entriesRead", stats.EntriesRead,
		"entriesIgnored", stats.EntriesIgnored,
		"recordsWritten", stats.RecordCount)
}
