package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/adapters/rspamd"
	"github.com/lazymail/phish-analyzer/internal/analysis"
	"github.com/lazymail/phish-analyzer/internal/core"
	"github.com/lazymail/phish-analyzer/internal/logging"
)

var (
	// Reputation engine flags
	rspamdHost    = flag.String("rspamd-host", "localhost", "Rspamd worker host")
	rspamdPort    = flag.Int("rspamd-port", 11333, "Rspamd worker port")
	rspamdTimeout = flag.Duration("rspamd-timeout", 10*time.Second, "Timeout for the reputation check")

	// Input flags
	inputFile = flag.String("file", "", "Input message file (use stdin if not specified)")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog   = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Read message from file or stdin
	var raw []byte
	if *inputFile != "" {
		raw, err = os.ReadFile(*inputFile)
		if err != nil {
			logger.Fatal("Failed to read input file", zap.Error(err), zap.String("file", *inputFile))
		}
		logger.Info("Reading message from file", zap.String("file", *inputFile))
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			logger.Fatal("Failed to read stdin", zap.Error(err))
		}
		logger.Info("Reading message from stdin")
	}

	reputation := rspamd.NewClient(*rspamdHost, *rspamdPort, *rspamdTimeout, logger)
	analyzer := analysis.NewAnalyzer(reputation, logger, *rspamdTimeout)

	startTime := time.Now()
	report, err := analyzer.Analyze(context.Background(), raw)
	if err != nil {
		if errors.Is(err, core.ErrMalformedMessage) {
			fmt.Printf("Could not analyze: message could not be decoded (%v)\n", err)
			os.Exit(2)
		}
		logger.Fatal("Failed to analyze message", zap.Error(err))
	}
	duration := time.Since(startTime)

	printReport(report, duration)
}

func printReport(report *core.AnalysisReport, duration time.Duration) {
	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("Message-ID: %s\n", report.Message.MessageID)
	fmt.Printf("From: %s\n", report.Message.Sender)
	fmt.Printf("To: %s\n", strings.Join(report.Message.Recipients, ", "))
	fmt.Printf("Subject: %s\n", report.Message.Subject)
	fmt.Printf("Date: %s\n", report.Message.Date)

	fmt.Printf("\n=== Header Evidence ===\n")
	fmt.Printf("SPF: %s  DKIM: %s  DMARC: %s\n",
		report.Header.SPFResult, report.Header.DKIMResult, report.Header.DMARCResult)
	fmt.Printf("Display-name mismatch: %t\n", report.Header.DisplayNameMismatch)
	fmt.Printf("Reply-to mismatch: %t\n", report.Header.ReplyToMismatch)
	fmt.Printf("Received hops: %d\n", report.Header.ReceivedHops)
	fmt.Printf("Header risk: %.1f\n", report.Header.RiskScore)

	fmt.Printf("\n=== URL Evidence ===\n")
	fmt.Printf("URLs found: %d (%d suspicious, %d unique domains)\n",
		report.URLs.URLCount, report.URLs.SuspiciousURLCount, report.URLs.UniqueDomains)
	fmt.Printf("Shorteners: %t  IP hosts: %t  Homographs: %t\n",
		report.URLs.HasShorteners, report.URLs.HasIPURLs, report.URLs.HasHomographs)
	for _, u := range report.URLs.URLs {
		marker := " "
		if u.IsSuspicious() {
			marker = "!"
		}
		fmt.Printf("  %s %s\n", marker, u.URL)
	}

	fmt.Printf("\n=== HTML Evidence ===\n")
	fmt.Printf("Links: %d  Images: %d  Scripts: %d  Iframes: %d  Forms: %d  Hidden: %d\n",
		report.HTML.LinkCount, report.HTML.ImageCount, report.HTML.ScriptCount,
		report.HTML.IframeCount, report.HTML.FormCount, report.HTML.HiddenElementCount)
	fmt.Printf("HTML risk: %.1f\n", report.HTML.RiskScore)

	fmt.Printf("\n=== Reputation ===\n")
	if report.Reputation.IsAvailable {
		fmt.Printf("Score: %.2f (required %.2f)  Action: %s\n",
			report.Reputation.Score, report.Reputation.RequiredScore, report.Reputation.Action)
		for _, symbol := range report.Reputation.Symbols {
			fmt.Printf("  %-30s %+.2f  %s\n", symbol.Name, symbol.Score, symbol.Description)
		}
	} else {
		fmt.Printf("Unavailable: %s\n", report.Reputation.Error)
	}

	fmt.Printf("\n=== Verdict ===\n")
	fmt.Printf("Classification: %s\n", report.Verdict.Classification)
	fmt.Printf("Combined risk score: %.1f\n", report.Verdict.CombinedRiskScore)
	fmt.Printf("Confidence: %.0f\n", report.Verdict.Confidence)
	fmt.Printf("Recommended action: %s\n", report.Verdict.RecommendedAction)
	fmt.Printf("Processing time: %v\n", duration)
}
