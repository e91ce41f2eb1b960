package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/retailco/invoice-processor/internal/inference"
	"github.com/retailco/invoice-processor/internal/invoice"
	"github.com/retailco/invoice-processor/internal/report"
	"github.com/retailco/invoice-processor/internal/taxrate"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Pick up OPENAI-style .env files the way the ops scripts expect;
	// a missing .env is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("invoice-processor")
	var (
		invoicesDir     = fs.StringLong("invoices-dir", "Invoices", "Directory containing invoice PDFs")
		taxRatesFile    = fs.StringLong("tax-rates", "tax_rate_by_category.csv", "Tax category rate table (CSV)")
		outputDir       = fs.StringLong("output-dir", "output", "Directory for output artifacts")
		dbPath          = fs.StringLong("db", "invoice-processor.db", "Result database file path (empty to disable persistence)")
		capabilityType  = fs.StringLong("capability", "gemini", "Inference capability: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Gemini vision model for extraction")
		geminiTextModel = fs.StringLong("gemini-text-model", "gemini-2.5-flash", "Gemini text model for classification")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama vision model for extraction")
		ollamaTextModel = fs.StringLong("ollama-text-model", "", "Ollama text model for classification (defaults to the vision model)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_PROCESSOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Load the tax table first: a missing or empty table is a
	// configuration error, the only failure class that aborts the run
	table, err := taxrate.Load(*taxRatesFile)
	if err != nil {
		slog.Error("Failed to load tax category table", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded tax category table", "categories", table.Len())

	var capability inference.Capability
	switch *capabilityType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini capability...", "vision_model", *geminiModel, "text_model", *geminiTextModel)
		capability, err = inference.NewGemini(apiKey, *geminiModel, *geminiTextModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama capability...", "url", *ollamaURL, "vision_model", *ollamaModel)
		capability, err = inference.NewOllama(*ollamaURL, *ollamaModel, *ollamaTextModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid capability type", "type", *capabilityType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer capability.Close()

	var db invoice.DB
	if *dbPath != "" {
		db, err = invoice.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize result database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	storage, err := report.NewLocalStorage(*outputDir)
	if err != nil {
		slog.Error("Failed to initialize output storage", "error", err)
		os.Exit(1)
	}

	pipeline := invoice.NewPipeline(
		invoice.NewExtractor(capability),
		invoice.NewMatcher(capability, table),
		invoice.NewExemptionDetector(capability),
		db,
	)

	// Cancel in-flight capability calls on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A single positional argument processes one invoice; otherwise the
	// whole invoices directory is processed
	if args := fs.GetArgs(); len(args) > 0 {
		slog.Info("Processing single invoice", "file", args[0])
		if _, err := pipeline.ProcessInvoice(ctx, args[0]); err != nil {
			slog.Error("Failed to process invoice", "file", args[0], "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Processing all invoices", "dir", *invoicesDir)
		if _, err := pipeline.ProcessDirectory(ctx, *invoicesDir); err != nil {
			slog.Error("Failed to process invoices", "error", err)
			os.Exit(1)
		}
	}

	results := pipeline.Results()
	now := time.Now()

	writer := report.NewWriter(storage)
	if path, err := writer.WriteJSON(results, now); err != nil {
		slog.Error("Failed to write JSON results", "error", err)
		os.Exit(1)
	} else {
		slog.Info("Results saved", "path", path)
	}
	if path, err := writer.WriteCSV(results, now); err != nil {
		slog.Error("Failed to write CSV results", "error", err)
		os.Exit(1)
	} else {
		slog.Info("CSV results saved", "path", path)
	}
	if path, err := writer.WriteSummary(results, now); err != nil {
		slog.Error("Failed to write summary report", "error", err)
		os.Exit(1)
	} else {
		slog.Info("Summary report saved", "path", path)
	}

	usage := pipeline.TotalUsage()
	slog.Info("Run complete",
		"invoices", len(results),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
	)
}
