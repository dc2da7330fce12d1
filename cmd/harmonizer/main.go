package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"harmonizer/harmonize"
	"harmonizer/importer"
	"harmonizer/internal/config"
	"harmonizer/locations"
	"harmonizer/matching"
	"harmonizer/proxy"
	"harmonizer/reference"
	"harmonizer/retrieval"
	"harmonizer/server"
	"harmonizer/units"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		inputPath  = flag.String("input", "", "LCI workbook to harmonize; empty starts the HTTP server")
		sheet      = flag.String("sheet", "", "sheet name inside the workbook")
		outputPath = flag.String("output", "mappings.json", "output file for the mapping set")
		format     = flag.String("format", "json", "export format: json, csv or excel")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg.LogLevel)

	index, err := reference.LoadFromSQLite(cfg.ReferenceDBPath)
	if err != nil {
		log.Fatalf("Failed to load reference index: %v", err)
	}

	orchestrator := buildOrchestrator(cfg, index)
	imp := importer.NewImporter(importer.Options{Sheet: *sheet})

	if *inputPath == "" {
		srv := server.NewServer(orchestrator, imp)
		if err := srv.ListenAndServe(cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
		return
	}

	runOnce(orchestrator, imp, *inputPath, *outputPath, *format)
}

// buildOrchestrator собирает конвейер из конфигурации
func buildOrchestrator(cfg *config.Config, index *reference.Index) *harmonize.Orchestrator {
	converter := units.NewConverter()
	hierarchy := locations.DefaultHierarchy()
	resolver := locations.NewResolver(hierarchy)

	retriever := retrieval.NewRetriever(index, retrieval.Options{
		K:        cfg.RetrievalK,
		MinScore: cfg.RetrievalFloor,
		Weights:  retrieval.DefaultSimilarityWeights(),
		Stem:     true,
	})

	var matcher harmonize.Matcher
	var justifier proxy.Justifier
	if cfg.ProviderEnabled() {
		client := matching.NewOpenAIClient(matching.OpenAIClientConfig{
			BaseURL:     cfg.ProviderBaseURL,
			APIKey:      cfg.ProviderAPIKey,
			Model:       cfg.ProviderModel,
			Temperature: &cfg.ProviderTemperature,
			TopP:        &cfg.ProviderTopP,
			Timeout:     cfg.ProviderTimeout,
			Retry: matching.RetryConfig{
				MaxRetries:        cfg.ProviderMaxRetries,
				InitialDelay:      500 * time.Millisecond,
				MaxDelay:          10 * time.Second,
				BackoffMultiplier: 2.0,
			},
		})
		m := matching.NewMatcher(client, matching.MatcherConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.RequestBurst,
			RequestTimeout:    cfg.ProviderTimeout,
		})
		matcher = m
		justifier = m
	} else {
		log.Printf("No provider configured: records will resolve via exact match and proxy only")
	}

	order := make([]proxy.Relaxation, 0, 2)
	for _, step := range cfg.RelaxationSteps() {
		order = append(order, proxy.Relaxation(step))
	}
	selector := proxy.NewSelector(index, hierarchy, justifier, proxy.Options{
		Order:    order,
		MinScore: cfg.ProxyFloor,
		Weights:  retrieval.DefaultSimilarityWeights(),
		Stem:     true,
	})

	return harmonize.NewOrchestrator(index, converter, resolver, retriever, matcher, selector,
		harmonize.Options{Workers: cfg.Workers})
}

// runOnce одноразовый прогон: импорт, гармонизация, экспорт
func runOnce(orchestrator *harmonize.Orchestrator, imp *importer.Importer, inputPath, outputPath, format string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	imported, err := imp.ImportFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to import %s: %v", inputPath, err)
	}

	result := orchestrator.Run(ctx, imported.Records)

	if err := harmonize.NewExporter(result).Export(outputPath, harmonize.ExportFormat(format)); err != nil {
		log.Fatalf("Failed to export mappings: %v", err)
	}
	log.Printf("Run %s: %d mappings written to %s", result.RunID, len(result.Mappings), outputPath)
}

// setupLogging настраивает уровень корневого slog-логгера
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
