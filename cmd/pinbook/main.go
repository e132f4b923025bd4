package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"pinbook/internal/config"
	"pinbook/internal/geocode"
	"pinbook/internal/handlers"
	"pinbook/internal/indexer"
	"pinbook/internal/middleware"
	"pinbook/internal/source"
	"pinbook/internal/store"
	"pinbook/pkg/logger"
	"pinbook/pkg/utils"
)

func main() {
	utils.LoadEnv()

	// Load Config & Env
	config.Load()

	st, err := store.Open(config.AppConfig.Database.Path)
	if err != nil {
		logger.LogFatal("Could not open the photo index: %v", err)
	}
	defer st.Close()

	pipeline := buildPipeline(st)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		runServe(st, pipeline)
	case "index":
		runIndex(st, pipeline)
	case "summary":
		runSummary(st)
	default:
		fmt.Fprintf(os.Stderr, "Usage: %s [serve|index|summary]\n", os.Args[0])
		os.Exit(2)
	}
}

func buildPipeline(st *store.Store) *indexer.Pipeline {
	minInterval, _ := time.ParseDuration(config.AppConfig.Geocode.MinInterval)
	geocoder := geocode.NewNominatimGeocoder(config.AppConfig.Geocode.Server, minInterval)
	resolver := geocode.NewResolver(geocoder, config.AppConfig.Geocode.MaxPerMinute)
	src := source.NewExifDirSource(config.AppConfig.Index.PhotosDir)
	return indexer.New(src, resolver, st)
}

func runServe(st *store.Store, pipeline *indexer.Pipeline) {
	mux := http.NewServeMux()

	api := &handlers.API{Store: st, Pipeline: pipeline}
	api.Register(mux)

	finalHandler := middleware.RateLimitMiddleware(middleware.CorsMiddleware(middleware.LoggerMiddleware(mux)))

	port := config.AppConfig.Server.Port
	baseURL := config.AppConfig.GetBaseUrl()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // indexing runs triggered over HTTP can outlive any sane write deadline
		IdleTimeout:  120 * time.Second,
	}

	logger.LogServerStart(port, baseURL)
	log.Fatal(server.ListenAndServe())
}

// runIndex performs one indexing run from the CLI: full when the store
// has never been populated, incremental from the stored watermark
// otherwise. Ctrl-C cancels between assets; the run stays resumable.
func runIndex(st *store.Store, pipeline *indexer.Pipeline) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	watermark, hasWatermark, err := st.LatestWatermark()
	if err != nil {
		logger.LogFatal("Watermark query failed: %v", err)
	}

	var summary indexer.RunSummary
	if hasWatermark {
		logger.LogInfo("Incremental indexing from watermark %d", watermark)
		summary, err = pipeline.IncrementalIndex(ctx, watermark)
	} else {
		logger.LogInfo("Empty index; starting full reindex")
		summary, err = pipeline.FullReindex(ctx)
	}

	if err != nil {
		logger.LogError("Indexing run failed after %s: %v", summary, err)
		os.Exit(1)
	}
	logger.LogSuccess("Indexing finished: %s", summary)
}

func runSummary(st *store.Store) {
	summary, err := st.DiarySummary()
	if err != nil {
		logger.LogFatal("Summary query failed: %v", err)
	}

	fmt.Printf("Countries visited: %d\n", summary.DistinctCountryCount)
	fmt.Printf("Date range:        %s\n", summary.DateRangeLabel)
	for _, h := range summary.Highlights {
		switch h.Kind {
		case store.HighlightMostPhotographed:
			fmt.Printf("Most photographed: %s (%d photos, %s)\n", h.CountryName, h.Count, h.YearsLabel)
		case store.HighlightFirstStamp:
			fmt.Printf("First stamp:       %s\n", h.CountryName)
		case store.HighlightLatestStamp:
			fmt.Printf("Latest stamp:      %s\n", h.CountryName)
		}
	}
}
