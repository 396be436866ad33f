package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"leboncoin-parser-service/internal/adapters/csvsink"
	"leboncoin-parser-service/internal/adapters/cursorfile"
	"leboncoin-parser-service/internal/adapters/lbcfetcher"
	logger_adapter "leboncoin-parser-service/internal/adapters/logger"
	"leboncoin-parser-service/internal/adapters/multisink"
	postgres_adapter "leboncoin-parser-service/internal/adapters/postgres"
	rabbitmq_adapter "leboncoin-parser-service/internal/adapters/rabbitmq"
	"leboncoin-parser-service/internal/configs"
	"leboncoin-parser-service/internal/constants"
	"leboncoin-parser-service/internal/contextkeys"
	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/normalizer"
	"leboncoin-parser-service/internal/core/port"
	"leboncoin-parser-service/internal/core/stats"
	"leboncoin-parser-service/internal/core/usecase"
	"leboncoin-parser-service/internal/pacing"
)

// App wires the adapters to the crawl use case and owns their lifecycle.
type App struct {
	config       *configs.AppConfig
	logger       port.LoggerPort
	fluentClient *fluent.Fluent
	dbPool       *pgxpool.Pool

	csvSink    *csvsink.Writer
	sink       port.ListingSinkPort
	cursorRepo port.CursorRepositoryPort

	crawlUseCase *usecase.CrawlListingsUseCase
}

// NewApp is the composition root: every dependency is created and connected
// here.
func NewApp(appConfig *configs.AppConfig) (*App, error) {
	// --- 1. Loggers ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.JSON,
		UseColor: !appConfig.StdoutLogger.JSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		var err error
		fluentClient, err = logger_adapter.NewFluentClient(logger_adapter.FluentConfig{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.FluentBit.Tag,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			_ = fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	app := &App{
		config:       appConfig,
		logger:       baseLogger,
		fluentClient: fluentClient,
	}

	// --- 2. Outgoing adapters ---
	fetcher, err := lbcfetcher.NewAdapter(constants.SearchAPIURL, appConfig.ProxyURL, appConfig.APIKey)
	if err != nil {
		appLogger.Error("Failed to create leboncoin fetcher adapter", err, nil)
		app.closeResources()
		return nil, fmt.Errorf("failed to initialize leboncoin fetcher: %w", err)
	}
	appLogger.Info("Leboncoin Fetcher Adapter initialized.", nil)

	csvSink, err := csvsink.NewWriter(appConfig.Output.Path)
	if err != nil {
		appLogger.Error("Failed to open output file", err, port.Fields{"output": appConfig.Output.Path})
		app.closeResources()
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	app.csvSink = csvSink

	var sink port.ListingSinkPort = csvSink
	if appConfig.RabbitMQ.Enabled {
		publisher, err := rabbitmq_adapter.NewRabbitMQListingPublisherAdapter(
			appConfig.RabbitMQ.URL,
			appConfig.RabbitMQ.Exchange,
			appConfig.RabbitMQ.RoutingKey,
		)
		if err != nil {
			appLogger.Error("Failed to create RabbitMQ listing publisher", err, port.Fields{"url": appConfig.RabbitMQ.URL})
			app.closeResources()
			return nil, fmt.Errorf("failed to create RabbitMQ listing publisher: %w", err)
		}
		sink, err = multisink.NewMultiSinkAdapter(csvSink, publisher)
		if err != nil {
			app.closeResources()
			return nil, err
		}
		appLogger.Info("RabbitMQ Listing Publisher initialized.", nil)
	}
	app.sink = sink

	// --- 3. Cursor repository ---
	if appConfig.Database.URL != "" {
		dbPool, err := postgres_adapter.NewPool(context.Background(), appConfig.Database.URL)
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", err, nil)
			app.closeResources()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		app.dbPool = dbPool
		appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

		cursorRepo, err := postgres_adapter.NewPostgresCursorRepository(
			context.Background(), dbPool, filepath.Base(appConfig.Output.Path),
		)
		if err != nil {
			appLogger.Error("Failed to create Postgres cursor repository", err, nil)
			app.closeResources()
			return nil, err
		}
		app.cursorRepo = cursorRepo
	} else {
		app.cursorRepo = cursorfile.NewRepository(appConfig.Output.Path)
	}

	// --- 4. Use case ---
	app.crawlUseCase = usecase.NewCrawlListingsUseCase(
		fetcher,
		sink,
		app.cursorRepo,
		pacing.NewLimiter(appConfig.Crawl.Delay, appConfig.Crawl.Jitter),
		normalizer.New(),
		stats.NewCollector(),
		usecase.CrawlConfig{
			Criteria:               appConfig.ToCriteria(),
			MaxPages:               appConfig.Crawl.MaxPages,
			MaxAttempts:            appConfig.Crawl.MaxAttempts,
			RetryBackoff:           appConfig.Crawl.RetryBackoff,
			MaxConsecutiveFailures: appConfig.Crawl.MaxConsecutiveFailures,
			AbortOnPageFailure:     appConfig.Crawl.AbortOnPageFailure,
			Resume:                 !appConfig.Crawl.Fresh,
			SeedIDs:                csvSink.SeenIDs(),
		},
	)
	appLogger.Info("All use cases initialized.", nil)

	return app, nil
}

// Run executes one crawl to its terminal state. It returns a non-nil error
// only for run-level fatal conditions; interruption via SIGINT or SIGTERM
// ends the run as a graceful abort.
func (a *App) Run() error {
	defer a.closeResources()

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx := contextkeys.ContextWithLogger(appCtx, a.logger)
	runLogger := a.logger.WithFields(port.Fields{"component": "app"})

	if err := a.cursorRepo.AcquireRunLock(ctx); err != nil {
		runLogger.Error("Could not acquire run lock", err, port.Fields{"output": a.config.Output.Path})
		return err
	}
	defer func() {
		if err := a.cursorRepo.ReleaseRunLock(context.Background()); err != nil {
			runLogger.Error("Error releasing run lock", err, nil)
		}
	}()

	runID := uuid.New()
	runLogger.Info("Application is starting...", port.Fields{"run_id": runID.String()})

	summary, runErr := a.crawlUseCase.Execute(ctx, runID)

	if err := a.sink.Close(); err != nil {
		runLogger.Error("Error closing output sink", err, nil)
		if runErr == nil {
			runErr = err
		}
	}
	a.sink = nil
	a.csvSink = nil

	if summary != nil && a.config.Output.Stats {
		printSummary(summary)
	}

	if runErr != nil {
		runLogger.Error("Run finished with a fatal error", runErr, port.Fields{"run_id": runID.String()})
		return runErr
	}
	runLogger.Info("Run finished", port.Fields{
		"run_id": runID.String(),
		"state":  string(summary.State),
	})
	return nil
}

func (a *App) closeResources() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			log.Printf("App: error closing output sink: %v\n", err)
		}
		a.sink = nil
		a.csvSink = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: error closing fluent client: %v\n", err)
		}
		a.fluentClient = nil
	}
}

// printSummary writes the human-readable end-of-run report to stdout. Logs go
// to the logger; this block is the primary artifact for interactive runs, so
// it bypasses log formatting.
func printSummary(s *domain.RunSummary) {
	fmt.Println()
	fmt.Println("=== RUN SUMMARY ===")
	fmt.Printf("State:               %s\n", s.State)
	fmt.Printf("Duration:            %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("Pages fetched:       %d\n", s.Stats.PagesFetched)
	fmt.Printf("Listings seen:       %d\n", s.Stats.ListingsSeen)
	fmt.Printf("Listings written:    %d\n", s.Stats.ListingsWritten)
	fmt.Printf("Skipped duplicates:  %d\n", s.Stats.ListingsSkippedDuplicate)
	fmt.Printf("Skipped deleted:     %d\n", s.Stats.ListingsSkippedDeleted)
	fmt.Printf("Malformed records:   %d\n", s.Stats.ErrorsMalformed)
	fmt.Printf("Retried fetches:     %d\n", s.Stats.ErrorsRetried)
	fmt.Printf("Failed pages:        %d\n", s.Stats.ErrorsFatal)

	if s.Stats.ListingsWritten > 0 {
		fmt.Println()
		fmt.Printf("Unique cities:       %d\n", s.UniqueCities)
		fmt.Printf("Price mean/median:   %.2f / %.2f\n", s.MeanPrice, s.MedianPrice)
		fmt.Printf("Price min/max:       %.2f / %.2f\n", s.MinPrice, s.MaxPrice)
		for kind, count := range s.SellerKinds {
			fmt.Printf("Sellers (%s):%*s%d\n", kind, 10-len(kind), " ", count)
		}
		if len(s.TopCities) > 0 {
			fmt.Println("Top cities:")
			for _, cc := range s.TopCities {
				fmt.Printf("  %-20s %d\n", cc.City, cc.Count)
			}
		}
	}
	fmt.Println()
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
