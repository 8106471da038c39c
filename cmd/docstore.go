package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/server"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

func main() {
	// Command line flags
	var (
		port            = flag.String("port", "27017", "Server port")
		dataFile        = flag.String("data-file", "docstore_data"+storage.FileExtension, "Snapshot file for persistence. Empty disables snapshots.")
		journal         = flag.String("journal", "", "Journal file recording every write between snapshots. Empty disables the journal.")
		syncJournal     = flag.Bool("sync-journal", false, "Fsync the journal after every write")
		noCompress      = flag.Bool("no-compress", false, "Write snapshots without lz4 compression")
		backgroundSave  = flag.Duration("background-save", 0, "Background save interval (e.g., 5m, 30s). Set to 0 to disable.")
		logLevel        = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logJSON         = flag.Bool("log-json", false, "Write logs as JSON instead of console output")
		shutdownTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Time allowed for outstanding requests on shutdown")
		showHelp        = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndocstore is an in-memory document store with optional persistence.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                    # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090 -log-json              # Custom port, JSON logs\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -background-save 5m               # Auto-save every 5 minutes\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -journal docstore.journal         # Replayable write journal\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSafety Note:\n")
		fmt.Fprintf(os.Stderr, "  Without -journal or -background-save, data is only saved on graceful shutdown.\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	logger, err := newLogger(*logLevel, *logJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Build storage options based on flags
	storageOptions := []storage.StorageOption{storage.WithLogger(logger)}
	if *dataFile != "" {
		storageOptions = append(storageOptions, storage.WithDataFile(*dataFile))
		logger.Info().Str("file", *dataFile).Msg("using data file")
	}
	if *noCompress {
		storageOptions = append(storageOptions, storage.WithoutCompression())
	}
	if *journal != "" {
		storageOptions = append(storageOptions, storage.WithJournal(*journal))
		if *syncJournal {
			storageOptions = append(storageOptions, storage.WithDurability(storage.DurabilityFull))
		}
		logger.Info().Str("journal", *journal).Bool("sync", *syncJournal).Msg("journal enabled")
	}
	if *backgroundSave > 0 {
		storageOptions = append(storageOptions, storage.WithBackgroundSave(*backgroundSave))
		logger.Info().Dur("interval", *backgroundSave).Msg("background save enabled")
	} else if *journal == "" {
		logger.Warn().Msg("background save and journal disabled - data only saved on graceful shutdown")
	}

	srv := server.NewServer(
		server.WithStorage(storage.NewStorageEngine(storageOptions...)),
		server.WithLogger(logger),
	)
	if err := srv.InitDB(); err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	// Start server in a goroutine
	go func() {
		if err := srv.Start(":" + *port); err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("unclean shutdown")
		os.Exit(1)
	}
	logger.Info().Msg("server exited")
}

func newLogger(level string, asJSON bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid -log-level: %w", err)
	}
	var logger zerolog.Logger
	if asJSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "docstore").Logger(), nil
}
