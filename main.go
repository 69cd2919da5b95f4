package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/vidsum/config"
	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/inference"
	"github.com/nijaru/vidsum/logger"
	"github.com/nijaru/vidsum/notify"
	"github.com/nijaru/vidsum/services/batchjob"
	"github.com/nijaru/vidsum/services/summarize"
	"github.com/nijaru/vidsum/storage"
)

func main() {
	envFile := flag.String("env-file", ".env", "environment file to load before reading configuration")
	resume := flag.String("resume", "", "handle of a submitted job to wait for instead of starting a new one")
	dryRun := flag.Bool("dry-run", false, "build and save the payload without uploading or submitting it")
	outputDir := flag.String("output-dir", "", "overrides OUTPUT_DIR")
	prefix := flag.String("prefix", "", "overrides INPUT_PREFIX")
	flag.Parse()

	// Load environment file if present
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	// Load configuration
	cfg, err := config.LoadWithOverrides(config.Overrides{
		OutputDir:   *outputDir,
		InputPrefix: *prefix,
		DryRun:      *dryRun,
	})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.NewLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Cancel polling on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logger.WithLogger(ctx, logrus.NewEntry(appLogger))

	code := run(ctx, cfg, appLogger, *resume)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, appLogger *logrus.Logger, resume string) int {
	awsCfg, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load AWS configuration")
		return 1
	}

	notifier, err := notify.New(cfg.Notify, awsCfg)
	if err != nil {
		appLogger.WithError(err).Error("Failed to initialize notifier")
		return 1
	}
	defer notifier.Close()

	store := storage.NewS3StoreFromConfig(awsCfg)
	jobs := batchjob.NewService(store, inference.NewBedrockClientFromConfig(awsCfg))

	svc := summarize.NewService(store, jobs, notifier, summarize.ConfigFrom(cfg))

	var result *summarize.Result
	if resume != "" {
		result, err = svc.Resume(ctx, resume)
	} else {
		result, err = svc.Run(ctx)
	}

	printSummary(result, err)
	return exitCode(appLogger, err)
}

// exitCode fails the process only for fatal errors. Data errors leave the
// results usable and are reported as warnings.
func exitCode(appLogger *logrus.Logger, err error) int {
	if err == nil {
		return 0
	}
	entry := appLogger.WithField("kind", errors.KindOf(err).String()).WithError(err)
	if !errors.IsFatal(err) {
		entry.Warn("Run finished with data errors")
		return 0
	}
	entry.Error("Run failed")
	return 1
}

func printSummary(result *summarize.Result, err error) {
	if result != nil {
		if result.Job != nil {
			fmt.Printf("job:       %s (%s)\n", result.Job.Handle, result.Job.Status)
		}
		fmt.Printf("records:   %d\n", result.Records)
		if result.PayloadPath != "" {
			fmt.Printf("payload:   %s\n", result.PayloadPath)
		}
		if r := result.Report; r != nil {
			fmt.Printf("completed: %d\n", r.Completed)
			fmt.Printf("missing:   %d\n", len(r.Missing))
			fmt.Printf("orphans:   %d\n", len(r.Orphans))
			fmt.Printf("failed:    %d\n", len(r.RecordErrors))
			fmt.Printf("bad lines: %d\n", len(r.LineErrors))
		}
		if result.ResultsPath != "" {
			fmt.Printf("results:   %s\n", result.ResultsPath)
		}
		if result.DryRun {
			fmt.Println("dry run:   payload not submitted")
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", errors.KindOf(err), err)
	}
}
