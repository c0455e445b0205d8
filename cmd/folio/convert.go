package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/pdf"
	"github.com/jackzampolin/folio/internal/pipeline"
)

var (
	convertStartPage int
	convertEndPage   int
	convertResume    bool
	convertNoCache   bool
	convertCacheDir  string
	convertDPI       int
	convertQuality   int
	convertModel     string
	convertSkipCheck bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.pdf> <output.md>",
	Short: "Convert a PDF book to a markdown document",
	Long: `Convert a PDF book to a single markdown document.

Pages are processed in order. Each page's result is cached immediately, so
an interrupted run can be resumed with --resume without repeating completed
remote calls. Failed pages are skipped and counted; the run continues.

Examples:
  folio convert book.pdf book.md
  folio convert book.pdf book.md --start-page 10 --end-page 50
  folio convert book.pdf book.md --resume`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input, output := args[0], args[1]

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := newLogger(cfg)

		apiKey := cfg.ResolveAPIKey()
		if apiKey == "" {
			return fmt.Errorf("no API key configured: set OPENAI_API_KEY or extract.api_key in config")
		}

		cacheDir := convertCacheDir
		if cacheDir == "" {
			cacheDir = cfg.Cache.Dir
		}
		if cacheDir == "" {
			cacheDir = h.CachePath()
		}

		dpi := cfg.PDF.DPI
		if cmd.Flags().Changed("dpi") {
			dpi = convertDPI
		}
		quality := cfg.PDF.ImageQuality
		if cmd.Flags().Changed("image-quality") {
			quality = convertQuality
		}
		model := cfg.Extract.Model
		if cmd.Flags().Changed("model") {
			model = convertModel
		}

		handler := pdf.NewHandler(dpi, quality, logger)

		client := extract.NewClient(extract.Config{
			APIKey:     apiKey,
			Model:      model,
			BaseURL:    cfg.Extract.BaseURL,
			MaxRetries: cfg.Extract.MaxRetries,
			Timeout:    time.Duration(cfg.Extract.TimeoutSeconds) * time.Second,
			MaxTokens:  cfg.Extract.MaxTokens,
			Logger:     logger,
		})

		if !convertSkipCheck {
			logger.Info("testing model connection", "model", model)
			if !client.TestConnection(ctx) {
				return fmt.Errorf("failed to connect to model API: check your API key")
			}
		}

		cache, err := pipeline.NewCache(cacheDir, logger)
		if err != nil {
			return err
		}

		processor := pipeline.NewProcessor(handler, client, cache, pipeline.Tunables{
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
			MaxFragmentLength:   cfg.Pipeline.MaxFragmentLength,
		}, logger)

		stats, err := processor.Run(ctx, pipeline.Request{
			PDFPath:    input,
			OutputPath: output,
			StartPage:  convertStartPage,
			EndPage:    convertEndPage,
			Resume:     convertResume && !convertNoCache,
		})
		// A partially failed run still reports its statistics.
		if stats != nil {
			if outErr := api.Output(stats); outErr != nil {
				logger.Error("failed to print statistics", "error", outErr)
			}
		}
		return err
	},
}

func init() {
	convertCmd.Flags().IntVar(&convertStartPage, "start-page", 1, "first page to process (1-indexed)")
	convertCmd.Flags().IntVar(&convertEndPage, "end-page", 0, "last page to process (default: last page of the PDF)")
	convertCmd.Flags().BoolVar(&convertResume, "resume", false, "resume from cached progress")
	convertCmd.Flags().BoolVar(&convertNoCache, "no-cache", false, "ignore cached results (process from scratch)")
	convertCmd.Flags().StringVar(&convertCacheDir, "cache-dir", "", "directory for cache files (default: ~/.folio/cache)")
	convertCmd.Flags().IntVar(&convertDPI, "dpi", pdf.DefaultDPI, "DPI for PDF to image conversion")
	convertCmd.Flags().IntVar(&convertQuality, "image-quality", pdf.DefaultImageQuality, "JPEG quality for page images")
	convertCmd.Flags().StringVar(&convertModel, "model", "", "vision model to use (default: from config)")
	convertCmd.Flags().BoolVar(&convertSkipCheck, "skip-connection-check", false, "skip the startup connectivity check")
}

// newLogger builds the run logger from the --log-level flag, falling back to
// the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
