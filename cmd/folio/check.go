package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/home"
)

var checkLive bool

// checkResult is one environment check in the doctor report.
type checkResult struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type checkReport struct {
	Checks []checkResult `json:"checks" yaml:"checks"`
	OK     bool          `json:"ok" yaml:"ok"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that folio's environment is ready",
	Long: `Check that folio's environment is ready to convert books.

Verifies that pdftoppm is installed, an API key is configured, and the
cache directory is writable. With --live, also sends a minimal request to
the configured model to verify connectivity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := newLogger(cfg)

		report := checkReport{OK: true}
		add := func(name string, ok bool, detail string) {
			report.Checks = append(report.Checks, checkResult{Name: name, OK: ok, Detail: detail})
			if !ok {
				report.OK = false
			}
		}

		if path, err := exec.LookPath("pdftoppm"); err != nil {
			add("pdftoppm", false, "not found on PATH (install poppler-utils)")
		} else {
			add("pdftoppm", true, path)
		}

		apiKey := cfg.ResolveAPIKey()
		if apiKey == "" {
			add("api_key", false, "not configured: set OPENAI_API_KEY or extract.api_key")
		} else {
			add("api_key", true, "configured")
		}

		cacheDir := cfg.Cache.Dir
		if cacheDir == "" {
			cacheDir = h.CachePath()
		}
		add("cache_dir", writableDir(cacheDir), cacheDir)

		if checkLive {
			if apiKey == "" {
				add("model_connection", false, "skipped: no API key")
			} else {
				client := extract.NewClient(extract.Config{
					APIKey:    apiKey,
					Model:     cfg.Extract.Model,
					BaseURL:   cfg.Extract.BaseURL,
					Timeout:   time.Duration(cfg.Extract.TimeoutSeconds) * time.Second,
					MaxTokens: cfg.Extract.MaxTokens,
					Logger:    logger,
				})
				if client.TestConnection(ctx) {
					add("model_connection", true, cfg.Extract.Model)
				} else {
					add("model_connection", false, "request to "+cfg.Extract.Model+" failed")
				}
			}
		}

		if err := api.Output(report); err != nil {
			return err
		}
		if !report.OK {
			return fmt.Errorf("environment check failed")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkLive, "live", false, "also test connectivity to the configured model")
}

// writableDir reports whether dir exists (or can be created) and is writable.
func writableDir(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".folio-check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}
