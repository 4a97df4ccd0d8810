package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/arivoli/neer/internal/advisory"
	"github.com/arivoli/neer/internal/api"
	"github.com/arivoli/neer/internal/config"
	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/gemini"
	"github.com/arivoli/neer/internal/narrative"
	"github.com/arivoli/neer/internal/relay"
	"github.com/arivoli/neer/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the neer server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running neer server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show neer system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "neer.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newGenerator picks the upstream implementation from config. Direct mode
// works without a key; the client then fails fast per call and the
// service serves precomputed text.
func newGenerator(cfg config.Config) (narrative.Generator, error) {
	switch cfg.Upstream.Mode {
	case config.UpstreamDirect:
		if cfg.Upstream.GeminiAPIKey == "" {
			slog.Warn("no Gemini API key configured, narratives fall back to precomputed text")
		}
		return gemini.NewClient(cfg.Upstream.GeminiAPIKey), nil
	case config.UpstreamRelay:
		if cfg.Upstream.RelayBaseURL == "" {
			slog.Warn("no relay base URL configured, narratives fall back to precomputed text")
		}
		return relay.NewClient(cfg.Upstream.RelayBaseURL), nil
	}
	return nil, fmt.Errorf("unknown upstream mode %q", cfg.Upstream.Mode)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "neer version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Check if a server is already running via the health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("neer is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("neer is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the precomputed district dataset.
	dataset, err := district.Load(ctx, cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	slog.Info("dataset loaded", "districts", len(dataset.Records), "geojson", len(dataset.GeoJSON) > 0)

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the narrative service over the configured upstream.
	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	svc := narrative.NewService(gen, narrative.NewCache(store), narrative.Options{
		SectionDelay: time.Duration(cfg.Generation.SectionDelayMs) * time.Millisecond,
		SessionCap:   cfg.Generation.SessionCap,
		Cooldown:     time.Duration(cfg.Generation.CooldownSeconds) * time.Second,
	})

	ingestor := advisory.NewIngestor(store, &http.Client{Timeout: 15 * time.Second})

	handler := api.NewHandler(api.Deps{
		Dataset:    dataset,
		Narratives: svc,
		Store:      store,
		Ingestor:   ingestor,
		Token:      cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Dataset:    dataset,
		Narratives: svc,
		Ingest: func(title, crop, content, source string) (string, error) {
			adv, err := ingestor.IngestText(title, crop, content, source)
			if err != nil {
				return "", err
			}
			return adv.ID, nil
		},
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "neer listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("neer is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop neer (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to neer (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Upstream", "%s", cfg.Upstream.Mode)
	if cfg.Upstream.Mode == config.UpstreamDirect {
		if cfg.Upstream.GeminiAPIKey != "" {
			printStatus("Gemini key", "configured")
		} else {
			printStatus("Gemini key", "not configured (precomputed narratives only)")
		}
	} else {
		printStatus("Relay URL", "%s", cfg.Upstream.RelayBaseURL)
	}

	if running {
		ac := &apiClient{baseURL: serverURL, token: cfg.Server.APIToken, httpClient: client}

		if quotaResp, err := ac.get(context.Background(), "/quota"); err == nil {
			var quota struct {
				Used int `json:"sessions_used"`
				Cap  int `json:"session_cap"`
			}
			if decodeJSON(quotaResp, &quota) == nil {
				printStatus("Sessions", "%d/%d used", quota.Used, quota.Cap)
			}
		}

		if distResp, err := ac.get(context.Background(), "/districts"); err == nil {
			var dist struct {
				Districts []json.RawMessage `json:"districts"`
			}
			if decodeJSON(distResp, &dist) == nil {
				printStatus("Districts", "%d loaded", len(dist.Districts))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
