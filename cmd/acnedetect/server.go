package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Muhammadazeem-eng/acne-detect/internal/api"
	"github.com/Muhammadazeem-eng/acne-detect/internal/config"
	"github.com/Muhammadazeem-eng/acne-detect/internal/consult"
	"github.com/Muhammadazeem-eng/acne-detect/internal/credentials"
	"github.com/Muhammadazeem-eng/acne-detect/internal/identity"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
	"github.com/Muhammadazeem-eng/acne-detect/internal/proxy"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

const sweepInterval = time.Minute

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the acnedetect server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		serveMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(serveMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running acnedetect server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show acnedetect server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the OpenAI API key and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return checkModel(cmd.Context(), newProxyClient(cfg), cfg.Proxy.Model)
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP on stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "acnedetect.pid")
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

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newProxyClient(cfg config.Config) *proxy.Client {
	c := proxy.NewClientWithBaseURL(cfg.Proxy.OpenAIAPIKey, cfg.Proxy.BaseURL)
	c.SetTimeouts(cfg.Proxy.TimeoutDuration(), cfg.Proxy.ImageTimeoutDuration())
	return c
}

func runServer(serveMCP bool) error {
	fmt.Fprintf(os.Stderr, "acnedetect version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("acnedetect is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("acnedetect is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	creds := credentials.Open(cfg.Storage.DataDir)
	slog.Info("credential store ready", "path", creds.Path())

	orch := consult.NewOrchestrator(newProxyClient(cfg), consult.Options{
		Model:       cfg.Proxy.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
	})
	orch.SetRecorder(store)

	ids := identity.NewManager(creds)
	profiles := profile.NewManager()
	sessions := session.NewRegistry()

	handler := api.NewHandler(api.Deps{
		Identity:     ids,
		Profile:      profiles,
		Orchestrator: orch,
		Sessions:     sessions,
		Store:        store,
		AILimiter:    api.NewAILimiter(cfg.Server.AIRatePerMinute),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "acnedetect listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if idle := cfg.Server.SessionIdleDuration(); idle > 0 {
		g.Go(func() error {
			sessions.Run(gctx, sweepInterval, idle)
			return nil
		})
	}

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Identity:     ids,
			Profile:      profiles,
			Orchestrator: orch,
			Session:      session.New("mcp-stdio"),
			Store:        store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.LoadSettings()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("acnedetect is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop acnedetect (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to acnedetect (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.LoadSettings()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Proxy.Model)
	printStatus("API base", "%s", cfg.Proxy.BaseURL)
	printStatus("AI rate", "%d/min", cfg.Server.AIRatePerMinute)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Credentials", "%s", filepath.Join(cfg.Storage.DataDir, credentials.FileName))
	return nil
}

// checkModel lists the models visible to the API key and confirms the
// configured model is among them.
func checkModel(ctx context.Context, p *proxy.Client, model string) error {
	printStep("Contacting the completion service...")
	models, err := p.ListModels(ctx)
	if err != nil {
		printError("API key check failed: %v", err)
		return err
	}
	printSuccess("API key accepted (%d models available)", len(models))

	if !slices.ContainsFunc(models, func(m proxy.Model) bool { return m.ID == model }) {
		printWarning("configured model %q is not in the model list", model)
		return nil
	}
	printSuccess("Model %s is available", model)
	return nil
}
