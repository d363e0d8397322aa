package main

import (
	"context"
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
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tresses/internal/advisor"
	"github.com/kalambet/tresses/internal/api"
	"github.com/kalambet/tresses/internal/composer"
	"github.com/kalambet/tresses/internal/config"
	"github.com/kalambet/tresses/internal/conversation"
	"github.com/kalambet/tresses/internal/followup"
	"github.com/kalambet/tresses/internal/knowledge"
	"github.com/kalambet/tresses/internal/pipeline"
	"github.com/kalambet/tresses/internal/profile"
	"github.com/kalambet/tresses/internal/recommend"
	"github.com/kalambet/tresses/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tresses server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tresses server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tresses server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tresses.pid")
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

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func loadKnowledge(dataFile string) (*knowledge.Store, error) {
	if dataFile != "" {
		return knowledge.LoadFile(dataFile)
	}
	return knowledge.Load()
}

// services is everything the HTTP and MCP surfaces share.
type services struct {
	deps api.Deps
	// worker is set when follow-ups go through the durable job queue.
	worker *followup.Worker
	// closeFollowups stops pending in-process follow-up timers.
	closeFollowups func()
}

func buildServices(cfg config.Config, store *storage.Store, kb *knowledge.Store) *services {
	profiles := profile.NewManager(store)
	eng := recommend.New(kb, recommend.WithCatalog(store), recommend.WithFeedbackStore(store))
	adv := advisor.New(kb)
	memories := conversation.NewSQLStore(store)

	svc := &services{closeFollowups: func() {}}

	var conv *conversation.Engine
	deliver := followup.DelivererFunc(func(ctx context.Context, m followup.Message) error {
		return conv.Deliver(ctx, m)
	})

	var sched followup.Scheduler
	if cfg.Followup.Durable {
		sched = followup.NewJobScheduler(store, nil)
		svc.worker = followup.NewWorker(store, deliver, 0)
	} else {
		q := followup.NewTimerQueue(deliver, nil)
		sched = q
		svc.closeFollowups = q.Close
	}

	conv = conversation.New(profiles, eng, composer.New(kb, 0), memories,
		conversation.Config{
			Window:        cfg.Conversation.ShortTermWindow,
			IdleTimeout:   cfg.Conversation.IdleTimeout,
			FollowupDelay: cfg.Followup.Delay,
		},
		conversation.WithFollowups(sched),
		conversation.WithJourneyStore(memories),
	)

	svc.deps = api.Deps{
		Profiles:      profiles,
		Personalizer:  pipeline.NewPersonalizer(profiles, eng, adv),
		Conversations: conv,
		Knowledge:     kb,
		Advisor:       adv,
		Token:         cfg.API.Token,
		RateLimit:     cfg.Server.RateLimit,
	}
	return svc
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "tresses version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if err := cfg.RequireToken(); err != nil {
		return err
	}

	// Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tresses is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tresses is already running on port %d", cfg.Server.Port)
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

	kb, err := loadKnowledge(cfg.Knowledge.DataFile)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	slog.Info("knowledge base loaded", "version", kb.Version(), "practices", len(kb.Practices()))

	if err := store.UpsertProducts(ctx, recommend.DefaultProducts.List()); err != nil {
		return fmt.Errorf("seeding product catalog: %w", err)
	}

	svc := buildServices(cfg, store, kb)
	defer svc.closeFollowups()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(svc.deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "tresses listening on %s\n", addr)
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

	if svc.worker != nil {
		g.Go(func() error {
			svc.worker.Run(gctx)
			return nil
		})
		slog.Info("durable follow-up worker started")
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(svc.deps))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
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
		printError("tresses is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tresses (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tresses (PID %d)", pid)
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
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health map[string]string
		if decodeJSON(resp, &health) == nil {
			printStatus("Server", "running on port %d", cfg.Server.Port)
			printStatus("Knowledge", "version %s", health["knowledge_version"])
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	followups := "in-process timers"
	if cfg.Followup.Durable {
		followups = "durable job queue"
	}
	printStatus("Follow-ups", "%s, %s delay", followups, cfg.Followup.Delay)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
