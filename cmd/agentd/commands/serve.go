package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentd-ai/agentd/internal/approval"
	"github.com/agentd-ai/agentd/internal/config"
	"github.com/agentd-ai/agentd/internal/exec"
	"github.com/agentd-ai/agentd/internal/execpolicy"
	"github.com/agentd-ai/agentd/internal/logging"
	"github.com/agentd-ai/agentd/internal/planner"
	"github.com/agentd-ai/agentd/internal/server"
	"github.com/agentd-ai/agentd/internal/storage"
	"github.com/agentd-ai/agentd/internal/thread"
	"github.com/agentd-ai/agentd/internal/turn"
	"github.com/agentd-ai/agentd/pkg/types"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentd server",
	Long: `Start agentd as a headless server exposing the thread, turn,
approval and event endpoints over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logging.Init(logging.Config{Level: level, Pretty: cfg.Log.Pretty || logPretty})
	logging.Info().Str("version", Version).Str("directory", workDir).Msg("starting agentd")

	policyDir := cfg.PolicyDir
	if policyDir == "" {
		policyDir = paths.PolicyPath()
	}
	watcher, err := execpolicy.NewWatcher(policyDir)
	if err != nil {
		return err
	}
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := watcher.Start(ctx); err != nil {
		logging.Warn().Err(err).Msg("policy hot reload unavailable")
	}
	logging.Info().Str("dir", policyDir).Int("rules", watcher.Current().Rules()).Msg("command policy loaded")

	sandbox := types.WorkspaceWritePolicy()
	if cfg.Sandbox != nil {
		sandbox = *cfg.Sandbox
	}

	threads := thread.NewService(storage.New(cfg.DataDir))
	approvals := approval.NewService()
	controller := turn.NewController(
		threads,
		approval.NewEngine(watcher.Current),
		approvals,
		exec.NewLocalRunner(),
		planner.NewShellPlanner(""),
		turn.Options{
			ApprovalPolicy:        cfg.ApprovalPolicy,
			Sandbox:               sandbox,
			MaxConcurrentCommands: cfg.MaxConcurrentCommands,
			CommandTimeout:        time.Duration(cfg.CommandTimeoutMS) * time.Millisecond,
		},
	)

	serverConfig := server.DefaultConfig()
	serverConfig.Directory = workDir
	serverConfig.EnableCORS = cfg.Server.EnableCORS
	if cfg.Server.Port != 0 {
		serverConfig.Port = cfg.Server.Port
	}
	if servePort != 0 {
		serverConfig.Port = servePort
	}

	srv := server.New(serverConfig, threads, controller, approvals)

	go func() {
		logging.Info().Int("port", serverConfig.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
