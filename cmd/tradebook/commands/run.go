package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradebook/internal/api"
	"github.com/wonny/tradebook/internal/api/handlers"
	"github.com/wonny/tradebook/internal/execution"
	"github.com/wonny/tradebook/internal/portfolio"
	"github.com/wonny/tradebook/internal/scheduler"
	"github.com/wonny/tradebook/internal/scheduler/jobs"
	"github.com/wonny/tradebook/internal/session"
	"github.com/wonny/tradebook/pkg/idgen"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "정합 엔진 + API 서버 시작",
	Long: `정합 세션을 시작합니다.

이 명령어는:
- DB 마이그레이션 및 저장된 주문/체결/포지션 복원
- 페이퍼 브로커 연결 (rate limit 적용)
- 주문/잔고 동기화 스케줄러 시작
- REST API + 포지션 WebSocket 제공

Endpoints:
  GET    /health
  GET    /api/portfolio/{account}
  GET    /api/portfolio/{account}/diff
  GET    /api/positions/closed
  GET    /api/orders
  POST   /api/orders
  GET    /api/orders/{id}
  DELETE /api/orders/{id}
  GET    /api/orders/{id}/trades
  GET    /api/trades
  GET    /ws/positions

Example:
  go run ./cmd/tradebook run
  go run ./cmd/tradebook run --port 8090 --close-on-exit`,
	RunE: runEngine,
}

var (
	runPort     string
	closeOnExit bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPort, "port", "", "API 서버 포트 (default: PORT)")
	runCmd.Flags().BoolVar(&closeOnExit, "close-on-exit", false, "종료 시 모든 포지션 청산")
}

func runEngine(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Tradebook Reconciliation Engine ===")
	ctx := context.Background()

	// 1. Infrastructure
	inf, err := openInfra(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		inf.Close(closeCtx)
	}()
	cfg, log := inf.cfg, inf.log
	if runPort != "" {
		cfg.Port = runPort
	}

	// 2. Security reference
	reg, err := inf.registry(ctx)
	if err != nil {
		return err
	}

	// 3. Execution gateway
	ids := idgen.New()
	sim := execution.NewSimulator(execution.SimulatorConfig{
		AutoFill: cfg.Execution.PaperFill,
		FeeRate:  cfg.Execution.PaperFee,
	}, ids, log.WithField("component", "paper"))
	gateway := execution.NewRateLimited(sim, cfg.Execution.RateLimit, cfg.Execution.Burst)

	// 4. Session
	sess := session.New(session.Config{
		AccountID: cfg.Execution.AccountID,
		Close: portfolio.MonitorConfig{
			PollInterval: cfg.Reconciler.ClosePollInterval,
			Timeout:      cfg.Reconciler.CloseTimeout,
		},
		Gate: session.GateConfig{
			Mode:                session.GateMode(cfg.Gate.Mode),
			MaxOrderNotional:    cfg.Gate.MaxOrderNotional,
			MaxPositionQuantity: cfg.Gate.MaxPositionQuantity,
			BlackList:           cfg.Gate.BlackList,
		},
	}, session.Deps{
		Gateway:    gateway,
		Securities: reg,
		Persister:  inf.store,
		Loader:     inf.store,
		IDs:        ids,
		Logger:     log,
	})
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Stop()

	// 5. Scheduler
	sched := scheduler.New(log.WithField("component", "scheduler"))
	schedJobs := []scheduler.Job{jobs.NewFlushJob(inf.store, log)}
	if cfg.Sweeps.Enabled {
		schedJobs = append(schedJobs,
			jobs.NewOrderSweepJob(sess, cfg.Sweeps.OrderSchedule, log),
			jobs.NewAssetSweepJob(sess, cfg.Sweeps.AssetSchedule, log),
			jobs.NewRetryParkedJob(sess, cfg.Sweeps.RetrySchedule, log),
		)
	}
	for _, job := range schedJobs {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
	}
	sched.Start()

	// 6. API server
	router := api.NewRouter(handlers.New(sess, log), log)
	server := api.New(cfg, log, router)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.WithFields(map[string]interface{}{
		"account_id": cfg.Execution.AccountID,
		"port":       cfg.Port,
		"gate":       cfg.Gate.Mode,
		"session_id": sess.Reconciler().SessionID(),
	}).Info("Engine started")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("API server stopped")
		}
	}

	log.Info("Shutting down...")

	if closeOnExit {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Reconciler.CloseTimeout+5*time.Second)
		printCloseResults(sess.CloseAllPositions(closeCtx))
		cancel()
	}

	sched.Stop()
	jobStats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		st := jobStats[name]
		log.WithFields(map[string]interface{}{
			"job":        name,
			"runs":       st.TotalRuns,
			"failures":   st.FailureCount,
			"affected":   st.TotalAffected,
			"last_error": st.LastError,
		}).Info("Sweep summary")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Engine stopped")
	return nil
}

func printCloseResults(results []session.CloseResult) {
	if len(results) == 0 {
		PrintInfo("No open positions")
		return
	}

	t := newTable(stdout, 12, 10, 12, 24)
	t.header("POSITION", "SECURITY", "ORDER", "RESULT")
	for _, r := range results {
		t.row(
			fmt.Sprintf("%d", r.PositionID),
			r.SecurityCode,
			fmt.Sprintf("%d", r.OrderID),
			formatResult(r.Result),
		)
	}
}
