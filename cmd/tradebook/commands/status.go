package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/config"
	"github.com/wonny/tradebook/pkg/httputil"
	"github.com/wonny/tradebook/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "실행 중인 엔진의 포트폴리오 상태 조회",
	Long: `실행 중인 엔진의 API에서 포지션, 잔고, 세션 시작 대비 변화량을 조회합니다.

표시 정보:
- Positions: 오픈 포지션 (수량, 평단, 노셔널)
- Assets: 잔고 (가용/잠김)
- Diff: 세션 시작 이후 수량 변화

Example:
  go run ./cmd/tradebook status
  go run ./cmd/tradebook status --account 2 --refresh 3s`,
	RunE: runStatus,
}

var (
	statusURL     string
	statusAccount int64
	statusRefresh time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusURL, "url", "", "엔진 API 주소 (default: http://localhost:PORT)")
	statusCmd.Flags().Int64Var(&statusAccount, "account", 0, "계좌 ID (default: ACCOUNT_ID)")
	statusCmd.Flags().DurationVar(&statusRefresh, "refresh", 0, "갱신 간격 (0 = 1회 조회)")
}

// portfolioDiff mirrors GET /api/portfolio/{account}/diff
type portfolioDiff struct {
	SessionID string                   `json:"session_id"`
	AccountID int64                    `json:"account_id"`
	Diff      []contracts.PositionDiff `json:"diff"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if statusURL == "" {
		statusURL = "http://localhost:" + cfg.Port
	}
	if statusAccount == 0 {
		statusAccount = cfg.Execution.AccountID
	}

	log := logger.Nop()
	if verbose {
		log = logger.New(cfg)
	}
	client := httputil.NewWithTimeout(log, 5*time.Second).WithRetry(1, 500*time.Millisecond)

	ctx := context.Background()
	if statusRefresh <= 0 {
		return displayPortfolio(ctx, cmd.OutOrStdout(), client)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	for {
		// Clear screen (ANSI escape code)
		fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
		fmt.Fprintf(cmd.OutOrStdout(), "Refresh: %v | Last update: %s\n\n", statusRefresh, time.Now().Format("15:04:05"))
		if err := displayPortfolio(ctx, cmd.OutOrStdout(), client); err != nil {
			PrintError(err.Error())
		}

		select {
		case <-sigChan:
			fmt.Fprintln(cmd.OutOrStdout(), "\n✅ Status monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func displayPortfolio(ctx context.Context, w io.Writer, client *httputil.Client) error {
	base := strings.TrimRight(statusURL, "/")

	var snap contracts.PortfolioSnapshot
	if err := client.GetJSON(ctx, fmt.Sprintf("%s/api/portfolio/%d", base, statusAccount), &snap); err != nil {
		return fmt.Errorf("failed to get portfolio: %w", err)
	}
	var diff portfolioDiff
	if err := client.GetJSON(ctx, fmt.Sprintf("%s/api/portfolio/%d/diff", base, statusAccount), &diff); err != nil {
		return fmt.Errorf("failed to get diff: %w", err)
	}

	writePortfolio(w, snap, diff)
	return nil
}

func writePortfolio(w io.Writer, snap contracts.PortfolioSnapshot, diff portfolioDiff) {
	fmt.Fprintf(w, "=== Account %d | Session %s ===\n\n", snap.AccountID, diff.SessionID)

	fmt.Fprintf(w, "📊 Positions (%d)\n", len(snap.Positions))
	positions := newTable(w, 10, 5, 14, 14, 16, 6)
	positions.header("CODE", "SIDE", "QTY", "PRICE", "NOTIONAL", "TRADES")
	for _, p := range snap.Positions {
		positions.row(
			p.SecurityCode,
			string(p.Side),
			formatQty(p.Quantity),
			formatQty(p.Price),
			formatQty(p.Notional),
			fmt.Sprintf("%d", p.TradeCount),
		)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "💰 Assets (%d)\n", len(snap.Assets))
	assets := newTable(w, 10, 16, 16)
	assets.header("CODE", "QTY", "LOCKED")
	for _, a := range snap.Assets {
		assets.row(a.SecurityCode, formatQty(a.Quantity), formatQty(a.LockedQuantity))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "📈 Diff since session start (%d)\n", len(diff.Diff))
	changes := newTable(w, 10, 14, 14, 14)
	changes.header("CODE", "INITIAL", "CURRENT", "DELTA")
	for _, d := range diff.Diff {
		changes.row(d.SecurityCode, formatQty(d.InitialQuantity), formatQty(d.CurrentQuantity), formatDelta(d.Delta))
	}
}
