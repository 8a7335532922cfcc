package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tradebook",
	Short: "Tradebook - 주문/체결/포지션 정합 엔진",
	Long: `Tradebook Unified CLI

주문 상태, 체결, 포지션과 잔고를 하나의 진실 공급원으로 정합합니다.

Usage:
  go run ./cmd/tradebook [command]

Examples:
  go run ./cmd/tradebook run
  go run ./cmd/tradebook run --close-on-exit
  go run ./cmd/tradebook migrate
  go run ./cmd/tradebook status --refresh 3s
  go run ./cmd/tradebook securities validate securities.yaml
  go run ./cmd/tradebook test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
