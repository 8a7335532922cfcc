package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 생성",
	Long: `주문/체결/포지션/잔고/잔여수량/종목 테이블을 생성합니다.
이미 존재하는 테이블은 그대로 둡니다. 종목 파일이 있으면 함께 적재합니다.

Example:
  go run ./cmd/tradebook migrate
  DB_DRIVER=sqlite SQLITE_PATH=tradebook.db go run ./cmd/tradebook migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inf, err := openInfra(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer inf.Close(ctx)
	PrintSuccess(fmt.Sprintf("Schema ready (%s)", inf.db.Driver))

	reg, err := inf.registry(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess(fmt.Sprintf("%d securities registered", len(reg.All())))
	return nil
}
