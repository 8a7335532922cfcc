package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/tradebook/internal/security"
)

// securitiesCmd groups security reference commands
var securitiesCmd = &cobra.Command{
	Use:   "securities",
	Short: "종목 참조 데이터 관리",
}

var securitiesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "종목 YAML 파일 검증",
	Long: `종목 YAML 파일을 파싱하고 거래 규칙을 검증합니다.
알 수 없는 키, 중복 id/code, 음수 최소수량은 오류입니다.

Example:
  go run ./cmd/tradebook securities validate securities.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSecuritiesValidate,
}

func init() {
	rootCmd.AddCommand(securitiesCmd)
	securitiesCmd.AddCommand(securitiesValidateCmd)
}

func runSecuritiesValidate(cmd *cobra.Command, args []string) error {
	secs, err := security.ReadFile(args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}

	t := newTable(stdout, 8, 10, 20, 8, 12, 6, 6)
	t.header("ID", "CODE", "NAME", "BASE", "MIN_QTY", "P_PR", "Q_PR")
	for _, s := range secs {
		t.row(
			strconv.FormatInt(s.ID, 10),
			s.Code,
			s.Name,
			strconv.FormatInt(s.BaseAssetID(), 10),
			strconv.FormatFloat(s.MinQuantity, 'f', -1, 64),
			strconv.Itoa(int(s.PricePrecision)),
			strconv.Itoa(int(s.QuantityPrecision)),
		)
	}
	fmt.Fprintln(stdout)
	PrintSuccess(fmt.Sprintf("%d securities valid", len(secs)))
	return nil
}
