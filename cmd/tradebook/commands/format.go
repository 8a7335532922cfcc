package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/tradebook/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// stdout is where the Print helpers write
var stdout io.Writer = os.Stdout

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(stdout, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(stdout, "❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintf(stdout, "ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(stdout, "   %-*s : %s\n", keyWidth, key, value)
}

// table writes fixed-width columns separated by two spaces
type table struct {
	w      io.Writer
	widths []int
}

func newTable(w io.Writer, widths ...int) *table {
	return &table{w: w, widths: widths}
}

func (t *table) header(columns ...string) {
	t.row(columns...)
	fmt.Fprintln(t.w, strings.Repeat("─", t.width()))
}

// row pads each value to its column; values past the last column are dropped
func (t *table) row(values ...string) {
	n := min(len(values), len(t.widths))
	for i := 0; i < n; i++ {
		if i == n-1 {
			fmt.Fprint(t.w, values[i])
			break
		}
		fmt.Fprintf(t.w, "%-*s  ", t.widths[i], values[i])
	}
	fmt.Fprintln(t.w)
}

func (t *table) width() int {
	total := 0
	for i, width := range t.widths {
		total += width
		if i < len(t.widths)-1 {
			total += 2
		}
	}
	return total
}

func formatQty(v float64) string {
	return fmt.Sprintf("%g", v)
}

// formatDelta always carries a sign so zero changes read as "+0"
func formatDelta(v float64) string {
	return fmt.Sprintf("%+g", v)
}

// formatResult marks per-position outcomes for the close-all report
func formatResult(code contracts.ResultCode) string {
	switch code {
	case contracts.ResultOK:
		return "✅ " + string(code)
	case contracts.ResultNoop:
		return "➖ " + string(code)
	case contracts.ResultTimeout:
		return "⏱️ " + string(code)
	default:
		return "❌ " + string(code)
	}
}
