package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatDecisionOrg renders a decision-log entry as an Org-mode block. The
// facts live in a PROPERTIES drawer for search; the reasoning is the body.
func FormatDecisionOrg(d DecisionEntry) string {
	orderID := "-"
	if d.OrderID != nil {
		orderID = *d.OrderID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s (%s)\n", d.Action, d.Symbol, d.Time.UTC().Format(time.RFC3339))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %d\n", d.ID)
	if d.CycleID != "" {
		fmt.Fprintf(&b, ":CYCLE_ID: %s\n", d.CycleID)
	}
	if d.Mode != "" {
		fmt.Fprintf(&b, ":MODE: %s\n", d.Mode)
	}
	fmt.Fprintf(&b, ":SYMBOL: %s\n", d.Symbol)
	fmt.Fprintf(&b, ":ACTION: %s\n", d.Action)
	fmt.Fprintf(&b, ":QUANTITY: %g\n", d.Quantity)
	fmt.Fprintf(&b, ":PRICE: %g\n", d.Price)
	fmt.Fprintf(&b, ":ORDER_ID: %s\n", orderID)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Reasoning\n")
	reasoning := strings.TrimSpace(d.Reasoning)
	if reasoning == "" {
		reasoning = "-"
	}
	b.WriteString(reasoning)
	b.WriteString("\n")
	return b.String()
}

// FormatExecutionOrg renders a ledger row as an Org-mode block.
func FormatExecutionOrg(e Execution) string {
	pnl := "n/a"
	if e.PnL != nil {
		pnl = fmt.Sprintf("%.6f", *e.PnL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** Fill: %s %s %g @ %g (%s)\n", e.Symbol, e.Side, e.ExecQty, e.ExecPrice, shortID(e.ExecID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":EXEC_ID: %s\n", e.ExecID)
	fmt.Fprintf(&b, ":ORDER_ID: %s\n", e.OrderID)
	fmt.Fprintf(&b, ":CATEGORY: %s\n", e.Category)
	fmt.Fprintf(&b, ":EXEC_TIME: %s\n", e.ExecutedAt().Format(time.RFC3339))
	fmt.Fprintf(&b, ":EXEC_VALUE: %g\n", e.ExecValue)
	fmt.Fprintf(&b, ":EXEC_FEE: %g %s\n", e.ExecFee, e.FeeCurrency)
	fmt.Fprintf(&b, ":CLOSED_SIZE: %g\n", e.ClosedSize)
	fmt.Fprintf(&b, ":PNL: %s\n", pnl)
	b.WriteString(":END:\n")
	return b.String()
}

// FormatDecisionsOrg renders entries separated by blank lines.
func FormatDecisionsOrg(ds []DecisionEntry) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = FormatDecisionOrg(d)
	}
	return strings.Join(parts, "\n")
}

func FormatExecutionsOrg(es []Execution) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = FormatExecutionOrg(e)
	}
	return strings.Join(parts, "\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
