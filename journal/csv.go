package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ulikunitz/xz"
)

var executionHeader = []string{
	"exec_id", "symbol", "category", "side", "order_type", "exec_price", "exec_qty",
	"exec_value", "exec_fee", "fee_currency", "closed_size", "exec_time", "pnl", "order_id",
}

var decisionHeader = []string{
	"id", "timestamp", "symbol", "action", "quantity", "price", "order_id", "reasoning",
}

// WriteExecutionsCSV writes ledger rows with a header line.
func WriteExecutionsCSV(w io.Writer, es []Execution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(executionHeader); err != nil {
		return err
	}
	for _, e := range es {
		pnl := ""
		if e.PnL != nil {
			pnl = f(*e.PnL)
		}
		if err := cw.Write([]string{
			e.ExecID,
			e.Symbol,
			e.Category,
			e.Side,
			e.OrderType,
			f(e.ExecPrice),
			f(e.ExecQty),
			f(e.ExecValue),
			f(e.ExecFee),
			e.FeeCurrency,
			f(e.ClosedSize),
			e.ExecutedAt().Format(time.RFC3339Nano),
			pnl,
			e.OrderID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDecisionsCSV writes decision-log entries with a header line.
func WriteDecisionsCSV(w io.Writer, ds []DecisionEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(decisionHeader); err != nil {
		return err
	}
	for _, d := range ds {
		orderID := ""
		if d.OrderID != nil {
			orderID = *d.OrderID
		}
		if err := cw.Write([]string{
			strconv.FormatInt(d.ID, 10),
			d.Time.UTC().Format(time.RFC3339),
			d.Symbol,
			d.Action,
			f(d.Quantity),
			f(d.Price),
			orderID,
			d.Reasoning,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Compressed wraps w in an xz stream for archived exports. The caller must
// Close the returned writer to flush the stream.
func Compressed(w io.Writer) (io.WriteCloser, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	return zw, nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
