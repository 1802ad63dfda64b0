package market

import (
	"fmt"
	"strings"
)

// Mode is the trading mode a cycle runs in.
type Mode string

const (
	Spot       Mode = "spot"
	Derivative Mode = "derivative"
)

// ParseMode accepts "spot", "derivative" and the "perp" alias.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot":
		return Spot, nil
	case "derivative", "perp", "linear":
		return Derivative, nil
	}
	return "", fmt.Errorf("unknown trading mode %q", s)
}

// Category is the venue product type.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
	CategoryOption  Category = "option"
)

// Category maps a mode onto the venue product type used for its orders.
func (m Mode) Category() Category {
	if m == Derivative {
		return CategoryLinear
	}
	return CategorySpot
}

// Instrument carries the order-size rules for one symbol. Step and minimum
// sizes are kept as the venue's decimal strings so no float drift creeps in.
type Instrument struct {
	Symbol      string
	Category    Category
	BaseCoin    string
	QuoteCoin   string
	QtyStep     string
	MinOrderQty string
	TickSize    string
}

var quoteCoins = []string{"USDT", "USDC", "USD", "BTC", "ETH"}

// BaseCoin splits the quote coin off a symbol: "XRPUSDT" -> "XRP".
func BaseCoin(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quoteCoins {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

// Side is the direction of exposure.
type Side string

const (
	None  Side = "none"
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the side that reduces exposure on s.
func (s Side) Opposite() Side {
	switch s {
	case Long:
		return Short
	case Short:
		return Long
	}
	return None
}
