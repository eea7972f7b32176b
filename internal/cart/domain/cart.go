package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the token every cart price is denominated in.
const Currency = "ETH"

type CartItem struct {
	ID       string
	Name     string
	ImageURL string
	Price    decimal.Decimal
	Rating   int
}

// Cart is a point-in-time view of the aggregator's list with its derived values.
type Cart struct {
	Items     []CartItem
	TotalCost decimal.Decimal
	ItemCount int
}

func NewCart(items []CartItem) Cart {
	cp := make([]CartItem, len(items))
	copy(cp, items)
	return Cart{
		Items:     cp,
		TotalCost: TotalCost(cp),
		ItemCount: len(cp),
	}
}

func (c Cart) IsEmpty() bool {
	return c.ItemCount == 0
}

// FormatTotal renders the total the way the payment panel shows it, e.g. "5,5 ETH".
func (c Cart) FormatTotal() string {
	return FormatPrice(c.TotalCost)
}

func FormatPrice(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1) + " " + Currency
}

func TotalCost(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

// ValidateItems checks that ids are unique and prices non-negative.
func ValidateItems(items []CartItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return NewError("validate", KindInvalid, ErrEmptyID)
		}
		if _, ok := seen[it.ID]; ok {
			return NewError("validate", KindInvalid, ErrDuplicateID)
		}
		seen[it.ID] = struct{}{}
		if it.Price.IsNegative() {
			return NewError("validate", KindInvalid, ErrNegativePrice)
		}
	}
	return nil
}
