package domain

import (
	"cmp"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

type SortKey int

const (
	ByPrice SortKey = iota + 1
	ByRating
	ByName
)

var ErrUnknownSortKey = errors.New("unknown sort key")

func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price":
		return ByPrice, nil
	case "rating":
		return ByRating, nil
	case "name":
		return ByName, nil
	default:
		return 0, errors.Wrapf(ErrUnknownSortKey, "%q", s)
	}
}

func (k SortKey) String() string {
	switch k {
	case ByPrice:
		return "price"
	case ByRating:
		return "rating"
	case ByName:
		return "name"
	default:
		return "unknown"
	}
}

func (k SortKey) Valid() bool {
	return k >= ByPrice && k <= ByName
}

// SortItems reorders items in place with a stable sort. It reports false and
// leaves items untouched for an unknown key.
func SortItems(items []CartItem, key SortKey) bool {
	var less func(a, b CartItem) int
	switch key {
	case ByPrice:
		less = func(a, b CartItem) int { return a.Price.Cmp(b.Price) }
	case ByRating:
		less = func(a, b CartItem) int { return cmp.Compare(b.Rating, a.Rating) }
	case ByName:
		// byte order: "A" < "B" < "a"
		less = func(a, b CartItem) int { return strings.Compare(a.Name, b.Name) }
	default:
		return false
	}
	slices.SortStableFunc(items, less)
	return true
}
