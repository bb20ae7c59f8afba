package collab

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey orders a symbol list.
type SortKey string

const (
	SortVolume  SortKey = "volume"
	SortGainers SortKey = "gainers"
	SortLosers  SortKey = "losers"
)

// ParseSortKey accepts volume, gainers or losers (case-insensitive).
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortVolume, SortGainers, SortLosers:
		return k, nil
	case "":
		return SortVolume, nil
	default:
		return "", fmt.Errorf("unknown sort %q (want volume, gainers or losers)", s)
	}
}

// SortSymbols returns a sorted copy of list. Unknown keys sort by volume.
func SortSymbols(list []SymbolInfo, by SortKey) []SymbolInfo {
	out := make([]SymbolInfo, len(list))
	copy(out, list)

	var less func(a, b SymbolInfo) bool
	switch by {
	case SortGainers:
		less = func(a, b SymbolInfo) bool { return a.Change > b.Change }
	case SortLosers:
		less = func(a, b SymbolInfo) bool { return a.Change < b.Change }
	default:
		less = func(a, b SymbolInfo) bool { return a.Volume > b.Volume }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
