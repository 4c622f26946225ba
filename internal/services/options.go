package services

import (
	"fmt"
	"strings"

	"catalog-sync-service/internal/clients"
)

const maxOptions = 3

// DefaultOptionName is the generated name of option slot n (1-based).
func DefaultOptionName(n int) string {
	return fmt.Sprintf("Opción %d", n)
}

// DeriveOptionValues scans the option slots of all variants and returns, per used slot,
// the de-duplicated non-empty values in first-seen order. Trailing unused slots are dropped.
func DeriveOptionValues(variants []VariantInput) [][]string {
	var slots [maxOptions][]string
	var seen [maxOptions]map[string]bool
	for i := range seen {
		seen[i] = make(map[string]bool)
	}

	for _, v := range variants {
		for i, val := range v.OptionValues() {
			if val == "" || seen[i][val] {
				continue
			}
			seen[i][val] = true
			slots[i] = append(slots[i], val)
		}
	}

	used := 0
	for i := range slots {
		if len(slots[i]) > 0 {
			used = i + 1
		}
	}
	return slots[:used:used]
}

// ResolveOptionNames names option slots: caller name, then current remote name, then the default.
func ResolveOptionNames(count int, requested, remote []string) []string {
	names := make([]string, count)
	for i := 0; i < count; i++ {
		switch {
		case i < len(requested) && strings.TrimSpace(requested[i]) != "":
			names[i] = strings.TrimSpace(requested[i])
		case i < len(remote) && remote[i] != "" && remote[i] != "Title":
			names[i] = remote[i]
		default:
			names[i] = DefaultOptionName(i + 1)
		}
	}
	return names
}

// BuildOptions combines names and values into option payloads.
func BuildOptions(names []string, values [][]string) []clients.OptionPayload {
	out := make([]clients.OptionPayload, len(values))
	for i := range values {
		out[i] = clients.OptionPayload{Name: names[i], Values: values[i]}
	}
	return out
}

// ResolveVariant finds the existing remote variant an incoming variant refers to.
// A non-empty SKU matches by SKU only; an empty SKU matches the exact option tuple.
// With duplicates the first match wins.
func ResolveVariant(existing []clients.Variant, sku string, options [3]string) *clients.Variant {
	if sku != "" {
		for i := range existing {
			if existing[i].SKU == sku {
				return &existing[i]
			}
		}
		return nil
	}
	for i := range existing {
		if existing[i].OptionValues() == options {
			return &existing[i]
		}
	}
	return nil
}
