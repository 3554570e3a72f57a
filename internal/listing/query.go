// Package listing holds the neighborhood dataset and the filter/sort/trend logic that
// feeds property cards and the price trend chart.
package listing

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// FilterAll is the type filter that keeps every property.
const FilterAll = "all"

// SortOrder orders properties by average price.
type SortOrder string

const (
	SortNone SortOrder = "none"
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ErrInvalidSort is returned by ParseSort.
var ErrInvalidSort = errors.New("invalid sort order")

// ParseSort accepts "", "none" and "default" for dataset order, plus "asc" and "desc".
func ParseSort(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "default":
		return SortNone, nil
	case "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// Query returns the properties of n that match typeFilter, ordered by order.
// The result is a deep copy; n is never modified. Ties keep dataset order in both
// directions.
func Query(n models.Neighborhood, typeFilter string, order SortOrder) []models.Property {
	out := make([]models.Property, 0, len(n.Properties))
	for _, p := range n.Properties {
		if typeFilter == "" || typeFilter == FilterAll || p.Type == typeFilter {
			out = append(out, p.Clone())
		}
	}

	switch order {
	case SortAsc:
		slices.SortStableFunc(out, func(a, b models.Property) int {
			return cmp.Compare(a.AvgPrice, b.AvgPrice)
		})
	case SortDesc:
		slices.SortStableFunc(out, func(a, b models.Property) int {
			return cmp.Compare(b.AvgPrice, a.AvgPrice)
		})
	}
	return out
}
