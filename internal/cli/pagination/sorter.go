package pagination

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rshade/finwatch/internal/record"
)

// Sort fields accepted by RecordSorter.
const (
	FieldSymbol    = "symbol"
	FieldName      = "name"
	FieldPrice     = "price"
	FieldChange    = "change"
	FieldChangePct = "change_pct"
	FieldVolume    = "volume"
	FieldMarketCap = "market_cap"
)

// RecordSorter orders records by a named field.
type RecordSorter struct {
	validFields map[string]bool
}

// NewRecordSorter creates a RecordSorter.
func NewRecordSorter() *RecordSorter {
	return &RecordSorter{
		validFields: map[string]bool{
			FieldSymbol:    true,
			FieldName:      true,
			FieldPrice:     true,
			FieldChange:    true,
			FieldChangePct: true,
			FieldVolume:    true,
			FieldMarketCap: true,
		},
	}
}

// IsValidField checks if the field is valid for sorting.
func (s *RecordSorter) IsValidField(field string) bool {
	return s.validFields[field]
}

// GetValidFields returns all valid sort fields.
func (s *RecordSorter) GetValidFields() []string {
	fields := make([]string, 0, len(s.validFields))
	for field := range s.validFields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Sort returns a sorted copy of records. An empty field keeps tracked order.
func (s *RecordSorter) Sort(records []record.Record, field, order string) ([]record.Record, error) {
	if field == "" {
		return records, nil
	}
	if !s.IsValidField(field) {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidSortField, field, strings.Join(s.GetValidFields(), ", "))
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b record.Record) int {
		c := compareField(a, b, field)
		if order == SortOrderDesc {
			return -c
		}
		return c
	})
	return sorted, nil
}

func compareField(a, b record.Record, field string) int {
	switch field {
	case FieldSymbol:
		return strings.Compare(string(a.Key), string(b.Key))
	case FieldName:
		return strings.Compare(a.DisplayName(), b.DisplayName())
	case FieldPrice:
		return a.Quote.Price.Cmp(b.Quote.Price)
	case FieldChange:
		return a.Quote.Change.Cmp(b.Quote.Change)
	case FieldChangePct:
		return a.Quote.ChangePercent.Cmp(b.Quote.ChangePercent)
	case FieldVolume:
		switch {
		case a.Quote.Volume < b.Quote.Volume:
			return -1
		case a.Quote.Volume > b.Quote.Volume:
			return 1
		}
		return 0
	case FieldMarketCap:
		return a.Fundamentals.MarketCap.Cmp(b.Fundamentals.MarketCap)
	default:
		return 0
	}
}
