package tui

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const placeholder = "-"

type compactUnit struct {
	threshold decimal.Decimal
	suffix    string
}

//nolint:gochecknoglobals // Read-only lookup table.
var compactUnits = []compactUnit{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// FormatPrice renders a price with two decimals.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatChange renders a signed change, e.g. "+1.25" or "-0.40".
func FormatChange(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// FormatPercent renders a signed percentage, e.g. "+0.85%".
func FormatPercent(d decimal.Decimal) string {
	return FormatChange(d) + "%"
}

// FormatOptional renders a nullable figure with the given precision.
func FormatOptional(d *decimal.Decimal, places int32) string {
	if d == nil {
		return placeholder
	}
	return d.StringFixed(places)
}

// FormatCompact renders large figures as 2.95T, 410.20B, 12.00M.
func FormatCompact(d decimal.Decimal) string {
	abs := d.Abs()
	for _, u := range compactUnits {
		if abs.GreaterThanOrEqual(u.threshold) {
			return d.Div(u.threshold).StringFixed(2) + u.suffix
		}
	}
	return d.StringFixed(0)
}

// FormatVolume renders an integer with thousands separators.
func FormatVolume(v int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", v)
}

// FormatAsOf renders a quote timestamp in local time.
func FormatAsOf(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.Local().Format("15:04:05")
}
