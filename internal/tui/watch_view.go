package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/record"
)

// View renders the current view (Bubble Tea interface).
func (m WatchModel) View() string {
	switch m.state {
	case ViewStateQuitting:
		return ""
	case ViewStateDetail:
		return m.renderDetailView()
	case ViewStateList:
		return m.renderListView()
	default:
		return ""
	}
}

// ProgressText renders the loading banner, e.g. "Loading: 3/8 (37%) - MSFT".
func ProgressText(p batch.LoadProgress) string {
	text := fmt.Sprintf("Loading: %d/%d (%d%%)", p.Loaded, p.Total, int(p.PercentComplete()))
	if p.Current != "" {
		text += " - " + string(p.Current)
	}
	return text
}

func (m WatchModel) renderListView() string {
	sections := []string{m.renderTabs()}

	if m.loading() {
		sections = append(sections, m.renderProgressBanner())
	}

	sections = append(sections, m.table.View(), m.renderStatusBar())

	if m.status != "" {
		sections = append(sections, WarningStyle.Render(m.status))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTabs shows the view names with the active one highlighted.
func (m WatchModel) renderTabs() string {
	tabs := make([]string, len(m.views))
	for i, name := range m.views {
		if i == m.viewIdx {
			tabs[i] = ActiveTabStyle.Render(name)
		} else {
			tabs[i] = InactiveTabStyle.Render(name)
		}
	}
	return HeaderStyle.Render("finwatch") + "  " + strings.Join(tabs, "  ")
}

func (m WatchModel) renderProgressBanner() string {
	return InfoStyle.
		Width(max(m.width-borderPadding, 0)).
		Padding(0, 1).
		Render(m.loadingState.View() + " " + ProgressText(m.progress))
}

func (m WatchModel) renderStatusBar() string {
	status := fmt.Sprintf("%s | %d/%d loaded | enter detail, R reload all, tab view, f favorite, q quit",
		m.engineState, len(m.records), len(m.keys))
	return SubtleStyle.Render(status)
}

func (m WatchModel) renderDetailView() string {
	var content strings.Builder

	title := string(m.selected)
	if m.wl.IsFavorite(m.selected) {
		title = "★ " + title
	}

	rec, ok := m.records[m.selected]
	if !ok {
		content.WriteString(HeaderStyle.Render(title))
		content.WriteString("\n\n")
		content.WriteString(SubtleStyle.Render(m.placeholderLabel(m.selected)))
		content.WriteString("\n")
	} else {
		content.WriteString(HeaderStyle.Render(title + "  " + rec.DisplayName()))
		content.WriteString("\n\n")
		renderDetailProfile(&content, rec.Profile)
		renderDetailQuote(&content, rec.Quote)
		m.renderDetailFreshness(&content)
		renderDetailFundamentals(&content, rec.Fundamentals)
		renderDetailAnalysis(&content, rec.Analysis)
		renderDetailStatements(&content, rec.Statements)
	}

	if m.status != "" {
		content.WriteString(WarningStyle.Render(m.status))
		content.WriteString("\n")
	}
	content.WriteString(SubtleStyle.Render("\nr reload, f favorite, esc back"))

	return BoxStyle.Width(max(m.width-borderPadding, 0)).Render(content.String())
}

func writeField(content *strings.Builder, label, value string) {
	content.WriteString(LabelStyle.Render(fmt.Sprintf("  %-16s", label)))
	content.WriteString(ValueStyle.Render(value))
	content.WriteString("\n")
}

func renderDetailProfile(content *strings.Builder, p record.Profile) {
	writeField(content, "Exchange", p.Exchange+" ("+p.Currency+")")
	if p.Sector != "" {
		writeField(content, "Sector", p.Sector+" / "+p.Industry)
	}
	content.WriteString("\n")
}

func renderDetailQuote(content *strings.Builder, q record.Quote) {
	content.WriteString(HeaderStyle.Render("QUOTE"))
	content.WriteString("\n")

	changeStyle := DownStyle
	if q.IsUp() {
		changeStyle = UpStyle
	}
	writeField(content, "Price", FormatPrice(q.Price))
	content.WriteString(LabelStyle.Render(fmt.Sprintf("  %-16s", "Change")))
	content.WriteString(changeStyle.Render(FormatChange(q.Change) + " (" + FormatPercent(q.ChangePercent) + ")"))
	content.WriteString("\n")
	writeField(content, "Day range", FormatPrice(q.DayLow)+" - "+FormatPrice(q.DayHigh))
	writeField(content, "Volume", FormatVolume(q.Volume))
	writeField(content, "As of", FormatAsOf(q.AsOf))
	content.WriteString("\n")
}

// renderDetailFreshness shows how old the cached quote and full record are.
func (m WatchModel) renderDetailFreshness(content *strings.Builder) {
	entry, ok := m.eng.Lookup(m.selected)
	if !ok {
		return
	}
	now := m.now()
	writeField(content, "Quote updated", cache.FormatDuration(entry.Age(now))+" ago")
	writeField(content, "Record loaded", cache.FormatDuration(entry.LoadAge(now))+" ago")
	content.WriteString("\n")
}

func renderDetailFundamentals(content *strings.Builder, f record.Fundamentals) {
	content.WriteString(HeaderStyle.Render("FUNDAMENTALS"))
	content.WriteString("\n")
	writeField(content, "Market cap", FormatCompact(f.MarketCap))
	writeField(content, "P/E", FormatOptional(f.PERatio, 2))
	writeField(content, "EPS", FormatOptional(f.EPS, 2))
	writeField(content, "Dividend yield", FormatOptional(f.DividendYield, 2))
	writeField(content, "Beta", FormatOptional(f.Beta, 2))
	writeField(content, "52w range", FormatPrice(f.FiftyTwoWeekLow)+" - "+FormatPrice(f.FiftyTwoWeekHigh))
	content.WriteString("\n")
}

func renderDetailAnalysis(content *strings.Builder, a record.Analysis) {
	if a.Recommendation == "" && a.AnalystCount == 0 {
		return
	}
	content.WriteString(HeaderStyle.Render("ANALYSTS"))
	content.WriteString("\n")
	writeField(content, "Consensus", a.Recommendation)
	writeField(content, "Target", FormatOptional(a.TargetMeanPrice, 2))
	writeField(content, "Analysts", fmt.Sprint(a.AnalystCount))
	content.WriteString("\n")
}

func renderDetailStatements(content *strings.Builder, statements []record.FinancialStatement) {
	if len(statements) == 0 {
		return
	}
	content.WriteString(HeaderStyle.Render("STATEMENTS"))
	content.WriteString("\n")
	for _, s := range statements {
		fmt.Fprintf(content, "  %-8s revenue %-10s net income %-10s debt %s\n",
			s.Period, FormatCompact(s.Revenue), FormatCompact(s.NetIncome), FormatCompact(s.TotalDebt))
	}
	content.WriteString("\n")
}
