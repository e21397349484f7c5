package valuation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

var (
	englishPrinter = message.NewPrinter(language.English)
	titleCaser     = cases.Title(language.English)
)

// grouped renders a decimal with thousands separators and two decimals,
// for index values in audit steps.
func grouped(v decimal.Decimal) string {
	f, _ := mathx.Round(v, 2).Float64()
	return englishPrinter.Sprintf("%.2f", f)
}

// signedPercent renders a ratio as a signed percentage with the given
// number of decimal places, e.g. 0.125 -> "+12.5%".
func signedPercent(ratio decimal.Decimal, places int32) string {
	pct := mathx.Round(ratio.Mul(decimal.NewFromInt(100)), places)
	if pct.Sign() >= 0 {
		return "+" + pct.String() + "%"
	}
	return pct.String() + "%"
}

// percent renders a ratio as an unsigned percentage.
func percent(ratio decimal.Decimal, places int32) string {
	return mathx.Round(ratio.Mul(decimal.NewFromInt(100)), places).String() + "%"
}

// displayDate formats a date the way audit narratives spell them out.
func displayDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// titleSector turns a sector key like "developer_tools" into "Developer Tools".
func titleSector(sector string) string {
	return titleCaser.String(strings.ReplaceAll(sector, "_", " "))
}

// monthsBetween returns the calendar-month difference between two dates.
func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// nearestIndexPoint returns the point whose date minimizes absolute day
// distance to target. Points must be sorted ascending; on an exact tie the
// earlier date wins because it is seen first.
func nearestIndexPoint(points []model.MarketIndex, target time.Time) model.MarketIndex {
	best := points[0]
	bestDist := absDays(points[0].Date, target)
	for _, p := range points[1:] {
		if d := absDays(p.Date, target); d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}

func absDays(a, b time.Time) int64 {
	d := a.Sub(b) / (24 * time.Hour)
	if d < 0 {
		return int64(-d)
	}
	return int64(d)
}

// citation builds the data-source block embedded in audit-step inputs.
func citation(source model.DataSource, kind string) map[string]any {
	return map[string]any{
		"name":         source.Name,
		"retrieved_at": source.RetrievedAt.Format("2006-01-02"),
		"citation":     kind + " from " + source.Name,
	}
}
