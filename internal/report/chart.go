package report

import (
	"fmt"

	"github.com/go-analyze/charts"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// RegularizationChart renders the recoverable expenses of the statement as
// a PNG pie chart by category.
func RegularizationChart(s Statement) ([]byte, error) {
	totals := byCategory(s.Lines)
	if len(totals) == 0 {
		return nil, fmt.Errorf("no recoverable expenses to chart")
	}

	var values []float64
	var names []string
	for _, c := range models.AllCategories {
		cents, ok := totals[c]
		if !ok {
			continue
		}
		names = append(names, string(c))
		values = append(values, float64(cents)/100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Recoverable charges %d", s.Year),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// byCategory sums recoverable amounts per category, skipping zero totals.
func byCategory(lines []models.RegularizationLine) map[models.Category]int64 {
	totals := make(map[models.Category]int64)
	for _, line := range lines {
		if line.AmountRecoverable == 0 {
			continue
		}
		totals[line.Category] += line.AmountRecoverable
	}
	return totals
}
