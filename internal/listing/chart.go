package listing

import (
	"strings"

	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// TrendLabels are the x-axis labels of the trend chart, oldest first.
var TrendLabels = []string{"3 Months Ago", "2 Months Ago", "Last Month", "Current"}

var palette = []string{
	"rgba(102, 126, 234, 1)",
	"rgba(118, 75, 162, 1)",
	"rgba(237, 100, 166, 1)",
	"rgba(255, 154, 158, 1)",
}

// Series is one line of the trend chart.
type Series struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	Formatted       []string  `json:"formatted"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Tension         float64   `json:"tension"`
	Fill            bool      `json:"fill"`
}

// Chart is the render-ready trend dataset.
type Chart struct {
	Labels   []string      `json:"labels"`
	Series   []Series      `json:"series"`
	Currency currency.Code `json:"currency"`
	Fallback bool          `json:"fallback,omitempty"`
}

// TrendSeries builds one series per property, in the order given, converting every
// point with the same rate table snapshot.
func TrendSeries(props []models.Property, target currency.Code, table *models.RateTable) Chart {
	chart := Chart{
		Labels:   append([]string(nil), TrendLabels...),
		Series:   make([]Series, 0, len(props)),
		Currency: target,
	}
	for i, p := range props {
		converted := currency.ConvertAll(p.Trend, target, table)
		s := Series{
			Label:           p.Type,
			Data:            make([]float64, len(converted)),
			Formatted:       make([]string, len(converted)),
			BorderColor:     palette[i%len(palette)],
			BackgroundColor: strings.Replace(palette[i%len(palette)], "1)", "0.1)", 1),
			Tension:         0.3,
			Fill:            true,
		}
		for j, r := range converted {
			s.Data[j] = r.Value
			s.Formatted[j] = r.Formatted
			if r.Fallback {
				chart.Fallback = true
				chart.Currency = currency.RWF
			}
		}
		chart.Series = append(chart.Series, s)
	}
	return chart
}
