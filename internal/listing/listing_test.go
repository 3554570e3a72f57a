package listing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

func prop(typ string, avg float64) models.Property {
	return models.Property{
		Type:     typ,
		AvgPrice: avg,
		Min:      avg * 0.7,
		Max:      avg * 1.3,
		Trend:    []float64{avg * 0.9, avg * 0.93, avg * 0.97, avg},
	}
}

func sample() models.Neighborhood {
	return models.Neighborhood{
		Name:        "Kimironko",
		Coordinates: models.Coordinates{Lat: -1.9536, Lon: 30.1256},
		Properties: []models.Property{
			prop("Studio", 150000),
			prop("1 Bedroom", 250000),
			prop("2 Bedroom", 400000),
		},
	}
}

func types(ps []models.Property) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func TestQuery_FilterAllIsIdentity(t *testing.T) {
	n := sample()
	got := Query(n, FilterAll, SortNone)
	assert.Equal(t, types(n.Properties), types(got))
	assert.Equal(t, n.Properties, got)
}

func TestQuery_FilterExactType(t *testing.T) {
	got := Query(sample(), "1 Bedroom", SortNone)
	require.Len(t, got, 1)
	assert.Equal(t, "1 Bedroom", got[0].Type)

	assert.Empty(t, Query(sample(), "1 bedroom", SortNone), "type filter is case-sensitive equality")
	assert.Empty(t, Query(sample(), "Penthouse", SortNone))
}

func TestQuery_SortDirectionsAreReverses(t *testing.T) {
	n := models.Neighborhood{Properties: []models.Property{
		prop("B", 300), prop("A", 100), prop("D", 400), prop("C", 200),
	}}
	asc := Query(n, FilterAll, SortAsc)
	desc := Query(n, FilterAll, SortDesc)

	assert.Equal(t, []string{"A", "C", "B", "D"}, types(asc))
	reversed := types(desc)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	assert.Equal(t, types(asc), reversed)
}

func TestQuery_StableTies(t *testing.T) {
	n := models.Neighborhood{Properties: []models.Property{
		prop("first", 200), prop("cheap", 100), prop("second", 200), prop("third", 200),
	}}
	assert.Equal(t, []string{"cheap", "first", "second", "third"}, types(Query(n, FilterAll, SortAsc)))
	assert.Equal(t, []string{"first", "second", "third", "cheap"}, types(Query(n, FilterAll, SortDesc)))
}

func TestQuery_FilterPreservesSort(t *testing.T) {
	n := models.Neighborhood{Properties: []models.Property{
		prop("X", 300), prop("Y", 100), prop("X2", 200),
	}}
	sorted := Query(n, FilterAll, SortDesc)
	assert.Equal(t, []string{"X", "X2", "Y"}, types(sorted))
}

func TestQuery_DoesNotMutateInput(t *testing.T) {
	n := sample()
	before := types(n.Properties)
	firstTrend := n.Properties[0].Trend[0]

	got := Query(n, FilterAll, SortDesc)
	got[0].Trend[0] = -1
	got[0].Type = "mutated"

	assert.Equal(t, before, types(n.Properties))
	assert.Equal(t, firstTrend, n.Properties[0].Trend[0])
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want SortOrder
	}{
		{"", SortNone}, {"none", SortNone}, {"default", SortNone}, {"ASC", SortAsc}, {" desc ", SortDesc},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSort("price")
	assert.True(t, errors.Is(err, ErrInvalidSort))
}

func TestTrendSeries(t *testing.T) {
	props := Query(sample(), FilterAll, SortDesc)
	table := &models.RateTable{Rates: map[string]float64{"USD": 0.001}}

	chart := TrendSeries(props, currency.USD, table)

	assert.Equal(t, TrendLabels, chart.Labels)
	require.Len(t, chart.Series, 3)
	assert.Equal(t, []string{"2 Bedroom", "1 Bedroom", "Studio"},
		[]string{chart.Series[0].Label, chart.Series[1].Label, chart.Series[2].Label})
	for _, s := range chart.Series {
		assert.Len(t, s.Data, models.TrendPoints)
		assert.Len(t, s.Formatted, models.TrendPoints)
	}
	assert.Equal(t, 400.0, chart.Series[0].Data[3])
	assert.Equal(t, "$400", chart.Series[0].Formatted[3])
	assert.Equal(t, "rgba(102, 126, 234, 1)", chart.Series[0].BorderColor)
	assert.Equal(t, "rgba(102, 126, 234, 0.1)", chart.Series[0].BackgroundColor)
	assert.Equal(t, currency.USD, chart.Currency)
	assert.False(t, chart.Fallback)
}

func TestTrendSeries_PaletteCycles(t *testing.T) {
	var props []models.Property
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		props = append(props, prop(name, 100))
	}
	chart := TrendSeries(props, currency.RWF, nil)
	assert.Equal(t, chart.Series[0].BorderColor, chart.Series[4].BorderColor)
	assert.NotEqual(t, chart.Series[0].BorderColor, chart.Series[1].BorderColor)
}

func TestTrendSeries_FallbackWithoutRates(t *testing.T) {
	chart := TrendSeries(Query(sample(), FilterAll, SortNone), currency.EUR, nil)
	assert.True(t, chart.Fallback)
	assert.Equal(t, currency.RWF, chart.Currency)
	assert.Equal(t, "150,000 RWF", chart.Series[0].Formatted[3])
}
