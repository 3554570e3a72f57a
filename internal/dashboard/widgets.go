package dashboard

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/validation"
)

var errNoData = errors.New("nothing to render")

// buildWidget runs build in isolation. An error or panic yields an unavailable widget with
// placeholder; errNoData yields an empty widget.
func buildWidget[T any](logger *zap.Logger, name, placeholder string, build func() (T, error)) (w Widget[T]) {
	defer func() {
		if r := recover(); r != nil {
			observability.WidgetFailuresTotal.WithLabelValues(name).Inc()
			logger.Error("widget panicked", zap.String("widget", name), zap.Any("panic", r))
			w = Widget[T]{Status: WidgetUnavailable, Placeholder: placeholder}
		}
	}()

	data, err := build()
	if errors.Is(err, errNoData) {
		return Widget[T]{Status: WidgetEmpty}
	}
	if err != nil {
		observability.WidgetFailuresTotal.WithLabelValues(name).Inc()
		logger.Warn("widget failed", zap.String("widget", name), zap.Error(err))
		return Widget[T]{Status: WidgetUnavailable, Placeholder: placeholder}
	}
	return Widget[T]{Status: WidgetReady, Data: &data}
}

// BuildMap positions the map on n. Out-of-range or non-finite coordinates are rejected.
func BuildMap(n models.Neighborhood) (MapWidget, error) {
	c := n.Coordinates
	if math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return MapWidget{}, validation.ErrInvalidCoordinates
	}
	if err := validation.ValidateCoordinates(c); err != nil {
		return MapWidget{}, err
	}
	return MapWidget{
		Lat:         c.Lat,
		Lon:         c.Lon,
		Zoom:        MapZoom,
		MaxZoom:     MapMaxZoom,
		TileURL:     MapTileURL,
		Attribution: MapAttribution,
		Popup:       fmt.Sprintf("<b>%s</b><br>Click to view on larger map", n.Name),
	}, nil
}

// BuildChart builds the trend chart for props. An empty list renders no chart.
func BuildChart(props []models.Property, target currency.Code, table *models.RateTable) (listing.Chart, error) {
	if len(props) == 0 {
		return listing.Chart{}, errNoData
	}
	return listing.TrendSeries(props, target, table), nil
}
