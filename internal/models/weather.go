package models

import (
	"strconv"
	"time"
)

// Coordinates is a raw latitude/longitude pair as it appears in the dataset.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Key returns the weather cache key "lat,lon". Values are formatted with the shortest
// representation and never rounded, so 1.95 and 1.950001 are distinct keys.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// WeatherSnapshot is the display-ready weather for one coordinate pair.
type WeatherSnapshot struct {
	TempCelsius float64   `json:"tempCelsius"`
	Description string    `json:"description"`
	IconID      string    `json:"iconId"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// IconURL returns the provider icon image for the snapshot, or "" when no icon is known.
func (w WeatherSnapshot) IconURL() string {
	if w.IconID == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + w.IconID + "@2x.png"
}
