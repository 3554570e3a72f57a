package dashboard

import (
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// User-facing messages.
const (
	EmptyResultsMessage        = "No properties match your filters."
	RatesUnavailableNotice     = "Currency conversion temporarily unavailable. Showing prices in RWF only."
	RatesStaleNotice           = "Exchange rates could not be refreshed. Showing the last known rates."
	WeatherUnavailableNotice   = "Weather data unavailable"
	WeatherNotConfiguredNotice = "Weather data unavailable (API key not set)"
	MapUnavailable             = "Map unavailable"
	ChartUnavailable           = "Chart unavailable"
)

// NoticeDismissAfter is how long a UI shows a notice before hiding it.
const NoticeDismissAfter = 5 * time.Second

// Map parameters handed to the tile widget.
const (
	MapZoom        = 14
	MapMaxZoom     = 19
	MapTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	MapAttribution = "© OpenStreetMap contributors"
)

// WidgetStatus is the render state of an isolated widget.
type WidgetStatus string

const (
	WidgetReady       WidgetStatus = "ready"
	WidgetEmpty       WidgetStatus = "empty"
	WidgetUnavailable WidgetStatus = "unavailable"
)

// Widget wraps the data of one independently built widget. Data is nil unless Status is ready.
type Widget[T any] struct {
	Status      WidgetStatus `json:"status"`
	Data        *T           `json:"data,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// MapWidget positions the map on a neighborhood.
type MapWidget struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Zoom        int     `json:"zoom"`
	MaxZoom     int     `json:"maxZoom"`
	TileURL     string  `json:"tileUrl"`
	Attribution string  `json:"attribution"`
	Popup       string  `json:"popup"`
}

// Card is one property card. Avg, Min and Max are converted with the render's rate snapshot.
type Card struct {
	Type string          `json:"type"`
	Avg  currency.Result `json:"avg"`
	Min  currency.Result `json:"min"`
	Max  currency.Result `json:"max"`
}

// WeatherView is the weather panel.
type WeatherView struct {
	Status      string    `json:"status"`
	Kind        string    `json:"kind,omitempty"`
	TempCelsius float64   `json:"tempCelsius,omitempty"`
	Temp        string    `json:"temp,omitempty"`
	Description string    `json:"description,omitempty"`
	IconURL     string    `json:"iconUrl,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// RatesView is the exchange-rate info line.
type RatesView struct {
	Status    string    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// NoticeLevel grades a notice.
type NoticeLevel string

const (
	NoticeWarning NoticeLevel = "warning"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a transient degradation message.
type Notice struct {
	Level               NoticeLevel `json:"level"`
	Message             string      `json:"message"`
	DismissAfterSeconds int         `json:"dismissAfterSeconds"`
}

func newNotice(level NoticeLevel, msg string) Notice {
	return Notice{Level: level, Message: msg, DismissAfterSeconds: int(NoticeDismissAfter / time.Second)}
}

// View is everything a UI needs to paint the results section.
type View struct {
	Neighborhood string                `json:"neighborhood"`
	Coordinates  models.Coordinates    `json:"coordinates"`
	Filter       string                `json:"filter"`
	Sort         listing.SortOrder     `json:"sort"`
	Currency     currency.Code         `json:"currency"`
	Types        []string              `json:"types"`
	Currencies   []currency.Code       `json:"currencies"`
	Cards        []Card                `json:"cards"`
	EmptyMessage string                `json:"emptyMessage,omitempty"`
	Chart        Widget[listing.Chart] `json:"chart"`
	Map          Widget[MapWidget]     `json:"map"`
	Weather      WeatherView           `json:"weather"`
	Rates        RatesView             `json:"rates"`
	Notices      []Notice              `json:"notices"`
}
