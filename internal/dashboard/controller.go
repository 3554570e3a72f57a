// Package dashboard owns the display state of the rent-lookup view and renders it from
// the dataset, the rate store and the weather store.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/currency"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/models"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/service"
	"github.com/kjstillabower/rent-lookup-service/internal/validation"
)

var (
	// ErrEmptySearch is returned for a blank search term.
	ErrEmptySearch = validation.ErrSearchEmpty
	// ErrNoSelection is returned when rendering before any successful search.
	ErrNoSelection = errors.New("no neighborhood selected")
	// ErrInvalidOption wraps a bad filter, sort or currency value.
	ErrInvalidOption = errors.New("invalid option")
)

// RateSource is satisfied by *service.RateStore.
type RateSource interface {
	GetRates(ctx context.Context) service.Result[models.RateTable]
}

// WeatherSource is satisfied by *service.WeatherStore.
type WeatherSource interface {
	GetWeather(ctx context.Context, coords models.Coordinates) service.Result[models.WeatherSnapshot]
}

// DisplayState is the current selection. It is rebuilt on every search.
type DisplayState struct {
	Neighborhood *models.Neighborhood
	Filter       string
	Sort         listing.SortOrder
	Currency     currency.Code
	Properties   []models.Property
}

func (s DisplayState) clone() DisplayState {
	out := s
	if s.Neighborhood != nil {
		n := *s.Neighborhood
		n.Properties = listing.Query(n, listing.FilterAll, listing.SortNone)
		out.Neighborhood = &n
	}
	out.Properties = listing.Query(models.Neighborhood{Properties: s.Properties}, listing.FilterAll, listing.SortNone)
	return out
}

// Options changes the filter, sort or currency. Nil fields are left unchanged.
type Options struct {
	Type     *string `json:"type"`
	Sort     *string `json:"sort"`
	Currency *string `json:"currency"`
}

// Config tunes the controller.
type Config struct {
	// MaxSearchLength caps the search term in runes (0 = unlimited).
	MaxSearchLength int
}

// Controller is the top-level owner of DisplayState. State changes are applied when a
// call is made; each view is rendered from a snapshot taken at that moment.
type Controller struct {
	dataset *listing.Dataset
	rates   RateSource
	weather WeatherSource
	cfg     Config

	buildMap   func(models.Neighborhood) (MapWidget, error)
	buildChart func([]models.Property, currency.Code, *models.RateTable) (listing.Chart, error)

	mu    sync.Mutex
	state DisplayState
}

// NewController creates a Controller with filter "all", dataset order and RWF.
func NewController(dataset *listing.Dataset, rates RateSource, weather WeatherSource, cfg Config) *Controller {
	return &Controller{
		dataset:    dataset,
		rates:      rates,
		weather:    weather,
		cfg:        cfg,
		buildMap:   BuildMap,
		buildChart: BuildChart,
		state: DisplayState{
			Filter:   listing.FilterAll,
			Sort:     listing.SortNone,
			Currency: currency.RWF,
		},
	}
}

// State returns a copy of the current display state.
func (c *Controller) State() DisplayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Search selects the neighborhood named term and renders it with the current filter,
// sort and currency. An unknown name clears the selection and returns *listing.NotFoundError.
func (c *Controller) Search(ctx context.Context, term string) (View, error) {
	logger := observability.LoggerFromContext(ctx)

	name, err := validation.ValidateSearchTerm(term, c.cfg.MaxSearchLength)
	if err != nil {
		observability.RecordSearch(term, "invalid")
		return View{}, err
	}

	n, err := c.dataset.Lookup(name)
	if err != nil {
		c.mu.Lock()
		c.state.Neighborhood = nil
		c.state.Properties = nil
		c.mu.Unlock()
		observability.RecordSearch(name, "not_found")
		logger.Info("neighborhood not found", zap.String("term", name))
		return View{}, err
	}

	observability.RecordSearch(n.Name, "found")
	logger.Debug("displaying neighborhood", zap.String("neighborhood", n.Name))

	c.mu.Lock()
	c.state.Neighborhood = &n
	c.state.Properties = listing.Query(n, c.state.Filter, c.state.Sort)
	snap := c.state.clone()
	c.mu.Unlock()

	return c.render(ctx, snap), nil
}

// Apply updates the filter, sort or currency. Choices are kept even with nothing
// selected, in which case ErrNoSelection is returned.
func (c *Controller) Apply(ctx context.Context, opts Options) (View, error) {
	filter, order, code, err := c.parseOptions(opts)
	if err != nil {
		return View{}, err
	}

	c.mu.Lock()
	c.state.Filter = filter
	c.state.Sort = order
	c.state.Currency = code
	if c.state.Neighborhood == nil {
		c.mu.Unlock()
		return View{}, ErrNoSelection
	}
	c.state.Properties = listing.Query(*c.state.Neighborhood, filter, order)
	snap := c.state.clone()
	c.mu.Unlock()

	return c.render(ctx, snap), nil
}

// Current renders the current state again, refreshing rates and weather if their caches expired.
func (c *Controller) Current(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.state.Neighborhood == nil {
		c.mu.Unlock()
		return View{}, ErrNoSelection
	}
	snap := c.state.clone()
	c.mu.Unlock()

	return c.render(ctx, snap), nil
}

func (c *Controller) parseOptions(opts Options) (string, listing.SortOrder, currency.Code, error) {
	c.mu.Lock()
	filter, order, code := c.state.Filter, c.state.Sort, c.state.Currency
	c.mu.Unlock()

	if opts.Type != nil {
		filter = strings.TrimSpace(*opts.Type)
		if filter == "" {
			filter = listing.FilterAll
		}
	}
	if opts.Sort != nil {
		o, err := listing.ParseSort(*opts.Sort)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		order = o
	}
	if opts.Currency != nil {
		cc, err := currency.ParseCode(*opts.Currency)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		code = cc
	}
	return filter, order, code, nil
}

// render reads the rate table once, fetches weather concurrently and builds every widget
// from the same snapshot.
func (c *Controller) render(ctx context.Context, st DisplayState) View {
	logger := observability.LoggerFromContext(ctx)
	n := *st.Neighborhood

	var (
		wg         sync.WaitGroup
		ratesRes   service.Result[models.RateTable]
		weatherRes service.Result[models.WeatherSnapshot]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ratesRes = c.rates.GetRates(ctx)
	}()
	go func() {
		defer wg.Done()
		weatherRes = c.weather.GetWeather(ctx, n.Coordinates)
	}()
	wg.Wait()

	var table *models.RateTable
	if ratesRes.Available() {
		t := ratesRes.Value
		table = &t
	}

	v := View{
		Neighborhood: n.Name,
		Coordinates:  n.Coordinates,
		Filter:       st.Filter,
		Sort:         st.Sort,
		Currency:     st.Currency,
		Types:        append([]string{listing.FilterAll}, listing.TypesOf(n)...),
		Currencies:   currency.Codes(),
		Cards:        make([]Card, 0, len(st.Properties)),
		Notices:      []Notice{},
	}

	fallback := ""
	for _, p := range st.Properties {
		card := Card{
			Type: p.Type,
			Avg:  currency.Convert(p.AvgPrice, st.Currency, table),
			Min:  currency.Convert(p.Min, st.Currency, table),
			Max:  currency.Convert(p.Max, st.Currency, table),
		}
		if card.Avg.Fallback {
			fallback = card.Avg.Reason
		}
		v.Cards = append(v.Cards, card)
	}
	if len(v.Cards) == 0 {
		v.EmptyMessage = EmptyResultsMessage
	}
	if fallback != "" {
		observability.ConversionFallbacksTotal.WithLabelValues(string(st.Currency), fallback).Inc()
		logger.Warn("no rate for currency, using RWF", zap.String("currency", string(st.Currency)), zap.String("reason", fallback))
	}

	v.Map = buildWidget(logger, "map", MapUnavailable, func() (MapWidget, error) {
		return c.buildMap(n)
	})
	v.Chart = buildWidget(logger, "chart", ChartUnavailable, func() (listing.Chart, error) {
		return c.buildChart(st.Properties, st.Currency, table)
	})

	v.Rates = NewRatesView(ratesRes)
	v.Weather = NewWeatherView(weatherRes)
	v.Notices = append(v.Notices, notices(ratesRes, weatherRes, st.Currency, fallback)...)
	return v
}

// NewRatesView renders the exchange-rate info line for res.
func NewRatesView(res service.Result[models.RateTable]) RatesView {
	rv := RatesView{Status: string(res.Status)}
	if !res.Available() {
		rv.Message = RatesUnavailableNotice
		return rv
	}
	rv.Summary = currency.RateSummary(&res.Value)
	rv.FetchedAt = res.FetchedAt
	return rv
}

// NewWeatherView renders the weather panel for res.
func NewWeatherView(res service.Result[models.WeatherSnapshot]) WeatherView {
	wv := WeatherView{Status: string(res.Status)}
	if !res.Available() {
		wv.Kind = string(res.Kind)
		wv.Message = WeatherUnavailableNotice
		if res.Kind == service.KindNotConfigured {
			wv.Message = WeatherNotConfiguredNotice
		}
		return wv
	}
	w := res.Value
	wv.TempCelsius = w.TempCelsius
	wv.Temp = fmt.Sprintf("%d°C", int(math.Round(w.TempCelsius)))
	wv.Description = w.Description
	wv.IconURL = w.IconURL()
	wv.FetchedAt = res.FetchedAt
	return wv
}

// notices lists the degradations of one render. The RWF-only notice is shown whenever
// rates are unavailable, and also when a non-RWF currency fell back for a missing rate.
func notices(rates service.Result[models.RateTable], weather service.Result[models.WeatherSnapshot], target currency.Code, fallback string) []Notice {
	var out []Notice
	switch {
	case !rates.Available():
		out = append(out, newNotice(NoticeWarning, RatesUnavailableNotice))
	case fallback != "" && target != currency.RWF:
		out = append(out, newNotice(NoticeWarning, RatesUnavailableNotice))
	case rates.Status == service.StatusStale:
		out = append(out, newNotice(NoticeInfo, RatesStaleNotice))
	}
	switch {
	case weather.Status == service.StatusStale:
		out = append(out, newNotice(NoticeInfo, "Weather data may be out of date."))
	case !weather.Available() && weather.Kind == service.KindNotConfigured:
		out = append(out, newNotice(NoticeInfo, WeatherNotConfiguredNotice))
	case !weather.Available():
		out = append(out, newNotice(NoticeWarning, WeatherUnavailableNotice))
	}
	return out
}
