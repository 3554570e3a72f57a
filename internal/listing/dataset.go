package listing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

var (
	// ErrNeighborhoodNotFound is wrapped by *NotFoundError.
	ErrNeighborhoodNotFound = errors.New("neighborhood not found")
	// ErrDataLoad marks a dataset that could not be read or failed validation.
	ErrDataLoad = errors.New("dataset load failed")
)

const suggestionCount = 4

// NotFoundError reports a search term with no case-insensitive match.
type NotFoundError struct {
	Term        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Neighborhood %q not found. Try: %s, etc.", e.Term, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrNeighborhoodNotFound
}

// Dataset is the immutable, validated set of neighborhoods.
type Dataset struct {
	neighborhoods []models.Neighborhood
	byName        map[string]int
}

// NewDataset validates ns and indexes it by lower-cased name.
func NewDataset(ns []models.Neighborhood) (*Dataset, error) {
	if err := Validate(ns); err != nil {
		return nil, err
	}
	d := &Dataset{
		neighborhoods: make([]models.Neighborhood, len(ns)),
		byName:        make(map[string]int, len(ns)),
	}
	for i, n := range ns {
		n.Properties = Query(n, FilterAll, SortNone)
		d.neighborhoods[i] = n
		d.byName[normalizeName(n.Name)] = i
	}
	return d, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup finds a neighborhood by name, ignoring case and surrounding whitespace.
// The returned value shares no memory with the dataset.
func (d *Dataset) Lookup(name string) (models.Neighborhood, error) {
	term := strings.TrimSpace(name)
	i, ok := d.byName[normalizeName(term)]
	if !ok {
		return models.Neighborhood{}, &NotFoundError{Term: term, Suggestions: d.suggestions()}
	}
	n := d.neighborhoods[i]
	n.Properties = Query(n, FilterAll, SortNone)
	return n, nil
}

func (d *Dataset) suggestions() []string {
	names := d.Names()
	if len(names) > suggestionCount {
		names = names[:suggestionCount]
	}
	return names
}

// Names returns the neighborhood names in dataset order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.neighborhoods))
	for i, n := range d.neighborhoods {
		names[i] = n.Name
	}
	return names
}

// Types returns the property types of the named neighborhood in dataset order.
func (d *Dataset) Types(name string) ([]string, error) {
	n, err := d.Lookup(name)
	if err != nil {
		return nil, err
	}
	return TypesOf(n), nil
}

// TypesOf returns the property types of n in dataset order.
func TypesOf(n models.Neighborhood) []string {
	types := make([]string, len(n.Properties))
	for i, p := range n.Properties {
		types[i] = p.Type
	}
	return types
}

// Coordinates returns the coordinates of every neighborhood, for cache warming.
func (d *Dataset) Coordinates() []models.Coordinates {
	out := make([]models.Coordinates, len(d.neighborhoods))
	for i, n := range d.neighborhoods {
		out[i] = n.Coordinates
	}
	return out
}

// Len returns the number of neighborhoods.
func (d *Dataset) Len() int {
	return len(d.neighborhoods)
}
