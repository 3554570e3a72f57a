package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// ErrSearchEmpty is returned when the search term is empty or whitespace-only after trim.
var ErrSearchEmpty = errors.New("search term is empty")

// ErrSearchTooLong is returned when the search term exceeds the maximum length.
var ErrSearchTooLong = errors.New("search term too long")

// ErrInvalidCoordinates is returned for unparsable or out-of-range lat/lon.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

var validate = validator.New()

// ValidateSearchTerm trims the input and enforces maxLen (in runes, 0 = unlimited).
// Any other non-empty term is passed through so that unknown names, punctuation
// included, reach the dataset lookup and get suggestions back.
func ValidateSearchTerm(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrSearchEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrSearchTooLong
	}
	return s, nil
}

// ParseCoordinates parses lat/lon query values and checks their ranges.
func ParseCoordinates(lat, lon string) (models.Coordinates, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lat %q", ErrInvalidCoordinates, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: lon %q", ErrInvalidCoordinates, lon)
	}
	c := models.Coordinates{Lat: la, Lon: lo}
	if err := ValidateCoordinates(c); err != nil {
		return models.Coordinates{}, err
	}
	return c, nil
}

// ValidateCoordinates checks lat in [-90, 90] and lon in [-180, 180].
func ValidateCoordinates(c models.Coordinates) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return nil
}
