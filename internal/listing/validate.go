package listing

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

var validate = validator.New()

// Validate checks struct constraints on every neighborhood plus the cross-record rules:
// names unique ignoring case and property types unique within a neighborhood.
func Validate(ns []models.Neighborhood) error {
	if len(ns) == 0 {
		return fmt.Errorf("%w: no neighborhoods", ErrDataLoad)
	}

	var errs []error
	seen := make(map[string]bool, len(ns))
	for i, n := range ns {
		if err := validate.Struct(n); err != nil {
			errs = append(errs, fmt.Errorf("neighborhood %d (%s): %w", i, n.Name, err))
		}
		key := normalizeName(n.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("neighborhood %d: duplicate name %q", i, n.Name))
		}
		seen[key] = true

		types := make(map[string]bool, len(n.Properties))
		for _, p := range n.Properties {
			if types[p.Type] {
				errs = append(errs, fmt.Errorf("neighborhood %s: duplicate property type %q", n.Name, p.Type))
			}
			types[p.Type] = true
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDataLoad, errors.Join(errs...))
	}
	return nil
}
