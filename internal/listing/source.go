package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// Source loads the raw neighborhood records.
type Source interface {
	Load(ctx context.Context) ([]models.Neighborhood, error)
}

// Load reads src and builds a validated Dataset. Every failure wraps ErrDataLoad.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	ns, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataLoad, err)
	}
	return NewDataset(ns)
}

type document struct {
	Neighborhoods []models.Neighborhood `json:"neighborhoods"`
}

// FileSource reads a JSON document of the form {"neighborhoods": [...]}.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) ([]models.Neighborhood, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a dataset document.
func ParseDocument(data []byte) ([]models.Neighborhood, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return doc.Neighborhoods, nil
}

// LoadFile loads and validates the dataset at path.
func LoadFile(path string) (*Dataset, error) {
	return Load(context.Background(), FileSource{Path: path})
}
