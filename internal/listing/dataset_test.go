package listing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

func TestLoadFile_ShippedDataset(t *testing.T) {
	d, err := LoadFile(filepath.Join("..", "..", "data", "rwanda.json"))
	require.NoError(t, err)

	assert.Equal(t, 8, d.Len())
	assert.Equal(t, []string{"Kimironko", "Kacyiru", "Remera", "Gikondo"}, d.Names()[:4])

	n, err := d.Lookup("  kimironko ")
	require.NoError(t, err)
	assert.Equal(t, "Kimironko", n.Name)
	assert.Len(t, n.Properties, 3)
	assert.Len(t, d.Coordinates(), 8)
}

func TestDataset_LookupNotFound(t *testing.T) {
	d, err := LoadFile(filepath.Join("..", "..", "data", "rwanda.json"))
	require.NoError(t, err)

	_, err = d.Lookup("Nonexistent Place")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNeighborhoodNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Nonexistent Place", nf.Term)
	assert.Equal(t, `Neighborhood "Nonexistent Place" not found. Try: Kimironko, Kacyiru, Remera, Gikondo, etc.`, err.Error())
}

func TestDataset_LookupReturnsCopy(t *testing.T) {
	src := sample()
	want := src.Properties[0].Trend[0]
	d, err := NewDataset([]models.Neighborhood{src})
	require.NoError(t, err)

	n, err := d.Lookup("Kimironko")
	require.NoError(t, err)
	n.Properties[0].Trend[0] = -1
	n.Properties = n.Properties[:1]

	again, err := d.Lookup("Kimironko")
	require.NoError(t, err)
	assert.Len(t, again.Properties, 3)
	assert.Equal(t, want, again.Properties[0].Trend[0])
}

func TestDataset_Types(t *testing.T) {
	d, err := NewDataset([]models.Neighborhood{sample()})
	require.NoError(t, err)

	got, err := d.Types("KIMIRONKO")
	require.NoError(t, err)
	assert.Equal(t, []string{"Studio", "1 Bedroom", "2 Bedroom"}, got)

	_, err = d.Types("Nowhere")
	assert.True(t, errors.Is(err, ErrNeighborhoodNotFound))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]models.Neighborhood) []models.Neighborhood
	}{
		{"empty dataset", func([]models.Neighborhood) []models.Neighborhood { return nil }},
		{"missing name", func(ns []models.Neighborhood) []models.Neighborhood { ns[0].Name = ""; return ns }},
		{"duplicate name ignoring case", func(ns []models.Neighborhood) []models.Neighborhood {
			dup := sample()
			dup.Name = "KIMIRONKO"
			return append(ns, dup)
		}},
		{"duplicate type", func(ns []models.Neighborhood) []models.Neighborhood {
			ns[0].Properties[1].Type = "Studio"
			return ns
		}},
		{"three trend points", func(ns []models.Neighborhood) []models.Neighborhood {
			ns[0].Properties[0].Trend = []float64{1, 2, 3}
			return ns
		}},
		{"negative price", func(ns []models.Neighborhood) []models.Neighborhood {
			ns[0].Properties[0].AvgPrice = -5
			return ns
		}},
		{"max below min", func(ns []models.Neighborhood) []models.Neighborhood {
			ns[0].Properties[0].Max = 1
			return ns
		}},
		{"latitude out of range", func(ns []models.Neighborhood) []models.Neighborhood {
			ns[0].Coordinates.Lat = 95
			return ns
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate([]models.Neighborhood{sample()}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDataLoad))
		})
	}

	assert.NoError(t, Validate([]models.Neighborhood{sample()}))
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, ErrDataLoad))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"neighborhoods": [`), 0o600))
	_, err = LoadFile(bad)
	assert.True(t, errors.Is(err, ErrDataLoad))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"neighborhoods": []}`), 0o600))
	_, err = Load(context.Background(), FileSource{Path: empty})
	assert.True(t, errors.Is(err, ErrDataLoad))
}
