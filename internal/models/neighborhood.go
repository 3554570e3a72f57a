package models

// TrendPoints is the number of chronological price points carried by every property.
const TrendPoints = 4

// Neighborhood is one searchable area of the dataset. Immutable after load.
type Neighborhood struct {
	Name        string      `json:"name" validate:"required"`
	Coordinates Coordinates `json:"coordinates"`
	Properties  []Property  `json:"properties" validate:"dive"`
}

// Property holds RWF rent statistics for one property type.
type Property struct {
	Type     string    `json:"type" validate:"required"`
	AvgPrice float64   `json:"avg_price" validate:"gte=0"`
	Min      float64   `json:"min" validate:"gte=0"`
	Max      float64   `json:"max" validate:"gte=0,gtefield=Min"`
	Trend    []float64 `json:"trend" validate:"len=4,dive,gte=0"`
}

// Clone returns a deep copy so callers can reorder or mutate without touching dataset memory.
func (p Property) Clone() Property {
	out := p
	if p.Trend != nil {
		out.Trend = append([]float64(nil), p.Trend...)
	}
	return out
}
