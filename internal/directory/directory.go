// Package directory provides lookup of nearby emergency facilities. Real
// unit-location routing is proxied to an external directory service; the
// static implementation stands in for it.
package directory

import "context"

// Facility is one emergency facility near a location.
type Facility struct {
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity"`
	Rating   float64 `json:"rating"`
}

// Lookup resolves nearby emergency facilities for a location.
type Lookup interface {
	FindNearbyHospitals(ctx context.Context, location string) ([]Facility, error)
}

// StaticLookup returns a fixed facility list anchored to the requested
// location.
type StaticLookup struct{}

// NewStaticLookup creates a static directory lookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{}
}

// FindNearbyHospitals returns the static facility list for the location.
func (s *StaticLookup) FindNearbyHospitals(ctx context.Context, location string) ([]Facility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Facility{
		{Name: "City General Hospital", Vicinity: location, Rating: 4.2},
		{Name: "Emergency Medical Center", Vicinity: location, Rating: 4.0},
	}, nil
}
