package domain

import "encoding/json"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is a single point of a route polyline.
type Waypoint = GeoPoint

// NullGeoPoint is a coordinate that may be absent, e.g. a catalogue row that
// was never geocoded. Valid is false when the point is unknown.
type NullGeoPoint struct {
	Point GeoPoint
	Valid bool
}

// NewNullGeoPoint builds a NullGeoPoint from optional latitude/longitude
// columns. Both must be present for the point to be valid.
func NewNullGeoPoint(lat, lng *float64) NullGeoPoint {
	if lat == nil || lng == nil {
		return NullGeoPoint{}
	}
	return NullGeoPoint{Point: GeoPoint{Lat: *lat, Lng: *lng}, Valid: true}
}

// Get returns the point and whether it is present.
func (n NullGeoPoint) Get() (GeoPoint, bool) {
	return n.Point, n.Valid
}

// MarshalJSON encodes an absent point as null.
func (n NullGeoPoint) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Point)
}

func (n *NullGeoPoint) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullGeoPoint{}
		return nil
	}
	if err := json.Unmarshal(b, &n.Point); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
