package models

import "github.com/paulmach/orb"

// SamplePoint is the centroid of a retained grid cell
type SamplePoint struct {
	Row   int       `json:"row"`
	Col   int       `json:"col"`
	Point orb.Point `json:"point"`
}

// SamplingPoint is a sample point persisted for a pipeline run
type SamplingPoint struct {
	ID      int64   `json:"id" db:"id"`
	RunID   int64   `json:"run_id" db:"run_id"`
	Row     int     `json:"row" db:"cell_row"`
	Col     int     `json:"col" db:"cell_col"`
	X       float64 `json:"x" db:"x"`
	Y       float64 `json:"y" db:"y"`
	Lon     float64 `json:"lon" db:"lon"`
	Lat     float64 `json:"lat" db:"lat"`
	Geohash string  `json:"geohash" db:"geohash"`
}
