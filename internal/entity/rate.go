package entity

import "time"

// RateObservation is one reference-rate data point from the external feed,
// unique per (series, observation date).
type RateObservation struct {
	SeriesID        string    `db:"series_id"`
	ObservationDate time.Time `db:"observation_date"`
	Value           float64   `db:"value"`
	CreatedAt       time.Time `db:"created_at"`
}
