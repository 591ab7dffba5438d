package models

// KOI is one row of the Kepler cumulative Objects of Interest table.
//
// Nullable numeric columns are pointers so that a blank CSV cell stays
// distinguishable from a zero measurement.
type KOI struct {
	RowID       int64    `json:"rowid"`
	KepID       int64    `json:"kepid"`
	KepoiName   string   `json:"kepoi_name"`
	KeplerName  string   `json:"kepler_name,omitempty"`
	Disposition string   `json:"koi_disposition"`
	Period      *float64 `json:"koi_period,omitempty"`
	Radius      *float64 `json:"koi_prad,omitempty"`
	EqTemp      *float64 `json:"koi_teq,omitempty"`
	Insolation  *float64 `json:"koi_insol,omitempty"`
	StellarTemp *float64 `json:"koi_steff,omitempty"`
}

// DisplayName prefers the confirmed Kepler name over the KOI designation.
func (k KOI) DisplayName() string {
	if k.KeplerName != "" {
		return k.KeplerName
	}
	return k.KepoiName
}

// Candidate is the public shape served by /kepler-candidates.
type Candidate struct {
	Name          string   `json:"name"`
	Status        string   `json:"status"`
	Radius        *float64 `json:"radius"`
	Temperature   *float64 `json:"temperature"`
	OrbitalPeriod *float64 `json:"orbital_period"`
	StellarFlux   *float64 `json:"stellar_flux"`
	HabitableZone bool     `json:"habitable_zone"`
}
