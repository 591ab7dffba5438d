package models

// DataProduct is one downloadable archive file matched by a target search.
type DataProduct struct {
	ObsID       string `json:"obsid"`
	Target      string `json:"target_name"`
	Mission     string `json:"mission"`
	DataURI     string `json:"dataURI"`
	Filename    string `json:"productFilename"`
	Description string `json:"description,omitempty"`
}

// LightCurve is the downloaded time series of a single target. It only lives
// for the duration of one resolve and is never persisted as data.
type LightCurve struct {
	Target    string
	Mission   string
	Time      []float64
	Flux      []float64
	TimeLabel string
	FluxLabel string
}

// Len reports the number of usable samples.
func (lc *LightCurve) Len() int {
	if lc == nil {
		return 0
	}
	if len(lc.Time) < len(lc.Flux) {
		return len(lc.Time)
	}
	return len(lc.Flux)
}
