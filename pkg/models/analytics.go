package models

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type RangeCount struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type ScatterPoint struct {
	Temperature float64 `json:"temperature"`
	Radius      float64 `json:"radius"`
	Name        string  `json:"name"`
}

type Statistics struct {
	TotalCandidates     int     `json:"total_candidates"`
	ConfirmedExoplanets int     `json:"confirmed_exoplanets"`
	HabitableZoneCount  int     `json:"habitable_zone_count"`
	AvgDiscoveryRate    float64 `json:"avg_discovery_rate"`
	DetectionEfficiency float64 `json:"detection_efficiency"`
}

// Analytics is computed once from the catalog and served as-is.
type Analytics struct {
	DiscoveryTimeline        []YearCount    `json:"discovery_timeline"`
	RadiusDistribution       []RangeCount   `json:"radius_distribution"`
	TemperatureRadiusScatter []ScatterPoint `json:"temperature_radius_scatter"`
	Statistics               Statistics     `json:"statistics"`
}
