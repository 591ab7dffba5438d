package catalog

import (
	"math"
	"math/rand/v2"
	"sort"

	"keplerhub/pkg/models"
)

const (
	// MaxScatterPoints bounds the temperature/radius sample.
	MaxScatterPoints = 200
	scatterSeed      = 42

	// Kepler prime + K2 operating years.
	missionYears = 9
)

var timelineYears = []int{2009, 2010, 2011, 2012, 2013, 2014, 2015, 2016, 2017, 2018}

type radiusBin struct {
	label    string
	min, max float64 // (min, max]
}

var radiusBins = []radiusBin{
	{"<0.5 R⊕", 0, 0.5},
	{"0.5-1 R⊕", 0.5, 1.0},
	{"1-1.5 R⊕", 1.0, 1.5},
	{"1.5-2 R⊕", 1.5, 2.0},
	{">2 R⊕", 2.0, math.Inf(1)},
}

// ComputeAnalytics derives the dashboard aggregates from the full catalog.
// The result is deterministic for a given input.
func ComputeAnalytics(rows []models.KOI) models.Analytics {
	confirmed := make([]models.KOI, 0, len(rows))
	for _, k := range rows {
		if k.Disposition == DispositionConfirmed {
			confirmed = append(confirmed, k)
		}
	}

	return models.Analytics{
		DiscoveryTimeline:        discoveryTimeline(len(confirmed)),
		RadiusDistribution:       radiusDistribution(confirmed),
		TemperatureRadiusScatter: temperatureRadius(confirmed),
		Statistics:               statistics(len(rows), confirmed),
	}
}

// discoveryTimeline spreads the confirmed count evenly over the mission
// years; the last year takes the remainder.
func discoveryTimeline(total int) []models.YearCount {
	chunk := total / len(timelineYears)
	out := make([]models.YearCount, 0, len(timelineYears))
	for i, year := range timelineYears {
		start := i * chunk
		end := (i + 1) * chunk
		if i == len(timelineYears)-1 {
			end = total
		}
		out = append(out, models.YearCount{Year: year, Count: end - start})
	}
	return out
}

func radiusDistribution(confirmed []models.KOI) []models.RangeCount {
	counts := make([]int, len(radiusBins))
	for _, k := range confirmed {
		if k.Radius == nil {
			continue
		}
		r := *k.Radius
		for i, b := range radiusBins {
			if r > b.min && r <= b.max {
				counts[i]++
				break
			}
		}
	}

	out := make([]models.RangeCount, len(radiusBins))
	for i, b := range radiusBins {
		out[i] = models.RangeCount{Range: b.label, Count: counts[i]}
	}
	return out
}

func temperatureRadius(confirmed []models.KOI) []models.ScatterPoint {
	points := make([]models.ScatterPoint, 0, len(confirmed))
	for _, k := range confirmed {
		if k.StellarTemp == nil || k.Radius == nil || k.KeplerName == "" || k.KepoiName == "" {
			continue
		}
		points = append(points, models.ScatterPoint{
			Temperature: *k.StellarTemp,
			Radius:      *k.Radius,
			Name:        k.DisplayName(),
		})
	}
	if len(points) <= MaxScatterPoints {
		return points
	}

	rng := rand.New(rand.NewPCG(scatterSeed, scatterSeed))
	idx := rng.Perm(len(points))[:MaxScatterPoints]
	sort.Ints(idx)

	sample := make([]models.ScatterPoint, 0, MaxScatterPoints)
	for _, i := range idx {
		sample = append(sample, points[i])
	}
	return sample
}

func statistics(total int, confirmed []models.KOI) models.Statistics {
	hz := 0
	for _, k := range confirmed {
		if InHabitableZone(k.Insolation) {
			hz++
		}
	}

	var rate, efficiency float64
	if len(confirmed) > 0 {
		rate = float64(len(confirmed)) / missionYears
	}
	if total > 0 {
		efficiency = float64(len(confirmed)) / float64(total) * 100
	}

	return models.Statistics{
		TotalCandidates:     total,
		ConfirmedExoplanets: len(confirmed),
		HabitableZoneCount:  hz,
		AvgDiscoveryRate:    round1(rate),
		DetectionEfficiency: round1(efficiency),
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
