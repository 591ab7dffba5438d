package mast

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/astrogo/fitsio"

	"keplerhub/pkg/models"
)

const (
	lightCurveHDU = "LIGHTCURVE"

	timeLabel = "Time - 2454833 [BKJD days]"
	fluxLabel = "PDCSAP Flux [e-/s]"
)

// keplerRow mirrors the columns we read from a Kepler LLC table.
type keplerRow struct {
	Time float64 `fits:"TIME"`
	Flux float32 `fits:"PDCSAP_FLUX"`
}

// DecodeFITS reads TIME and PDCSAP_FLUX from the LIGHTCURVE extension.
// Rows where either value is not finite are dropped.
func DecodeFITS(r io.Reader) (*models.LightCurve, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open fits: %w", err)
	}
	defer f.Close()

	if !f.Has(lightCurveHDU) {
		return nil, errors.New("fits: no " + lightCurveHDU + " extension")
	}
	tbl, ok := f.Get(lightCurveHDU).(*fitsio.Table)
	if !ok {
		return nil, errors.New("fits: " + lightCurveHDU + " is not a table")
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", lightCurveHDU, err)
	}
	defer rows.Close()

	lc := &models.LightCurve{TimeLabel: timeLabel, FluxLabel: fluxLabel}
	for rows.Next() {
		var row keplerRow
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		lc.Time, lc.Flux = appendFinite(lc.Time, lc.Flux, row.Time, float64(row.Flux))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return lc, nil
}

func appendFinite(ts, fs []float64, t, f float64) ([]float64, []float64) {
	if math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(f) || math.IsInf(f, 0) {
		return ts, fs
	}
	return append(ts, t), append(fs, f)
}
