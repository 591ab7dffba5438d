package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"keplerhub/pkg/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	DispositionConfirmed = "CONFIRMED"

	habitableMinInsol = 0.25
	habitableMaxInsol = 1.5
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const listableWhere = `
	WHERE COALESCE(kepler_name, kepoi_name) IS NOT NULL
	  AND koi_disposition IS NOT NULL
`

// CountCandidates counts the rows ListCandidates can return.
func (r *Repo) CountCandidates(ctx context.Context) (int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM koi`+listableWhere).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// ListCandidates returns one page of named, dispositioned rows in file order.
func (r *Repo) ListCandidates(ctx context.Context, offset, limit int) ([]models.Candidate, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT COALESCE(kepler_name, kepoi_name), koi_disposition, koi_prad, koi_teq, koi_period, koi_insol
		FROM koi`+listableWhere+`
		ORDER BY seq
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candidate, 0, limit)
	for rows.Next() {
		var (
			c                          models.Candidate
			radius, teq, period, insol sql.NullFloat64
		)
		if err := rows.Scan(&c.Name, &c.Status, &radius, &teq, &period, &insol); err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		c.Radius = floatPtr(radius)
		c.Temperature = floatPtr(teq)
		c.OrbitalPeriod = floatPtr(period)
		c.StellarFlux = floatPtr(insol)
		c.HabitableZone = InHabitableZone(c.StellarFlux)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// All returns every row in file order.
func (r *Repo) All(ctx context.Context) ([]models.KOI, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT COALESCE(row_id, seq), kepid, kepoi_name, kepler_name, koi_disposition,
		       koi_period, koi_prad, koi_teq, koi_insol, koi_steff
		FROM koi
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("all query: %w", err)
	}
	defer rows.Close()

	var out []models.KOI
	for rows.Next() {
		var (
			k                                    models.KOI
			kepID                                sql.NullInt64
			kepoi, kepler, disposition           sql.NullString
			period, radius, teq, insol, stellarT sql.NullFloat64
		)
		if err := rows.Scan(&k.RowID, &kepID, &kepoi, &kepler, &disposition,
			&period, &radius, &teq, &insol, &stellarT); err != nil {
			return nil, fmt.Errorf("all scan: %w", err)
		}
		k.KepID = kepID.Int64
		k.KepoiName = kepoi.String
		k.KeplerName = kepler.String
		k.Disposition = disposition.String
		k.Period = floatPtr(period)
		k.Radius = floatPtr(radius)
		k.EqTemp = floatPtr(teq)
		k.Insolation = floatPtr(insol)
		k.StellarTemp = floatPtr(stellarT)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// InHabitableZone reports whether the insolation flux falls in the
// conservative [0.25, 1.5] Earth-flux band.
func InHabitableZone(insol *float64) bool {
	return insol != nil && *insol >= habitableMinInsol && *insol <= habitableMaxInsol
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
