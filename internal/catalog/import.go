package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ImportFile loads a cumulative KOI CSV into the koi table.
func ImportFile(ctx context.Context, db *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	n, err := Import(ctx, db, f)
	if err != nil {
		return n, fmt.Errorf("import %s: %w", path, err)
	}
	return n, nil
}

// Import reads CSV rows from r and inserts them in file order. Blank cells
// are stored as NULL. Lines starting with '#' are skipped.
func Import(ctx context.Context, db *sql.DB, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	header, err := readHeader(cr)
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if _, ok := header["koi_disposition"]; !ok {
		return 0, errors.New("missing koi_disposition column")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO koi (seq, row_id, kepid, kepoi_name, kepler_name, koi_disposition,
		                 koi_period, koi_prad, koi_teq, koi_insol, koi_steff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read row %d: %w", seq+1, err)
		}
		if len(row) == 0 {
			continue
		}
		seq++

		rowID, err := parseNullInt(valueAt(header, row, "rowid"))
		if err != nil {
			return 0, fmt.Errorf("parse rowid on row %d: %w", seq, err)
		}
		kepID, err := parseNullInt(valueAt(header, row, "kepid"))
		if err != nil {
			return 0, fmt.Errorf("parse kepid on row %d: %w", seq, err)
		}

		args := []any{
			seq,
			rowID,
			kepID,
			nullString(valueAt(header, row, "kepoi_name")),
			nullString(valueAt(header, row, "kepler_name")),
			nullString(valueAt(header, row, "koi_disposition")),
		}
		for _, col := range []string{"koi_period", "koi_prad", "koi_teq", "koi_insol", "koi_steff"} {
			v, err := parseNullFloat(valueAt(header, row, col))
			if err != nil {
				return 0, fmt.Errorf("parse %s on row %d: %w", col, seq, err)
			}
			args = append(args, v)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return seq, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseNullInt(raw string) (sql.NullInt64, error) {
	if raw == "" {
		return sql.NullInt64{}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

// parseNullFloat treats blanks and NaN as missing.
func parseNullFloat(raw string) (sql.NullFloat64, error) {
	if raw == "" {
		return sql.NullFloat64{}, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}, nil
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
