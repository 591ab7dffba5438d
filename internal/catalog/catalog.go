package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"keplerhub/pkg/database"
	"keplerhub/pkg/models"
)

// Load migrates db, imports the CSV at csvPath and precomputes analytics.
func Load(ctx context.Context, db *sql.DB, csvPath string) (*Repo, models.Analytics, error) {
	if err := database.Migrate(db); err != nil {
		return nil, models.Analytics{}, err
	}
	if _, err := ImportFile(ctx, db, csvPath); err != nil {
		return nil, models.Analytics{}, err
	}

	repo := NewRepo(db)
	rows, err := repo.All(ctx)
	if err != nil {
		return nil, models.Analytics{}, fmt.Errorf("load catalog rows: %w", err)
	}
	return repo, ComputeAnalytics(rows), nil
}
