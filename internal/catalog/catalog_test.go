package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keplerhub/pkg/database"
	"keplerhub/pkg/models"
)

const fixtureCSV = `# exported from the NASA Exoplanet Archive
rowid,kepid,kepoi_name,kepler_name,koi_disposition,koi_period,koi_prad,koi_teq,koi_insol,koi_steff
1,10797460,K00752.01,Kepler-227 b,CONFIRMED,9.48,2.26,793,93.59,5455
2,10797460,K00752.02,Kepler-227 c,CONFIRMED,54.4,2.83,443,9.11,5455
3,10811496,K00753.01,,CANDIDATE,19.89,14.6,638,39.3,5853
4,10848459,K00754.01,,FALSE POSITIVE,1.73,33.46,1395,891.96,5805
5,10854555,K00755.01,Kepler-664 b,CONFIRMED,2.52,0.9,1406,926.16,6031
6,10872983,K00756.01,Kepler-228 d,CONFIRMED,11.09,0.4,835,114.81,6046
7,10872983,K00756.02,Kepler-228 c,CONFIRMED,4.13,1.2,1160,427.65,6046
8,6521045,K00041.01,Kepler-100 c,CONFIRMED,12.8,1.74,1000,0.9,
9,,,,CANDIDATE,1,1,1,1,1
10,11,K00099.01,,,1,1,1,1,1
11,12,K00100.01,Kepler-442 b,CONFIRMED,112.3,1.34,233,0.7,4402
`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func loadFixture(t *testing.T) (*Repo, models.Analytics) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cumulative.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCSV), 0o600))

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, analytics, err := Load(context.Background(), db, path)
	require.NoError(t, err)
	return repo, analytics
}

func TestImport(t *testing.T) {
	db := openDB(t)
	n, err := Import(context.Background(), db, strings.NewReader(fixtureCSV))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	rows, err := NewRepo(db).All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 11)

	assert.Equal(t, "Kepler-227 b", rows[0].DisplayName())
	assert.Equal(t, "K00753.01", rows[2].DisplayName())
	assert.Nil(t, rows[7].StellarTemp)
	assert.Empty(t, rows[9].Disposition)
	require.NotNil(t, rows[10].Insolation)
	assert.InDelta(t, 0.7, *rows[10].Insolation, 1e-9)
}

func TestImport_BadNumber(t *testing.T) {
	db := openDB(t)
	_, err := Import(context.Background(), db, strings.NewReader(
		"kepoi_name,koi_disposition,koi_prad\nK1,CONFIRMED,big\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "koi_prad")
}

func TestImport_MissingDispositionColumn(t *testing.T) {
	db := openDB(t)
	_, err := Import(context.Background(), db, strings.NewReader("kepoi_name\nK1\n"))
	assert.Error(t, err)
}

func TestListCandidates(t *testing.T) {
	repo, _ := loadFixture(t)
	ctx := context.Background()

	total, err := repo.CountCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, total)

	page, err := repo.ListCandidates(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Kepler-227 b", page[0].Name)
	assert.Equal(t, "CONFIRMED", page[0].Status)
	assert.False(t, page[0].HabitableZone)

	page, err = repo.ListCandidates(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "K00753.01", page[0].Name)

	all, err := repo.ListCandidates(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 9)
	assert.Equal(t, "Kepler-100 c", all[7].Name)
	assert.True(t, all[7].HabitableZone)
	assert.Equal(t, "Kepler-442 b", all[8].Name)
}

func TestComputeAnalytics(t *testing.T) {
	_, a := loadFixture(t)

	require.Len(t, a.DiscoveryTimeline, 10)
	assert.Equal(t, models.YearCount{Year: 2009, Count: 0}, a.DiscoveryTimeline[0])
	assert.Equal(t, models.YearCount{Year: 2018, Count: 7}, a.DiscoveryTimeline[9])

	counts := make([]int, 0, len(a.RadiusDistribution))
	for _, rc := range a.RadiusDistribution {
		counts = append(counts, rc.Count)
	}
	assert.Equal(t, []int{1, 1, 2, 1, 2}, counts)
	assert.Equal(t, "<0.5 R⊕", a.RadiusDistribution[0].Range)

	assert.Len(t, a.TemperatureRadiusScatter, 6)

	assert.Equal(t, models.Statistics{
		TotalCandidates:     11,
		ConfirmedExoplanets: 7,
		HabitableZoneCount:  2,
		AvgDiscoveryRate:    0.8,
		DetectionEfficiency: 63.6,
	}, a.Statistics)
}

func TestDiscoveryTimeline_SumsToTotal(t *testing.T) {
	for _, total := range []int{0, 9, 10, 23, 2341} {
		sum := 0
		for _, yc := range discoveryTimeline(total) {
			sum += yc.Count
		}
		assert.Equal(t, total, sum, "total %d", total)
	}
}

func TestTemperatureRadius_SampleIsStable(t *testing.T) {
	rows := make([]models.KOI, 0, 250)
	for i := 0; i < 250; i++ {
		temp, radius := 5000+float64(i), 1+float64(i)/100
		rows = append(rows, models.KOI{
			KepoiName:   fmt.Sprintf("K%05d.01", i),
			KeplerName:  fmt.Sprintf("Kepler-%d b", i),
			Disposition: DispositionConfirmed,
			Radius:      &radius,
			StellarTemp: &temp,
		})
	}

	first := ComputeAnalytics(rows).TemperatureRadiusScatter
	second := ComputeAnalytics(rows).TemperatureRadiusScatter

	require.Len(t, first, MaxScatterPoints)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Temperature, first[i].Temperature)
	}
}

func TestHandler(t *testing.T) {
	repo, analytics := loadFixture(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo, analytics).RegisterRoutes(r.Group(""))

	tests := []struct {
		query     string
		wantLen   int
		wantLimit int
		wantOff   int
	}{
		{"", 9, DefaultLimit, 0},
		{"?limit=3&offset=1", 3, 3, 1},
		{"?limit=1000", 9, MaxLimit, 0},
		{"?limit=abc&offset=-5", 9, DefaultLimit, 0},
		{"?offset=50", 0, DefaultLimit, 50},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kepler-candidates"+tc.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Data       []models.Candidate `json:"data"`
				TotalCount int                `json:"total_count"`
				Offset     int                `json:"offset"`
				Limit      int                `json:"limit"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Data, tc.wantLen)
			assert.Equal(t, 9, body.TotalCount)
			assert.Equal(t, tc.wantLimit, body.Limit)
			assert.Equal(t, tc.wantOff, body.Offset)
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analytics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, analytics.Statistics, got.Statistics)
}
