package cli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"keplerhub/internal/auth"
	"keplerhub/internal/events"
	"keplerhub/internal/lightcurve"
	"keplerhub/pkg/models"
	"keplerhub/pkg/utils"
)

type cliArchive struct{}

func (cliArchive) Search(_ context.Context, target, _ string) ([]models.DataProduct, error) {
	if strings.HasPrefix(target, "KIC") {
		return nil, nil
	}
	return []models.DataProduct{{DataURI: "mast:" + target}}, nil
}

func (cliArchive) Download(context.Context, models.DataProduct) (*models.LightCurve, error) {
	return &models.LightCurve{Time: []float64{0, 1}, Flux: []float64{1, 1}}, nil
}

type cliRenderer struct{}

func (cliRenderer) Render(w io.Writer, _ *models.LightCurve, _ string) error {
	_, err := w.Write([]byte("png"))
	return err
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("KEPLERHUB_CONFIG", "")

	app := &App{
		NewArchive: func(utils.Config) lightcurve.Archive { return cliArchive{} },
		Renderer:   cliRenderer{},
	}
	cmd := NewRootCmdWithApp(app)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestNormalize(t *testing.T) {
	out, _, err := run(t, "", "normalize", "Kepler-22 b", "K00744.01")
	require.NoError(t, err)
	assert.Equal(t, "Kepler-22\tKepler-22.png\nKOI-744\tKOI-744.png\n", out)

	out, errOut, err := run(t, "", "normalize", "KIC 12345", "../etc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 targets invalid")
	assert.Equal(t, "KIC 12345\tKIC_12345.png\n", out)
	assert.Contains(t, errOut, `"../etc"`)
}

func TestLightCurve(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "", "lightcurve", "Kepler-22 b", "--cache-dir", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(dir, "Kepler-22.png"), path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))

	_, _, err = run(t, "", "lightcurve", "KIC 1", "--cache-dir", dir)
	assert.ErrorIs(t, err, lightcurve.ErrNoData)
}

func TestPrecache(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "", "precache", "--cache-dir", dir, "Kepler-10", "KIC 5", "")
	require.NoError(t, err)
	assert.Contains(t, out, "ok\tKepler-10\t")
	assert.Contains(t, out, "fail\tKIC 5\t")
	assert.Contains(t, out, "fail\t\t")

	_, _, err = run(t, "", "precache", "--cache-dir", dir, "KIC 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 targets failed")
}

func TestPrecache_ConfiguredTargets(t *testing.T) {
	t.Setenv("KEPLERHUB_PRECACHE_TARGETS", "Kepler-8,Kepler-9")

	out, _, err := run(t, "", "precache", "--cache-dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "ok\t"))
}

func TestHashKey(t *testing.T) {
	out, _, err := run(t, "", "hash-key", "a-long-enough-admin-key")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("a-long-enough-admin-key")))

	out, _, err = run(t, "from-stdin-admin-key\n", "hash-key")
	require.NoError(t, err)
	assert.NoError(t, auth.KeyVerifier{Hash: strings.TrimSpace(out)}.Verify("from-stdin-admin-key"))

	_, _, err = run(t, "", "hash-key", "short")
	assert.ErrorIs(t, err, auth.ErrKeyTooShort)
}

func TestToken(t *testing.T) {
	t.Setenv("KEPLERHUB_JWT_SECRET", "cli-test-secret")

	out, _, err := run(t, "", "token", "--ttl", "5m")
	require.NoError(t, err)

	ts := auth.TokenService{Secret: []byte("cli-test-secret"), Issuer: "keplerhub"}
	claims, err := ts.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestWatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := events.NewHub(zerolog.Nop())
	router := gin.New()
	router.GET("/ws", events.WSHandler(hub, events.NewUpgrader(nil)))
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	out, _, err := run(t, "", "watch", "--url", url, "--count", "1", "--pretty=false")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"welcome","transport":"websocket","clients":1}`, strings.TrimSpace(out))

	_, _, err = run(t, "", "watch", "--url", "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
