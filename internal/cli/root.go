package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"keplerhub/internal/lightcurve"
	"keplerhub/internal/mast"
	"keplerhub/pkg/utils"
)

// App holds the collaborators commands build on. Zero fields fall back to
// the real MAST client and PNG renderer.
type App struct {
	NewArchive func(cfg utils.Config) lightcurve.Archive
	Renderer   lightcurve.Renderer

	configPath string
	logLevel   string
}

// NewRootCmd creates the keplerctl root command.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithApp(&App{})
}

// NewRootCmdWithApp is NewRootCmd with injectable collaborators for tests.
func NewRootCmdWithApp(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "keplerctl",
		Short:         "Operate a keplerhub deployment",
		Long:          "keplerctl warms the light-curve cache and manages admin credentials.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "YAML config file (defaults to $KEPLERHUB_CONFIG)")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	cmd.AddCommand(
		newNormalizeCmd(),
		newLightCurveCmd(app),
		newPrecacheCmd(app),
		newHashKeyCmd(),
		newTokenCmd(app),
		newWatchCmd(app),
	)
	return cmd
}

func (a *App) config() (utils.Config, error) {
	return utils.LoadConfig(a.configPath)
}

func (a *App) logger(cmd *cobra.Command) zerolog.Logger {
	return utils.NewLoggerWithWriter(a.logLevel, "console", cmd.ErrOrStderr())
}

func (a *App) resolver(cmd *cobra.Command, cfg utils.Config, cacheDir string) *lightcurve.Resolver {
	logger := a.logger(cmd)

	var archive lightcurve.Archive
	if a.NewArchive != nil {
		archive = a.NewArchive(cfg)
	} else {
		c := mast.NewClient(cfg.LightCurve.ArchiveURL)
		c.Logger = utils.Component(logger, "mast")
		archive = c
	}

	if cacheDir == "" {
		cacheDir = cfg.LightCurve.CacheDir
	}
	opts := []lightcurve.Option{lightcurve.WithLogger(logger)}
	if a.Renderer != nil {
		opts = append(opts, lightcurve.WithRenderer(a.Renderer))
	}
	return lightcurve.NewResolver(lightcurve.Config{
		CacheDir: cacheDir,
		Timeout:  cfg.LightCurve.Timeout(),
		Mission:  cfg.LightCurve.Mission,
	}, archive, opts...)
}
