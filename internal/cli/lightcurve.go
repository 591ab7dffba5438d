package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"keplerhub/internal/lightcurve"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "normalize <target>...",
		Short:   "Print the canonical form and cache file name of each target",
		Example: `  keplerctl normalize "Kepler-22 b" K00744.01 "KIC 12345"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, raw := range args {
				target, err := lightcurve.Validate(raw)
				if err != nil {
					invalid++
					cmd.PrintErrf("%q: %v\n", raw, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", target, lightcurve.ToFilename(target))
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d targets invalid", invalid, len(args))
			}
			return nil
		},
	}
}

func newLightCurveCmd(app *App) *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "lightcurve <target>",
		Short: "Fetch and render one light curve into the cache",
		Example: `  keplerctl lightcurve Kepler-22
  keplerctl lightcurve "KOI-7" --cache-dir /tmp/lc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			path, err := app.resolver(cmd, cfg, cacheDir).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the configured cache directory")
	return cmd
}

func newPrecacheCmd(app *App) *cobra.Command {
	var (
		cacheDir string
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "precache [target]...",
		Short: "Warm the light-curve cache",
		Long: `Resolves every target on a bounded worker pool. Without arguments the
configured precache_targets are used. Exits non-zero only when every target
failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			targets := args
			if len(targets) == 0 {
				targets = cfg.LightCurve.PrecacheTargets
			}
			if len(targets) == 0 {
				return errors.New("no targets given and none configured")
			}
			if workers <= 0 {
				workers = cfg.LightCurve.PrecacheWorkers
			}

			r := app.resolver(cmd, cfg, cacheDir)
			results := lightcurve.Prewarm(cmd.Context(), r, targets, workers, app.logger(cmd))

			ok := 0
			for _, res := range results {
				if res.OK() {
					ok++
					fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\t%s\n", res.Target, res.Path)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "fail\t%s\t%s\n", res.Target, res.Error)
				}
			}
			if ok == 0 {
				return fmt.Errorf("all %d targets failed", len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the configured cache directory")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent downloads (defaults to precache_workers)")
	return cmd
}
