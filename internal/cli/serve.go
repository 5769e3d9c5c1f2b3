package cli

import (
	"github.com/spf13/cobra"

	"github.com/tyrasd/datashader/internal/server"
)

// newServeCmd creates the serve command for running the HTTP render
// service.
func newServeCmd() *cobra.Command {
	var configPath string
	var listen string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service",
		Long: `Serve runs an HTTP service exposing the render pipeline.

GET /render returns a PNG for the requested source and parameters,
GET /colormaps lists the built-in colormaps, and GET /legend returns
the categorical color key. Feeds are CSV files under the configured
data directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if configPath != "" {
				var err error
				cfg, err = server.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}

			logger := loggerFromContext(cmd.Context())
			srv, err := server.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			printInfo("Serving feeds from %s on %s", cfg.DataDir, cfg.Listen)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML configuration file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "feed directory (overrides config)")

	return cmd
}
