// Package serve implements the serve command.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/api"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// Command creates the serve command
func Command(rt *runtime.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the labeling JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				rt.Settings.WebServer.Listen = listen
			}

			store, err := rt.Store()
			if err != nil {
				return err
			}
			exporter, err := rt.Exporter(store)
			if err != nil {
				return err
			}

			server, err := api.New(rt.Settings,
				api.WithLogger(rt.Logger("api")),
				api.WithDataStore(store),
				api.WithSunCalc(rt.SunCalc()),
				api.WithScanner(rt.Scanner(store)),
				api.WithExporter(exporter),
				api.WithMetrics(rt.Metrics),
			)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides webserver.listen")
	return cmd
}
