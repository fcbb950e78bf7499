// Package cmd wires the p8tools command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WullT/P8-Tools/cmd/export"
	"github.com/WullT/P8-Tools/cmd/intervals"
	"github.com/WullT/P8-Tools/cmd/label"
	"github.com/WullT/P8-Tools/cmd/nodes"
	"github.com/WullT/P8-Tools/cmd/query"
	"github.com/WullT/P8-Tools/cmd/scan"
	"github.com/WullT/P8-Tools/cmd/serve"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(rt *runtime.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "p8tools",
		Short:         "Camera-trap flower labeling tools",
		Version:       rt.Build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		scan.Command(rt),
		query.Command(rt),
		label.ClassifyCommand(rt),
		label.FavoriteCommand(rt),
		label.AnnotateCommand(rt),
		nodes.Command(rt),
		intervals.Command(rt),
		export.Command(rt),
		serve.Command(rt),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load()
		if err != nil {
			return err
		}
		return rt.Init(settings)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return rt.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
