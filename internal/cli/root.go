// Package cli implements the cyder command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/cyder/internal/app"
	"github.com/tejashwikalptaru/cyder/internal/config"
	"github.com/tejashwikalptaru/cyder/res"
)

var (
	cfgFile   string
	verbose   bool
	mockAudio bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cyder",
	Short: "Play, convert and dreamify local audio",
	Long:  res.AboutContent,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.cyderrc)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&mockAudio, "mock-audio", false, "play through a silent mock decoder")
	_ = rootCmd.PersistentFlags().MarkHidden("mock-audio")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	return nil
}

// newApplication wires the application for one command.
func newApplication(cmd *cobra.Command, showProgress bool) (*app.Application, error) {
	appCfg := app.ConfigFrom(cfg)
	appCfg.Output = cmd.OutOrStdout()
	appCfg.ShowProgress = showProgress
	appCfg.UseMockAudio = mockAudio

	return app.NewApplication(appCfg)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}
