package main

import (
	"github.com/snarg/lecturescribe/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile   string
	outputDir string
	logLevel  string
}

func (g *globalFlags) overrides() config.Overrides {
	return config.Overrides{
		EnvFile:   g.envFile,
		OutputDir: g.outputDir,
		LogLevel:  g.logLevel,
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "lecturescribe",
		Short:         "Extract course transcripts and subtitles into a navigable file set",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Path to .env file (default: .env)")
	rootCmd.PersistentFlags().StringVarP(&g.outputDir, "output", "o", "", "Output directory (overrides OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newRunCommand(g))
	rootCmd.AddCommand(newManifestCommand(g))
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newHistoryCommand(g))

	return rootCmd
}
