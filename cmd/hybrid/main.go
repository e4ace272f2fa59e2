package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hybrid",
		Short: "Hybrid digit recognition with a human feedback loop",
		Long: `hybrid clusters the embeddings of a feature extractor trained on digits
and learns the label distribution of every cluster from the answers of the user.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "file-storage", "Data directory")
	flags.String("archive", archiveSQLite, "Archive backend: sqlite, badger or json")
	flags.String("mnist", "", "Directory with the MNIST idx files, procedural glyphs are used if empty")
	flags.Int64("seed", 42, "Seed of the digit source")
	flags.String("log-level", "info", "Log level")
	flags.String("log-file", "", "Rotating log file, stderr only if empty")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Train a new model generation",
		RunE:  runInit,
	}
	initCmd.Flags().String("config", "", "Config file (json or yaml), defaults to infra/config/hybrid.json")
	rootCmd.AddCommand(initCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Interactive feedback loop in the terminal",
		RunE:  runLoop,
	}
	runCmd.Flags().String("config", "", "Config file used when no model has been archived yet")
	rootCmd.AddCommand(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feedback loop over http",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("port", 6122, "HTTP port")
	serveCmd.Flags().Bool("debug", false, "Log every request payload")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print the statistics of the archived session",
		RunE:  runStats,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop the model and all samples",
		RunE:  runReset,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
