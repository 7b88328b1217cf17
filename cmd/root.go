package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "medicrypt",
	Short: "Role-aware assistant over structured medical records",
	Long: `medicrypt answers questions about structured medical records with a
language model. Patients see their own full record; researchers only
ever see aggregated data with patient identifiers and names redacted.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

