package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize medicrypt configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the model provider, default role and record globs, and writes a .medicrypt.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
