package main

import (
	"fmt"

	"hoopsight/config"

	"github.com/spf13/cobra"
)

// Version ist die Anwendungsversion
const Version = "0.1.0"

const defaultConfigPath = "/config/config.yaml"

// app hält die gemeinsam genutzte Konfiguration aller Unterbefehle
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "hoopsight",
		Short:         "Live basketball player identification and shooting form analysis",
		Version:       Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newProfilesCmd(a))

	return root
}
