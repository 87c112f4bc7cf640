// Package cmd for parsing command line arguments
package cmd

import (
	"fmt"
	"os"

	"github.com/JeseKi/fisco-autolight-client/app"
	"github.com/JeseKi/fisco-autolight-client/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autolight",
	Short: "autolight deploys and runs a FISCO BCOS light node from a remote asset service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return fmt.Errorf("invalid log debug mode input '%v' with error: %w", debug, err)
		}

		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	err := rootCmd.Execute()
	if err != nil {
		log.Err(err).Send()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "./.env", "Enter your configurations path (.env, .yaml, .toml or .json)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "by setting this flag debug logs are printed too")
}

// newApp reads the configuration selected on the command line and wires the app
func newApp(cmd *cobra.Command) (*app.App, config.Configuration, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, config.Configuration{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg, err := config.ReadConfFile(configFile)
	if err != nil {
		return nil, config.Configuration{}, err
	}

	a, err := app.NewApp(cfg, log.Logger)
	if err != nil {
		return nil, config.Configuration{}, fmt.Errorf("failed to create new app: %w", err)
	}

	return a, cfg, nil
}
