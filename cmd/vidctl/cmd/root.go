package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vidctl",
	Short: "vidctl submits and inspects video generation jobs on a vidrelay server",
	Long: `vidctl is the command-line client for vidrelay.

vidrelay accepts generation requests, runs them against the upstream video
service and reports progress. vidctl talks to its HTTP API.

Common workflows:

  Generate a clip from a prompt and wait for it:
    vidctl generate --prompt "a lighthouse at dusk" --watch

  Animate local images, two clips each:
    vidctl generate --prompt "slow pan" --image a.png --image b.png --count 2

  Check one task:
    vidctl status <task-id>

  Show usage counters:
    vidctl stats

Configuration:
  Flags can also be set through environment variables or a config file:
    VIDRELAY_URL        vidrelay server (default: http://localhost:5211)
    VIDRELAY_API_URL    upstream base URL forwarded with generate
    VIDRELAY_API_KEY    upstream API key forwarded with generate`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".vidctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VIDRELAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vidctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:5211", "vidrelay server URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
