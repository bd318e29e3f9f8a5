package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session and API key usage",
	Long:  `Print the admin counters of the server: live sessions, per-key request/success/fail totals and system totals. Fetching stats also triggers a retention sweep on the server.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewRelayClient(viper.GetString("url"))
		stats, err := client.Stats()
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		cmd.Printf("%sSystem%s\n", colorBold, colorReset)
		cmd.Printf("  sessions %d  tasks %d  connections %d  keys %d\n",
			stats.System.TotalUsers, stats.System.TotalTasks, stats.System.ActiveWebsockets, stats.System.TotalAPIKeys)

		cmd.Printf("\n%sAPI keys%s\n", colorBold, colorReset)
		if len(stats.APIKeys) == 0 {
			cmd.Println("  (none)")
		}
		for _, k := range stats.APIKeys {
			cmd.Printf("  %-14s requests %-4d %ssuccess %-4d%s %sfail %-4d%s sessions %d\n",
				k.KeyPrefix, k.RequestCount,
				colorGreen, k.SuccessCount, colorReset,
				colorRed, k.FailCount, colorReset,
				len(k.Sessions))
		}

		cmd.Printf("\n%sSessions%s\n", colorBold, colorReset)
		if len(stats.Users) == 0 {
			cmd.Println("  (none)")
		}
		for _, s := range stats.Users {
			cmd.Printf("  %s  %-14s %-15s requests %d success %d fail %d  last active %s ago\n",
				s.ID, s.KeyPrefix, s.ClientIP, s.RequestCount, s.SuccessCount, s.FailCount, relativeTime(s.LastActive))
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
