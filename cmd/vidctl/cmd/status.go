package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidrelay/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [task_id]",
	Short: "Get status of a task",
	Long:  `Retrieve the current record of a generation task: its status (preparing, queued, processing, success, fail), the latest progress message and, once finished, the video URL or error.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewRelayClient(viper.GetString("url"))
		job, err := client.GetTask(args[0])
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}
		printTask(cmd, *job)
	},
}

func printTask(cmd *cobra.Command, job models.Job) {
	cmd.Printf("%s %sTask Details%s\n", statusIcon(job.Status), colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.ID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sMessage:%s     %s\n", colorDim, colorReset, job.Message)
	if job.TraceID != "" {
		cmd.Printf("%sTrace:%s       %s\n", colorDim, colorReset, job.TraceID)
	}
	if job.VideoURL != nil {
		cmd.Printf("%sVideo:%s       %s%s%s\n", colorDim, colorReset, colorCyan, *job.VideoURL, colorReset)
	}
	if job.Error != nil {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, *job.Error, colorReset)
	}
	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(job.CreatedAt))
	cmd.Printf("%sUpdated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(job.UpdatedAt))
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case models.StatusSuccess:
		return colorGreen + "✓" + colorReset
	case models.StatusFail:
		return colorRed + "✗" + colorReset
	case models.StatusProcessing:
		return colorYellow + "⏳" + colorReset
	case models.StatusQueued, models.StatusPreparing:
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case models.StatusSuccess:
		return icon + " " + colorGreen + status + colorReset
	case models.StatusFail:
		return icon + " " + colorRed + status + colorReset
	case models.StatusProcessing:
		return icon + " " + colorYellow + status + colorReset
	case models.StatusQueued, models.StatusPreparing:
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relativeTime(t), colorReset)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
