package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidrelay/internal/models"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit a video generation request",
	Long: `Submit a generation request to vidrelay. Local images given with --image are
uploaded first and used as first frames (or as the subject reference for the
S2V-01 model). Without images one text-only clip is generated per --count.

Example:
  vidctl generate --prompt "a lighthouse at dusk" --api-url https://api.minimax.io/v1 --api-key $KEY
  vidctl generate --prompt "slow pan" --image a.png --count 2 --duration 10 --watch`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		prompt, _ := flags.GetString("prompt")
		model, _ := flags.GetString("model")
		duration, _ := flags.GetInt("duration")
		resolution, _ := flags.GetString("resolution")
		count, _ := flags.GetInt("count")
		images, _ := flags.GetStringSlice("image")
		noWatermark, _ := flags.GetBool("no-watermark")
		noOptimizer, _ := flags.GetBool("no-prompt-optimizer")
		watch, _ := flags.GetBool("watch")
		interval, _ := flags.GetDuration("interval")

		apiURL := viper.GetString("api_url")
		apiKey := viper.GetString("api_key")
		if apiURL == "" || apiKey == "" {
			cmd.Println("Upstream credentials not found. Set --api-url/--api-key or VIDRELAY_API_URL/VIDRELAY_API_KEY")
			return
		}
		if prompt == "" && len(images) == 0 {
			cmd.Println("Error: --prompt or --image is required")
			return
		}

		client := NewRelayClient(viper.GetString("url"))

		req := models.NewGenerationRequest()
		req.APIURL = apiURL
		req.APIKey = apiKey
		req.Prompt = prompt
		req.Model = model
		req.Duration = duration
		req.Resolution = resolution
		req.VideosPerImage = count
		req.Watermark = !noWatermark
		req.PromptOptimizer = !noOptimizer

		if len(images) > 0 {
			uploaded, err := client.Upload(images)
			if err != nil {
				printRequestError(cmd, "Upload failed", err)
				return
			}
			if len(uploaded) == 0 {
				cmd.Println("No image was accepted by the server (only images up to 20 MiB are allowed)")
				return
			}
			for _, f := range uploaded {
				req.Images = append(req.Images, f.DataURL)
			}
		}

		result, err := client.Generate(req)
		if err != nil {
			printRequestError(cmd, "Generate failed", err)
			return
		}

		cmd.Printf("%s✓ Request accepted%s\n", colorGreen, colorReset)
		cmd.Printf("  Session: %s\n", result.SessionID)
		for _, id := range result.TaskIDs {
			cmd.Printf("  Task:    %s\n", id)
		}
		if !watch {
			cmd.Printf("\nTrack progress with: vidctl status <task-id>\n")
			return
		}

		for _, id := range result.TaskIDs {
			job, err := waitForTask(client, id, interval)
			if err != nil {
				printRequestError(cmd, "Status query failed", err)
				return
			}
			cmd.Println()
			printTask(cmd, *job)
		}
	},
}

// waitForTask polls until the task reaches a terminal status.
func waitForTask(client *RelayClient, taskID string, interval time.Duration) (*models.Job, error) {
	for {
		job, err := client.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if models.IsTerminal(job.Status) {
			return job, nil
		}
		time.Sleep(interval)
	}
}

func printRequestError(cmd *cobra.Command, prefix string, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		cmd.Printf("%s (%d): %s\n", prefix, apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("%s: %v\n", prefix, err)
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("prompt", "p", "", "Text prompt")
	generateCmd.Flags().StringP("model", "m", models.DefaultModel, "Upstream model")
	generateCmd.Flags().Int("duration", models.DefaultDuration, "Clip length in seconds")
	generateCmd.Flags().String("resolution", models.DefaultResolution, "Resolution (only honoured for 6 second clips)")
	generateCmd.Flags().IntP("count", "n", models.DefaultVideosPerImage, "Videos per image, or total videos without images")
	generateCmd.Flags().StringSliceP("image", "i", nil, "Local image file (repeatable)")
	generateCmd.Flags().Bool("no-watermark", false, "Ask the upstream not to watermark the clip")
	generateCmd.Flags().Bool("no-prompt-optimizer", false, "Disable upstream prompt optimisation")
	generateCmd.Flags().BoolP("watch", "w", false, "Wait for every task to finish")
	generateCmd.Flags().Duration("interval", 5*time.Second, "Polling interval used with --watch")

	generateCmd.Flags().String("api-url", "", "Upstream API base URL")
	viper.BindPFlag("api_url", generateCmd.Flags().Lookup("api-url"))
	generateCmd.Flags().String("api-key", "", "Upstream API key")
	viper.BindPFlag("api_key", generateCmd.Flags().Lookup("api-key"))
}
