package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	smokeImage   string
	smokeTimeout time.Duration
)

var smokeCmd = &cobra.Command{
	Use:   "smoke [url]",
	Short: "Send a test request to a deployed endpoint",
	Long: `Posts {"test": true} (or a real image with --image) to the endpoint and checks
for a successful extraction response. Without a URL argument the endpoint is
read from the env file that provision publishes to.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSmoke,
}

func init() {
	smokeCmd.Flags().StringVar(&smokeImage, "image", "", "Send this image instead of a test-mode request")
	smokeCmd.Flags().DurationVar(&smokeTimeout, "timeout", 30*time.Second, "Request timeout")
}

func runSmoke(cmd *cobra.Command, args []string) error {
	url := ""
	if len(args) > 0 {
		url = args[0]
	} else {
		var err error
		if url, err = endpointFromEnvFile(cfg.EnvFile, cfg.EnvKey); err != nil {
			return err
		}
	}

	payload := map[string]any{"test": true}
	if smokeImage != "" {
		data, err := os.ReadFile(smokeImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		payload = map[string]any{"image": base64.StdEncoding.EncodeToString(data)}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), smokeTimeout)
	defer cancel()
	return smoke(ctx, cmd.OutOrStdout(), http.DefaultClient, url, payload)
}

func endpointFromEnvFile(path, key string) (string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	url := values[key]
	if url == "" {
		return "", fmt.Errorf("%s has no %s entry; pass the URL as an argument", path, key)
	}
	return url, nil
}

func smoke(ctx context.Context, w io.Writer, client *http.Client, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	fmt.Fprintf(w, "POST %s\n", url)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	fmt.Fprintf(w, "Status: %d\n", resp.StatusCode)

	var result struct {
		Text   string `json:"text"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode != http.StatusOK || result.Status != "success" {
		fmt.Fprintf(w, "%s✗ endpoint check failed%s\n%s\n", colorize(colorRed), colorize(colorReset), raw)
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		fmt.Fprintf(w, "%swarning:%s response has no CORS headers\n", colorize(colorYellow), colorize(colorReset))
	}
	fmt.Fprintf(w, "%s✓ endpoint working%s\n%s\n", colorize(colorGreen), colorize(colorReset), result.Text)
	return nil
}
