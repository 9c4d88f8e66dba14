// Command interviewctl inspects and steers the analysis pipeline through the
// server's admin API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:           "interviewctl",
	Short:         "Operate the interview analysis pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", envOr("INTERVIEWCTL_URL", "http://127.0.0.1:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("INTERVIEWCTL_TOKEN"), "admin bearer token")

	tasksCmd.AddCommand(tasksListCmd, tasksGetCmd, tasksRetryCmd, tasksStatsCmd, tasksRecoverCmd)
	sessionsCmd.AddCommand(sessionsGetCmd, sessionsRegenerateCmd, sessionsFailCmd, sessionsEvictCmd)
	rootCmd.AddCommand(tasksCmd, sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
