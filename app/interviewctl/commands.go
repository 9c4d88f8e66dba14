package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and retry analysis tasks",
}

type taskPage struct {
	Tasks []models.AnalysisTask `json:"tasks"`
	Total int64                 `json:"total"`
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis tasks, newest first",
	Long: `List analysis tasks, newest first.

Examples:
  interviewctl tasks list --status failed
  interviewctl tasks list --session 0b6c... --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		session, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		if status != "" && !models.TaskStatus(status).IsValid() {
			return fmt.Errorf("unknown status %q (queued, running, completed, failed)", status)
		}

		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if session != "" {
			q.Set("session_id", session)
		}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/tasks?"+q.Encode())
		if err != nil {
			return err
		}
		var page taskPage
		if err := decodeJSON(resp, &page); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, page)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK\tSESSION\tSTATUS\tRETRIES\tPRIORITY\tUPDATED\tERROR")
		for _, t := range page.Tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
				t.TaskID, t.SessionID, t.Status, t.RetryCount, t.MaxRetries, t.Priority,
				t.UpdatedAt.Format(time.RFC3339), t.ErrorMessage)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d of %d tasks\n", len(page.Tasks), page.Total)
		return nil
	},
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show one task as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/tasks/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var t models.AnalysisTask
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	},
}

var tasksRetryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Queue a fresh task for a failed one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/admin/tasks/"+url.PathEscape(args[0])+"/retry", nil)
		if err != nil {
			return err
		}
		var t models.AnalysisTask
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued task %s (retry of %s)\n", t.TaskID, t.RetriedFrom)
		return nil
	},
}

var tasksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts and queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/queue/stats")
		if err != nil {
			return err
		}
		var st services.QueueStats
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var tasksRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-push queued and leased tasks into the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/admin/queue/recover", nil)
		if err != nil {
			return err
		}
		var out struct {
			Requeued int `json:"requeued"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d tasks\n", out.Requeued)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().String("status", "", "filter by status")
	tasksListCmd.Flags().String("session", "", "filter by session id")
	tasksListCmd.Flags().Int("limit", 20, "page size (max 100)")
	tasksListCmd.Flags().Int("offset", 0, "page offset")
	tasksListCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain interview sessions",
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show a session, question plan included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var s models.InterviewSession
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	},
}

var sessionsRegenerateCmd = &cobra.Command{
	Use:   "regenerate <session-id>",
	Short: "Queue a new analysis for a completed session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")
		if !models.PriorityInRange(priority) {
			return fmt.Errorf("--priority must be between %d and %d", models.MinPriority, models.MaxPriority)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0])+"/regenerate", map[string]int{"priority": priority})
		if err != nil {
			return err
		}
		var t models.AnalysisTask
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s is %s\n", t.TaskID, t.Status)
		return nil
	},
}

var sessionsFailCmd = &cobra.Command{
	Use:   "fail <session-id>",
	Short: "Mark a stuck session failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			return fmt.Errorf("--reason is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/admin/sessions/"+url.PathEscape(args[0])+"/fail", map[string]string{"reason": reason})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s failed\n", args[0])
		return nil
	},
}

var sessionsEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Delete sessions idle for longer than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		if maxAge <= 0 {
			return fmt.Errorf("--max-age must be positive")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/admin/sessions/evict?max_age="+url.QueryEscape(maxAge.String()), nil)
		if err != nil {
			return err
		}
		var out struct {
			Evicted int `json:"evicted"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evicted %d sessions\n", out.Evicted)
		return nil
	},
}

func init() {
	sessionsRegenerateCmd.Flags().Int("priority", 0, "task priority (higher runs first)")
	sessionsFailCmd.Flags().String("reason", "", "failure reason recorded on the session")
	sessionsEvictCmd.Flags().Duration("max-age", 24*time.Hour, "idle age after which a session is evicted")
}
