package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/racmlabs/racm-int/internal/job"
	"github.com/racmlabs/racm-int/internal/models"
)

// newJobsCmd creates the 'jobs' command group.
func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage the current analysis job",
	}

	cmd.AddCommand(newJobsStatusCmd())
	cmd.AddCommand(newJobsWatchCmd())
	cmd.AddCommand(newJobsCancelCmd())
	cmd.AddCommand(newJobsDeleteCmd())

	return cmd
}

// newJobsStatusCmd creates the 'jobs status' command.
func newJobsStatusCmd() *cobra.Command {
	var showLog bool
	var clearLog bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current job's phase and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, err := loadSession()
			if err != nil {
				return err
			}
			if s.Job == nil {
				fmt.Println("No current job. Submit one with 'racm-int analyze <file>'.")
				return nil
			}

			if clearLog {
				n := len(s.Activity)
				s.Activity = nil
				if err := mgr.Save(s); err != nil {
					return err
				}
				fmt.Printf("Cleared %d activity entries\n", n)
			}

			j := s.Job
			fmt.Printf("Job:       %s\n", j.ID)
			fmt.Printf("File:      %s\n", j.SourceFile)
			if j.Prompt != "" {
				fmt.Printf("Prompt:    %s\n", j.Prompt)
			}
			fmt.Printf("Submitted: %s\n", j.SubmittedAt.Local().Format(time.RFC1123))
			fmt.Printf("Phase:     %s\n", j.Phase)
			if !j.Phase.IsTerminal() {
				fmt.Printf("Progress:  %d%%", j.ProgressPct)
				if j.ProgressMsg != "" {
					fmt.Printf("  %s", j.ProgressMsg)
				}
				fmt.Println()
				if j.DetailMsg != "" {
					fmt.Printf("Detail:    %s\n", j.DetailMsg)
				}
				if j.ETASeconds > 0 {
					fmt.Printf("ETA:       %s\n", time.Duration(j.ETASeconds)*time.Second)
				}
				fmt.Printf("Pipeline:  %s\n", pipelineLine(j.Phase))
			}
			if s.HasResult() {
				fmt.Printf("Results:   %d detailed, %d summary entries loaded\n",
					len(s.Result.DetailedEntries), len(s.Result.SummaryEntries))
			}

			if showLog {
				fmt.Println("\nActivity:")
				printActivity(s.Activity)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showLog, "log", false, "Also print the job activity log")
	cmd.Flags().BoolVar(&clearLog, "clear-log", false, "Clear the job activity log")

	return cmd
}

// pipelineLine renders the pipeline steps with the current phase marked.
func pipelineLine(current models.Phase) string {
	idx := current.StepIndex()
	parts := make([]string, 0, len(models.PipelineOrder))
	for i, p := range models.PipelineOrder {
		name := string(p)
		switch {
		case i == idx:
			name = "[" + name + "]"
		case idx >= 0 && i < idx:
			name = name + "*"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " -> ")
}

// printActivity writes activity log entries one per line.
func printActivity(entries []job.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for _, e := range entries {
		phase := ""
		if e.Phase != "" {
			phase = "[" + strings.ToUpper(e.Phase) + "] "
		}
		fmt.Printf("  %s %s%s\n", e.Time.Local().Format("15:04:05"), phase, e.Message)
	}
}

// newJobsWatchCmd creates the 'jobs watch' command.
func newJobsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the current job until it finishes",
		Long: `Re-attach to the current job and poll its status until it reaches a
terminal phase. On completion the results are fetched into the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, err := loadSession()
			if err != nil {
				return err
			}
			if s.Job == nil {
				return fmt.Errorf("no current job to watch")
			}
			if s.Job.Phase.IsTerminal() {
				fmt.Printf("Job %s is already %s\n", s.Job.ID, s.Job.Phase)
				return nil
			}

			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
			ctrl := job.NewController(client, GetLogger(), interval)
			ctrl.Resume(s.Job, s.Activity)

			return watchAndLoad(GetContext(), mgr, s, ctrl, cfg.PageSize)
		},
	}
}

// newJobsCancelCmd creates the 'jobs cancel' command.
func newJobsCancelCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the current job",
		Long: `Stop watching the current job and ask the server to abandon it. The job
is marked cancelled locally even if the server-side delete fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, err := loadSession()
			if err != nil {
				return err
			}
			if s.Job == nil {
				return fmt.Errorf("no current job to cancel")
			}
			if s.Job.Phase.IsTerminal() {
				return fmt.Errorf("job %s is already %s", s.Job.ID, s.Job.Phase)
			}

			if !confirm && !confirmYes(fmt.Sprintf("You are about to cancel job %s.", s.Job.ID)) {
				fmt.Println("Cancellation aborted")
				return nil
			}

			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			ctrl := job.NewController(client, GetLogger(), 0)
			ctrl.Resume(s.Job, s.Activity)

			cancelErr := ctrl.Cancel(GetContext())

			s.Job = ctrl.Job()
			s.Activity = ctrl.Activity()
			if err := mgr.Save(s); err != nil {
				return err
			}
			if cancelErr != nil {
				GetLogger().Warn().Err(cancelErr).Msg("Server-side cancel failed")
			}
			fmt.Printf("Job %s cancelled\n", s.Job.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "y", false, "Skip confirmation prompt")

	return cmd
}

// newJobsDeleteCmd creates the 'jobs delete' command.
func newJobsDeleteCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the finished job and clear the session",
		Long: `Delete the current job on the server and remove the local session. Only
jobs in a terminal phase can be deleted; cancel a running job first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, err := loadSession()
			if err != nil {
				return err
			}
			if s.Job == nil {
				return fmt.Errorf("no current job to delete")
			}
			if !s.Job.Phase.IsTerminal() {
				return fmt.Errorf("job %s is still %s; cancel it first", s.Job.ID, s.Job.Phase)
			}

			if !confirm {
				msg := fmt.Sprintf("You are about to delete job %s. This cannot be undone.", s.Job.ID)
				if s.HasPendingEdits() {
					msg += fmt.Sprintf("\n%d unsaved edit(s) will be lost.", len(s.View.Overlay))
				}
				if !confirmYes(msg) {
					fmt.Println("Deletion cancelled")
					return nil
				}
			}

			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			ctrl := job.NewController(client, GetLogger(), 0)
			ctrl.Resume(s.Job, s.Activity)

			if err := ctrl.Delete(GetContext()); err != nil {
				return err
			}

			if err := mgr.Clear(); err != nil {
				return err
			}
			fmt.Printf("Job %s deleted\n", s.Job.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "y", false, "Skip confirmation prompt")

	return cmd
}
