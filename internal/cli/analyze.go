package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/racmlabs/racm-int/internal/constants"
	"github.com/racmlabs/racm-int/internal/job"
	"github.com/racmlabs/racm-int/internal/progress"
	"github.com/racmlabs/racm-int/internal/session"
	"github.com/racmlabs/racm-int/internal/table"
)

// newAnalyzeCmd creates the 'analyze' command.
func newAnalyzeCmd() *cobra.Command {
	var prompt string
	var noWatch bool
	var confirm bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Submit a document for RACM analysis",
		Long: `Upload a SOP document (` + strings.Join(constants.AcceptedExtensions, ", ") + `) and start an
analysis job. The job becomes the current session; any previous job's
local state is replaced.

By default the command stays attached and watches the job to completion,
then loads the results. Use --no-watch to submit and return immediately;
'jobs watch' re-attaches later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]

			if !job.AcceptedFile(filePath) {
				return fmt.Errorf("unsupported file type %q (accepted: %s)",
					filePath, strings.Join(constants.AcceptedExtensions, ", "))
			}

			mgr, prev, err := loadSession()
			if err != nil {
				return err
			}
			if prev.HasPendingEdits() && !confirm {
				if !confirmDiscardEdits(len(prev.View.Overlay)) {
					fmt.Println("Submission cancelled")
					return nil
				}
			}

			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
			ctrl := job.NewController(client, GetLogger(), interval)

			j, err := ctrl.Submit(ctx, filePath, prompt)
			if err != nil {
				return err
			}
			fmt.Printf("Submitted job %s\n", j.ID)

			s := &session.Session{Job: j, Activity: ctrl.Activity()}
			if err := mgr.Save(s); err != nil {
				return err
			}

			if noWatch {
				fmt.Println("Run 'racm-int jobs watch' to follow progress.")
				return nil
			}

			return watchAndLoad(ctx, mgr, s, ctrl, cfg.PageSize)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Extra analysis instructions passed with the document")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Submit and return without watching")
	cmd.Flags().BoolVarP(&confirm, "confirm", "y", false, "Skip the unsaved-edits prompt")

	return cmd
}

// watchAndLoad follows the controller's job to a terminal phase, persisting
// session state on the way out, and loads results on success.
func watchAndLoad(ctx context.Context, mgr *session.Manager, s *session.Session, ctrl *job.Controller, pageSize int) error {
	reporter := progress.NewCLIProgress()
	ctrl.OnTick(reporter.Update)

	watchErr := ctrl.Watch(ctx)

	s.Job = ctrl.Job()
	s.Activity = ctrl.Activity()

	if watchErr != nil {
		reporter.Error(watchErr)
		if err := mgr.Save(s); err != nil {
			GetLogger().Error().Err(err).Msg("Failed to persist session")
		}
		var failed *job.FailedError
		if errors.As(watchErr, &failed) {
			return fmt.Errorf("job %s failed: %s", s.Job.ID, failed.Message)
		}
		return watchErr
	}
	reporter.Finish()

	rs, err := ctrl.FetchResult(ctx)
	if err != nil {
		s.Activity = ctrl.Activity()
		if saveErr := mgr.Save(s); saveErr != nil {
			GetLogger().Error().Err(saveErr).Msg("Failed to persist session")
		}
		return fmt.Errorf("job completed but loading results failed: %w", err)
	}

	eng := table.NewEngine()
	eng.Load(rs)
	eng.SetPageSize(pageSize)

	s.Activity = ctrl.Activity()
	s.Result = rs
	s.View = eng.ViewState()
	if err := mgr.Save(s); err != nil {
		return err
	}

	fmt.Printf("Job %s completed: %d detailed, %d summary entries\n",
		s.Job.ID, len(rs.DetailedEntries), len(rs.SummaryEntries))
	if rs.Narrative != "" {
		fmt.Println("Run 'racm-int results summary' for the narrative summary.")
	}
	fmt.Println("Run 'racm-int results show' to browse entries.")
	return nil
}
