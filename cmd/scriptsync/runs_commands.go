package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scriptsync/internal/config"
	"scriptsync/internal/runstore"
)

type runJSON struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	VideoPath    string    `json:"video_path,omitempty"`
	ScriptPath   string    `json:"script_path,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	WorkDir      string    `json:"work_dir,omitempty"`
	Model        string    `json:"model,omitempty"`
	FellBack     bool      `json:"fell_back"`
	Events       int       `json:"events"`
	Dropped      int       `json:"dropped"`
	ErrorMessage string    `json:"error,omitempty"`
	ReviewReason string    `json:"review_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		statuses   []string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *runstore.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit, filter...)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if jsonOutput {
					out := make([]runJSON, 0, len(runs))
					for _, run := range runs {
						out = append(out, toRunJSON(run))
					}
					return writeJSON(cmd, out)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRunsTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (running, completed, failed, review)")
	return cmd
}

func parseStatuses(values []string) ([]runstore.Status, error) {
	out := make([]runstore.Status, 0, len(values))
	for _, value := range values {
		status, ok := runstore.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}

func renderRunsTable(runs []*runstore.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			string(run.Status),
			run.Stage,
			strconv.Itoa(run.EventCount),
			strconv.Itoa(run.DroppedCount),
			run.Model,
			run.UpdatedAt.Local().Format("2006-01-02 15:04"),
			runDetail(run),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Stage", "Events", "Dropped", "Model", "Updated", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func runDetail(run *runstore.Run) string {
	switch run.Status {
	case runstore.StatusReview:
		if run.ReviewReason != "" {
			return run.ReviewReason
		}
		return run.ErrorMessage
	case runstore.StatusFailed:
		return run.ErrorMessage
	default:
		return run.OutputPath
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func toRunJSON(run *runstore.Run) runJSON {
	return runJSON{
		ID:           run.ID,
		Status:       string(run.Status),
		Stage:        run.Stage,
		VideoPath:    run.VideoPath,
		ScriptPath:   run.ScriptPath,
		OutputPath:   run.OutputPath,
		WorkDir:      run.WorkDir,
		Model:        run.Model,
		FellBack:     run.FellBack,
		Events:       run.EventCount,
		Dropped:      run.DroppedCount,
		ErrorMessage: run.ErrorMessage,
		ReviewReason: run.ReviewReason,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}

type oracleCallJSON struct {
	Attempt      int    `json:"attempt"`
	Model        string `json:"model"`
	Succeeded    bool   `json:"succeeded"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

type usageJSON struct {
	RunID        string           `json:"run_id"`
	Calls        []oracleCallJSON `json:"calls"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
	TotalTokens  int              `json:"total_tokens"`
}

func toUsageJSON(runID string, calls []runstore.OracleCall, totals runstore.UsageTotals) usageJSON {
	out := usageJSON{
		RunID:        runID,
		Calls:        make([]oracleCallJSON, 0, len(calls)),
		InputTokens:  totals.InputTokens,
		OutputTokens: totals.OutputTokens,
		TotalTokens:  totals.TotalTokens,
	}
	for _, call := range calls {
		out.Calls = append(out.Calls, oracleCallJSON{
			Attempt:      call.Attempt,
			Model:        call.Model,
			Succeeded:    call.Succeeded,
			InputTokens:  call.InputTokens,
			OutputTokens: call.OutputTokens,
			TotalTokens:  call.TotalTokens,
			DurationMS:   call.Duration.Milliseconds(),
			Error:        call.ErrorMessage,
		})
	}
	return out
}

func newUsageCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "usage <run-id>",
		Short: "Show oracle calls and token usage for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *runstore.Store) error {
				run, err := resolveRun(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				calls, err := store.OracleCalls(cmd.Context(), run.ID)
				if err != nil {
					return fmt.Errorf("load oracle calls: %w", err)
				}
				totals, err := store.Usage(cmd.Context(), run.ID)
				if err != nil {
					return fmt.Errorf("load usage: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, toUsageJSON(run.ID, calls, totals))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
				if len(calls) == 0 {
					fmt.Fprintln(out, "No oracle calls recorded")
					return nil
				}
				rows := make([][]string, 0, len(calls))
				for _, call := range calls {
					result := "ok"
					if !call.Succeeded {
						result = call.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.Itoa(call.Attempt),
						call.Model,
						strconv.Itoa(call.InputTokens),
						strconv.Itoa(call.OutputTokens),
						call.Duration.Round(time.Millisecond).String(),
						result,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Attempt", "Model", "In", "Out", "Duration", "Result"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
				))
				fmt.Fprintf(out, "Total: %d calls, %d input tokens, %d output tokens\n", totals.Calls, totals.InputTokens, totals.OutputTokens)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

// resolveRun accepts a full run id or a unique prefix as shown by 'runs'.
func resolveRun(ctx context.Context, store *runstore.Store, id string) (*runstore.Run, error) {
	id = strings.TrimSpace(id)
	run, err := store.GetRun(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, runstore.ErrRunNotFound) {
		return nil, fmt.Errorf("load run: %w", err)
	}
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var match *runstore.Run
	for _, candidate := range runs {
		if !strings.HasPrefix(candidate.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
		}
		match = candidate
	}
	if match == nil {
		return nil, errors.New("run not found: " + id)
	}
	return match, nil
}
