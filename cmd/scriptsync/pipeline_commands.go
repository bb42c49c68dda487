package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scriptsync/internal/config"
	"scriptsync/internal/deps"
	"scriptsync/internal/pipeline"
	"scriptsync/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transcribe a video, extract its script, and write aligned subtitles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireBinaries(true, true); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				outcome, err := p.Run(runCtx, req)
				printOutcome(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.Video, "video", "", "Video file to transcribe")
	cmd.Flags().StringVar(&req.Script, "script", "", "Script document (PDF)")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Subtitle output path (default: next to the video)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Recompute stages even when a completion marker exists")
	_ = cmd.MarkFlagRequired("video")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Run the speech recogniser and save its transcript JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireBinaries(true, false); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				outcome, err := p.Transcribe(runCtx, req)
				printOutcome(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.Video, "video", "", "Video file to transcribe")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Transcript output path (default: <video>.transcript.json)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Recompute even when a completion marker exists")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract speaker-labelled reference text from a script document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.PageLimit < 0 {
				return fmt.Errorf("--limit-pages must be zero or positive")
			}
			if err := ctx.requireBinaries(false, true); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				outcome, err := p.Extract(runCtx, req)
				printOutcome(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.Script, "script", "", "Script document (PDF)")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Reference output path (default: <script>.reference.txt)")
	cmd.Flags().IntVar(&req.PageLimit, "limit-pages", 0, "Extract only the first N pages (0 uses reference.page_limit)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Recompute even when a completion marker exists")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Reconcile an existing transcript with reference text and write subtitles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				outcome, err := p.Align(runCtx, req)
				printOutcome(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.TranscriptPath, "transcript", "", "Recogniser JSON (WhisperX output)")
	cmd.Flags().StringVar(&req.ReferencePath, "reference", "", "Reference text file")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Subtitle output path (default: next to the transcript)")
	_ = cmd.MarkFlagRequired("transcript")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func newReparseCommand(ctx *commandContext) *cobra.Command {
	var rawPath, format, output string
	cmd := &cobra.Command{
		Use:   "reparse",
		Short: "Parse a retained oracle response and write subtitles without calling the oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "" && format != config.ResponseDelimited && format != config.ResponseStructured {
				return fmt.Errorf("--format must be %q or %q", config.ResponseDelimited, config.ResponseStructured)
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				outcome, err := p.Reparse(runCtx, rawPath, format, output)
				printOutcome(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&rawPath, "raw", "", "Raw oracle response file")
	cmd.Flags().StringVar(&format, "format", "", "Response shape: delimited or structured (default: oracle.response_format)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Subtitle output path (default: next to the raw file)")
	_ = cmd.MarkFlagRequired("raw")
	return cmd
}

// requireBinaries fails fast when an external tool a stage shells out to is
// missing from PATH.
func (c *commandContext) requireBinaries(transcribe, extract bool) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	missing := deps.MissingRequired(preflight.CheckSystemDeps(cfg, transcribe, extract))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return fmt.Errorf("missing required tools: %s; run 'scriptsync doctor' for details", strings.Join(names, ", "))
}

func printOutcome(out io.Writer, outcome *pipeline.Outcome) {
	if outcome == nil {
		return
	}
	fmt.Fprintf(out, "Run %s: %s\n", outcome.RunID, outcome.Status)
	if len(outcome.Cached) > 0 {
		fmt.Fprintf(out, "  Reused:      %s\n", strings.Join(outcome.Cached, ", "))
	}
	if outcome.Segments > 0 {
		fmt.Fprintf(out, "  Segments:    %d\n", outcome.Segments)
	}
	if outcome.Pages > 0 {
		fmt.Fprintf(out, "  Pages:       %d", outcome.Pages)
		if n := len(outcome.FailedPages); n > 0 {
			fmt.Fprintf(out, " (%d failed: %v)", n, outcome.FailedPages)
		}
		fmt.Fprintln(out)
	}
	if outcome.Model != "" {
		fmt.Fprintf(out, "  Model:       %s (fallback: %s)\n", outcome.Model, yesNo(outcome.FellBack))
		fmt.Fprintf(out, "  Tokens:      %d in / %d out\n", outcome.Usage.InputTokens, outcome.Usage.OutputTokens)
	}
	if outcome.Events > 0 || outcome.Dropped > 0 {
		fmt.Fprintf(out, "  Events:      %d (dropped %d)\n", outcome.Events, outcome.Dropped)
	}
	if outcome.OutputPath != "" {
		fmt.Fprintf(out, "  Output:      %s\n", outcome.OutputPath)
	}
	if outcome.ReviewPath != "" {
		fmt.Fprintf(out, "  Review:      %s\n", outcome.ReviewPath)
	}
	if outcome.LogPath != "" {
		fmt.Fprintf(out, "  Log:         %s\n", outcome.LogPath)
	}
}
