package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/media"
	"github.com/maauso/reframe-api/internal/storage"
	"github.com/maauso/reframe-api/internal/validation"
	"github.com/maauso/reframe-api/internal/workflow"
)

type processOptions struct {
	prompt             string
	aspectRatio        string
	maxWait            time.Duration
	pollInterval       time.Duration
	skipDimensionCheck bool
	ffprobePath        string
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Validate, upload and reframe a video, then wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Reframing prompt (required)")
	ratios := make([]string, 0, len(job.AspectRatios()))
	for _, a := range job.AspectRatios() {
		ratios = append(ratios, string(a))
	}
	cmd.Flags().StringVarP(&opts.aspectRatio, "aspect-ratio", "a", string(job.AspectLandscape), "Output aspect ratio: "+strings.Join(ratios, ", "))
	cmd.Flags().DurationVar(&opts.maxWait, "max-wait", workflow.DefaultMaxWait, "Maximum time to wait for the reframe job")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", workflow.DefaultPollInterval, "Time between status checks")
	cmd.Flags().BoolVar(&opts.skipDimensionCheck, "skip-dimension-check", false, "Do not require the input to be exactly 512x512")
	cmd.Flags().StringVar(&opts.ffprobePath, "ffprobe", "ffprobe", "Path to the ffprobe binary")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runProcess(cmd *cobra.Command, ctx *commandContext, path string, opts processOptions) error {
	logger := ctx.logger()

	ratio, err := job.ParseAspectRatio(opts.aspectRatio)
	if err != nil {
		return fmt.Errorf("%w: %q", err, opts.aspectRatio)
	}
	wait := workflow.WaitOptions{MaxWait: opts.maxWait, PollInterval: opts.pollInterval}
	if err := wait.CheckBounds(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read video: %w", err)
	}
	mimeType := mimetype.Detect(data).String()

	// One run per state directory at a time
	stateDir, err := ctx.sessionDir()
	if err != nil {
		return err
	}
	lock := flock.New(filepath.Join(stateDir, "session.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		return workflow.ErrWorkflowInFlight
	}
	defer func() { _ = lock.Unlock() }()

	temp, err := storage.NewLocalStorage(filepath.Join(stateDir, "tmp"))
	if err != nil {
		return err
	}
	limits := validation.DefaultLimits()
	limits.CheckDimensions = !opts.skipDimensionCheck
	gate := validation.NewGate(limits, media.NewProber(opts.ffprobePath, temp))

	client, err := ctx.client()
	if err != nil {
		return err
	}
	controller := workflow.NewController(client, client,
		workflow.WithGate(gate),
		workflow.WithWaitDefaults(wait),
		workflow.WithLogger(logger),
	)

	session := workflow.NewSession("")
	input := workflow.Input{
		FileName:    filepath.Base(path),
		MIMEType:    mimeType,
		Data:        data,
		Prompt:      opts.prompt,
		AspectRatio: ratio,
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	if err := controller.Start(runCtx, session, input); err != nil {
		return err
	}
	if !ctx.jsonOutput {
		fmt.Fprintf(cmd.ErrOrStderr(), "Processing %s (%s, %s)\n", input.FileName, mimeType, humanize.IBytes(uint64(len(data))))
	}
	followSession(cmd, session, ctx.jsonOutput)

	snap := session.Snapshot()
	if ctx.jsonOutput {
		if err := writeJSON(cmd, snap.Outcome); err != nil {
			return err
		}
	} else if snap.Outcome != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(snap.Outcome))
	}

	if snap.State != workflow.StateCompleted {
		if snap.Error != "" {
			return errors.New(snap.Error)
		}
		return fmt.Errorf("workflow ended in state %s", snap.State)
	}
	return nil
}

// followSession prints state changes until the run ends.
func followSession(cmd *cobra.Command, session *workflow.Session, quiet bool) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastState workflow.State
	var lastProgress string
	report := func() {
		if quiet {
			return
		}
		snap := session.Snapshot()
		progress := ""
		if snap.Progress != nil {
			progress = strconv.Itoa(int(*snap.Progress*100)) + "%"
		}
		if snap.State == lastState && progress == lastProgress {
			return
		}
		lastState, lastProgress = snap.State, progress
		line := string(snap.State)
		if snap.JobID != "" {
			line += " job=" + snap.JobID
		}
		if progress != "" {
			line += " progress=" + progress
		}
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}

	done := session.Done()
	for {
		select {
		case <-done:
			report()
			return
		case <-ticker.C:
			report()
		}
	}
}

func renderOutcome(o *workflow.Outcome) string {
	completed := ""
	elapsed := ""
	if !o.CompletedAt.IsZero() {
		completed = o.CompletedAt.Format(time.RFC3339)
		elapsed = o.CompletedAt.Sub(o.CreatedAt).Round(time.Second).String()
	}
	return renderFields([][2]string{
		{"Session", o.SessionID},
		{"Job ID", o.JobID},
		{"Status", string(o.Status)},
		{"Original video", o.OriginalVideo},
		{"Reframed video", o.ReframedVideo},
		{"Prompt", o.Prompt},
		{"Aspect ratio", string(o.AspectRatio)},
		{"Output size", fmt.Sprintf("%dx%d", o.Width, o.Height)},
		{"Created", humanize.Time(o.CreatedAt)},
		{"Completed", completed},
		{"Elapsed", elapsed},
		{"Error", o.Error},
	})
}
