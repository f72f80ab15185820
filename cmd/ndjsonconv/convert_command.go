package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ndjsonconv/internal/convert"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var formatID string
	var outputPath string
	var noImages bool
	var jsonOutput bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "convert <file.ndjson>",
		Short: "Convert an NDJSON export into a dataset archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				if concurrency <= 0 {
					return fmt.Errorf("--concurrency must be positive, got %d", concurrency)
				}
				cfg.Download.Concurrency = concurrency
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req := convert.Request{
				FilePath:      strings.TrimSpace(args[0]),
				Format:        formatID,
				OutputPath:    strings.TrimSpace(outputPath),
				IncludeImages: !noImages,
			}

			stderr := cmd.ErrOrStderr()
			renderer := newProgressRenderer(stderr, isTerminal(stderr))
			progress := make(chan convert.ProgressEvent, 16)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for ev := range progress {
					renderer.render(ev)
				}
			}()

			result, err := convert.New(cfg, logger).Run(runCtx, req, progress)
			close(progress)
			<-drained
			renderer.finish()
			if err != nil {
				if errors.Is(err, convert.ErrCancelled) {
					fmt.Fprintln(stderr, "Conversion cancelled; partial output removed")
				}
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result))
			if result.AllDownloadsFailed() {
				fmt.Fprintln(stderr, "Warning: no image could be downloaded; the archive contains labels only for images without a URL")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatID, "format", "f", "", "Target format id or alias (see `ndjsonconv formats`)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path of the zip archive to write")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Write labels and config files only, skip image downloads")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override download.concurrency for this run")
	_ = cmd.MarkFlagRequired("format")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func renderSummary(res *convert.Result) string {
	fields := [][2]string{
		{"Archive", res.ArchivePath},
		{"Format", string(res.Format)},
		{"Task", res.Task.Label()},
		{"Files", strconv.Itoa(res.FileCount)},
		{"Images", strconv.Itoa(res.ImageCount)},
	}
	if res.DownloadTotal != nil && res.FailedDownloads != nil {
		fields = append(fields, [2]string{"Failed downloads", fmt.Sprintf("%d of %d", *res.FailedDownloads, *res.DownloadTotal)})
	}
	fields = append(fields,
		[2]string{"Dropped annotations", strconv.Itoa(res.DroppedAnnotations)},
		[2]string{"Job", res.JobID},
	)
	return renderFields(fields, alignLeft)
}
