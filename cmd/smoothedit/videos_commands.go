package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect and manage uploaded videos",
	}

	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosProcessCommand(ctx))
	videosCmd.AddCommand(newVideosWatchCommand(ctx))
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))

	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			videos, err := client.ListVideos(cmd.Context())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(stdout, "No videos uploaded")
				return nil
			}

			rows := make([][]string, 0, len(videos))
			for _, video := range videos {
				rows = append(rows, []string{
					video.ID,
					video.OriginalName,
					string(video.Status),
					humanize.Bytes(uint64(video.SizeBytes)),
					humanize.Time(video.CreatedAt),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Name", "Status", "Size", "Uploaded"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show details for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			video, err := client.GetVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "ID:        %s\n", video.ID)
			fmt.Fprintf(stdout, "Name:      %s\n", video.OriginalName)
			fmt.Fprintf(stdout, "Status:    %s\n", video.Status)
			fmt.Fprintf(stdout, "Size:      %s\n", humanize.Bytes(uint64(video.SizeBytes)))
			fmt.Fprintf(stdout, "Uploaded:  %s\n", video.CreatedAt.Format(time.RFC3339))
			if video.ProcessedFilePath != "" {
				fmt.Fprintf(stdout, "Artifact:  %s\n", video.ProcessedFilePath)
			}

			if issues, err := video.Issues(); err == nil && issues.NeedsRepair() {
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, "Detected issues:")
				for _, issue := range []struct {
					label string
					count int
					flag  bool
				}{
					{label: "stuttered cuts", count: issues.StutteredCuts},
					{label: "audio sync", flag: issues.AudioSyncIssues},
					{label: "dropped frames", count: issues.DroppedFrames},
					{label: "corrupted sections", count: issues.CorruptedSections},
					{label: "wind noise", flag: issues.WindNoise},
				} {
					switch {
					case issue.count > 0:
						fmt.Fprintf(stdout, "  - %s (%d)\n", issue.label, issue.count)
					case issue.flag:
						fmt.Fprintf(stdout, "  - %s\n", issue.label)
					}
				}
			}

			if fixes, err := video.Fixes(); err == nil {
				applied := appliedFixLabels(fixes)
				if len(applied) > 0 {
					fmt.Fprintln(stdout)
					fmt.Fprintf(stdout, "Fixes applied: %s\n", strings.Join(applied, ", "))
				}
				if len(fixes.DegradedStages) > 0 {
					fmt.Fprintf(stdout, "Skipped repairs: %s\n", strings.Join(fixes.DegradedStages, ", "))
				}
			}
			return nil
		},
	}
}

func appliedFixLabels(fixes store.FixesApplied) []string {
	var labels []string
	if fixes.StutteredCutsFixed > 0 {
		labels = append(labels, fmt.Sprintf("cut smoothing (%d)", fixes.StutteredCutsFixed))
	}
	if fixes.AudioSyncFixed {
		labels = append(labels, "audio resync")
	}
	if fixes.WindNoiseRemoved {
		labels = append(labels, "wind noise removal")
	}
	if fixes.FramesRecovered > 0 {
		labels = append(labels, fmt.Sprintf("frame recovery (%d)", fixes.FramesRecovered))
	}
	if fixes.SectionsRepaired > 0 {
		labels = append(labels, fmt.Sprintf("section repair (%d)", fixes.SectionsRepaired))
	}
	return labels
}

func newVideosProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <video-id>",
		Short: "Start repair processing for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.StartProcessing(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processing started for %s\n", args[0])
			return nil
		},
	}
}

func newVideosWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <video-id>",
		Short: "Poll processing progress until the job finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			for {
				poll, err := client.PollStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				step := poll.CurrentStep
				if step == "" {
					step = "-"
				}
				fmt.Fprintf(stdout, "%s %3d%% %s\n", poll.Status, poll.Progress, step)

				switch poll.Status {
				case string(store.VideoCompleted):
					return nil
				case string(store.VideoFailed):
					if poll.ErrorMessage != "" {
						return fmt.Errorf("processing failed: %s", poll.ErrorMessage)
					}
					return fmt.Errorf("processing failed")
				}

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <video-id>",
		Short: "Delete a video and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteVideo(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
