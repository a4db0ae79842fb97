package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var manualFileExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	var process bool

	cmd := &cobra.Command{
		Use:   "add-file <path>",
		Short: "Register a video file for repair processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			if _, ok := manualFileExtensions[ext]; !ok {
				return fmt.Errorf("unsupported file extension %q", ext)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			video, err := client.RegisterUpload(cmd.Context(), filepath.Base(absPath), absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as video %s\n", filepath.Base(absPath), video.ID)

			if process {
				if err := client.StartProcessing(cmd.Context(), video.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processing started for %s\n", video.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "Start processing immediately after registration")
	return cmd
}
