package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDraftsCommand(ctx *commandContext) *cobra.Command {
	draftsCmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and manage saved drafts",
	}

	draftsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			drafts, err := client.ListDrafts(cmd.Context())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(drafts) == 0 {
				fmt.Fprintln(stdout, "No drafts saved")
				return nil
			}

			rows := make([][]string, 0, len(drafts))
			for _, draft := range drafts {
				rows = append(rows, []string{
					draft.ID,
					draft.Name,
					draft.VideoID,
					humanize.Bytes(uint64(draft.FileSize)),
					yesNo(draft.AutoCreated),
					humanize.Time(draft.LastModified),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Name", "Video", "Size", "Auto", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	})

	draftsCmd.AddCommand(&cobra.Command{
		Use:   "delete <draft-id>",
		Short: "Delete a saved draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteDraft(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted draft %s\n", args[0])
			return nil
		},
	})

	return draftsCmd
}
