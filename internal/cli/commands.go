package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/spf13/cobra"
)

func newAddCmd(o *rootOptions) *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "add <handle> <channel>",
		Short: "Start relaying an account to a channel (updates the channel if the account exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := common.NormalizeHandle(args[0])
			if err != nil {
				return err
			}
			channel := args[1]
			if err := common.ValidateChannel(channel); err != nil {
				return err
			}
			return o.withStore(cmd, func(ctx context.Context, s *Store) error {
				id, err := s.Accounts.Upsert(ctx, handle, channel, sourceID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "@%s -> %s (id %d)\n", handle, channel, id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sourceID, "source-id", "", "numeric account id on the source side")
	return cmd
}

func newListCmd(o *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStore(cmd, func(ctx context.Context, s *Store) error {
				list, err := s.Accounts.ListActive(ctx)
				if all {
					list, err = s.Accounts.ListAll(ctx)
				}
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no accounts")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "HANDLE\tCHANNEL\tACTIVE\tCURSOR\tPUBLISHED")
				for _, a := range list {
					n, err := s.Ledger.CountPublished(ctx, &a.ID)
					if err != nil {
						return err
					}
					cursor := "-"
					if a.HasCursor() {
						cursor = a.Cursor
					}
					fmt.Fprintf(w, "@%s\t%s\t%t\t%s\t%d\n", a.Handle, a.Channel, a.Active, cursor, n)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled accounts")
	return cmd
}

func newSetActiveCmd(o *rootOptions, use string, active bool) *cobra.Command {
	short := "Pause polling of an account"
	if active {
		short = "Resume polling of an account"
	}
	return &cobra.Command{
		Use:   use + " <handle>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := common.NormalizeHandle(args[0])
			if err != nil {
				return err
			}
			return o.withStore(cmd, func(ctx context.Context, s *Store) error {
				a, err := s.Accounts.Get(ctx, handle)
				if err != nil {
					return fmt.Errorf("account @%s: %w", handle, err)
				}
				if err := s.Accounts.SetActive(ctx, a.ID, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "@%s %sd\n", handle, use)
				return nil
			})
		},
	}
}

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show delivery totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStore(cmd, func(ctx context.Context, s *Store) error {
				list, err := s.Accounts.ListAll(ctx)
				if err != nil {
					return err
				}
				total, err := s.Ledger.CountPublished(ctx, nil)
				if err != nil {
					return err
				}
				active := 0
				for _, a := range list {
					if a.Active {
						active++
					}
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "accounts:  %d (%d active)\n", len(list), active)
				fmt.Fprintf(out, "published: %d\n", total)
				return nil
			})
		},
	}
}

func newErrorsCmd(o *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the most recent error records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return o.withStore(cmd, func(ctx context.Context, s *Store) error {
				recs, err := s.Errors.Recent(ctx, limit)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no errors")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tCATEGORY\tHANDLE\tMESSAGE")
				for _, r := range recs {
					handle, _ := r.Context["handle"].(string)
					if handle == "" {
						handle = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Category, handle, r.Message)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	return cmd
}
