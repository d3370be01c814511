package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"readlog/services/readlog/internal/app"
)

func newSuggestCmd(open Opener) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "suggest <title>",
		Short: "Look up matching titles in Open Library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.resolve(); err != nil {
				return err
			}
			q := strings.Join(args, " ")
			return withApp(cmd, open, func(a *app.App) error {
				items, err := a.Suggest(cmd.Context(), q)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ok, err := out.structured(w, items); ok {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(w, "No suggestions.")
					return nil
				}
				t := newTable(w, "#", "TITLE", "AUTHOR")
				for i, s := range items {
					t.row(strconv.Itoa(i+1), truncate(s.Title, 50), truncate(s.Author, 30))
				}
				return t.flush()
			})
		},
	}
	out.addFlags(cmd)
	return cmd
}

func newAnnouncementsCmd(open Opener) *cobra.Command {
	var out outputOptions
	var limit int64

	cmd := &cobra.Command{
		Use:   "announcements",
		Short: "Show recent announcements from the Redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.resolve(); err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				msgs, ok, err := a.RecentAnnouncements(cmd.Context(), limit)
				if !ok {
					return fmt.Errorf("no announcement stream configured (set announceStream)")
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ok, err := out.structured(w, msgs); ok {
					return err
				}
				t := newTable(w, "SEQ", "AT", "TEXT")
				for _, m := range msgs {
					t.row(strconv.FormatUint(m.Seq, 10), m.At.Local().Format(time.DateTime), m.Text)
				}
				return t.flush()
			})
		},
	}
	out.addFlags(cmd)
	cmd.Flags().Int64VarP(&limit, "limit", "n", 10, "Number of announcements")
	return cmd
}
