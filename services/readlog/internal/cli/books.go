package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"readlog/pkg/domain"
	"readlog/pkg/view"
	"readlog/services/readlog/internal/app"
)

func newListCmd(open Opener) *cobra.Command {
	var out outputOptions
	var q, status, sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books on the reading list",
		Long: `List books, optionally filtered and sorted.

Examples:
  readlogctl list                       # Everything, by title
  readlogctl list --q garcia            # Title or author contains "garcia"
  readlogctl list --status reading      # Only books being read
  readlogctl list --sort author-desc    # Sort by author, Z to A
  readlogctl list -o yaml               # Machine-readable output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.resolve(); err != nil {
				return err
			}
			filter := domain.Filter{Query: q, Status: domain.StatusAll}
			if status != "" && status != domain.StatusAll {
				parsed, ok := domain.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (use toread, reading, finished or all)", status)
				}
				filter.Status = string(parsed)
			}
			spec, err := domain.ParseSortSpec(sort)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				books, stats := a.List(filter, spec)
				w := cmd.OutOrStdout()
				if ok, err := out.structured(w, books); ok {
					return err
				}
				if len(books) == 0 {
					fmt.Fprintln(w, view.EmptyMessage)
					return nil
				}
				t := newTable(w, "ID", "TITLE", "AUTHOR", "STATUS")
				for _, b := range books {
					t.row(strconv.Itoa(b.ID), truncate(b.Title, 40), truncate(b.Author, 30), b.Status.Label())
				}
				if err := t.flush(); err != nil {
					return err
				}
				fmt.Fprintf(w, "\nTotal: %d  Por leer: %d  Leyendo: %d  Terminado: %d\n",
					stats.Total, stats.ToRead, stats.Reading, stats.Finished)
				return nil
			})
		},
	}

	out.addFlags(cmd)
	cmd.Flags().StringVar(&q, "q", "", "Search title and author, ignoring case and accents")
	cmd.Flags().StringVarP(&status, "status", "s", domain.StatusAll, "Filter by status (toread, reading, finished, all)")
	cmd.Flags().StringVar(&sort, "sort", domain.DefaultSort().String(), "Sort as field-direction (title|author|status)-(asc|desc)")
	return cmd
}

func newAddCmd(open Opener) *cobra.Command {
	var author, status, cover string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a book",
		Example: `  readlogctl add "Cien años de soledad" --author "Gabriel García Márquez"
  readlogctl add Dune --author "Frank Herbert" --status reading`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := view.AddSubmitted{
				Title:  strings.Join(args, " "),
				Author: author,
				Status: domain.BookStatus(strings.ToLower(strings.TrimSpace(status))),
				Cover:  cover,
			}
			return dispatch(cmd, open, ev)
		},
	}
	cmd.Flags().StringVarP(&author, "author", "a", "", "Author (required)")
	cmd.Flags().StringVarP(&status, "status", "s", string(domain.StatusToRead), "Initial status")
	cmd.Flags().StringVar(&cover, "cover", "", "Cover image URL")
	return cmd
}

func newRemoveCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a book",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				if _, ok := a.Book(id); !ok {
					return fmt.Errorf("book %d not found", id)
				}
				return announce(cmd, a, view.DeleteClicked{ID: id})
			})
		},
	}
}

func newCycleCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <id>",
		Short: "Advance a book to its next status (toread, reading, finished)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return dispatch(cmd, open, view.StatusCycleClicked{ID: id})
		},
	}
}

func newEditCmd(open Opener) *cobra.Command {
	var title, author, status, cover string

	cmd := &cobra.Command{
		Use:     "edit <id>",
		Short:   "Change a book's fields",
		Example: `  readlogctl edit 3 --status finished --cover https://covers.openlibrary.org/b/id/1-M.jpg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch domain.BookPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("author") {
				patch.Author = &author
			}
			if flags.Changed("status") {
				s := domain.BookStatus(strings.ToLower(strings.TrimSpace(status)))
				patch.Status = &s
			}
			if flags.Changed("cover") {
				patch.Cover = &cover
			}
			if patch == (domain.BookPatch{}) {
				return fmt.Errorf("nothing to change: pass --title, --author, --status or --cover")
			}
			return dispatch(cmd, open, view.EditSubmitted{ID: id, Patch: patch})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&author, "author", "", "New author")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&cover, "cover", "", "New cover URL (empty clears it)")
	return cmd
}

func newClearCmd(open Opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the reading list without --yes")
			}
			return dispatch(cmd, open, view.ClearConfirmed{})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm")
	return cmd
}

func newReseedCmd(open Opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reseed",
		Short: "Replace the reading list with the sample books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to replace the reading list without --yes")
			}
			return dispatch(cmd, open, view.ReseedConfirmed{})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm")
	return cmd
}

func dispatch(cmd *cobra.Command, open Opener, ev view.Event) error {
	return withApp(cmd, open, func(a *app.App) error {
		return announce(cmd, a, ev)
	})
}

// announce applies ev and prints the resulting announcement.
func announce(cmd *cobra.Command, a *app.App, ev view.Event) error {
	frame, err := a.Dispatch(cmd.Context(), ev)
	if err != nil {
		return err
	}
	if text := frame.Announcement.Text; text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	return nil
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book id %q", raw)
	}
	return id, nil
}
