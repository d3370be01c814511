package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"readlog/services/readlog/internal/app"
)

// Opener builds the app a command runs against. The caller closes it.
type Opener func(ctx context.Context) (*app.App, error)

// NewRootCmd creates the readlogctl command tree.
func NewRootCmd(open Opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "readlogctl",
		Short: "Manage your reading list from the terminal",
		Long: `Add, list, filter and update the books on your reading list.

readlogctl works on the same storage backend as the readlog service,
selected through config.yaml or READLOG_* environment variables.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.AddCommand(newListCmd(open))
	root.AddCommand(newAddCmd(open))
	root.AddCommand(newRemoveCmd(open))
	root.AddCommand(newCycleCmd(open))
	root.AddCommand(newEditCmd(open))
	root.AddCommand(newClearCmd(open))
	root.AddCommand(newReseedCmd(open))
	root.AddCommand(newSuggestCmd(open))
	root.AddCommand(newAnnouncementsCmd(open))
	return root
}

// withApp opens the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, open Opener, fn func(*app.App) error) error {
	a, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
