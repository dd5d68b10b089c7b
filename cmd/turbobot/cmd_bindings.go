package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdobrica/turbobot/common/environment"
	"github.com/bdobrica/turbobot/internal/turbobot/config"
	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
)

func newBindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Inspect the local credential file",
	}
	cmd.PersistentFlags().String("file", environment.StringOr("TURBOBOT_DATA_FILE", config.DefaultDataFile), "credential file")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List bound users",
			Args:  cobra.NoArgs,
			RunE:  runBindingsList,
		},
		&cobra.Command{
			Use:   "remove <user>",
			Short: "Forget a binding without contacting the service",
			Args:  cobra.ExactArgs(1),
			RunE:  runBindingsRemove,
		},
	)
	return cmd
}

func openBindings(cmd *cobra.Command) (*credentials.FileStore, error) {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}
	return credentials.OpenFile(path)
}

func runBindingsList(cmd *cobra.Command, _ []string) error {
	store, err := openBindings(cmd)
	if err != nil {
		return err
	}
	bindings := store.List()
	if len(bindings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bindings.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tBOUND AT")
	for _, b := range bindings {
		fmt.Fprintf(w, "%s\t%s\n", b.UserID, b.BoundAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runBindingsRemove(cmd *cobra.Command, args []string) error {
	store, err := openBindings(cmd)
	if err != nil {
		return err
	}
	if err := store.Unbind(args[0]); err != nil {
		return fmt.Errorf("remove %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed binding for %s.\n", args[0])
	return nil
}
