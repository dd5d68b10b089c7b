package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdobrica/turbobot/common/environment"
	"github.com/bdobrica/turbobot/internal/turbobot/config"
	"github.com/bdobrica/turbobot/internal/turbobot/store"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit log",
	}
	cmd.PersistentFlags().String("db", environment.StringOr("TURBOBOT_DB_PATH", config.DefaultDBPath), "SQLite database")

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent audit entries",
		Args:  cobra.NoArgs,
		RunE:  runAuditTail,
	}
	tail.Flags().IntP("lines", "n", 20, "number of entries")
	cmd.AddCommand(tail)
	return cmd
}

func runAuditTail(cmd *cobra.Command, _ []string) error {
	dbPath, err := cmd.Flags().GetString("db")
	if err != nil {
		return err
	}
	n, err := cmd.Flags().GetInt("lines")
	if err != nil {
		return err
	}

	db, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.TailAudit(cmd.Context(), n)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTRACE\tPLATFORM\tACTOR\tACTION\tTARGET\tRESULT\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.TraceID, e.Platform, e.Actor, e.Action,
			e.Target.String, e.Result, e.ErrorMessage.String)
	}
	return w.Flush()
}
