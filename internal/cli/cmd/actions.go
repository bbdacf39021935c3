package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"serverhub/internal/domain"
)

var actionsLimit int

var actionsCmd = &cobra.Command{
	Use:   "actions [serverId]",
	Short: "List recently dispatched commands",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serverID := ""
		if len(args) == 1 {
			serverID = args[0]
		}
		handleListActions(serverID, actionsLimit)
	},
}

func init() {
	actionsCmd.Flags().IntVar(&actionsLimit, "limit", 20, "Maximum number of records")
	RootCmd.AddCommand(actionsCmd)
}

func handleListActions(serverID string, limit int) {
	store := openJournal()
	defer store.Close()

	records, err := store.ListActions(serverID, limit)
	if err != nil {
		log.Fatalf("Error listing actions: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No commands recorded.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSERVER\tACTION\tOUTCOME\tTOOK\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ServerID, rec.Action, rec.Outcome, took(rec), rec.Error)
	}
	w.Flush()
}

func took(rec domain.ActionRecord) string {
	if rec.FinishedAt == nil {
		return "-"
	}
	return rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
}
