package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"serverhub/internal/storage"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Manage the NodePort range used for new servers",
}

var portsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get port range",
	Run: func(cmd *cobra.Command, args []string) {
		handleGetPortRange()
	},
}

var portsStart, portsEnd int
var portsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set port range",
	Run: func(cmd *cobra.Command, args []string) {
		if portsStart == 0 || portsEnd == 0 {
			log.Fatal("Error: You must specify both --start and --end flags to update the port range")
		}
		handleSetPortRange(portsStart, portsEnd)
	},
}

func init() {
	portsSetCmd.Flags().IntVar(&portsStart, "start", 0, "Start port")
	portsSetCmd.Flags().IntVar(&portsEnd, "end", 0, "End port")
	portsCmd.AddCommand(portsGetCmd, portsSetCmd)

	RootCmd.AddCommand(portsCmd)
}

func openJournal() *storage.GormStore {
	store, err := storage.NewGormStore(Config.DatabasePath)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	return store
}

func handleGetPortRange() {
	store := openJournal()
	defer store.Close()

	start, end, err := store.GetPortRange()
	if err != nil {
		log.Fatalf("Error getting port range: %v", err)
	}
	fmt.Println("\n--- PORT CONFIGURATION ---")
	fmt.Printf("Start port: %d\n", start)
	fmt.Printf("End port:   %d\n", end)
	fmt.Printf("Range:      %d ports available\n", end-start+1)
}

func handleSetPortRange(start, end int) {
	store := openJournal()
	defer store.Close()

	if err := store.SetPortRange(start, end); err != nil {
		log.Fatalf("Error setting port range: %v", err)
	}
	fmt.Println("Port configuration updated successfully!")
	fmt.Printf("New range: %d - %d\n", start, end)
}
