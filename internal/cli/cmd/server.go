package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"serverhub/internal/app"
	"serverhub/internal/domain"
	"serverhub/internal/server"
	"serverhub/internal/stream"
	"serverhub/internal/view"
	"serverhub/pkg/sdk"
)

const snapshotTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage servers",
}

var createOpts = server.DefaultOptions()

var serverCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new server",
	Run: func(cmd *cobra.Command, args []string) {
		handleCreate(createOpts)
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all servers",
	Run: func(cmd *cobra.Command, args []string) {
		handleList()
	},
}

var serverStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Start a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleCommand(domain.ActionStart, args[0])
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleCommand(domain.ActionStop, args[0])
	},
}

var deleteYes bool

var serverDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleDelete(args[0], deleteYes, os.Stdin)
	},
}

func init() {
	serverCreateCmd.Flags().StringVar(&createOpts.Name, "name", "", "Server name")
	serverCreateCmd.Flags().IntVar(&createOpts.Port, "port", 0, "NodePort (default: lowest free port in range)")
	serverCreateCmd.Flags().StringVar(&createOpts.Motd, "motd", server.DefaultMotd, "Message of the day")
	serverCreateCmd.Flags().StringVar(&createOpts.GameMode, "gamemode", server.DefaultGameMode, "Game mode")
	serverCreateCmd.Flags().StringVar(&createOpts.Difficulty, "difficulty", server.DefaultDifficulty, "Difficulty")
	serverCreateCmd.Flags().BoolVar(&createOpts.NoPersistence, "no-persistence", false, "Do not keep world data")
	serverCreateCmd.MarkFlagRequired("name")

	serverDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")

	serverCmd.AddCommand(serverCreateCmd, serverListCmd, serverStartCmd, serverStopCmd, serverDeleteCmd)
	RootCmd.AddCommand(serverCmd)
}

func openContainer() *app.Container {
	logger := level.NewFilter(app.NewLogger(os.Stderr), level.AllowWarn())
	container, err := app.New(Config, logger)
	if err != nil {
		log.Fatalf("Error starting: %v", err)
	}
	container.StartStore()
	return container
}

func fetchRoster() ([]sdk.ServerInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	return stream.FetchSnapshot(ctx, sdk.NewClient(Config.GatewayURL))
}

func handleList() {
	servers, err := fetchRoster()
	if err != nil {
		log.Fatalf("Error reading roster: %v", err)
	}

	fmt.Println("Servers:")
	for _, s := range servers {
		fmt.Printf("- %s [%s] Port: %d Players: %s %s\n", s.ID, s.Status, s.Port, view.FormatPlayers(s.Players), s.Description)
	}
}

func handleCommand(action domain.Action, id string) {
	container := openContainer()
	defer container.Close()

	if err := container.Dispatcher.Dispatch(context.Background(), action, id); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("%s command sent for %s.\n", strings.ToUpper(string(action[:1]))+string(action[1:]), id)
}

func handleDelete(id string, yes bool, in io.Reader) {
	container := openContainer()
	defer container.Close()

	container.Confirm.Request(id)
	if !yes && !promptYes(in, fmt.Sprintf("Delete %s? This cannot be undone. [y/N] ", id)) {
		container.Confirm.Cancel()
		fmt.Println("Aborted.")
		return
	}

	target, err := container.Confirm.Confirm()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := container.Dispatcher.Delete(context.Background(), target); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Server deleted successfully.")
}

func promptYes(in io.Reader, question string) bool {
	fmt.Print(question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func handleCreate(opts server.Options) {
	container := openContainer()
	defer container.Close()

	if opts.Port == 0 {
		servers, err := fetchRoster()
		if err != nil {
			log.Fatalf("Error reading roster for port allocation: %v", err)
		}
		if err := container.Store.Replace(servers); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	req, resp, err := container.Servers.Create(context.Background(), opts)
	if err != nil {
		log.Fatalf("Error creating server: %v", err)
	}

	fmt.Printf("Creation request accepted for %s on port %d.\n", req.ServerName, req.MinecraftServer.NodePort)
	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
}
