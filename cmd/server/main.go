// The server command runs the multiplayer world server and holds a few
// small tools for inspecting the data it keeps.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minicraftmp/server/internal/core"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Multiplayer world server and related tools",
		Run:   ServeCommand,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "", "Path to the directory containing config.yaml")

	playersCmd.AddCommand(playersListCmd)
	playersCmd.AddCommand(playersForgetCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playersCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yaml from ConfigFlag after changing to that directory
// so that any relative paths in the config file will resolve.
func loadConfig() *core.Config {
	if ConfigFlag != "" {
		if err := os.Chdir(ConfigFlag); err != nil {
			fmt.Println("error changing to config directory:", err)
			os.Exit(1)
		}
	}

	cfg, err := core.LoadConfig(".")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cfg
}
