package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minicraftmp/server/internal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the server (default command)",
	Run:   ServeCommand,
}

func ServeCommand(cmd *cobra.Command, args []string) {
	config := loadConfig()

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the server down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("shut down")
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	// A second signal skips waiting for clients to disconnect.
	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
