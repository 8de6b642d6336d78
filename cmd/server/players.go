package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/minicraftmp/server/internal/core/data"
)

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Inspect the index of remote players",
}

var playersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every remote player that has connected",
	Run:   PlayersListCommand,
}

var playersForgetCmd = &cobra.Command{
	Use:   "forget <token>...",
	Short: "Removes players from the index (their save files are kept)",
	Args:  cobra.MinimumNArgs(1),
	Run:   PlayersForgetCommand,
}

func initDB() *gorm.DB {
	cfg := loadConfig()
	if cfg.Database.Engine == "" {
		fmt.Println("no database engine configured")
		os.Exit(1)
	}

	dataSource := cfg.QualifiedPath(cfg.Database.Filename)
	if cfg.Database.Engine == "postgres" {
		dataSource = cfg.DatabaseURL()
	}
	db, err := data.Open(cfg.Database.Engine, dataSource, false)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return db
}

func PlayersListCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Close(db)

	players, err := data.ListPlayers(db)
	if err != nil {
		fmt.Println("error listing players:", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tUSERNAME\tSAVE FILE\tSESSIONS\tLAST ADDRESS\tLAST SEEN")
	for _, p := range players {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Token, p.Username, p.SaveFile, p.Sessions, p.LastAddress, p.LastSeen.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func PlayersForgetCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	defer data.Close(db)

	for _, token := range args {
		player, err := data.FindPlayerByToken(db, token)
		if err != nil {
			fmt.Println("error finding player:", err)
			return
		} else if player == nil {
			fmt.Printf("no player with token '%s'; skipping\n", token)
			continue
		}

		if err := data.DeletePlayer(db, token); err != nil {
			fmt.Println("error deleting player:", err)
			return
		}
		fmt.Printf("forgot player '%s' (%s)\n", token, player.SaveFile)
	}
}
