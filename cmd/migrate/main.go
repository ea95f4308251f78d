package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"devsocial/pkg/config"
	"devsocial/pkg/database"
	"devsocial/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	flag.Parse()

	if *list {
		files, err := database.Pending()
		if err != nil {
			fmt.Fprintf(os.Stderr, "collect migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collected %d migrations\n", len(files))
		for _, f := range files {
			fmt.Printf(" - %d %s\n", f.Version, f.Source)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.Log)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
}
