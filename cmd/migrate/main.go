// Command migrate applies the embedded schema migrations.
//
// Usage:
//
//	migrate [-database-url URL] up|down|version|steps N
//
// DATABASE_URL is used when -database-url is not given.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/portalo/portalo/internal/repository"
)

func main() {
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres connection URL")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-database-url URL] up|down|version|steps N")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *databaseURL == "" || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*databaseURL, flag.Args(), logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, args []string, logger *slog.Logger) error {
	m, err := repository.NewMigrator(databaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		if len(args) < 2 {
			return fmt.Errorf("steps needs a count")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n == 0 {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		return m.Steps(n)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
