package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/go-while/pugboard/internal/boardstore"
	"github.com/go-while/pugboard/internal/config"
)

var appVersion = "-unset-"

var errResetAborted = errors.New("reset aborted")

func main() {
	config.AppVersion = appVersion
	var (
		showStats     = flag.Bool("stats", false, "Show post, reply and session counts")
		resetBoard    = flag.Bool("reset", false, "Delete all posts and replies")
		yes           = flag.Bool("yes", false, "Do not ask for confirmation (required for -reset without a terminal)")
		purgeSessions = flag.Bool("purge-sessions", false, "Remove expired sessions")
		configFile    = flag.String("config", "", "YAML config file")
		dbPath        = flag.String("db", "", "sqlite3 database file (overrides database.path)")
	)
	flag.Parse()

	if !*showStats && !*resetBoard && !*purgeSessions {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -stats\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -reset -db ./data/board.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -purge-sessions -config board.yaml\n", os.Args[0])
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	mainConfig := config.NewDefaultConfig()
	if *configFile != "" {
		if mainConfig, err = config.LoadFile(*configFile); err != nil {
			zap.L().Fatal("Failed to load config", zap.String("file", *configFile), zap.Error(err))
		}
	}
	if *dbPath != "" {
		mainConfig.Database.Driver = "sqlite3"
		mainConfig.Database.Path = *dbPath
	}

	store, err := boardstore.Open(mainConfig.Database)
	if err != nil {
		zap.L().Fatal("Failed to open board store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch {
	case *showStats:
		stats, err := store.Stats(ctx)
		if err != nil {
			zap.L().Fatal("Failed to read stats", zap.Error(err))
		}
		fmt.Printf("posts:    %d\nreplies:  %d\nsessions: %d\n", stats.Posts, stats.Replies, stats.Sessions)

	case *resetBoard:
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		if err := confirmReset(os.Stdin, os.Stdout, interactive, *yes); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := store.ResetBoard(ctx); err != nil {
			zap.L().Fatal("Failed to reset board", zap.Error(err))
		}
		fmt.Println("Board reset: all posts and replies deleted")

	case *purgeSessions:
		n, err := store.CleanupExpiredSessions(ctx, mainConfig.Web.SessionTimeout)
		if err != nil {
			zap.L().Fatal("Failed to purge sessions", zap.Error(err))
		}
		fmt.Printf("Removed %d expired sessions\n", n)
	}
}

// confirmReset asks the operator to type RESET. Without a terminal only -yes proceeds.
func confirmReset(in io.Reader, out io.Writer, interactive, yes bool) error {
	if yes {
		return nil
	}
	if !interactive {
		return fmt.Errorf("%w: stdin is not a terminal, pass -yes to reset non-interactively", errResetAborted)
	}
	fmt.Fprint(out, "This deletes ALL posts and replies. Type RESET to continue: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != "RESET" {
		return errResetAborted
	}
	return nil
}
