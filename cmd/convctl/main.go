package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/suPer8Hu/convo-platform/internal/auth"
	"github.com/suPer8Hu/convo-platform/internal/config"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
	"github.com/suPer8Hu/convo-platform/internal/db"
	"github.com/suPer8Hu/convo-platform/internal/logging"
)

const previewLimit = 5

func main() {
	app := &cli.App{
		Name:  "convctl",
		Usage: "operational commands for the conversation platform",
		Commands: []*cli.Command{
			cleanupCommand(),
			tokenCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for a user id (testing and operations)",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:     "user",
				Usage:    "user id the token authenticates as",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			token, err := auth.SignJWT(c.Uint64("user"), cfg.JWTSecret, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "delete conversations older than the retention window",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Usage: "delete conversations created more than this many days ago",
				Value: 30,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "only delete conversations owned by this username",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "show what would be deleted without deleting",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "skip the confirmation prompt",
			},
		},
		Action: runCleanup,
	}
}

func runCleanup(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}
	username := c.String("user")

	cfg := config.Load()
	logger := logging.New("convctl", cfg.LogLevel)

	gdb := db.Connect(cfg.DBDSN)
	svc := conversation.NewService(conversation.NewRepo(gdb), logger)

	ctx := c.Context
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	total, err := svc.CountConversationsOlderThan(ctx, cutoff, username)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("nothing to delete")
		return nil
	}

	fmt.Printf("%d conversation(s) older than %d days", total, days)
	if username != "" {
		fmt.Printf(" owned by %q", username)
	}
	fmt.Println()

	preview, err := svc.PreviewConversationsOlderThan(ctx, cutoff, username, previewLimit)
	if err != nil {
		return err
	}
	for _, p := range preview {
		fmt.Printf("  %s  %q  (%d messages)\n", p.ID, p.Title, p.MessageCount)
	}
	if total > int64(len(preview)) {
		fmt.Printf("  ... and %d more\n", total-int64(len(preview)))
	}

	if c.Bool("dry-run") {
		fmt.Println("dry run, nothing deleted")
		return nil
	}

	if !c.Bool("yes") && !confirm(fmt.Sprintf("delete %d conversation(s)?", total)) {
		fmt.Println("aborted")
		return nil
	}

	deleted, err := svc.DeleteConversationsOlderThan(ctx, cutoff, username)
	if err != nil {
		return fmt.Errorf("deleted %d before failing: %w", deleted, err)
	}
	fmt.Printf("deleted %d conversation(s)\n", deleted)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
