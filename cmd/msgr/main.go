package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"privatemsg/internal/chat"
	"privatemsg/internal/config"
	"privatemsg/internal/di"
	"privatemsg/internal/session"
	"privatemsg/internal/stream"
)

// consoleObserver renders chat events to the terminal.
type consoleObserver struct{}

func (consoleObserver) Name() string { return "console_observer" }

func (consoleObserver) Update(event chat.Event) error {
	switch event.Type {
	case chat.EventNewMessage:
		if event.Message != nil {
			fmt.Printf("\n[%s] %s: %s\n> ", event.Message.CreatedAt.Format("15:04"), event.Message.Sender.NickName, event.Message.Text)
		}
	case chat.EventUnreadChanged:
		fmt.Printf("\n(unread: %d)\n> ", event.Unread)
	case chat.EventStreamClosed:
		fmt.Print("\n(live updates stopped; restart to reconnect)\n> ")
	}
	return nil
}

// setupLogger applies the configured level to the process logger. At
// debug every line carries its call site; warn and error quiet the
// informational chatter the rest of the code emits through the
// default logger.
func setupLogger(cfg config.Logging) {
	switch cfg.Level {
	case "debug":
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetOutput(io.Discard)
	default:
		log.SetFlags(log.LstdFlags)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sess, err := session.New(os.Getenv("ACCESS_TOKEN"))
	if err != nil {
		log.Fatalf("Failed to build session (is ACCESS_TOKEN set?): %v", err)
	}

	app, err := di.InitializeApplication(cfg, sess)
	if err != nil {
		log.Fatalf("Failed to initialize messaging client: %v", err)
	}
	svc := app.Service
	defer svc.Close()

	// Startup failures above always print; from here on the level
	// governs runtime chatter.
	setupLogger(cfg.Logging)

	ctx := context.Background()

	// One live connection for the whole run; no automatic reconnect.
	ch, err := stream.Open(ctx, cfg.API.BaseURL, sess.Token)
	if err != nil {
		log.Printf("Live updates unavailable: %v", err)
	} else if err := svc.AttachStream(ch); err != nil {
		log.Printf("Failed to attach live stream: %v", err)
	}

	svc.Subscribe(consoleObserver{})
	svc.RefreshUnread(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Println("\nShutting down...")
		svc.Close()
		os.Exit(0)
	}()

	log.Printf("Signed in as %s (unread: %d)", sess.Handle, svc.Unread())
	fmt.Println("Commands: /list, /open <userId>, /more, /read <messageId>, /delete <messageId>, /search <query>, /quit")

	var open string
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			svc.Close()
			return
		case line == "/list":
			list, err := svc.RefreshConversations(ctx)
			if err != nil {
				fmt.Printf("error: %v (showing last known list)\n", err)
			}
			for _, c := range list {
				fmt.Printf("  %s (%s) unread=%d last=%q\n", c.User.NickName, c.User.ID, c.UnreadCount, c.LastMessage.Text)
			}
		case strings.HasPrefix(line, "/open "):
			open = strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			svc.ResolveCounterpart(ctx, open)
			if err := svc.FetchPage(ctx, open); err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			for _, m := range svc.Conversation(open).Messages {
				fmt.Printf("  [%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.Sender.NickName, m.Text)
			}
		case line == "/more":
			if open == "" {
				fmt.Println("no open conversation")
				break
			}
			if err := svc.FetchPage(ctx, open); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case strings.HasPrefix(line, "/read "):
			if err := svc.MarkRead(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/read "))); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case strings.HasPrefix(line, "/delete "):
			if err := svc.DeleteMessage(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/delete "))); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case strings.HasPrefix(line, "/search "):
			users, err := svc.SearchUsers(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/search ")))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			for _, u := range users {
				fmt.Printf("  %s (%s)\n", u.NickName, u.ID)
			}
		default:
			if open == "" {
				fmt.Println("open a conversation first: /open <userId>")
				break
			}
			if _, err := svc.Send(ctx, open, line); err != nil {
				// Text stays in the user's hands for a retry.
				fmt.Printf("send failed: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
}
