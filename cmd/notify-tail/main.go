// Command notify-tail attaches to a user's realtime notification stream and prints the
// live list, unread badge and toasts as events arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/app"
	"github.com/studytrack/notifyd/internal/eligibility"
	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/session"
	"github.com/studytrack/notifyd/internal/toast"
	"github.com/studytrack/notifyd/pkg/logger"
)

const pingInterval = 30 * time.Second

type options struct {
	endpoint   string
	token      string
	userID     string
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseOptions(args []string) (options, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("notify-tail", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var opts options
	fs.StringVar(&opts.endpoint, "url", envOr("NOTIFYD_REALTIME_URL", "ws://localhost:8000/api/realtime"), "Realtime WebSocket endpoint")
	fs.StringVar(&opts.token, "token", os.Getenv("NOTIFYD_TOKEN"), "Bearer token of the user to follow")
	fs.StringVar(&opts.userID, "user", os.Getenv("NOTIFYD_USER_ID"), "User id the token belongs to")
	fs.StringVar(&opts.configPath, "config", "", "Configuration directory with toast settings")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.token) == "" {
		return opts, errors.New("a bearer token is required (-token or NOTIFYD_TOKEN)")
	}
	if strings.TrimSpace(opts.userID) == "" {
		return opts, errors.New("a user id is required (-user or NOTIFYD_USER_ID)")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	var paths []string
	if opts.configPath != "" {
		paths = append(paths, opts.configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort
	log := logger.WithModule("notify-tail")

	location, err := cfg.Notifications.Location()
	if err != nil {
		return err
	}

	client, err := realtime.Dial(ctx, opts.endpoint, opts.token, realtime.StreamNotifications)
	if err != nil {
		return err
	}

	durations := cfg.Notifications.Toast.ToastDurations()
	toasts := toast.NewManager(toast.WithMaxToasts(cfg.Notifications.Toast.MaxToasts))
	defer toasts.Close()

	var sess *session.Session
	sess, err = session.New(opts.userID, client, session.Options{
		Toasts:    toasts,
		Durations: &durations,
		Engine:    eligibility.New(eligibility.WithLocation(location)),
		OnChange: func(event string) {
			printState(out, event, sess)
		},
	})
	if err != nil {
		client.Close()
		return err
	}
	defer sess.Close()

	// keepAlive must be gone before the deferred Close writes the close frame.
	pingCtx, stopPing := context.WithCancel(ctx)
	var pinger sync.WaitGroup
	pinger.Add(1)
	go func() {
		defer pinger.Done()
		keepAlive(pingCtx, client, log)
	}()
	defer func() {
		stopPing()
		pinger.Wait()
	}()

	log.Info("following notifications", zap.String("endpoint", opts.endpoint), zap.String("user_id", opts.userID))
	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printState(out io.Writer, event string, sess *session.Session) {
	if sess == nil {
		return
	}
	fmt.Fprintf(out, "[%s] %s unread=%d\n", time.Now().Format(time.TimeOnly), event, sess.UnreadCount())
	if event != realtime.EventNotificationCreated {
		return
	}
	if items := sess.Notifications(); len(items) > 0 {
		latest := items[0]
		fmt.Fprintf(out, "  %-8s %-14s %s\n", latest.Priority, latest.Type, latest.Title)
		if latest.Message != "" {
			fmt.Fprintf(out, "           %s\n", latest.Message)
		}
	}
	for _, t := range sess.Toasts() {
		ttl := "sticky"
		if !t.Sticky() {
			ttl = t.Duration.String()
		}
		fmt.Fprintf(out, "  toast %s (%s)\n", t.Title, ttl)
	}
}

func keepAlive(ctx context.Context, client *realtime.Client, log *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
