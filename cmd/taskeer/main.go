// Command taskeer runs the task manager sharing backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/components/janitor"
	"github.com/JCampos05/Backend-Taskeer/internal/components/notify"
	"github.com/JCampos05/Backend-Taskeer/internal/components/sharing"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/config"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/store"
	"github.com/JCampos05/Backend-Taskeer/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "taskeer:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	basePath := flag.String("base-path", "", "API base path prefix (overrides config)")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	webhookURL := flag.String("webhook-url", "", "notification webhook URL (overrides config)")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:   listenAddr,
			BasePath:     basePath,
			DataDir:      dataDir,
			LoggingLevel: logLevel,
			WebhookURL:   webhookURL,
		},
		Logger: bootLogger,
	})
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Logging.Level),
	}))
	logger.Info("starting", "config", cfg.Redacted())

	db, err := store.Open(&cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close(db)

	if err := store.Migrate(db,
		&identity.User{},
		&identity.Session{},
		&sharing.Resource{},
		&sharing.Grant{},
		&sharing.AuditEntry{},
		&notify.Notification{},
	); err != nil {
		return err
	}

	users := identity.NewGormUserRepo(db)
	sessions := identity.NewGormSessionRepo(db)
	auth := identity.NewUserAuth()
	sessionTTL := time.Duration(cfg.Sessions.TTLHours) * time.Hour

	inbox := notify.NewStoreNotifier(db)
	var notifier notify.Notifier = inbox
	if cfg.Notifications.WebhookURL != "" {
		timeout := time.Duration(cfg.Notifications.TimeoutMS) * time.Millisecond
		notifier = notify.Fanout{
			inbox,
			notify.NewWebhookNotifier(cfg.Notifications.WebhookURL, timeout),
		}
	}

	sharingSvc := sharing.NewService(db, userDirectory{users}, notifier, logger)
	resolver := sharing.NewResolver(sharingSvc.Store())

	srv := server.New(cfg, server.Deps{
		Identity:      identity.NewHandler(users, sessions, auth, sessionTTL, logger),
		Sessions:      sessions,
		Sharing:       sharing.NewHandler(sharingSvc, resolver, logger),
		Notifications: notify.NewHandler(inbox, logger),
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Janitor.Enabled {
		retention := time.Duration(cfg.Janitor.NotificationRetentionDays) * 24 * time.Hour
		j := janitor.New(sessions, inbox, retention, logger)
		if err := j.Start(cfg.Janitor.Schedule); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer j.Stop()
		j.RunOnce(ctx)
	}

	return srv.Run(ctx)
}

// userDirectory adapts the identity user repository to the sharing
// engine's lookup interface.
type userDirectory struct {
	users identity.UserRepo
}

func (d userDirectory) FindByEmail(ctx context.Context, email string) (int64, string, error) {
	u, err := d.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return 0, "", sharing.ErrDirectoryUserNotFound
		}
		return 0, "", err
	}
	return u.ID, u.Name, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
