package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/api/handlers"
	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/calendar"
	"github.com/mgmu/greenhouse/internal/config"
	"github.com/mgmu/greenhouse/internal/identify"
	"github.com/mgmu/greenhouse/internal/logging"
	"github.com/mgmu/greenhouse/internal/mail"
	"github.com/mgmu/greenhouse/internal/notify"
	"github.com/mgmu/greenhouse/internal/photos"
	"github.com/mgmu/greenhouse/internal/reminders"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	Version    = "dev"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "greenhouse",
		Short:         "Greenhouse - plant care tracking server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "greenhouse.yaml", "configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the reminder jobs",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx := cmd.Context()
		db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.Schema)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info("schema is up to date", zap.String("schema", cfg.Database.Schema))
		return nil
	},
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.Schema)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.CheckSchema(ctx); err != nil {
		return err
	}

	env := &handlers.Env{
		DB:           db,
		Log:          log,
		Sessions:     auth.NewSessions(cfg.Auth.JWTSecret, cfg.GetSessionTTL()),
		Now:          time.Now,
		MaxUpload:    cfg.Server.MaxUploadBytes,
		BaseURL:      cfg.Server.BaseURL,
		CookieSecure: cfg.Auth.CookieSecure,
	}
	var syncer reminders.CalendarSyncer
	var pusher reminders.Pusher
	if err := integrations(ctx, cfg, log, env, &syncer, &pusher); err != nil {
		return err
	}
	scheduler := reminders.New(db, pusher, syncer, log.Named("reminders"), cfg.Scheduler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes(env, cfg.Server.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// integrations wires the optional third party services that are configured.
// Missing credentials leave the matching feature off.
func integrations(ctx context.Context, cfg *config.Config, log *zap.Logger, env *handlers.Env, syncer *reminders.CalendarSyncer, pusher *reminders.Pusher) error {
	if cfg.GoogleEnabled() {
		google := auth.NewGoogle(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL)
		cal := calendar.New(google.Config(), env.DB, cfg.Calendar.Name, log.Named("calendar"))
		env.Google = google
		env.Calendar = cal
		*syncer = cal
	} else {
		log.Warn("google sign in is not configured")
	}

	if cfg.Cloudinary.URL != "" {
		store, err := photos.New(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			return err
		}
		env.Photos = store
	}

	if cfg.Gemini.APIKey != "" {
		id, err := identify.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return err
		}
		env.Identifier = id
	}

	if cfg.Firebase.CredentialsFile != "" {
		sender, err := notify.New(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		env.PushEnabled = true
		*pusher = sender
	}

	if cfg.SMTPEnabled() {
		env.Mailer = mail.New(cfg.SMTP)
	}

	log.Info("integrations",
		zap.Bool("google", env.Google != nil),
		zap.Bool("photos", env.Photos != nil),
		zap.Bool("identify", env.Identifier != nil),
		zap.Bool("push", env.PushEnabled),
		zap.Bool("mail", env.Mailer != nil),
	)
	return nil
}
