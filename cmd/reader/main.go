package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"reader_sync/internal/config"
	"reader_sync/internal/domain"
	"reader_sync/internal/greader"
	"reader_sync/internal/publisher"
	"reader_sync/internal/render"
	"reader_sync/internal/scheduler"
	"reader_sync/internal/service"
	"reader_sync/internal/session"
	"reader_sync/internal/storage/redisstore"
	"reader_sync/internal/storage/sqlstore"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
	ExitAuthError    = 4
)

func main() {
	app := &cli.App{
		Name:    "reader",
		Usage:   "Sync and read feeds from a Google Reader compatible service",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"READER_SYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Exchange credentials for a token and store it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account email",
						EnvVars:  []string{"READER_USERNAME"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						EnvVars:  []string{"READER_PASSWORD"},
						Required: true,
					},
				},
				Action: login,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token",
				Action: logout,
			},
			{
				Name:   "status",
				Usage:  "Show authentication status",
				Action: status,
			},
			{
				Name:   "whoami",
				Usage:  "Show the remote account",
				Action: whoami,
			},
			{
				Name:   "feeds",
				Usage:  "Refresh and list subscriptions with unread counts",
				Action: listFeeds,
			},
			{
				Name:      "read",
				Usage:     "List articles of a feed",
				ArgsUsage: "<feed-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batches",
						Aliases: []string{"b"},
						Value:   1,
						Usage:   "Number of content batches to fetch",
					},
					&cli.BoolFlag{
						Name:    "all",
						Aliases: []string{"a"},
						Usage:   "Fetch contents for every listed article",
					},
					&cli.BoolFlag{
						Name:  "include-read",
						Usage: "List read articles too",
					},
					&cli.IntFlag{
						Name:  "excerpt",
						Value: 200,
						Usage: "Excerpt length in characters (0 for full text)",
					},
				},
				Action: readFeed,
			},
			{
				Name:      "mark",
				Usage:     "Mark articles as read or unread",
				ArgsUsage: "<article-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "feed",
						Aliases:  []string{"f"},
						Usage:    "Feed the articles belong to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "unread",
						Usage: "Mark as unread instead of read",
					},
				},
				Action: markArticles,
			},
			{
				Name:   "watch",
				Usage:  "Refresh subscriptions periodically until interrupted",
				Action: watch,
			},
			{
				Name:  "device",
				Usage: "Show or name this installation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Set the device name",
					},
				},
				Action: device,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

// runtime is the wired engine for one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *service.Engine
	sessions *session.Store
	closers  []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close failed", "error", err)
		}
	}
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), ExitUsageError)
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger := setupLogger(level)

	if c.IsSet("include-read") || c.Bool("unread") {
		onlyUnread := !c.Bool("include-read") && !c.Bool("unread")
		cfg.Sync.OnlyUnread = &onlyUnread
	}

	rt := &runtime{cfg: cfg, logger: logger}

	kv, closeKV, err := openKV(c.Context, cfg, logger)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}
	rt.closers = append(rt.closers, closeKV)
	rt.sessions = session.NewStore(kv)

	notifier, err := buildNotifier(c.Context, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, cli.Exit(err.Error(), ExitGeneralError)
	}

	api := greader.New(greader.Config{
		BaseURL:  cfg.API.BaseURL,
		ClientID: cfg.API.ClientID,
		Timeout:  cfg.API.Timeout,
	}, logger)

	rt.engine = service.NewEngine(api, rt.sessions, notifier, logger, cfg.Sync)
	return rt, nil
}

func openKV(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.KV, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("connected to redis", "addr", cfg.Storage.Redis.Addr)
		return redisstore.New(client, cfg.Storage.Redis.Prefix), client.Close, nil

	default:
		db, err := sqlstore.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		kv, err := sqlstore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Debug("opened state database", "driver", cfg.Storage.Driver)
		return kv, db.Close, nil
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config, rt *runtime) (service.Notifier, error) {
	sinks := publisher.Fanout{publisher.NewLog(rt.logger)}

	if !cfg.RabbitMQ.Enabled {
		return sinks, nil
	}

	dev, err := rt.sessions.Device(ctx)
	if err != nil {
		return nil, err
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
		DeviceID:   dev.ID,
	}, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rabbitMQ.Close)

	return append(sinks, rabbitMQ), nil
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// engineError maps engine failures to exit codes.
func engineError(action string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return cli.Exit("Not logged in, run `reader login` first", ExitAuthError)
	case greader.IsUnauthorized(err):
		return cli.Exit(fmt.Sprintf("%s: token rejected, log in again", action), ExitAuthError)
	default:
		return cli.Exit(fmt.Sprintf("%s: %v", action, err), ExitDataError)
	}
}

func login(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.Login(c.Context, c.String("username"), c.String("password")); err != nil {
		if errors.Is(err, service.ErrLoginFailed) {
			return cli.Exit(rt.engine.LoginError(), ExitAuthError)
		}
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]any{
		"success": true,
		"status":  rt.engine.Status(),
	})
}

func logout(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.Logout(c.Context); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]any{
		"success": true,
		"status":  rt.engine.Status(),
	})
}

func status(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	authStatus, err := rt.engine.CheckAuth(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	out := map[string]any{
		"status":  authStatus,
		"backend": rt.cfg.Storage.Driver,
	}
	if savedAt, ok, err := rt.sessions.SavedAt(c.Context); err == nil && ok {
		out["saved_at"] = savedAt
	}
	return outputJSON(out)
}

func whoami(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	info, err := rt.engine.UserInfo(c.Context)
	if err != nil {
		return engineError("Failed to get user info", err)
	}
	return outputJSON(info)
}

func listFeeds(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.RefreshSubscriptions(c.Context); err != nil {
		return engineError("Failed to refresh subscriptions", err)
	}

	return outputJSON(rt.engine.Feeds().Feeds())
}

type articleOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	IsRead      bool   `json:"is_read"`
	IsFetched   bool   `json:"is_fetched"`
}

func toArticleOutput(a domain.Article, excerpt int) articleOutput {
	out := articleOutput{
		ID:        a.ID,
		Title:     a.Title,
		Author:    a.Author,
		URL:       a.URL,
		IsRead:    a.IsRead,
		IsFetched: a.IsFetched,
	}
	if a.PublishedAt != nil {
		out.PublishedAt = a.PublishedAt.Format(time.RFC3339)
	}
	if a.IsFetched {
		out.Excerpt = render.PlainText(a.Content, excerpt)
	}
	return out
}

func readFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: reader read <feed-id>", ExitUsageError)
	}
	feedID := c.Args().Get(0)

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.SelectFeed(c.Context, feedID); err != nil {
		return engineError("Failed to load feed", err)
	}

	batches := c.Int("batches")
	for i := 1; c.Bool("all") || i < batches; i++ {
		result, err := rt.engine.FetchBatch(c.Context)
		if err != nil {
			return engineError("Failed to fetch articles", err)
		}
		if result.Requested == 0 || result.Stale {
			break
		}
	}

	articles := rt.engine.Articles().Articles()
	out := make([]articleOutput, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleOutput(a, c.Int("excerpt")))
	}

	_, title := rt.engine.SelectedFeed()
	return outputJSON(map[string]any{
		"feed_id":  feedID,
		"title":    title,
		"articles": out,
		"stats":    rt.engine.Stats(),
	})
}

func markArticles(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: reader mark --feed <feed-id> <article-id>...", ExitUsageError)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.SelectFeed(c.Context, c.String("feed")); err != nil {
		return engineError("Failed to load feed", err)
	}

	read := !c.Bool("unread")
	results := make(map[string]any)
	failed := 0

	for _, id := range c.Args().Slice() {
		if err := rt.engine.ToggleRead(c.Context, id, read); err != nil {
			failed++
			results[id] = map[string]any{"error": err.Error()}
			continue
		}
		results[id] = map[string]any{"is_read": read}
	}

	if err := outputJSON(map[string]any{
		"success": failed == 0,
		"results": results,
	}); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit("", ExitDataError)
	}
	return nil
}

func watch(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if authStatus, err := rt.engine.CheckAuth(c.Context); err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	} else if authStatus != domain.AuthAuthenticated {
		return engineError("Cannot watch", service.ErrNotAuthenticated)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feeds := rt.engine.Feeds()
	unsubscribe := feeds.Subscribe(func() {
		rt.logger.Info("subscriptions changed", "feeds", feeds.Len())
	})
	defer unsubscribe()

	rt.logger.Info("starting watch",
		"interval", rt.cfg.Sync.RefreshInterval,
		"backend", rt.cfg.Storage.Driver,
	)

	sched := scheduler.NewScheduler(rt.engine, rt.cfg.Sync.RefreshInterval, rt.logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(err.Error(), ExitGeneralError)
	}

	return outputJSON(rt.engine.Feeds().Feeds())
}

func device(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.IsSet("name") {
		if err := rt.sessions.SetDeviceName(c.Context, c.String("name")); err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
	}

	dev, err := rt.sessions.Device(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	return outputJSON(dev)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
