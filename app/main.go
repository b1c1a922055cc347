package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	ntf "github.com/go-pkgz/notify"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobboard/app/notify"
	"github.com/umputun/jobboard/app/seed"
	"github.com/umputun/jobboard/app/web"
	"github.com/umputun/jobboard/app/web/persistence"
)

var opts struct {
	Listen  string `short:"l" long:"listen" env:"JOBBOARD_LISTEN" default:"0.0.0.0:8000" description:"listen address"`
	DB      string `long:"db" env:"JOBBOARD_DB" default:"data/jobs.db" description:"sqlite database file"`
	Seed    string `long:"seed" env:"JOBBOARD_SEED" description:"yaml file with sample postings, embedded set if empty"`
	NoSeed  bool   `long:"no-seed" env:"JOBBOARD_NO_SEED" description:"don't put sample postings into empty store"`
	BaseURL string `long:"base-url" env:"JOBBOARD_BASE_URL" description:"base URL path for reverse proxy (e.g., /jobs)"`
	Dbg     bool   `long:"dbg" env:"JOBBOARD_DEBUG" description:"debug mode"`

	Auth struct {
		User         string        `long:"user" env:"USER" default:"admin" description:"admin user name"`
		PasswordHash string        `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of admin password, login disabled if empty"`
		Secret       string        `long:"secret" env:"SECRET" description:"session cookie signing key, random on each start if empty"`
		TTL          time.Duration `long:"ttl" env:"TTL" default:"24h" description:"session lifetime"`
		Rate         float64       `long:"rate" env:"RATE" default:"5" description:"login attempts per second per client, 0 to disable"`
		Sweep        string        `long:"sweep" env:"SWEEP" default:"@every 10m" description:"expired sessions cleanup schedule"`
	} `group:"auth" namespace:"auth" env-namespace:"JOBBOARD_AUTH"`

	Notify struct {
		To           []string      `long:"to" env:"TO" description:"email(s) to notify about new postings" env-delim:","`
		From         string        `long:"from" env:"FROM" description:"from email, jobboard@<host> if empty"`
		Webhooks     []string      `long:"webhook" env:"WEBHOOK" description:"webhook url(s) to notify about new postings" env-delim:","`
		SiteURL      string        `long:"site-url" env:"SITE_URL" description:"public url of the board for links in messages"`
		Template     string        `long:"template" env:"TEMPLATE" description:"custom html/template file for messages"`
		Timeout      time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"delivery timeout"`
		Retries      int           `long:"retries" env:"RETRIES" default:"3" description:"delivery attempts per destination"`
		SMTPHost     string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort     int           `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS      bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPTimeOut  time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
	} `group:"notify" namespace:"notify" env-namespace:"JOBBOARD_NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"write logs to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"logs/jobboard.log" description:"log file"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in megabytes"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max days to keep rotated files"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"JOBBOARD_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("jobboard %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run wires store, seed, notifications and web server, blocks until ctx canceled
func run(ctx context.Context) error {
	if dir := filepath.Dir(opts.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	store, err := persistence.NewSQLiteStore(opts.DB)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", opts.DB, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	if !opts.NoSeed {
		postings, err := loadSeed()
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, store, postings); err != nil {
			return err
		}
	}

	cfg := web.Config{
		Store:          store,
		BaseURL:        validateBaseURL(opts.BaseURL),
		Version:        revision,
		AdminUser:      opts.Auth.User,
		PasswordHash:   opts.Auth.PasswordHash,
		SessionSecret:  opts.Auth.Secret,
		LoginTTL:       opts.Auth.TTL,
		LoginRateLimit: opts.Auth.Rate,
		SessionSweep:   opts.Auth.Sweep,
		NotifyTimeout:  opts.Notify.Timeout,
	}
	if n := makeNotifier(); n != nil {
		cfg.Notifier = n
	}

	srv, err := web.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx, opts.Listen)
}

// loadSeed returns postings from --seed file or the embedded set
func loadSeed() ([]persistence.Posting, error) {
	if opts.Seed == "" {
		return seed.Default()
	}
	log.Printf("[INFO] loading sample postings from %s", opts.Seed)
	return seed.LoadFile(opts.Seed)
}

// makeNotifier returns nil if no destinations set
func makeNotifier() *notify.Service {
	from := opts.Notify.From
	if from == "" {
		from = "jobboard@" + makeHostName()
	}
	return notify.NewService(
		notify.Params{
			BaseURL:  opts.Notify.SiteURL,
			Template: opts.Notify.Template,
			Timeout:  opts.Notify.Timeout,
			Retries:  opts.Notify.Retries,
		},
		notify.SendersParams{
			SMTP: ntf.SMTPParams{
				Host:        opts.Notify.SMTPHost,
				Port:        opts.Notify.SMTPPort,
				TLS:         opts.Notify.SMTPTLS,
				ContentType: "text/html",
				Username:    opts.Notify.SMTPUsername,
				Password:    opts.Notify.SMTPPassword,
				TimeOut:     opts.Notify.SMTPTimeOut,
			},
			FromEmail: from,
			ToEmails:  opts.Notify.To,
			Webhooks:  opts.Notify.Webhooks,
		},
	)
}

func makeHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// setupLogs configures lgr and returns the writer logs go to, rotated file or stdout
func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled && opts.Log.Filename != "" {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec, log.LevelBraces, log.Out(out)}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	log.Setup(logOpts...)
	return out
}

// validateBaseURL normalizes base URL path: leading slash kept, trailing slash and root dropped
func validateBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" || baseURL == "/" {
		return ""
	}
	if !strings.HasPrefix(baseURL, "/") {
		baseURL = "/" + baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
