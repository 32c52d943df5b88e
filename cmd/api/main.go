package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/bom"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/convert"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/data"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/documents"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/lease"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/mailer"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/render"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/sheets"
	"github.com/Pedro-J-Kukul/sheetdocs/internal/storage"
)

const version = "v1.0.0"

// Server configuration settings
type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	sheets struct {
		credentialsB64     string
		credentialsFile    string
		spreadsheetID      string
		bomSpreadsheetID   string
		stockSpreadsheetID string
	}
	redis struct {
		address  string
		password string
		db       int
	}
	bom struct {
		settleDelay time.Duration
		maxAttempts int
		leaseTTL    time.Duration
		leaseWait   time.Duration
	}
	converter struct {
		kind       string
		webhookURL string
		webhookKey string
		chromePath string
		timeout    time.Duration
	}
	gcs struct {
		bucket          string
		prefix          string
		credentialsJSON string
		localDir        string
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	logo struct {
		file        string
		driveFileID string
	}
	alarmRecipient string
	apiKeyHash     string
	cors           struct {
		trustedOrigins []string
	}
	rateLimit struct {
		rps     float64
		burst   int
		enabled bool
	}
}

type app struct {
	config config
	logger *logrus.Logger

	// models is nil when no database is configured.
	models *data.Models

	store     sheets.RowStore
	sheets    *sheets.Service
	pipeline  *bom.Pipeline
	registry  *documents.Registry
	builder   *documents.Builder
	renderer  *render.Renderer
	converter convert.Converter
	mailer    *mailer.Mailer

	wg sync.WaitGroup
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("could not load .env")
	}

	cfg := loadConfig()
	logger := setupLogger(cfg)

	app, cleanup, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise")
	}
	defer cleanup()

	if err := app.serve(); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func loadConfig() config {
	var cfg config

	flag.IntVar(&cfg.port, "port", envInt("PORT", 4000), "API server port")
	flag.StringVar(&cfg.env, "env", env("ENV", "development"), "Environment (development|staging|production)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", env("DB_DSN", ""), "PostgreSQL DSN for export history (optional)")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 10, "PostgreSQL max open connections")
	flag.IntVar(&cfg.db.maxIdleConns, "db-max-idle-conns", 10, "PostgreSQL max idle connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")

	flag.StringVar(&cfg.sheets.credentialsB64, "google-credentials-b64", env("GOOGLE_CREDENTIALS_B64", ""), "Base64 service account JSON")
	flag.StringVar(&cfg.sheets.credentialsFile, "google-credentials-file", env("GOOGLE_CREDENTIALS_FILE", ""), "Service account key file")
	flag.StringVar(&cfg.sheets.spreadsheetID, "spreadsheet-id", env("SPREADSHEET_ID", ""), "Orders spreadsheet")
	flag.StringVar(&cfg.sheets.bomSpreadsheetID, "bom-spreadsheet-id", env("BOM_SPREADSHEET_ID", ""), "Recipe spreadsheet (defaults to the orders spreadsheet)")
	flag.StringVar(&cfg.sheets.stockSpreadsheetID, "stock-spreadsheet-id", env("STOCK_SPREADSHEET_ID", ""), "Stock issue spreadsheet (defaults to the orders spreadsheet)")

	flag.StringVar(&cfg.redis.address, "redis-address", env("REDIS_ADDRESS", ""), "Redis address for scratch leases; empty uses in-process locks")
	flag.StringVar(&cfg.redis.password, "redis-password", env("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.redis.db, "redis-db", envInt("REDIS_DB", 0), "Redis database")

	defaults := bom.DefaultOptions()
	flag.DurationVar(&cfg.bom.settleDelay, "bom-settle-delay", envDuration("BOM_SETTLE_DELAY", defaults.SettleDelay), "Wait between scratch write and read")
	flag.IntVar(&cfg.bom.maxAttempts, "bom-max-attempts", envInt("BOM_MAX_ATTEMPTS", defaults.MaxAttempts), "Reads before a line is reported stale")
	flag.DurationVar(&cfg.bom.leaseTTL, "bom-lease-ttl", envDuration("BOM_LEASE_TTL", defaults.LeaseTTL), "Scratch lease expiry")
	flag.DurationVar(&cfg.bom.leaseWait, "bom-lease-wait", envDuration("BOM_LEASE_WAIT", defaults.LeaseWait), "How long to wait for a busy scratch range")

	flag.StringVar(&cfg.converter.kind, "converter", env("CONVERTER", "chrome"), "PDF converter (chrome|webhook)")
	flag.StringVar(&cfg.converter.webhookURL, "converter-webhook-url", env("CONVERTER_WEBHOOK_URL", ""), "Conversion webhook URL")
	flag.StringVar(&cfg.converter.webhookKey, "converter-webhook-key", env("CONVERTER_WEBHOOK_KEY", ""), "Conversion webhook API key")
	flag.StringVar(&cfg.converter.chromePath, "chrome-path", env("CHROME_PATH", ""), "Chromium binary")
	flag.DurationVar(&cfg.converter.timeout, "converter-timeout", envDuration("CONVERTER_TIMEOUT", time.Minute), "Conversion timeout")

	flag.StringVar(&cfg.gcs.bucket, "gcs-bucket", env("GCS_BUCKET", ""), "Bucket for exported PDFs")
	flag.StringVar(&cfg.gcs.prefix, "gcs-prefix", env("GCS_PREFIX", "exports"), "Object prefix for exported PDFs")
	flag.StringVar(&cfg.logo.file, "logo-file", env("LOGO_FILE", ""), "Image file shown on printed documents")
	flag.StringVar(&cfg.logo.driveFileID, "logo-drive-id", env("LOGO_DRIVE_FILE_ID", ""), "Drive file id of the document logo, used when -logo-file is empty")
	flag.StringVar(&cfg.gcs.credentialsJSON, "gcs-credentials-json", env("GCS_CREDENTIALS_JSON", ""), "Storage service account JSON")
	flag.StringVar(&cfg.gcs.localDir, "export-dir", env("EXPORT_DIR", "exports"), "Local export directory when no bucket is set")

	flag.StringVar(&cfg.smtp.host, "smtp-host", env("SMTP_HOST", ""), "SMTP host; empty disables mail")
	flag.IntVar(&cfg.smtp.port, "smtp-port", envInt("SMTP_PORT", 587), "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", env("SMTP_USERNAME", ""), "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", env("SMTP_PASSWORD", ""), "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", env("SMTP_SENDER", "sheetdocs <no-reply@localhost>"), "SMTP sender")
	flag.StringVar(&cfg.alarmRecipient, "alarm-recipient", env("ALARM_RECIPIENT", ""), "Where scratch and export alarms are mailed")

	flag.StringVar(&cfg.apiKeyHash, "api-key-hash", env("API_KEY_HASH", ""), "bcrypt hash of the API key; empty disables the check")

	flag.Float64Var(&cfg.rateLimit.rps, "rate-limit-rps", envFloat("RATE_LIMIT_RPS", 5), "Requests per second")
	flag.IntVar(&cfg.rateLimit.burst, "rate-limit-burst", envInt("RATE_LIMIT_BURST", 10), "Burst limit")
	flag.BoolVar(&cfg.rateLimit.enabled, "rate-limit-enabled", envBool("RATE_LIMIT_ENABLED", false), "Enable rate limiting")

	cfg.cors.trustedOrigins = strings.Fields(env("CORS_TRUSTED_ORIGINS", ""))
	flag.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.cors.trustedOrigins = strings.Fields(val)
		return nil
	})
	flag.Parse()

	if cfg.sheets.bomSpreadsheetID == "" {
		cfg.sheets.bomSpreadsheetID = cfg.sheets.spreadsheetID
	}
	if cfg.sheets.stockSpreadsheetID == "" {
		cfg.sheets.stockSpreadsheetID = cfg.sheets.spreadsheetID
	}
	return cfg
}

func setupLogger(cfg config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.WithFields(logrus.Fields{
		"version":          version,
		"env":              cfg.env,
		"port":             cfg.port,
		"converter":        cfg.converter.kind,
		"redis":            cfg.redis.address != "",
		"history":          cfg.db.dsn != "",
		"rateLimitEnabled": cfg.rateLimit.enabled,
	}).Info("starting")
	return logger
}

// loadLogo reads the document logo from a file or from Drive with the
// service account used for the sheets.
func loadLogo(ctx context.Context, cfg config, r *render.Renderer) error {
	var data []byte
	var err error

	switch {
	case cfg.logo.file != "":
		data, err = os.ReadFile(cfg.logo.file)
	case cfg.logo.driveFileID != "":
		var creds []byte
		if cfg.sheets.credentialsB64 != "" {
			creds, err = sheets.DecodeCredentials(cfg.sheets.credentialsB64)
		} else {
			creds, err = os.ReadFile(cfg.sheets.credentialsFile)
		}
		if err != nil {
			return err
		}
		var d *storage.Drive
		if d, err = storage.NewDrive(ctx, creds); err != nil {
			return err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		data, err = d.Download(fetchCtx, cfg.logo.driveFileID)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return r.SetLogo(data)
}

// newApp wires every dependency. The returned cleanup closes what was opened.
func newApp(ctx context.Context, cfg config, logger *logrus.Logger) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := sheets.NewClient(ctx, sheets.Config{
		ServiceAccountKeyPath: cfg.sheets.credentialsFile,
		CredentialsB64:        cfg.sheets.credentialsB64,
		SpreadsheetID:         cfg.sheets.spreadsheetID,
	})
	if err != nil {
		return nil, cleanup, err
	}

	a := &app{
		config: cfg,
		logger: logger,
		store:  client,
		sheets: sheets.NewService(client, client, sheets.ServiceConfig{StockSpreadsheetID: cfg.sheets.stockSpreadsheetID}),
	}

	if cfg.db.dsn != "" {
		db, err := openDB(cfg)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { db.Close() })
		models := data.NewModels(db)
		a.models = &models
		logger.Info("database connection pool established")
	}

	var locker lease.Locker = lease.NewLocalLocker()
	if cfg.redis.address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redis.address, Password: cfg.redis.password, DB: cfg.redis.db})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, cleanup, err
		}
		closers = append(closers, func() { rdb.Close() })
		locker = lease.NewRedisLocker(rdb)
		logger.WithField("address", cfg.redis.address).Info("using redis scratch leases")
	}

	if cfg.smtp.host != "" {
		a.mailer = mailer.New(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)
	}

	opts := bom.DefaultOptions()
	opts.SettleDelay = cfg.bom.settleDelay
	opts.MaxAttempts = cfg.bom.maxAttempts
	opts.LeaseTTL = cfg.bom.leaseTTL
	opts.LeaseWait = cfg.bom.leaseWait

	a.pipeline, err = bom.New(bom.Config{
		Store:               client,
		OrderSpreadsheetID:  cfg.sheets.spreadsheetID,
		RecipeSpreadsheetID: cfg.sheets.bomSpreadsheetID,
		Schema:              bom.DefaultSchema(),
		Locker:              locker,
		Alarm:               a,
		Options:             opts,
		Logger:              logger,
	})
	if err != nil {
		return nil, cleanup, err
	}

	a.registry = documents.DefaultRegistry(cfg.sheets.spreadsheetID)
	a.builder = documents.NewBuilder(client, a.pipeline, logger)
	if a.renderer, err = render.New(); err != nil {
		return nil, cleanup, err
	}
	if err := loadLogo(ctx, cfg, a.renderer); err != nil {
		logger.WithError(err).Warn("documents will be rendered without a logo")
	}

	converter, closeConverter, err := newConverter(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeConverter)
	a.converter = converter

	return a, cleanup, nil
}

func newConverter(ctx context.Context, cfg config, logger *logrus.Logger) (convert.Converter, func(), error) {
	switch cfg.converter.kind {
	case "webhook":
		if cfg.converter.webhookURL == "" {
			return nil, func() {}, errors.New("converter-webhook-url is required for the webhook converter")
		}
		return convert.NewWebhookConverter(cfg.converter.webhookURL, cfg.converter.webhookKey, cfg.converter.timeout), func() {}, nil
	case "chrome":
		var up convert.Uploader = storage.Dir{Root: cfg.gcs.localDir}
		closer := func() {}
		if cfg.gcs.bucket != "" {
			gcs, err := storage.NewGCS(ctx, cfg.gcs.bucket, cfg.gcs.prefix, cfg.gcs.credentialsJSON)
			if err != nil {
				return nil, closer, err
			}
			up = gcs
			closer = func() { gcs.Close() }
		}
		return convert.NewChromeConverter(cfg.converter.chromePath, cfg.converter.timeout, up, logger), closer, nil
	}
	return nil, func() {}, errors.New("unknown converter " + strconv.Quote(cfg.converter.kind))
}

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.db.maxOpenConns)
	db.SetMaxIdleConns(cfg.db.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(env(key, "")); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(env(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(env(key, "")); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(env(key, "")); err == nil {
		return d
	}
	return fallback
}
