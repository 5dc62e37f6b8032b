package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AlumNetLabs/alumnet/internal/gateway"
	"github.com/AlumNetLabs/alumnet/internal/httpapi"
	"github.com/AlumNetLabs/alumnet/internal/mailer"
	"github.com/AlumNetLabs/alumnet/internal/media"
	"github.com/AlumNetLabs/alumnet/internal/notify"
	"github.com/AlumNetLabs/alumnet/internal/store/gormstore"
	"github.com/AlumNetLabs/alumnet/internal/store/pgstore"
	"github.com/AlumNetLabs/alumnet/pkg/directory"
	"github.com/AlumNetLabs/alumnet/pkg/payments"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagAllowedOrigins = "allowed-origins"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyAllowedOrigins = "allowed_origins"
	configKeySigningKey     = "token_signing_key"
	configKeyTokenIssuer    = "token_issuer"
	configKeyGatewayURL     = "gateway_base_url"
	configKeyGatewayKey     = "gateway_key_id"
	configKeyGatewaySecret  = "gateway_key_secret"
	configKeySMTPHost       = "smtp_host"
	configKeySMTPPort       = "smtp_port"
	configKeySMTPUsername   = "smtp_username"
	configKeySMTPPassword   = "smtp_password"
	configKeySMTPFrom       = "smtp_from"
	configKeyMediaURL       = "media_base_url"
	configKeyMediaKey       = "media_api_key"
	configKeyMediaSecret    = "media_api_secret"

	defaultDatabaseURL = "sqlite:///tmp/alumnet.db"
	defaultListenAddr  = ":8080"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins string
	SigningKey     string
	TokenIssuer    string
	GatewayBaseURL string
	GatewayKeyID   string
	GatewaySecret  string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	MediaBaseURL   string
	MediaAPIKey    string
	MediaAPISecret string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "alumnetd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "alumnetd",
		Short:         "Alumni network backend server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeySigningKey:     "TOKEN_SIGNING_KEY",
		configKeyTokenIssuer:    "TOKEN_ISSUER",
		configKeyGatewayURL:     "GATEWAY_BASE_URL",
		configKeyGatewayKey:     "GATEWAY_KEY_ID",
		configKeyGatewaySecret:  "GATEWAY_KEY_SECRET",
		configKeySMTPHost:       "SMTP_HOST",
		configKeySMTPPort:       "SMTP_PORT",
		configKeySMTPUsername:   "SMTP_USERNAME",
		configKeySMTPPassword:   "SMTP_PASSWORD",
		configKeySMTPFrom:       "SMTP_FROM",
		configKeyMediaURL:       "MEDIA_BASE_URL",
		configKeyMediaKey:       "MEDIA_API_KEY",
		configKeyMediaSecret:    "MEDIA_API_SECRET",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyListenAddr, cmd.Flags().Lookup(flagListenAddr)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyAllowedOrigins, cmd.Flags().Lookup(flagAllowedOrigins)); err != nil {
		return err
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.SigningKey = viper.GetString(configKeySigningKey)
	cfg.TokenIssuer = viper.GetString(configKeyTokenIssuer)
	cfg.GatewayBaseURL = viper.GetString(configKeyGatewayURL)
	cfg.GatewayKeyID = viper.GetString(configKeyGatewayKey)
	cfg.GatewaySecret = viper.GetString(configKeyGatewaySecret)
	cfg.SMTPHost = viper.GetString(configKeySMTPHost)
	cfg.SMTPPort = viper.GetInt(configKeySMTPPort)
	cfg.SMTPUsername = viper.GetString(configKeySMTPUsername)
	cfg.SMTPPassword = viper.GetString(configKeySMTPPassword)
	cfg.SMTPFrom = viper.GetString(configKeySMTPFrom)
	cfg.MediaBaseURL = viper.GetString(configKeyMediaURL)
	cfg.MediaAPIKey = viper.GetString(configKeyMediaKey)
	cfg.MediaAPISecret = viper.GetString(configKeyMediaSecret)

	if cfg.SigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	if cfg.GatewayBaseURL == "" || cfg.GatewayKeyID == "" || cfg.GatewaySecret == "" {
		return fmt.Errorf("gateway base url, key id, and key secret are required")
	}
	if cfg.MediaBaseURL == "" || cfg.MediaAPIKey == "" || cfg.MediaAPISecret == "" {
		return fmt.Errorf("media base url, api key, and api secret are required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }

	// On postgres the payment ledger runs over a dedicated pgx pool; the
	// account and community tables always go through gorm.
	var paymentStore payments.Store = store
	if driver == "postgres" {
		pool, poolErr := pgxpool.New(ctx, cfg.DatabaseURL)
		if poolErr != nil {
			return fmt.Errorf("pgx pool: %w", poolErr)
		}
		defer pool.Close()
		paymentStore = pgstore.New(pool)
	}

	ledger, err := payments.NewService(paymentStore, clock)
	if err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewaySecret,
	})
	if err != nil {
		return fmt.Errorf("gateway client init: %w", err)
	}
	verifier, err := payments.NewVerifier(ledger, gatewayClient)
	if err != nil {
		return fmt.Errorf("verifier init: %w", err)
	}

	resolver, err := directory.NewResolver(store)
	if err != nil {
		return fmt.Errorf("resolver init: %w", err)
	}
	profiles, err := directory.NewProfiles(resolver, store)
	if err != nil {
		return fmt.Errorf("profiles init: %w", err)
	}

	mediaClient, err := media.NewClient(media.Config{
		BaseURL:   cfg.MediaBaseURL,
		APIKey:    cfg.MediaAPIKey,
		APISecret: cfg.MediaAPISecret,
	})
	if err != nil {
		return fmt.Errorf("media client init: %w", err)
	}

	var otpSender mailer.Sender
	if cfg.SMTPHost != "" {
		otpSender = mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			UseTLS:   true,
		})
	} else {
		logger.Warn("no smtp host configured, logging otp codes instead")
		otpSender = mailer.NewLogSender(logger)
	}

	hub := notify.NewHub(logger)
	go hub.Run(ctx)

	return httpapi.Run(ctx, httpapi.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		TokenSigningKey: cfg.SigningKey,
		TokenIssuer:     cfg.TokenIssuer,
	}, logger, httpapi.Dependencies{
		Accounts:  store,
		Resolver:  resolver,
		Profiles:  profiles,
		Ledger:    ledger,
		Verifier:  verifier,
		Orders:    gatewayClient,
		Community: store,
		Hub:       hub,
		Mailer:    otpSender,
		Media:     mediaClient,
	})
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "alumnet.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
