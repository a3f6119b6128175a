package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug           bool
		TestMode        bool
		AppName         string
		Build           string
		Env             string
		WorkDir         string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		defaultFromEmail string

		Server      ServerConfig
		Database    DatabaseConfig
		Email       EmailConfig
		Redis       RedisConfig
		Marketplace MarketplaceConfig
		Scheduler   SchedulerConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per client
		RateBurst                 int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	EmailConfig struct {
		Driver             string // webhook | sendgrid | console
		WebhookURL         string
		WebhookSecret      string
		WebhookTimeout     time.Duration
		WebhookMaxAttempts int
		WebhookBackoff     time.Duration
		SendgridApiKey     string
	}

	RedisConfig struct {
		Address      string
		Password     string
		DB           int
		DirectoryTTL time.Duration
	}

	MarketplaceConfig struct {
		Currency                  string
		LeadFeeCents              int
		BookingRequestTTL         time.Duration
		InvitationTTL             time.Duration
		PasswordResetTimeoutDelta time.Duration
		PaymentsWebhookSecret     string
	}

	SchedulerConfig struct {
		Enabled               bool
		ExpireBookingsSpec    string
		CompleteBookingsSpec  string
		ExpireInvitationsSpec string
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from the environment, optionally seeded from config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			RateLimit:                 v.GetFloat64("server.rateLimit"),
			RateBurst:                 v.GetInt("server.rateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Email: EmailConfig{
			Driver:             strings.ToLower(v.GetString("email.driver")),
			WebhookURL:         v.GetString("email.webhookURL"),
			WebhookSecret:      v.GetString("email.webhookSecret"),
			WebhookTimeout:     v.GetDuration("email.webhookTimeout"),
			WebhookMaxAttempts: v.GetInt("email.webhookMaxAttempts"),
			WebhookBackoff:     v.GetDuration("email.webhookBackoff"),
			SendgridApiKey:     v.GetString("email.sendgridApiKey"),
		},
		Redis: RedisConfig{
			Address:      v.GetString("redis.address"),
			Password:     v.GetString("redis.password"),
			DB:           v.GetInt("redis.db"),
			DirectoryTTL: v.GetDuration("redis.directoryTTL"),
		},
		Marketplace: MarketplaceConfig{
			Currency:                  strings.ToUpper(v.GetString("marketplace.currency")),
			LeadFeeCents:              v.GetInt("marketplace.leadFeeCents"),
			BookingRequestTTL:         v.GetDuration("marketplace.bookingRequestTTL"),
			InvitationTTL:             v.GetDuration("marketplace.invitationTTL"),
			PasswordResetTimeoutDelta: v.GetDuration("marketplace.passwordResetTimeoutDelta"),
			PaymentsWebhookSecret:     v.GetString("marketplace.paymentsWebhookSecret"),
		},
		Scheduler: SchedulerConfig{
			Enabled:               v.GetBool("scheduler.enabled"),
			ExpireBookingsSpec:    v.GetString("scheduler.expireBookingsSpec"),
			CompleteBookingsSpec:  v.GetString("scheduler.completeBookingsSpec"),
			ExpireInvitationsSpec: v.GetString("scheduler.expireInvitationsSpec"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Slopeside")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k8#2xq-(0vz!p9d$ea+rw@n5h^7c1s=j&4fm)yu6tgl3o_ib")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.rateLimit", 5.0)
	v.SetDefault("server.rateBurst", 10)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "slopeside")
	v.SetDefault("database.user", "slopeside")
	v.SetDefault("database.password", "slopeside")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("email.driver", "console")
	v.SetDefault("email.webhookURL", "")
	v.SetDefault("email.webhookSecret", "")
	v.SetDefault("email.webhookTimeout", 10*time.Second)
	v.SetDefault("email.webhookMaxAttempts", 3)
	v.SetDefault("email.webhookBackoff", 500*time.Millisecond)
	v.SetDefault("email.sendgridApiKey", "")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.directoryTTL", 2*time.Minute)

	v.SetDefault("marketplace.currency", "EUR")
	v.SetDefault("marketplace.leadFeeCents", 500)
	v.SetDefault("marketplace.bookingRequestTTL", 7*24*time.Hour)
	v.SetDefault("marketplace.invitationTTL", 14*24*time.Hour)
	v.SetDefault("marketplace.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("marketplace.paymentsWebhookSecret", "")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.expireBookingsSpec", "@every 15m")
	v.SetDefault("scheduler.completeBookingsSpec", "@daily")
	v.SetDefault("scheduler.expireInvitationsSpec", "@hourly")
}

// NewTestConfig returns a config suitable for unit tests; nothing is read from the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		Debug:            false,
		TestMode:         true,
		AppName:          v.GetString("appName"),
		Build:            "test",
		Env:              "TEST",
		WorkDir:          ".",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			RateLimit:                 1000,
			RateBurst:                 1000,
		},
		Email: EmailConfig{
			Driver:             "console",
			WebhookTimeout:     time.Second,
			WebhookMaxAttempts: 3,
			WebhookBackoff:     time.Millisecond,
		},
		Redis: RedisConfig{
			DirectoryTTL: v.GetDuration("redis.directoryTTL"),
		},
		Marketplace: MarketplaceConfig{
			Currency:                  "EUR",
			LeadFeeCents:              500,
			BookingRequestTTL:         7 * 24 * time.Hour,
			InvitationTTL:             14 * 24 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
			PaymentsWebhookSecret:     "payments-secret",
		},
	}
}
