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
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SchoolConfig struct {
		TimeZone     string
		Location     *time.Location
		PeriodStart  time.Duration // offset from midnight
		PeriodLength time.Duration
		BreakLength  time.Duration
	}

	EmailConfig struct {
		DefaultFromName    string
		DefaultFromAddress string
		SendgridApiKey     string
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		School   SchoolConfig
		Email    EmailConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) InMemory() bool {
	return c.Engine == "memory"
}

// PeriodBounds returns the start and end of `period` (1-based) on `date` in the school's time zone.
func (c SchoolConfig) PeriodBounds(date Date, period int) (time.Time, time.Time) {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	start := midnight.Add(c.PeriodStart + time.Duration(period-1)*(c.PeriodLength+c.BreakLength))
	return start, start.Add(c.PeriodLength)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Email.DefaultFromName, Address: c.Email.DefaultFromAddress}
}

func (c *Config) IsTestOrDebug() bool {
	return c.Debug || c.TestMode
}

// NewConfig reads the configuration from the environment.
// Variables are prefixed with the current ENV, e.g. `DEV_DATABASE_HOST`.
func NewConfig() *Config {
	conf, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func loadConfig() (*Config, error) {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Mahudhurio")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "wq1@8v!x=r0fsk$c7m4)e+xdn^a3j_tz(6lh#9pg5o2!ku*y")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "mahudhurio")
	v.SetDefault("database.user", "mahudhurio")
	v.SetDefault("database.password", "mahudhurio")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("school.timeZone", "UTC")
	v.SetDefault("school.periodStart", 8*time.Hour)
	v.SetDefault("school.periodLength", 45*time.Minute)
	v.SetDefault("school.breakLength", 10*time.Minute)

	v.SetDefault("email.defaultFromName", "Mahudhurio")
	v.SetDefault("email.defaultFromAddress", "noreply@localhost")
	v.SetDefault("email.sendgridApiKey", "")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := os.Getenv("ENV_FILE")
	if dotEnvPath == "" {
		dotEnvPath = filepath.Join("config", ".env."+strings.ToLower(env))
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
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
		},
		School: SchoolConfig{
			TimeZone:     v.GetString("school.timeZone"),
			PeriodStart:  v.GetDuration("school.periodStart"),
			PeriodLength: v.GetDuration("school.periodLength"),
			BreakLength:  v.GetDuration("school.breakLength"),
		},
		Email: EmailConfig{
			DefaultFromName:    v.GetString("email.defaultFromName"),
			DefaultFromAddress: v.GetString("email.defaultFromAddress"),
			SendgridApiKey:     v.GetString("email.sendgridApiKey"),
		},
	}

	loc, err := time.LoadLocation(conf.School.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "loading school time zone %q", conf.School.TimeZone)
	}
	conf.School.Location = loc
	return conf, nil
}

// NewTestConfig returns a Config suitable for tests: in-memory storage, no request logs, UTC.
func NewTestConfig() *Config {
	return &Config{
		Env:             "TEST",
		Build:           "test",
		AppName:         "Mahudhurio",
		Debug:           false,
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			DisableReqLogs:            true,
		},
		Database: DatabaseConfig{Engine: "memory"},
		School: SchoolConfig{
			TimeZone:     "UTC",
			Location:     time.UTC,
			PeriodStart:  8 * time.Hour,
			PeriodLength: 45 * time.Minute,
			BreakLength:  10 * time.Minute,
		},
		Email: EmailConfig{
			DefaultFromName:    "Mahudhurio",
			DefaultFromAddress: "noreply@localhost",
		},
	}
}
