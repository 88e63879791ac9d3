package config // package config loads application configuration from the environment and an optional file

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration values. Keys mirror the
// environment variable names (APP_ENV, DB_USER, ...) so the same names work
// in .env files, the process environment and a YAML config file.
type Config struct {
	Env        string // application environment (dev, test, prod)
	Port       string // HTTP port to listen on
	DBDriver   string // "mysql" or "sqlite3"
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	DBPath     string // sqlite3 database file
	BcryptCost int    // bcrypt cost for password hashing

	SessionTTL   time.Duration // lifetime of a login session
	CookieSecure bool          // set Secure on the session cookie
	CORSOrigin   string        // allowed cross origin; empty means same origin only

	RecaptchaSecret    string // empty disables the captcha check
	RecaptchaVerifyURL string

	AllowRoleSelfAssign bool // registration may pick admin/coach

	AMQPURL      string // empty disables audit events
	AuditLogPath string

	LogLevel string

	LoginRateLimit RateLimitConfig
	Redis          RedisConfig
	Gravatar       GravatarConfig
	SeedAdmin      SeedAdminConfig
}

// GravatarConfig controls the avatar fallback for users without an avatar URL.
type GravatarConfig struct {
	Enabled      bool
	DefaultImage string
	Rating       string
	Size         int
}

// SeedAdminConfig is read by the seed-admin command.
type SeedAdminConfig struct {
	Email    string
	Username string
	Password string
}

// IsProduction reports whether the app runs with APP_ENV=prod/production.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Load reads .env (when present), the process environment and, if path is
// non-empty, a config file. Environment values win over the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	cfg := Config{
		Env:                 v.GetString("app_env"),
		Port:                v.GetString("app_port"),
		DBDriver:            strings.ToLower(v.GetString("db_driver")),
		DBUser:              v.GetString("db_user"),
		DBPass:              v.GetString("db_pass"),
		DBHost:              v.GetString("db_host"),
		DBPort:              v.GetString("db_port"),
		DBName:              v.GetString("db_name"),
		DBPath:              v.GetString("db_path"),
		BcryptCost:          v.GetInt("bcrypt_cost"),
		SessionTTL:          v.GetDuration("session_ttl"),
		CORSOrigin:          strings.TrimSpace(v.GetString("cors_origin")),
		RecaptchaSecret:     v.GetString("recaptcha_secret_key"),
		RecaptchaVerifyURL:  v.GetString("recaptcha_verify_url"),
		AllowRoleSelfAssign: v.GetBool("allow_role_self_assign"),
		AMQPURL:             firstNonEmpty(v.GetString("rabbitmq_url"), v.GetString("amqp_url")),
		AuditLogPath:        v.GetString("audit_log_path"),
		LogLevel:            v.GetString("log_level"),
		LoginRateLimit:      loadRateLimitConfig(v),
		Redis:               loadRedisConfig(v),
		Gravatar: GravatarConfig{
			Enabled:      v.GetBool("gravatar_enabled"),
			DefaultImage: v.GetString("gravatar_default"),
			Rating:       v.GetString("gravatar_rating"),
			Size:         v.GetInt("gravatar_size"),
		},
		SeedAdmin: SeedAdminConfig{
			Email:    v.GetString("seed_admin_email"),
			Username: v.GetString("seed_admin_username"),
			Password: v.GetString("seed_admin_password"),
		},
	}
	// COOKIE_SECURE defaults to on in production only.
	if v.IsSet("cookie_secure") {
		cfg.CookieSecure = v.GetBool("cookie_secure")
	} else {
		cfg.CookieSecure = cfg.IsProduction()
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql":
		var missing []string
		for key, val := range map[string]string{
			"DB_USER": c.DBUser,
			"DB_HOST": c.DBHost,
			"DB_PORT": c.DBPort,
			"DB_NAME": c.DBName,
		} {
			if val == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return oops.Code("CONFIG_INVALID").With("missing", missing).Errorf("missing required env vars for mysql")
		}
	case "sqlite3":
		if c.DBPath == "" {
			return oops.Code("CONFIG_INVALID").Errorf("DB_PATH is required for sqlite3")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("driver", c.DBDriver).Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("SESSION_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return oops.Code("CONFIG_INVALID").With("cost", c.BcryptCost).Errorf("BCRYPT_COST out of range")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("app_port", "8080")
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_path", "runly.db")
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("session_ttl", 7*24*time.Hour)
	v.SetDefault("recaptcha_verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("allow_role_self_assign", true)
	v.SetDefault("audit_log_path", "logs/audit.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("gravatar_enabled", true)
	v.SetDefault("gravatar_default", "identicon")
	v.SetDefault("gravatar_rating", "g")
	v.SetDefault("gravatar_size", 0)
	v.SetDefault("seed_admin_email", "admin@runly.local")
	v.SetDefault("seed_admin_username", "runly_admin")
	v.SetDefault("seed_admin_password", "Admin123!")
	setRateLimitDefaults(v)
	setRedisDefaults(v)
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
