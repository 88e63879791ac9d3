package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "runly.db"))
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_LIMIT_BACKEND", "carrier-pigeon")
	t.Setenv("LOGIN_RATE_LIMIT_MAX", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "memory", cfg.LoginRateLimit.Backend)
	assert.Equal(t, 1, cfg.LoginRateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateLimit.Window)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runly.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_driver: sqlite3\ndb_path: from-file.db\nbcrypt_cost: 10\ncookie_secure: false\n"), 0o600))
	t.Setenv("DB_PATH", "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.CookieSecure)
}

func TestValidate(t *testing.T) {
	base := Config{DBDriver: "sqlite3", DBPath: "x.db", SessionTTL: time.Hour, BcryptCost: 12}
	require.NoError(t, base.Validate())

	mysql := base
	mysql.DBDriver = "mysql"
	mysql.DBUser = "runly"
	assert.Error(t, mysql.Validate())

	bad := base
	bad.DBDriver = "postgres"
	assert.Error(t, bad.Validate())

	bad = base
	bad.BcryptCost = 3
	assert.Error(t, bad.Validate())

	bad = base
	bad.SessionTTL = 0
	assert.Error(t, bad.Validate())
}
