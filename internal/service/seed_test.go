package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/runly/internal/config"
	"github.com/iliyamo/runly/internal/database"
	"github.com/iliyamo/runly/internal/model"
	"github.com/iliyamo/runly/internal/repository"
	"github.com/iliyamo/runly/internal/utils"
)

func TestSeedAdminCreatesThenKeeps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runly.db")
	require.NoError(t, database.MigrateUp(config.Config{DBDriver: "sqlite3", DBPath: path}))
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewUserRepo(db)
	ctx := context.Background()
	seed := config.SeedAdminConfig{Email: "admin@runly.local", Username: "runly_admin", Password: "Admin123!"}

	created, err := SeedAdmin(ctx, users, seed, 4)
	require.NoError(t, err)
	assert.True(t, created)

	u, err := users.GetByEmail(ctx, seed.Email)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, seed.Password))

	created, err = SeedAdmin(ctx, users, seed, 4)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSeedAdminPromotesExistingUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runly.db")
	require.NoError(t, database.MigrateUp(config.Config{DBDriver: "sqlite3", DBPath: path}))
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		Email: "ana@example.com", Username: "ana", PasswordHash: "keep",
		Age: 30, Gender: "zenski", FitnessLevel: "pocetni", PaceMinPerKm: 6.5, Role: model.RoleRunner,
	}
	require.NoError(t, users.Create(ctx, u))

	created, err := SeedAdmin(ctx, users, config.SeedAdminConfig{Email: u.Email, Username: "ignored", Password: "x"}, 4)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.Equal(t, "keep", got.PasswordHash)
}
