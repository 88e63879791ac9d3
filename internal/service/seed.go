package service

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/iliyamo/runly/internal/config"
	"github.com/iliyamo/runly/internal/model"
	"github.com/iliyamo/runly/internal/repository"
	"github.com/iliyamo/runly/internal/utils"
)

// SeedAdmin makes sure an admin account exists for cfg.Email. An existing
// user is promoted (its password is left alone); otherwise a new admin is
// created with a neutral profile. created reports which case applied.
func SeedAdmin(ctx context.Context, users *repository.UserRepo, cfg config.SeedAdminConfig, bcryptCost int) (created bool, err error) {
	errb := oops.In("seed").With("email", cfg.Email)

	u, err := users.GetByEmail(ctx, cfg.Email)
	switch {
	case err == nil:
		if u.Role == model.RoleAdmin {
			return false, nil
		}
		if err := users.SetRole(ctx, u.ID, model.RoleAdmin); err != nil {
			return false, errb.Wrapf(err, "promote user")
		}
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, errb.Wrapf(err, "look up user")
	}

	hash, err := utils.HashPassword(cfg.Password, bcryptCost)
	if err != nil {
		return false, errb.Wrapf(err, "hash password")
	}
	admin := &model.User{
		Email:        cfg.Email,
		Username:     cfg.Username,
		PasswordHash: hash,
		Age:          30,
		Gender:       "drugo",
		FitnessLevel: "srednji",
		PaceMinPerKm: 6,
		Role:         model.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return false, errb.Wrapf(err, "create admin")
	}
	return true, nil
}
