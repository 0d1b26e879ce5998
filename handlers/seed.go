package handlers

import (
	"context"
	"fmt"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"github.com/smartbook/backend/service"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin makes sure at least one admin exists, promoting or creating the account for
// email. It does nothing when an admin is already present.
func EnsureAdmin(ctx context.Context, store service.UserStore, email, password string) error {
	admins, err := store.AdminsCount(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}
	email = normalizeEmail(email)
	existing, err := store.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	if existing != nil {
		logging.Info().Str("email", email).Msg("promoting existing user to admin")
		return store.SetRole(ctx, existing.ID, models.RoleAdmin)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u := newUser("Administrator", email, string(hash))
	u.Role = models.RoleAdmin
	if _, err := store.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logging.Info().Str("email", email).Msg("seeded admin account")
	return nil
}
