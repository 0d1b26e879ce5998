package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartbook/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UpdateProfile applies a partial profile update and returns the stored user.
func (l *Library) UpdateProfile(ctx context.Context, userID primitive.ObjectID, up models.ProfileUpdate) (*models.User, error) {
	if up.FullName != nil {
		name := strings.TrimSpace(*up.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: fullName cannot be empty", models.ErrInvalidInput)
		}
		up.FullName = &name
	}
	if _, err := l.user(ctx, userID); err != nil {
		return nil, err
	}
	if err := l.store.UpdateProfile(ctx, userID, up); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return l.user(ctx, userID)
}

// Users lists every account, for admins.
func (l *Library) Users(ctx context.Context) ([]models.User, error) {
	users, err := l.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SetRole changes a user's role. The last admin cannot be demoted.
func (l *Library) SetRole(ctx context.Context, targetID primitive.ObjectID, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: role must be user or admin", models.ErrInvalidInput)
	}
	target, err := l.user(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}
	if target.IsAdmin() {
		if err := l.ensureOtherAdmin(ctx); err != nil {
			return nil, err
		}
	}
	if err := l.store.SetRole(ctx, targetID, role); err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	target.Role = role
	return target, nil
}

// DeleteUser removes an account and its reading activity. Reviews stay and are shown
// under the anonymous name; uploaded books stay in the catalog. Admins cannot delete
// themselves or the last admin. It returns the deleted user so stored files can be removed.
func (l *Library) DeleteUser(ctx context.Context, callerID, targetID primitive.ObjectID) (*models.User, error) {
	if callerID == targetID {
		return nil, fmt.Errorf("%w: cannot delete your own account", models.ErrInvalidInput)
	}
	target, err := l.user(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() {
		if err := l.ensureOtherAdmin(ctx); err != nil {
			return nil, err
		}
	}
	if err := l.store.DeleteUserBooksByUser(ctx, targetID); err != nil {
		return nil, fmt.Errorf("delete reading activity: %w", err)
	}
	if err := l.store.DeleteUser(ctx, targetID); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return target, nil
}

func (l *Library) ensureOtherAdmin(ctx context.Context) error {
	admins, err := l.store.AdminsCount(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins <= 1 {
		return fmt.Errorf("%w: cannot remove the last admin", models.ErrInvalidInput)
	}
	return nil
}
