package auth

import (
	"context"
	"errors"
	"fmt"
)

// RoleAdminStore derives the admin flag from the user's roles. It serves
// deployments without an admin_users table.
type RoleAdminStore struct {
	users UserStore
}

func NewRoleAdminStore(users UserStore) (*RoleAdminStore, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	return &RoleAdminStore{users: users}, nil
}

func (s *RoleAdminStore) GetAdminFlag(_ context.Context, userID string) (bool, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.HasRole(RoleAdmin), nil
}
