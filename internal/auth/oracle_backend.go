package auth

import (
	"context"
	"errors"

	"camrent/storefront/internal/oracle"
)

// OracleBackend exposes the session table to the session oracle.
type OracleBackend struct {
	svc *Service
}

func NewOracleBackend(svc *Service) *OracleBackend {
	return &OracleBackend{svc: svc}
}

func (b *OracleBackend) GetSession(ctx context.Context, token string) (oracle.Session, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Session{}, err
	}
	sess, err := b.svc.ValidateToken(token)
	if errors.Is(err, ErrInvalidToken) {
		return oracle.Session{}, nil
	}
	if err != nil {
		return oracle.Session{}, err
	}
	return oracle.Session{IsActive: true, UserID: sess.UserID}, nil
}

func (b *OracleBackend) GetUser(ctx context.Context, token string) (*oracle.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := b.svc.ValidateToken(token)
	if errors.Is(err, ErrInvalidToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &oracle.UserRecord{
		ID:       sess.UserID,
		Username: sess.Username,
		Roles:    append([]string(nil), sess.Roles...),
	}, nil
}
