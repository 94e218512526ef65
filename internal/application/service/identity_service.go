package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// AnonymousIssuer obtains an anonymous token from the sync server
type AnonymousIssuer interface {
	IssueAnonymousToken(ctx context.Context) (token, userID string, err error)
}

// SubjectFunc extracts the user ID from a bearer token
type SubjectFunc func(token string) (string, error)

// Identity is who the local session acts as
type Identity struct {
	UserID    string `json:"userId"`
	Token     string `json:"-"`
	Anonymous bool   `json:"anonymous"`

	// Previous is the local-only user ID replaced by a newly issued
	// anonymous identity; its local records should be reassigned
	Previous string `json:"-"`
}

// Authenticated reports whether the identity can talk to the server
func (i Identity) Authenticated() bool { return i.Token != "" }

// IdentityService resolves the session identity. An account token from the
// configuration wins; otherwise the anonymous identity kept in the settings
// table is used, and created on first use.
type IdentityService struct {
	settings repository.SettingsRepository
	subject  SubjectFunc
	logger   *zap.Logger
}

// NewIdentityService creates an identity service
func NewIdentityService(settings repository.SettingsRepository, subject SubjectFunc, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{settings: settings, subject: subject, logger: logger}
}

// Resolve returns the identity for accountToken. issuer may be nil when no
// server is configured, in which case the identity is local-only.
func (s *IdentityService) Resolve(ctx context.Context, accountToken string, issuer AnonymousIssuer) (Identity, error) {
	if accountToken != "" {
		userID, err := s.subject(accountToken)
		if err != nil {
			return Identity{}, fmt.Errorf("resolve account token failed: %w", err)
		}
		return Identity{UserID: userID, Token: accountToken}, nil
	}

	token, err := s.get(ctx, repository.SettingAnonymousToken)
	if err != nil {
		return Identity{}, err
	}
	if token != "" {
		userID, err := s.subject(token)
		if err == nil {
			return Identity{UserID: userID, Token: token, Anonymous: true}, nil
		}
		s.logger.Warn("stored anonymous token unusable", zap.Error(err))
	}

	if issuer != nil {
		token, userID, err := issuer.IssueAnonymousToken(ctx)
		if err == nil {
			previous, err := s.adopt(ctx, token, userID)
			if err != nil {
				return Identity{}, err
			}
			return Identity{UserID: userID, Token: token, Anonymous: true, Previous: previous}, nil
		}
		s.logger.Info("anonymous token not issued, working locally", zap.Error(err))
	}

	userID, err := s.LocalUserID(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Anonymous: true}, nil
}

// LocalUserID returns the anonymous user ID of this installation, creating it on first use
func (s *IdentityService) LocalUserID(ctx context.Context) (string, error) {
	id, err := s.get(ctx, repository.SettingUserID)
	if err != nil || id != "" {
		return id, err
	}
	id = model.NewAnonymousUserID()
	if err := s.settings.Set(ctx, repository.SettingUserID, id); err != nil {
		return "", fmt.Errorf("store anonymous user failed: %w", err)
	}
	return id, nil
}

// AnonymousToken returns the stored anonymous token, or ""
func (s *IdentityService) AnonymousToken(ctx context.Context) (string, error) {
	return s.get(ctx, repository.SettingAnonymousToken)
}

// Forget drops the anonymous token once its records moved to an account
func (s *IdentityService) Forget(ctx context.Context) error {
	return s.settings.Delete(ctx, repository.SettingAnonymousToken)
}

// CurrentJourney returns the journey commands act on by default, or ""
func (s *IdentityService) CurrentJourney(ctx context.Context) (string, error) {
	return s.get(ctx, repository.SettingCurrentJourneyID)
}

// SetCurrentJourney records the default journey; "" clears it
func (s *IdentityService) SetCurrentJourney(ctx context.Context, id string) error {
	if id == "" {
		return s.settings.Delete(ctx, repository.SettingCurrentJourneyID)
	}
	return s.settings.Set(ctx, repository.SettingCurrentJourneyID, id)
}

// adopt stores a server-issued anonymous identity and returns the local-only
// user ID it replaces, if any
func (s *IdentityService) adopt(ctx context.Context, token, userID string) (string, error) {
	previous, err := s.get(ctx, repository.SettingUserID)
	if err != nil {
		return "", err
	}
	if err := s.settings.Set(ctx, repository.SettingAnonymousToken, token); err != nil {
		return "", fmt.Errorf("store anonymous token failed: %w", err)
	}
	if err := s.settings.Set(ctx, repository.SettingUserID, userID); err != nil {
		return "", fmt.Errorf("store anonymous user failed: %w", err)
	}
	return previous, nil
}

func (s *IdentityService) get(ctx context.Context, key string) (string, error) {
	v, err := s.settings.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s failed: %w", key, err)
	}
	return v, nil
}
