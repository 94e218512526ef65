package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/infrastructure/persistence/sqlite"
)

type stubIssuer struct {
	calls int
	err   error
}

func (s *stubIssuer) IssueAnonymousToken(ctx context.Context) (string, string, error) {
	s.calls++
	if s.err != nil {
		return "", "", s.err
	}
	return "token:anon-server", "anon-server", nil
}

// fakeSubject treats "token:<user>" as a token for <user>
func fakeSubject(token string) (string, error) {
	if !strings.HasPrefix(token, "token:") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "token:"), nil
}

func newIdentityService(t *testing.T) *IdentityService {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journeygrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIdentityService(sqlite.NewSettingsRepository(db), fakeSubject, nil)
}

func TestIdentityService_AccountTokenWins(t *testing.T) {
	s := newIdentityService(t)
	issuer := &stubIssuer{}

	id, err := s.Resolve(context.Background(), "token:user-1", issuer)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.False(t, id.Anonymous)
	assert.True(t, id.Authenticated())
	assert.Zero(t, issuer.calls)

	_, err = s.Resolve(context.Background(), "garbage", issuer)
	assert.Error(t, err)
}

func TestIdentityService_LocalOnlyIsStable(t *testing.T) {
	s := newIdentityService(t)
	ctx := context.Background()

	first, err := s.Resolve(ctx, "", nil)
	require.NoError(t, err)
	assert.True(t, model.IsAnonymousUserID(first.UserID))
	assert.False(t, first.Authenticated())

	second, err := s.Resolve(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
}

func TestIdentityService_IssuesAnonymousOnce(t *testing.T) {
	s := newIdentityService(t)
	ctx := context.Background()
	local, err := s.LocalUserID(ctx)
	require.NoError(t, err)

	issuer := &stubIssuer{}
	id, err := s.Resolve(ctx, "", issuer)
	require.NoError(t, err)
	assert.Equal(t, "anon-server", id.UserID)
	assert.Equal(t, local, id.Previous)
	assert.True(t, id.Anonymous)
	assert.True(t, id.Authenticated())

	again, err := s.Resolve(ctx, "", issuer)
	require.NoError(t, err)
	assert.Equal(t, "anon-server", again.UserID)
	assert.Empty(t, again.Previous)
	assert.Equal(t, 1, issuer.calls)

	tok, err := s.AnonymousToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token:anon-server", tok)

	require.NoError(t, s.Forget(ctx))
	tok, err = s.AnonymousToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestIdentityService_IssuerFailureFallsBackToLocal(t *testing.T) {
	s := newIdentityService(t)
	id, err := s.Resolve(context.Background(), "", &stubIssuer{err: errors.New("offline")})
	require.NoError(t, err)
	assert.True(t, model.IsAnonymousUserID(id.UserID))
	assert.False(t, id.Authenticated())
}

func TestIdentityService_CurrentJourney(t *testing.T) {
	s := newIdentityService(t)
	ctx := context.Background()

	cur, err := s.CurrentJourney(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur)

	require.NoError(t, s.SetCurrentJourney(ctx, "j1"))
	cur, err = s.CurrentJourney(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", cur)

	require.NoError(t, s.SetCurrentJourney(ctx, ""))
	cur, err = s.CurrentJourney(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur)
}
