package service

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"authmedia/internal/auth"
	"authmedia/internal/db/dbtest"
	"authmedia/internal/logging"
	"authmedia/internal/model"
	"authmedia/internal/repository"
)

const testPassword = "password123"

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerification(ctx context.Context, email, name, token string) error {
	args := m.Called(ctx, email, name, token)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, email, name, token string) error {
	args := m.Called(ctx, email, name, token)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordChanged(ctx context.Context, email, name string) error {
	args := m.Called(ctx, email, name)
	return args.Error(0)
}

// MockOAuthProvider is a mock implementation of OAuthProvider.
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*auth.GoogleProfile, *oauth2.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*auth.GoogleProfile), args.Get(1).(*oauth2.Token), args.Error(2)
}

// recordingRemover remembers DeleteProcessed calls.
type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) DeleteProcessed(filename, category string) {
	r.removed = append(r.removed, category+"/"+filename)
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	return repository.NewStore(dbtest.New(t))
}

func newTestSessions(store repository.Store) *sessionService {
	return NewSessionService(store, 30*24*time.Hour, 24*time.Hour, logging.Nop()).(*sessionService)
}

// seedUser inserts a user with a credential account for testPassword.
func seedUser(t *testing.T, store repository.Store, email, role string) *model.User {
	t.Helper()
	ctx := context.Background()
	user := &model.User{Name: "Test User", Email: email, Role: role, EmailVerified: true}
	require.NoError(t, store.Users().Create(ctx, user))

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, store.Accounts().Create(ctx, &model.Account{
		AccountID:  user.ID,
		ProviderID: model.ProviderCredential,
		UserID:     user.ID,
		Password:   &hash,
	}))
	return user
}

func writeTestImage(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 120, B: 200, A: 255})
	path := filepath.Join(t.TempDir(), "upload.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}
