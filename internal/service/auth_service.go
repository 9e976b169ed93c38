package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"authmedia/internal/auth"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
	"authmedia/internal/repository"
)

const (
	resetPasswordPrefix = "reset-password:"
	resetPasswordExpiry = time.Hour
	// DefaultCallbackURL is where social sign-in lands without a valid callback.
	DefaultCallbackURL = "/dashboard.html"
)

// Notifier delivers transactional email.
type Notifier interface {
	SendVerification(ctx context.Context, email, name, token string) error
	SendPasswordReset(ctx context.Context, email, name, token string) error
	SendPasswordChanged(ctx context.Context, email, name string) error
}

// OAuthProvider is a social identity provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, *oauth2.Token, error)
}

// AuthConfig carries the policy knobs of AuthService.
type AuthConfig struct {
	RequireEmailVerification bool
}

// SignUpInput holds the fields of an email/password registration.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Image    *string
}

// SignInResult is returned for successful sign-ins.
type SignInResult struct {
	User        *model.User
	Session     *model.Session
	CallbackURL string
}

// AuthService handles authentication operations.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*model.User, error)
	SignIn(ctx context.Context, email, password, ipAddress, userAgent string) (*SignInResult, error)
	SignOut(ctx context.Context, session *model.Session) error
	SendVerificationEmail(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, user *model.User, current *model.Session, currentPassword, newPassword string, revokeOthers bool) error
	SocialSignInURL(provider, callbackURL string) (string, error)
	OAuthCallback(ctx context.Context, provider, code, state, ipAddress, userAgent string) (*SignInResult, error)
}

type authService struct {
	store    repository.Store
	sessions SessionService
	tokens   *auth.JWTService
	notifier Notifier
	google   OAuthProvider
	cfg      AuthConfig
	logger   logging.Logger
	now      func() time.Time
}

// NewAuthService creates a new authentication service. google may be nil
// when social sign-in is not configured.
func NewAuthService(store repository.Store, sessions SessionService, tokens *auth.JWTService, notifier Notifier, google OAuthProvider, cfg AuthConfig, logger logging.Logger) AuthService {
	return &authService{
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		google:   google,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the user and its credential account. No session is issued.
func (s *authService) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	_, err = s.store.Users().FindByEmail(ctx, email)
	if err == nil {
		metrics.AuthEvents.WithLabelValues("sign-up", metrics.ResultFailure).Inc()
		return nil, apperrors.ErrUserAlreadyExists
	}
	if !isNotFound(err) {
		return nil, apperrors.Internal(err, "check user existence")
	}

	user := &model.User{Name: strings.TrimSpace(in.Name), Email: email, Image: in.Image}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return tx.Accounts().Create(ctx, &model.Account{
			AccountID:  user.ID,
			ProviderID: model.ProviderCredential,
			UserID:     user.ID,
			Password:   &hash,
		})
	})
	metrics.AuthEvents.WithLabelValues("sign-up", metrics.Result(err)).Inc()
	if err != nil {
		return nil, apperrors.Internal(err, "create user")
	}
	s.logger.Info(ctx, "user signed up", "user_id", user.ID)

	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (s *authService) SignIn(ctx context.Context, email, password, ipAddress, userAgent string) (*SignInResult, error) {
	res, err := s.signIn(ctx, normalizeEmail(email), password, ipAddress, userAgent)
	metrics.AuthEvents.WithLabelValues("sign-in", metrics.Result(err)).Inc()
	return res, err
}

func (s *authService) signIn(ctx context.Context, email, password, ipAddress, userAgent string) (*SignInResult, error) {
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Internal(err, "load user")
	}

	account, err := s.store.Accounts().FindByUserAndProvider(ctx, user.ID, model.ProviderCredential)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Internal(err, "load account")
	}
	if account.Password == nil || !auth.CheckPassword(*account.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := enforceBan(ctx, s.store.Users(), user, s.now()); err != nil {
		return nil, err
	}
	if s.cfg.RequireEmailVerification && !user.EmailVerified {
		return nil, apperrors.ErrEmailNotVerified
	}

	session, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user signed in", "user_id", user.ID, "session_id", session.ID)
	return &SignInResult{User: user, Session: session}, nil
}

func (s *authService) SignOut(ctx context.Context, session *model.Session) error {
	if session == nil {
		return nil
	}
	err := s.sessions.Revoke(ctx, session.ID)
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		return err
	}
	return nil
}

// SendVerificationEmail mails a fresh verification link. Unknown and already
// verified addresses succeed silently.
func (s *authService) SendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperrors.Internal(err, "load user")
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.sendVerification(ctx, user); err != nil {
		return apperrors.Internal(err, "send verification email")
	}
	return nil
}

func (s *authService) sendVerification(ctx context.Context, user *model.User) error {
	token, err := s.tokens.GenerateVerificationToken(user.Email)
	if err != nil {
		return err
	}
	return s.notifier.SendVerification(ctx, user.Email, user.Name, token)
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	email, err := s.tokens.ValidateVerificationToken(token)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Internal(err, "load user")
	}
	if !user.EmailVerified {
		if err := s.store.Users().Update(ctx, user.ID, map[string]interface{}{"emailVerified": true}); err != nil {
			return nil, apperrors.Internal(err, "verify email")
		}
		user.EmailVerified = true
	}
	metrics.AuthEvents.WithLabelValues("verify-email", metrics.ResultSuccess).Inc()
	return user, nil
}

// ForgetPassword stores a one hour reset token and mails it. Unknown
// addresses succeed silently.
func (s *authService) ForgetPassword(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperrors.Internal(err, "load user")
	}

	token, err := auth.RandomHex(24)
	if err != nil {
		return apperrors.Internal(err, "generate reset token")
	}
	if err := s.store.Verifications().Create(ctx, &model.Verification{
		Identifier: resetPasswordPrefix + token,
		Value:      user.ID,
		ExpiresAt:  s.now().UTC().Add(resetPasswordExpiry),
	}); err != nil {
		return apperrors.Internal(err, "store reset token")
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
		s.logger.Warn(ctx, "password reset email not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password and signs the
// user out everywhere.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	identifier := resetPasswordPrefix + token
	v, err := s.store.Verifications().FindByIdentifier(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			return apperrors.ErrInvalidToken
		}
		return apperrors.Internal(err, "load reset token")
	}
	if !v.ExpiresAt.After(s.now()) {
		_ = s.store.Verifications().DeleteByIdentifier(ctx, identifier)
		return apperrors.ErrInvalidToken
	}

	user, err := findUser(ctx, s.store.Users(), v.Value)
	if err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := setPassword(ctx, tx, user.ID, hash); err != nil {
			return err
		}
		if err := tx.Verifications().DeleteByIdentifier(ctx, identifier); err != nil {
			return err
		}
		_, err := tx.Sessions().DeleteByUser(ctx, user.ID, "")
		return err
	})
	metrics.AuthEvents.WithLabelValues("reset-password", metrics.Result(err)).Inc()
	if err != nil {
		return apperrors.Internal(err, "reset password")
	}

	s.notifyPasswordChanged(ctx, user)
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, user *model.User, current *model.Session, currentPassword, newPassword string, revokeOthers bool) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	account, err := s.store.Accounts().FindByUserAndProvider(ctx, user.ID, model.ProviderCredential)
	if err != nil {
		if isNotFound(err) {
			return apperrors.ErrInvalidPassword
		}
		return apperrors.Internal(err, "load account")
	}
	if account.Password == nil || !auth.CheckPassword(*account.Password, currentPassword) {
		return apperrors.ErrInvalidPassword
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Accounts().UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		if !revokeOthers {
			return nil
		}
		except := ""
		if current != nil {
			except = current.ID
		}
		_, err := tx.Sessions().DeleteByUser(ctx, user.ID, except)
		return err
	})
	metrics.AuthEvents.WithLabelValues("change-password", metrics.Result(err)).Inc()
	if err != nil {
		return apperrors.Internal(err, "change password")
	}

	s.notifyPasswordChanged(ctx, user)
	return nil
}

// setPassword updates the credential account, creating one for users that
// only signed in socially so far.
func setPassword(ctx context.Context, tx repository.Store, userID, hash string) error {
	_, err := tx.Accounts().FindByUserAndProvider(ctx, userID, model.ProviderCredential)
	if isNotFound(err) {
		return tx.Accounts().Create(ctx, &model.Account{
			AccountID:  userID,
			ProviderID: model.ProviderCredential,
			UserID:     userID,
			Password:   &hash,
		})
	}
	if err != nil {
		return err
	}
	return tx.Accounts().UpdatePassword(ctx, userID, hash)
}

func (s *authService) notifyPasswordChanged(ctx context.Context, user *model.User) {
	if err := s.notifier.SendPasswordChanged(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn(ctx, "password changed email not sent", "user_id", user.ID, "error", err)
	}
}

// SocialSignInURL returns the provider consent URL. The callback travels in
// a signed state token.
func (s *authService) SocialSignInURL(provider, callbackURL string) (string, error) {
	if provider != model.ProviderGoogle || s.google == nil {
		return "", apperrors.Validation("provider not supported")
	}
	state, err := s.tokens.GenerateStateToken(safeCallback(callbackURL))
	if err != nil {
		return "", apperrors.Internal(err, "generate state")
	}
	return s.google.AuthCodeURL(state), nil
}

func (s *authService) OAuthCallback(ctx context.Context, provider, code, state, ipAddress, userAgent string) (*SignInResult, error) {
	res, err := s.oauthCallback(ctx, provider, code, state, ipAddress, userAgent)
	metrics.AuthEvents.WithLabelValues("social-sign-in", metrics.Result(err)).Inc()
	return res, err
}

func (s *authService) oauthCallback(ctx context.Context, provider, code, state, ipAddress, userAgent string) (*SignInResult, error) {
	if provider != model.ProviderGoogle || s.google == nil {
		return nil, apperrors.Validation("provider not supported")
	}
	callbackURL, err := s.tokens.ValidateStateToken(state)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	profile, token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "OAUTH_FAILED", "social sign-in failed")
	}
	if profile.Email == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "OAUTH_FAILED", "provider returned no email")
	}

	user, err := s.linkGoogleAccount(ctx, profile, token)
	if errors.Is(err, apperrors.ErrUnverifiedProviderEmail) {
		s.logger.Warn(ctx, "refused to link unverified provider email", "provider", provider)
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Internal(err, "link social account")
	}
	if err := enforceBan(ctx, s.store.Users(), user, s.now()); err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user signed in", "user_id", user.ID, "provider", provider)
	return &SignInResult{User: user, Session: session, CallbackURL: safeCallback(callbackURL)}, nil
}

// linkGoogleAccount finds or creates the user behind a Google profile and
// stores the latest provider tokens. An existing local user is only linked
// when Google has verified the email.
func (s *authService) linkGoogleAccount(ctx context.Context, profile *auth.GoogleProfile, token *oauth2.Token) (*model.User, error) {
	var user *model.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		account, err := tx.Accounts().FindByProviderAccount(ctx, model.ProviderGoogle, profile.ID)
		switch {
		case err == nil:
			user, err = tx.Users().FindByID(ctx, account.UserID)
			if err != nil {
				return err
			}
			applyToken(account, token)
			return tx.Accounts().Update(ctx, account)
		case !isNotFound(err):
			return err
		}

		email := normalizeEmail(profile.Email)
		user, err = tx.Users().FindByEmail(ctx, email)
		if err == nil && !profile.VerifiedEmail {
			return apperrors.ErrUnverifiedProviderEmail
		}
		if isNotFound(err) {
			user = &model.User{Name: profile.Name, Email: email, EmailVerified: profile.VerifiedEmail}
			if profile.Picture != "" {
				user.Image = &profile.Picture
			}
			if user.Name == "" {
				user.Name = email
			}
			err = tx.Users().Create(ctx, user)
		}
		if err != nil {
			return err
		}

		account = &model.Account{AccountID: profile.ID, ProviderID: model.ProviderGoogle, UserID: user.ID}
		applyToken(account, token)
		return tx.Accounts().Create(ctx, account)
	})
	return user, err
}

func applyToken(account *model.Account, token *oauth2.Token) {
	if token == nil {
		return
	}
	if token.AccessToken != "" {
		account.AccessToken = &token.AccessToken
	}
	if token.RefreshToken != "" {
		account.RefreshToken = &token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		exp := token.Expiry.UTC()
		account.AccessTokenExpiresAt = &exp
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		account.IDToken = &idToken
	}
}

// safeCallback only allows same-origin relative paths.
func safeCallback(callbackURL string) string {
	if !strings.HasPrefix(callbackURL, "/") || strings.HasPrefix(callbackURL, "//") || strings.Contains(callbackURL, "\\") {
		return DefaultCallbackURL
	}
	return callbackURL
}
