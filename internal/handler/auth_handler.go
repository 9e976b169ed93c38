package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"authmedia/internal/middleware"
	"authmedia/internal/model"
	"authmedia/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	sessions    service.SessionService
	cookie      CookieConfig
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, sessions service.SessionService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions, cookie: cookie}
}

// SignUpRequest represents an email/password registration.
type SignUpRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required"`
	Image    *string `json:"image"`
}

// SignInRequest represents an email/password sign-in.
type SignInRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirectTo"`
}

// ResetPasswordRequest carries the new password. The token may also be
// passed as a query parameter.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	Password    string `json:"password"`
}

// ChangePasswordRequest represents a password change by the signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword     string `json:"currentPassword" validate:"required"`
	NewPassword         string `json:"newPassword" validate:"required"`
	RevokeOtherSessions bool   `json:"revokeOtherSessions"`
}

// SignUpResponse is returned after registration. Token is always null.
type SignUpResponse struct {
	Token *string     `json:"token"`
	User  *model.User `json:"user"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	Redirect bool        `json:"redirect"`
	Token    string      `json:"token"`
	User     *model.User `json:"user"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	Session *model.Session `json:"session"`
	User    *model.User    `json:"user"`
}

// SignUp godoc
// @Summary Register with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Registration data"
// @Success 200 {object} SignUpResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/sign-up/email [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.SignUp(c.Request().Context(), service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Image:    req.Image,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SignUpResponse{User: user})
}

// SignIn godoc
// @Summary Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} SignInResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/sign-in/email [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.authService.SignIn(c.Request().Context(), req.Email, req.Password, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	setSessionCookie(c, h.cookie, res.Session.Token, res.Session.ExpiresAt)
	return c.JSON(http.StatusOK, SignInResponse{Token: res.Session.Token, User: res.User})
}

// SignOut godoc
// @Summary Sign out of the current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	if err := h.authService.SignOut(c.Request().Context(), middleware.CurrentSession(c)); err != nil {
		return err
	}
	clearSessionCookie(c, h.cookie)
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// GetSession godoc
// @Summary Current session
// @Description Returns null when the request carries no valid session.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Router /auth/get-session [get]
func (h *AuthHandler) GetSession(c echo.Context) error {
	user, session := middleware.CurrentUser(c), middleware.CurrentSession(c)
	if user == nil || session == nil {
		return c.JSON(http.StatusOK, nil)
	}

	session, err := h.sessions.Refresh(c.Request().Context(), session)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionResponse{Session: session, User: user})
}

// SendVerificationEmail godoc
// @Summary Re-send the verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/send-verification-email [post]
func (h *AuthHandler) SendVerificationEmail(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.SendVerificationEmail(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: true})
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	if _, err := h.authService.VerifyEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: true})
}

// ForgetPassword godoc
// @Summary Request a password reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Email"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/forget-password [post]
func (h *AuthHandler) ForgetPassword(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.ForgetPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: true})
}

// ResetPassword godoc
// @Summary Reset a password with an emailed token
// @Tags auth
// @Accept json
// @Produce json
// @Param token query string false "Reset token"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}
	password := req.NewPassword
	if password == "" {
		password = req.Password
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: true})
}

// ChangePassword godoc
// @Summary Change the password of the signed-in user
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.authService.ChangePassword(
		c.Request().Context(),
		middleware.CurrentUser(c),
		middleware.CurrentSession(c),
		req.CurrentPassword,
		req.NewPassword,
		req.RevokeOtherSessions,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: true})
}

// SocialSignIn godoc
// @Summary Start a social sign-in
// @Tags auth
// @Param provider query string true "Provider" Enums(google)
// @Param callbackURL query string false "Relative path to land on"
// @Success 302
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/sign-in/social [get]
func (h *AuthHandler) SocialSignIn(c echo.Context) error {
	u, err := h.authService.SocialSignInURL(c.QueryParam("provider"), c.QueryParam("callbackURL"))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, u)
}

// OAuthCallback godoc
// @Summary Social sign-in callback
// @Tags auth
// @Param provider path string true "Provider"
// @Param code query string true "Authorization code"
// @Param state query string true "Signed state"
// @Success 302
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/callback/{provider} [get]
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	res, err := h.authService.OAuthCallback(
		c.Request().Context(),
		c.Param("provider"),
		c.QueryParam("code"),
		c.QueryParam("state"),
		c.RealIP(),
		c.Request().UserAgent(),
	)
	if err != nil {
		return err
	}
	setSessionCookie(c, h.cookie, res.Session.Token, res.Session.ExpiresAt)
	return c.Redirect(http.StatusFound, res.CallbackURL)
}
