package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/middleware"
	"authmedia/internal/model"
	"authmedia/internal/repository"
	"authmedia/internal/service"
)

// AdminHandler serves the admin session and user management endpoints.
type AdminHandler struct {
	sessions service.SessionService
	admin    service.AdminService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(sessions service.SessionService, admin service.AdminService) *AdminHandler {
	return &AdminHandler{sessions: sessions, admin: admin}
}

// SessionUser is the user summary attached to a listed session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AdminSession is one active session in the admin listing.
type AdminSession struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	IPAddress *string     `json:"ipAddress"`
	UserAgent *string     `json:"userAgent"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`
}

// SessionListResponse wraps the active sessions.
type SessionListResponse struct {
	Sessions []AdminSession `json:"sessions"`
}

// RevokeSessionRequest names a session by id.
type RevokeSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// UserIDRequest names a user.
type UserIDRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// CreateUserRequest represents an admin-created user.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserData holds the editable profile fields.
type UpdateUserData struct {
	Name          *string `json:"name"`
	Email         *string `json:"email" validate:"omitempty,email"`
	EmailVerified *bool   `json:"emailVerified"`
}

// UpdateUserRequest represents a profile change.
type UpdateUserRequest struct {
	UserID string         `json:"userId" validate:"required"`
	Data   UpdateUserData `json:"data"`
}

// SetRoleRequest changes a user's role.
type SetRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=user admin"`
}

// BanUserRequest bans a user. BanExpiresIn is in seconds; zero bans forever.
type BanUserRequest struct {
	UserID       string `json:"userId" validate:"required"`
	BanReason    string `json:"banReason"`
	BanExpiresIn int64  `json:"banExpiresIn" validate:"gte=0"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *model.User `json:"user"`
}

// RevokeUserSessionsResponse reports how many sessions were deleted.
type RevokeUserSessionsResponse struct {
	Success bool  `json:"success"`
	Revoked int64 `json:"revoked"`
}

// ListSessions godoc
// @Summary List active sessions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/admin/list-sessions [get]
func (h *AdminHandler) ListSessions(c echo.Context) error {
	rows, err := h.sessions.ListActive(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]AdminSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, AdminSession{
			ID:        r.ID,
			UserID:    r.UserID,
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			User: SessionUser{
				ID:    r.UserID,
				Email: r.UserEmail,
				Name:  r.UserName,
				Role:  r.UserRole,
			},
		})
	}
	return c.JSON(http.StatusOK, SessionListResponse{Sessions: out})
}

// RevokeSession godoc
// @Summary Revoke a session by id
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RevokeSessionRequest true "Session"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/revoke-session [post]
func (h *AdminHandler) RevokeSession(c echo.Context) error {
	var req RevokeSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.sessions.RevokeAsAdmin(c.Request().Context(), middleware.CurrentSession(c), req.SessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// RevokeUserSessions godoc
// @Summary Revoke all sessions of a user
// @Description The caller's current session is kept.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UserIDRequest true "User"
// @Success 200 {object} RevokeUserSessionsResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/admin/revoke-user-sessions [post]
func (h *AdminHandler) RevokeUserSessions(c echo.Context) error {
	var req UserIDRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.sessions.RevokeUserSessions(c.Request().Context(), middleware.CurrentSession(c), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RevokeUserSessionsResponse{Success: true, Revoked: n})
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param searchField query string false "name or email"
// @Param searchValue query string false "Substring to match"
// @Param filterField query string false "role, banned or emailVerified"
// @Param filterValue query string false "Exact value"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.UserPage
// @Failure 400 {object} errors.ErrorResponse
// @Router /auth/admin/list-users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}

	filter := repository.UserFilter{
		SearchField: c.QueryParam("searchField"),
		SearchValue: c.QueryParam("searchValue"),
		FilterField: c.QueryParam("filterField"),
		FilterValue: c.QueryParam("filterValue"),
		Limit:       limit,
		Offset:      offset,
	}
	switch filter.SearchField {
	case "", "name", "email":
	default:
		return apperrors.Validation("searchField must be name or email")
	}
	switch filter.FilterField {
	case "", "role", "banned", "emailVerified":
	default:
		return apperrors.Validation("filterField must be role, banned or emailVerified")
	}

	page, err := h.admin.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// CreateUser godoc
// @Summary Create a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /auth/admin/create-user [post]
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.CreateUser(c.Request().Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}

// UpdateUser godoc
// @Summary Update a user's profile
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/update-user [post]
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.UpdateUser(c.Request().Context(), req.UserID, service.UpdateUserInput{
		Name:          req.Data.Name,
		Email:         req.Data.Email,
		EmailVerified: req.Data.EmailVerified,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}

// SetRole godoc
// @Summary Set a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SetRoleRequest true "Role"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/set-role [post]
func (h *AdminHandler) SetRole(c echo.Context) error {
	var req SetRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.SetRole(c.Request().Context(), req.UserID, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}

// BanUser godoc
// @Summary Ban a user
// @Description Deletes all sessions of the user.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BanUserRequest true "Ban"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/ban-user [post]
func (h *AdminHandler) BanUser(c echo.Context) error {
	var req BanUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.BanUser(
		c.Request().Context(),
		middleware.CurrentUser(c).ID,
		req.UserID,
		req.BanReason,
		time.Duration(req.BanExpiresIn)*time.Second,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}

// UnbanUser godoc
// @Summary Lift a ban
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UserIDRequest true "User"
// @Success 200 {object} UserResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/unban-user [post]
func (h *AdminHandler) UnbanUser(c echo.Context) error {
	var req UserIDRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.UnbanUser(c.Request().Context(), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}

// RemoveUser godoc
// @Summary Delete a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UserIDRequest true "User"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/admin/remove-user [post]
func (h *AdminHandler) RemoveUser(c echo.Context) error {
	var req UserIDRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.admin.RemoveUser(c.Request().Context(), middleware.CurrentUser(c).ID, req.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation(name + " must be a number")
	}
	return n, nil
}
