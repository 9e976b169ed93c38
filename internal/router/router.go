package router

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"authmedia/internal/auth"
	"authmedia/internal/config"
	apperrors "authmedia/internal/errors"
	"authmedia/internal/handler"
	"authmedia/internal/logging"
	"authmedia/internal/media"
	"authmedia/internal/metrics"
	"authmedia/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth   *handler.AuthHandler
	Admin  *handler.AdminHandler
	Avatar *handler.AvatarHandler
	Media  *handler.MediaHandler
	User   *handler.UserHandler
	Health *handler.HealthHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger logging.Logger,
	sessions middleware.Authenticator,
	limiter auth.Limiter,
	h Handlers,
) {
	e.HideBanner = true
	e.IPExtractor = ipExtractor(cfg.TrustProxy)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.BaseURL},
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.IsProduction(), logger)

	requireSession := middleware.SessionAuth(sessions)
	optionalSession := middleware.OptionalSession(sessions)
	requireAdmin := []echo.MiddlewareFunc{requireSession, middleware.RequireAdmin}
	limit := func(scope string) echo.MiddlewareFunc {
		return middleware.RateLimit(limiter, scope)
	}

	e.GET("/health", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Static("/uploads/avatars/full", filepath.Join(cfg.StorageDir, media.DirAvatarFull))
	e.Static("/uploads/avatars/thumbnails", filepath.Join(cfg.StorageDir, media.DirAvatarThumbnails))
	e.Static("/uploads/media", filepath.Join(cfg.StorageDir, media.DirMedia))

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/sign-up/email", h.Auth.SignUp, limit("sign-up"))
	authGroup.POST("/sign-in/email", h.Auth.SignIn, limit("sign-in"))
	authGroup.POST("/sign-out", h.Auth.SignOut, requireSession)
	authGroup.GET("/get-session", h.Auth.GetSession, optionalSession)
	authGroup.POST("/send-verification-email", h.Auth.SendVerificationEmail, limit("send-verification-email"))
	authGroup.GET("/verify-email", h.Auth.VerifyEmail)
	authGroup.POST("/forget-password", h.Auth.ForgetPassword, limit("forget-password"))
	authGroup.POST("/reset-password", h.Auth.ResetPassword, limit("reset-password"))
	authGroup.POST("/change-password", h.Auth.ChangePassword, requireSession)
	authGroup.GET("/sign-in/social", h.Auth.SocialSignIn)
	authGroup.GET("/callback/:provider", h.Auth.OAuthCallback)

	adminGroup := authGroup.Group("/admin", requireAdmin...)
	adminGroup.GET("/list-sessions", h.Admin.ListSessions)
	adminGroup.POST("/revoke-session", h.Admin.RevokeSession)
	adminGroup.POST("/revoke-user-sessions", h.Admin.RevokeUserSessions)
	adminGroup.GET("/list-users", h.Admin.ListUsers)
	adminGroup.POST("/create-user", h.Admin.CreateUser)
	adminGroup.POST("/update-user", h.Admin.UpdateUser)
	adminGroup.POST("/set-role", h.Admin.SetRole)
	adminGroup.POST("/ban-user", h.Admin.BanUser)
	adminGroup.POST("/unban-user", h.Admin.UnbanUser)
	adminGroup.POST("/remove-user", h.Admin.RemoveUser)

	userGroup := api.Group("/user")
	userGroup.GET("/me", h.User.Me, requireSession)
	userGroup.POST("/avatar", h.Avatar.Upload, requireSession)
	userGroup.DELETE("/avatar", h.Avatar.Delete, requireSession)
	userGroup.GET("/avatar/:userId", h.Avatar.Get)

	mediaGroup := api.Group("/admin/media", requireAdmin...)
	mediaGroup.POST("/upload", h.Media.Upload)
	mediaGroup.GET("/list", h.Media.List)
	mediaGroup.DELETE("/:fileId", h.Media.Delete)

	if cfg.PublicDir != "" {
		e.Static("/", cfg.PublicDir)
	}
}

// NewHTTPErrorHandler renders every error as an errors.ErrorResponse. Internal
// details are hidden in production.
func NewHTTPErrorHandler(production bool, logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			appErr  *apperrors.Error
			echoErr *echo.HTTPError
			httpErr *apperrors.HTTPError
		)
		switch {
		case errors.As(err, &appErr):
			httpErr = apperrors.MapErrorToHTTP(err, production)
		case errors.As(err, &echoErr):
			msg := http.StatusText(echoErr.Code)
			if m, ok := echoErr.Message.(string); ok && m != "" {
				msg = m
			}
			httpErr = apperrors.NewHTTPError(echoErr.Code, msg, statusCode(echoErr.Code))
		default:
			httpErr = apperrors.MapErrorToHTTP(err, production)
		}

		if httpErr.StatusCode >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request error", "error", err, "path", c.Path())
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(httpErr.StatusCode)
		} else {
			err = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
		if err != nil {
			logger.Error(c.Request().Context(), "write error response", "error", err)
		}
	}
}

// ipExtractor decides what c.RealIP returns. Forwarding headers are ignored
// unless the deployment vouches for its proxy.
func ipExtractor(trustProxy bool) echo.IPExtractor {
	if trustProxy {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}

// statusCode derives an error code such as NOT_FOUND from an HTTP status.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "HTTP_ERROR"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
