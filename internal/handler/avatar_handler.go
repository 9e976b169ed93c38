package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"authmedia/internal/middleware"
	"authmedia/internal/service"
	"authmedia/internal/upload"
)

// AvatarHandler serves avatar upload, lookup and deletion.
type AvatarHandler struct {
	avatars service.AvatarService
	gate    *upload.Gate
}

// NewAvatarHandler creates an avatar handler.
func NewAvatarHandler(avatars service.AvatarService, gate *upload.Gate) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, gate: gate}
}

// AvatarUploadResponse is returned after a successful upload.
type AvatarUploadResponse struct {
	Success bool `json:"success"`
	service.AvatarUpload
}

// Upload godoc
// @Summary Upload the caller's avatar
// @Description Replaces any previous avatar. Accepts one JPEG, PNG, GIF or WebP of at most 5 MiB.
// @Tags avatar
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image"
// @Success 200 {object} AvatarUploadResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /user/avatar [post]
func (h *AvatarHandler) Upload(c echo.Context) error {
	user := middleware.CurrentUser(c)
	return h.gate.Handle(c, upload.AvatarProfile, func(files upload.Files) error {
		res, err := h.avatars.Upload(c.Request().Context(), user.ID, files[0])
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, AvatarUploadResponse{Success: true, AvatarUpload: *res})
	})
}

// Get godoc
// @Summary Public avatar URLs of a user
// @Tags avatar
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} service.AvatarURLs
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/avatar/{userId} [get]
func (h *AvatarHandler) Get(c echo.Context) error {
	urls, err := h.avatars.URLs(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, urls)
}

// Delete godoc
// @Summary Delete the caller's avatar
// @Tags avatar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/avatar [delete]
func (h *AvatarHandler) Delete(c echo.Context) error {
	if err := h.avatars.Delete(c.Request().Context(), middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "avatar deleted"})
}
