package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/middleware"
	"authmedia/internal/service"
	"authmedia/internal/upload"
)

// MediaHandler serves the admin media library.
type MediaHandler struct {
	media service.MediaService
	gate  *upload.Gate
}

// NewMediaHandler creates a media handler.
func NewMediaHandler(media service.MediaService, gate *upload.Gate) *MediaHandler {
	return &MediaHandler{media: media, gate: gate}
}

// MediaUploadResponse reports stored files and per-file failures.
type MediaUploadResponse struct {
	Success  bool                  `json:"success"`
	Uploaded []service.MediaFile   `json:"uploaded"`
	Errors   []service.UploadError `json:"errors"`
	Count    int                   `json:"count"`
}

// MediaListResponse is one page of the library.
type MediaListResponse struct {
	Success bool  `json:"success"`
	Total   int64 `json:"total"`
	*service.MediaList
}

// Upload godoc
// @Summary Upload media files
// @Description Each file is stored independently; failures are reported per file.
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param media formData file true "Up to 10 files"
// @Success 200 {object} MediaUploadResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/media/upload [post]
func (h *MediaHandler) Upload(c echo.Context) error {
	user := middleware.CurrentUser(c)
	return h.gate.Handle(c, upload.MediaProfile, func(files upload.Files) error {
		res := h.media.Upload(c.Request().Context(), user.ID, files)
		errs := res.Errors
		if errs == nil {
			errs = []service.UploadError{}
		}
		return c.JSON(http.StatusOK, MediaUploadResponse{
			Success:  len(res.Uploaded) > 0,
			Uploaded: res.Uploaded,
			Errors:   errs,
			Count:    len(res.Uploaded),
		})
	})
}

// List godoc
// @Summary List media files
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param category query string false "avatar or media"
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Offset"
// @Success 200 {object} MediaListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /admin/media/list [get]
func (h *MediaHandler) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}

	list, err := h.media.List(c.Request().Context(), service.MediaQuery{
		Category: c.QueryParam("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MediaListResponse{Success: true, Total: list.Pagination.Total, MediaList: list})
}

// Delete godoc
// @Summary Delete a media file
// @Description Avatars must be deleted through the avatar endpoint.
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param fileId path int true "Media ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/media/{fileId} [delete]
func (h *MediaHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("fileId"), 10, 64)
	if err != nil {
		return apperrors.Validation("invalid file id")
	}
	if err := h.media.Delete(c.Request().Context(), uint(id)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "file deleted"})
}
