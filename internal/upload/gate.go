// Package upload accepts multipart files into a temporary directory and
// guarantees they are removed once the request is done with them.
package upload

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
)

// TempFile is an accepted upload waiting to be processed.
type TempFile struct {
	Path         string
	OriginalName string
	DeclaredMIME string
	Size         int64
}

// Cleanup removes the temp file. A missing file is not an error.
func (f TempFile) Cleanup() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Files is the set of temp files accepted from one request.
type Files []TempFile

// Cleanup removes every file and returns the first failure.
func (fs Files) Cleanup() error {
	var first error
	for _, f := range fs {
		if err := f.Cleanup(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Gate writes accepted uploads under its temp directory.
type Gate struct {
	tempDir string
	logger  logging.Logger
	now     func() time.Time
}

// NewGate creates the temp directory if needed.
func NewGate(tempDir string, logger logging.Logger) (*Gate, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Gate{tempDir: tempDir, logger: logger, now: time.Now}, nil
}

// Accept validates every part under the profile's field and only then
// writes them to disk. Any violation rejects the whole request.
func (g *Gate) Accept(form *multipart.Form, p Profile) (Files, error) {
	var headers []*multipart.FileHeader
	if form != nil {
		headers = form.File[p.Field]
	}
	if len(headers) == 0 {
		return nil, apperrors.ErrNoFile
	}
	if len(headers) > p.MaxFiles {
		return nil, apperrors.ErrTooManyFiles
	}
	for _, fh := range headers {
		if fh.Size > p.MaxFileSize {
			return nil, apperrors.ErrFileTooLarge
		}
		if !p.Allows(fh.Filename, fh.Header.Get(echo.HeaderContentType)) {
			return nil, apperrors.ErrFileType
		}
	}

	files := make(Files, 0, len(headers))
	for _, fh := range headers {
		f, err := g.store(fh, p.MaxFileSize)
		if err != nil {
			_ = files.Cleanup()
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Handle parses the request, accepts the profile's files and calls fn. The
// accepted temp files are removed when Handle returns, including when fn
// panics.
func (g *Gate) Handle(c echo.Context, p Profile, fn func(files Files) error) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, p.bodyLimit())

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.ErrFileTooLarge
		}
		return apperrors.ErrNoFile
	}
	defer func() { _ = form.RemoveAll() }()

	files, err := g.Accept(form, p)
	if err != nil {
		return err
	}
	defer func() {
		if err := files.Cleanup(); err != nil {
			g.logger.Warn(req.Context(), "temp file cleanup failed", "error", err)
		}
	}()

	return fn(files)
}

func (g *Gate) store(fh *multipart.FileHeader, max int64) (TempFile, error) {
	src, err := fh.Open()
	if err != nil {
		return TempFile{}, apperrors.Internal(err, "open upload")
	}
	defer src.Close()

	name, err := g.tempName(fh.Filename)
	if err != nil {
		return TempFile{}, apperrors.Internal(err, "temp name")
	}
	path := filepath.Join(g.tempDir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return TempFile{}, apperrors.Internal(err, "create temp file")
	}
	n, err := io.Copy(dst, io.LimitReader(src, max+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return TempFile{}, apperrors.Internal(err, "write temp file")
	}
	if n > max {
		_ = os.Remove(path)
		return TempFile{}, apperrors.ErrFileTooLarge
	}

	return TempFile{
		Path:         path,
		OriginalName: filepath.Base(fh.Filename),
		DeclaredMIME: fh.Header.Get(echo.HeaderContentType),
		Size:         n,
	}, nil
}

// tempName is <unixMillis>-<32 hex><original extension>.
func (g *Gate) tempName(original string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ext := filepath.Ext(filepath.Base(original))
	return fmt.Sprintf("%d-%s%s", g.now().UnixMilli(), hex.EncodeToString(buf), ext), nil
}
