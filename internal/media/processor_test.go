package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/model"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(t.TempDir(), 2, logging.Nop())
	require.NoError(t, err)
	return p
}

func writeJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	path := filepath.Join(t.TempDir(), "src.jpg")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func writeTransparentPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func writeBytes(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 6, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func dims(t *testing.T, p *Processor, rel string) Dimensions {
	t.Helper()
	d, err := ReadDimensions(filepath.Join(p.Root(), rel))
	require.NoError(t, err)
	return d
}

func TestIsValidImage(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want bool
	}{
		{"jpeg", func(t *testing.T) string { return writeJPEG(t, 10, 10) }, true},
		{"png", func(t *testing.T) string { return writeTransparentPNG(t, 4, 4) }, true},
		{"random bytes named png", func(t *testing.T) string { return writeBytes(t, "x.png", randomBytes(t, 512)) }, false},
		{"text named jpg", func(t *testing.T) string { return writeBytes(t, "x.jpg", []byte("just some text")) }, false},
		{"truncated png header", func(t *testing.T) string { return writeBytes(t, "x.png", []byte("\x89PNG\r\n\x1a\n")) }, false},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.jpg") }, false},
		{"header over pixel cap", func(t *testing.T) string { return writeBytes(t, "huge.png", pngHeader(30000, 30000)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidImage(tt.path(t)))
		})
	}
}

func TestProcessAvatar(t *testing.T) {
	p := newTestProcessor(t)

	res, err := p.ProcessAvatar(context.Background(), writeJPEG(t, 800, 600), "user-1")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^user-1-\d+-[0-9a-f]{16}\.jpg$`), res.Filename)
	assert.Equal(t, filepath.Join(DirAvatarFull, res.Filename), res.FullPath)
	assert.Equal(t, filepath.Join(DirAvatarThumbnails, res.Filename), res.ThumbnailPath)
	assert.Greater(t, res.Size, int64(0))

	full := dims(t, p, res.FullPath)
	assert.Equal(t, Dimensions{Width: AvatarFullSize, Height: AvatarFullSize, Format: "jpeg"}, full)
	thumb := dims(t, p, res.ThumbnailPath)
	assert.Equal(t, Dimensions{Width: AvatarThumbnailSize, Height: AvatarThumbnailSize, Format: "jpeg"}, thumb)
}

func TestProcessAvatar_SmallAndTransparentSource(t *testing.T) {
	p := newTestProcessor(t)

	res, err := p.ProcessAvatar(context.Background(), writeTransparentPNG(t, 40, 20), "user-1")
	require.NoError(t, err)
	assert.Equal(t, AvatarFullSize, dims(t, p, res.FullPath).Width)
	assert.Equal(t, AvatarThumbnailSize, dims(t, p, res.ThumbnailPath).Height)
}

func TestProcessAvatar_RejectsNonImage(t *testing.T) {
	p := newTestProcessor(t)

	_, err := p.ProcessAvatar(context.Background(), writeBytes(t, "fake.png", []byte("not an image")), "user-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidImage)

	entries, err := os.ReadDir(filepath.Join(p.Root(), DirAvatarFull))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_RejectsOversizedHeader(t *testing.T) {
	p := newTestProcessor(t)
	src := writeBytes(t, "huge.png", pngHeader(30000, 30000))

	d, err := ReadDimensions(src)
	require.NoError(t, err)
	assert.Equal(t, 30000, d.Width)

	_, err = p.ProcessAvatar(context.Background(), src, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidImage)
	_, err = p.ProcessMedia(context.Background(), src, "user-1", MediaOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidImage)
}

func TestDimensions_PixelLimit(t *testing.T) {
	assert.True(t, Dimensions{Width: 0x3FFF, Height: 0x3FFF}.withinPixelLimit())
	assert.False(t, Dimensions{Width: 0x3FFF + 1, Height: 0x3FFF}.withinPixelLimit())
	assert.False(t, Dimensions{Width: 0, Height: 10}.withinPixelLimit())
}

func TestProcessMedia_Resize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"wide source is downscaled keeping aspect", 2000, 1000, 1920, 960},
		{"tall source is bounded by height", 1000, 2000, 540, 1080},
		{"small source is never upscaled", 800, 600, 800, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t)

			res, err := p.ProcessMedia(context.Background(), writeJPEG(t, tt.w, tt.h), "user-1", DefaultMediaOptions())
			require.NoError(t, err)

			got := dims(t, p, res.Path)
			assert.Equal(t, tt.wantW, got.Width)
			assert.Equal(t, tt.wantH, got.Height)
			assert.Equal(t, tt.w, res.OriginalWidth)
			assert.Equal(t, tt.h, res.OriginalHeight)
			assert.Equal(t, OutputMIME, res.MimeType)

			require.NotNil(t, res.ThumbnailPath)
			assert.Equal(t, filepath.Join(DirMedia, res.Filename[:len(res.Filename)-len(".jpg")]+"-thumb.jpg"), *res.ThumbnailPath)
			thumb := dims(t, p, *res.ThumbnailPath)
			assert.Equal(t, 300, thumb.Width)
			assert.Equal(t, 300, thumb.Height)
		})
	}
}

func TestProcessMedia_WithoutThumbnail(t *testing.T) {
	p := newTestProcessor(t)
	opts := DefaultMediaOptions()
	opts.CreateThumbnail = false

	res, err := p.ProcessMedia(context.Background(), writeJPEG(t, 100, 100), "user-1", opts)
	require.NoError(t, err)
	assert.Nil(t, res.ThumbnailPath)
}

func TestProcessMedia_WaitsForWorker(t *testing.T) {
	p, err := NewProcessor(t.TempDir(), 1, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, p.sem.Acquire(context.Background(), 1))
	defer p.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.ProcessMedia(ctx, writeJPEG(t, 10, 10), "user-1", DefaultMediaOptions())
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStoreFile(t *testing.T) {
	p := newTestProcessor(t)
	src := writeBytes(t, "upload.tmp", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"))

	res, err := p.StoreFile(src, "Report.PDF", "user-1")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^user-1-\d+-[0-9a-f]{16}\.pdf$`), res.Filename)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Nil(t, res.ThumbnailPath)
	assert.True(t, p.Exists(res.Path))
}

func TestDeleteProcessed(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	avatar, err := p.ProcessAvatar(ctx, writeJPEG(t, 50, 50), "user-1")
	require.NoError(t, err)
	media, err := p.ProcessMedia(ctx, writeJPEG(t, 50, 50), "user-1", DefaultMediaOptions())
	require.NoError(t, err)

	p.DeleteProcessed(avatar.Filename, model.CategoryAvatar)
	assert.False(t, p.Exists(avatar.FullPath))
	assert.False(t, p.Exists(avatar.ThumbnailPath))

	p.DeleteProcessed(media.Filename, model.CategoryMedia)
	assert.False(t, p.Exists(media.Path))
	assert.False(t, p.Exists(*media.ThumbnailPath))

	// Second delete of the same files is silent.
	p.DeleteProcessed(avatar.Filename, model.CategoryAvatar)
	p.DeleteProcessed("../../etc/passwd", model.CategoryMedia)
}
