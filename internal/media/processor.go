// Package media validates, resizes and stores uploaded images.
package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // register WebP decoding
	"golang.org/x/sync/semaphore"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
	"authmedia/internal/metrics"
	"authmedia/internal/model"
)

const (
	AvatarFullSize      = 500
	AvatarThumbnailSize = 150
	avatarFullQuality   = 85
	avatarThumbQuality  = 80
	mediaThumbQuality   = 75

	outputExt  = ".jpg"
	OutputMIME = "image/jpeg"

	DirAvatarFull       = "avatars/full"
	DirAvatarThumbnails = "avatars/thumbnails"
	DirMedia            = "media"
)

// MaxInputPixels caps the declared width*height of a source image. Decoding
// allocates the full pixel buffer up front, so larger headers are rejected
// before any decode.
const MaxInputPixels = 0x3FFF * 0x3FFF

var supportedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Dimensions describes a decoded image header.
type Dimensions struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// MediaOptions tunes ProcessMedia. Zero values take the defaults.
type MediaOptions struct {
	MaxWidth        int
	MaxHeight       int
	Quality         int
	CreateThumbnail bool
	ThumbnailSize   int
}

// DefaultMediaOptions bounds images to 1920x1080 with a 300px thumbnail.
func DefaultMediaOptions() MediaOptions {
	return MediaOptions{
		MaxWidth:        1920,
		MaxHeight:       1080,
		Quality:         85,
		CreateThumbnail: true,
		ThumbnailSize:   300,
	}
}

// AvatarResult names the written avatar pair. Paths are relative to the
// storage root.
type AvatarResult struct {
	Filename      string
	FullPath      string
	ThumbnailPath string
	Size          int64
}

// MediaResult names a stored media file. Paths are relative to the storage root.
type MediaResult struct {
	Filename       string
	Path           string
	ThumbnailPath  *string
	MimeType       string
	Size           int64
	OriginalWidth  int
	OriginalHeight int
}

// Processor owns the derived-file directories under root.
type Processor struct {
	root   string
	sem    *semaphore.Weighted
	logger logging.Logger
	now    func() time.Time
}

// NewProcessor creates the output directories. At most workers images are
// decoded or encoded at once.
func NewProcessor(root string, workers int, logger logging.Logger) (*Processor, error) {
	if workers < 1 {
		workers = 1
	}
	for _, dir := range []string{DirAvatarFull, DirAvatarThumbnails, DirMedia} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Processor{
		root:   root,
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Root is the storage root derived paths are relative to.
func (p *Processor) Root() string {
	return p.root
}

// IsValidImage reports whether the bytes at path are a decodable JPEG, PNG,
// GIF or WebP within MaxInputPixels. The extension is ignored.
func IsValidImage(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil || !mimetype.EqualsAny(mt.String(), supportedImageTypes...) {
		return false
	}
	d, err := ReadDimensions(path)
	if err != nil {
		return false
	}
	return d.withinPixelLimit()
}

func (d Dimensions) withinPixelLimit() bool {
	if d.Width <= 0 || d.Height <= 0 {
		return false
	}
	return int64(d.Width)*int64(d.Height) <= MaxInputPixels
}

// ReadDimensions decodes only the image header.
func ReadDimensions(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// ProcessAvatar writes a 500x500 and a 150x150 center crop of src under the
// same filename in the avatar directories.
func (p *Processor) ProcessAvatar(ctx context.Context, src, userID string) (*AvatarResult, error) {
	if !IsValidImage(src) {
		return nil, apperrors.ErrInvalidImage
	}
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	defer metrics.ObserveSince(model.CategoryAvatar, time.Now())

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.ErrInvalidImage
	}
	img = flatten(img)

	filename, err := p.newName(userID)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(DirAvatarFull, filename)
	thumb := filepath.Join(DirAvatarThumbnails, filename)

	size, err := p.save(imaging.Fill(img, AvatarFullSize, AvatarFullSize, imaging.Center, imaging.Lanczos), full, avatarFullQuality)
	if err != nil {
		return nil, err
	}
	if _, err := p.save(imaging.Fill(img, AvatarThumbnailSize, AvatarThumbnailSize, imaging.Center, imaging.Lanczos), thumb, avatarThumbQuality); err != nil {
		p.remove(full)
		return nil, err
	}

	p.logger.Debug(ctx, "avatar processed", "user_id", userID, "filename", filename)
	return &AvatarResult{Filename: filename, FullPath: full, ThumbnailPath: thumb, Size: size}, nil
}

// ProcessMedia re-encodes src, shrinking it to fit within the configured
// bounds. Smaller images keep their size.
func (p *Processor) ProcessMedia(ctx context.Context, src, userID string, opts MediaOptions) (*MediaResult, error) {
	opts = withDefaults(opts)
	if !IsValidImage(src) {
		return nil, apperrors.ErrInvalidImage
	}
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	defer metrics.ObserveSince(model.CategoryMedia, time.Now())

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.ErrInvalidImage
	}
	img = flatten(img)
	bounds := img.Bounds()

	name, err := p.newName(userID)
	if err != nil {
		return nil, err
	}
	mainPath := filepath.Join(DirMedia, name)

	out := img
	if bounds.Dx() > opts.MaxWidth || bounds.Dy() > opts.MaxHeight {
		out = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}
	size, err := p.save(out, mainPath, opts.Quality)
	if err != nil {
		return nil, err
	}

	res := &MediaResult{
		Filename:       name,
		Path:           mainPath,
		MimeType:       OutputMIME,
		Size:           size,
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}
	if opts.CreateThumbnail {
		thumb := filepath.Join(DirMedia, thumbnailName(name))
		if _, err := p.save(imaging.Fill(img, opts.ThumbnailSize, opts.ThumbnailSize, imaging.Center, imaging.Lanczos), thumb, mediaThumbQuality); err != nil {
			p.remove(mainPath)
			return nil, err
		}
		res.ThumbnailPath = &thumb
	}
	return res, nil
}

// StoreFile copies a non-image upload into the media directory, keeping its
// extension.
func (p *Processor) StoreFile(src, originalName, userID string) (*MediaResult, error) {
	base, err := p.newBase(userID)
	if err != nil {
		return nil, err
	}
	name := base + strings.ToLower(filepath.Ext(originalName))
	rel := filepath.Join(DirMedia, name)

	size, err := copyFile(src, filepath.Join(p.root, rel))
	if err != nil {
		p.remove(rel)
		return nil, apperrors.Internal(err, "store file")
	}

	mime := "application/octet-stream"
	if mt, err := mimetype.DetectFile(src); err == nil {
		mime = mt.String()
	}
	return &MediaResult{Filename: name, Path: rel, MimeType: mime, Size: size}, nil
}

// DeleteProcessed removes the files derived for filename. Missing files are
// ignored.
func (p *Processor) DeleteProcessed(filename, category string) {
	filename = filepath.Base(filename)
	switch category {
	case model.CategoryAvatar:
		p.remove(filepath.Join(DirAvatarFull, filename))
		p.remove(filepath.Join(DirAvatarThumbnails, filename))
	case model.CategoryMedia:
		p.remove(filepath.Join(DirMedia, filename))
		p.remove(filepath.Join(DirMedia, thumbnailName(filename)))
	}
}

// Exists reports whether a path relative to the storage root is present.
func (p *Processor) Exists(rel string) bool {
	_, err := os.Stat(filepath.Join(p.root, rel))
	return err == nil
}

func (p *Processor) acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return apperrors.Internal(err, "image worker unavailable")
	}
	return nil
}

func (p *Processor) save(img image.Image, rel string, quality int) (int64, error) {
	abs := filepath.Join(p.root, rel)
	if err := imaging.Save(img, abs, imaging.JPEGQuality(quality)); err != nil {
		p.remove(rel)
		return 0, apperrors.Internal(err, "encode image")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, apperrors.Internal(err, "stat image")
	}
	return info.Size(), nil
}

func (p *Processor) remove(rel string) {
	if err := os.Remove(filepath.Join(p.root, rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn(context.Background(), "remove file failed", "path", rel, "error", err)
	}
}

// newName is <userID>-<unixMillis>-<16 hex>.jpg.
func (p *Processor) newName(userID string) (string, error) {
	base, err := p.newBase(userID)
	if err != nil {
		return "", err
	}
	return base + outputExt, nil
}

func (p *Processor) newBase(userID string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Internal(err, "random name")
	}
	return fmt.Sprintf("%s-%d-%s", userID, p.now().UnixMilli(), hex.EncodeToString(buf)), nil
}

func thumbnailName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "-thumb" + outputExt
}

func withDefaults(opts MediaOptions) MediaOptions {
	def := DefaultMediaOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = def.ThumbnailSize
	}
	return opts
}

// flatten composites transparent images onto white, since JPEG has no alpha.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
