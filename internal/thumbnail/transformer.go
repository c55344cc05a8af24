package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"log/slog"
	"time"

	"github.com/phrazzld/todo-api/internal/platform/logger"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// Width and Height are the fixed dimensions of every thumbnail.
	Width  = 100
	Height = 100

	// Extension is appended to the raw key to name the derived artifact.
	Extension = "jpeg"

	// ContentType of the derived artifact.
	ContentType = "image/jpeg"

	// DefaultQuality is the JPEG quality used when none is configured.
	DefaultQuality = 90

	// maxSourcePixels rejects images whose decoded size would exhaust memory.
	maxSourcePixels = 64 << 20
)

// ErrImageTooLarge is wrapped in a DecodeError when the source header
// declares more than maxSourcePixels pixels.
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// BlobStore reads and writes objects by key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Transformer produces thumbnails. It holds no per-call state and is safe
// for concurrent use.
type Transformer struct {
	source  BlobStore
	derived BlobStore
	quality int
	logger  *slog.Logger
}

// NewTransformer creates a Transformer reading raw uploads from source and
// writing thumbnails to derived. A quality outside 1..100 selects
// DefaultQuality.
func NewTransformer(source, derived BlobStore, quality int, logger *slog.Logger) (*Transformer, error) {
	if source == nil {
		return nil, errors.New("source blob store cannot be nil")
	}
	if derived == nil {
		return nil, errors.New("derived blob store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	return &Transformer{
		source:  source,
		derived: derived,
		quality: quality,
		logger:  logger.With(slog.String("component", "thumbnail_transformer")),
	}, nil
}

// DerivedKey returns the key a thumbnail for rawKey is stored under.
func DerivedKey(rawKey string) string {
	return rawKey + "." + Extension
}

// Transform builds the thumbnail for key and returns the derived key.
// It fails with *StorageError when the raw blob cannot be read or the
// thumbnail cannot be written, and with *DecodeError when the blob is not an
// image. Nothing is retried.
func (t *Transformer) Transform(ctx context.Context, key string) (string, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)
	start := time.Now()

	raw, err := t.source.Get(ctx, key)
	if err != nil {
		return "", &StorageError{Op: "get", Key: key, Err: err}
	}

	out, format, err := Resize(raw, t.quality)
	if err != nil {
		return "", &DecodeError{Key: key, Err: err}
	}

	// A cancelled invocation must not leave a thumbnail behind that nobody
	// will reference.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	derivedKey := DerivedKey(key)
	if err := t.derived.Put(ctx, derivedKey, out, ContentType); err != nil {
		return "", &StorageError{Op: "put", Key: derivedKey, Err: err}
	}

	log.Debug("thumbnail written",
		slog.String("key", key),
		slog.String("derived_key", derivedKey),
		slog.String("source_format", format),
		slog.Int("source_bytes", len(raw)),
		slog.Int("thumbnail_bytes", len(out)),
		slog.Duration("duration", time.Since(start)))

	return derivedKey, nil
}

// Resize decodes raw and returns a Width×Height JPEG encoding of it along
// with the detected source format.
func Resize(raw []byte, quality int) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return nil, format, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, format, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	// JPEG has no alpha channel; composite transparent sources over white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, format, fmt.Errorf("encode thumbnail: %w", err)
	}

	return buf.Bytes(), format, nil
}
