// Пакет imagenorm — нормализация изображений заявок перед загрузкой:
// уменьшение до максимального размера и перекодирование в WebP.
package imagenorm

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedFormat — формат изображения не поддерживается.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат изображения")
	// ErrTooManyPixels — заявленный размер изображения превышает MaxPixels.
	// Проверяется по заголовку, до выделения памяти под кадр.
	ErrTooManyPixels = errors.New("изображение слишком большое")
)

// Options — параметры нормализации.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// MaxPixels — предел ширина×высота исходного изображения.
	MaxPixels int
	// Quality — качество WebP с потерями (1..100).
	Quality float32
}

// DefaultOptions — значения по умолчанию.
func DefaultOptions() Options {
	return Options{MaxWidth: 1920, MaxHeight: 1920, MaxPixels: 40_000_000, Quality: 82}
}

// Result — нормализованное изображение.
type Result struct {
	Data        []byte
	Ext         string
	ContentType string
	Width       int
	Height      int
}

// Normalizer приводит изображения к WebP ограниченного размера.
type Normalizer struct {
	opts Options
}

// New создаёт нормализатор.
func New(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return &Normalizer{opts: opts}
}

// Normalize декодирует изображение, уменьшает его при необходимости
// и кодирует в WebP. GIF возвращается без изменений, чтобы не потерять анимацию.
// Форматы, отличные от изображений, отклоняются с ErrUnsupportedFormat.
func (n *Normalizer) Normalize(data []byte) (*Result, error) {
	mt := mimetype.Detect(data).String()
	if !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt)
	}

	cfg, err := decodeConfig(mt, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: размер %dx%d", ErrUnsupportedFormat, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(n.opts.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d, допустимо не более %d пикселей",
			ErrTooManyPixels, cfg.Width, cfg.Height, n.opts.MaxPixels)
	}

	var img image.Image
	switch mt {
	case "image/gif":
		return &Result{Data: data, Ext: "gif", ContentType: mt, Width: cfg.Width, Height: cfg.Height}, nil
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	b := img.Bounds()
	if b.Dx() > n.opts.MaxWidth || b.Dy() > n.opts.MaxHeight {
		img = imaging.Fit(img, n.opts.MaxWidth, n.opts.MaxHeight, imaging.CatmullRom)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: n.opts.Quality}); err != nil {
		return nil, fmt.Errorf("кодирование WebP: %w", err)
	}

	nb := img.Bounds()
	return &Result{
		Data:        buf.Bytes(),
		Ext:         "webp",
		ContentType: "image/webp",
		Width:       nb.Dx(),
		Height:      nb.Dy(),
	}, nil
}

// decodeConfig читает только заголовок изображения.
func decodeConfig(mt string, data []byte) (image.Config, error) {
	if mt == "image/webp" {
		return webp.DecodeConfig(bytes.NewReader(data))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}
