// Package photo готовит фото отчёта: проверка формата, уменьшение и перекодирование в JPEG.
package photo

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

const (
	// MaxEdge - длинная сторона итогового изображения.
	MaxEdge = 600
	// Quality - качество JPEG.
	Quality = 50
	// MaxPixels - предел ширины на высоту, который разрешено декодировать.
	MaxPixels = 40_000_000

	dataURLPrefix = "data:image/jpeg;base64,"
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Processor превращает загрузку пользователя в data URL.
type Processor struct {
	maxUploadBytes int64
}

func NewProcessor(maxUploadMB int64) *Processor {
	return &Processor{maxUploadBytes: maxUploadMB * 1024 * 1024}
}

// MaxRequestBytes - предел тела запроса с фото: base64 раздувает файл на треть, плюс поля формы.
func (p *Processor) MaxRequestBytes() int64 {
	return p.maxUploadBytes*4/3 + 64*1024
}

// ProcessDataURL принимает фото, присланное как data URL, и прогоняет его через Process.
func (p *Processor) ProcessDataURL(s string) (string, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return "", apperror.Validation("фото должно быть data URL изображения")
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > p.maxUploadBytes+2 {
		return "", apperror.Validation("фото больше %d МБ", p.maxUploadBytes/(1024*1024))
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", apperror.Validation("фото должно быть data URL изображения")
	}
	return p.Process(bytes.NewReader(raw))
}

// Process читает не больше лимита, проверяет сигнатуру файла и возвращает JPEG data URL.
func (p *Processor) Process(r io.Reader) (string, error) {
	limited := io.LimitedReader{R: r, N: p.maxUploadBytes + 1}
	raw, err := io.ReadAll(&limited)
	if err != nil {
		return "", fmt.Errorf("photo: чтение: %w", err)
	}
	if int64(len(raw)) > p.maxUploadBytes {
		return "", apperror.Validation("фото больше %d МБ", p.maxUploadBytes/(1024*1024))
	}
	if len(raw) == 0 {
		return "", apperror.Validation("фото пустое")
	}

	kind, err := filetype.Match(raw)
	if err != nil || !allowedMIME[kind.MIME.Value] {
		return "", apperror.Validation("поддерживаются только JPEG, PNG и WebP")
	}

	// Заголовок объявляет размер холста; маленький файл может обещать гигапиксели.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", apperror.Validation("не удалось прочитать изображение")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", apperror.Validation("изображение %dx%d слишком большое", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", apperror.Validation("не удалось прочитать изображение")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(img, MaxEdge), &jpeg.Options{Quality: Quality}); err != nil {
		return "", fmt.Errorf("photo: кодирование: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Downscale уменьшает изображение так, чтобы длинная сторона была не больше maxEdge.
// Меньшие изображения возвращаются как есть.
func Downscale(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = max(1, h*maxEdge/w)
	} else {
		nh = maxEdge
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// IsDataURL проверяет, что строка похожа на результат Process.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix) && len(s) > len(dataURLPrefix)
}
