package intake

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/nfnt/resize"
)

const (
	photoMaxSide     = 1280
	photoJPEGQuality = 85
)

var ErrNotBase64 = errors.New("signature is not a base64 data url")

// AssetStore временные изображения заявки в локальной директории.
type AssetStore struct {
	dir string
}

func NewAssetStore(dir string) (*AssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &AssetStore{dir: dir}, nil
}

func (s *AssetStore) Dir() string {
	return s.dir
}

// SaveSignature декодирует data url подписи с холста и сохраняет PNG.
func (s *AssetStore) SaveSignature(slot int, dataURL string) (string, error) {
	if !strings.Contains(dataURL, "base64") {
		return "", ErrNotBase64
	}
	raw := dataURL
	if i := strings.LastIndex(raw, ","); i >= 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(raw), "=")); err != nil {
			return "", fmt.Errorf("decode signature: %w", err)
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode signature image: %w", err)
	}
	// 8 бит на канал, 16-битные PNG не встраиваются в PDF
	img := image.NewNRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	path := s.newPath(fmt.Sprintf("firma_tec%d", slot), ".png")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encode signature: %w", err)
	}
	return path, nil
}

// SavePhoto уменьшает фото до photoMaxSide по большей стороне и сохраняет JPEG.
func (s *AssetStore) SavePhoto(prefix string, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("empty photo")
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode photo: %w", err)
	}
	thmb := resize.Thumbnail(photoMaxSide, photoMaxSide, img, resize.Lanczos3)

	path := s.newPath(prefix, ".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := jpeg.Encode(f, thmb, &jpeg.Options{Quality: photoJPEGQuality}); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encode photo: %w", err)
	}
	return path, nil
}

// Remove удаляет файлы, ошибки только логируются.
func (s *AssetStore) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Remove temp asset", "path", p, "err", err)
		}
	}
}

func (s *AssetStore) newPath(prefix, ext string) string {
	u, _ := uuid.NewV4()
	return filepath.Join(s.dir, prefix+"_"+u.String()+ext)
}
