package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Decoder registrieren
	_ "image/png"
	"strings"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable meldet Bilddaten, die sich nicht dekodieren lassen
var ErrUndecodable = errors.New("undecodable image")

// DefaultMaxPixels ist die Standardobergrenze für Breite × Höhe eines Frames
const DefaultMaxPixels int64 = 4096 * 4096

var maxPixels atomic.Int64

func init() {
	maxPixels.Store(DefaultMaxPixels)
}

// SetMaxPixels setzt die Obergrenze für Breite × Höhe. Werte <= 0 setzen
// den Standardwert.
func SetMaxPixels(n int64) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	maxPixels.Store(n)
}

// MaxPixels gibt die aktuelle Obergrenze für Breite × Höhe zurück
func MaxPixels() int64 {
	return maxPixels.Load()
}

// Decode dekodiert rohe Bilddaten (JPEG, PNG, WebP, BMP). Die Abmessungen
// werden vor dem Dekodieren aus dem Header gelesen, zu große Bilder werden
// abgewiesen, bevor Pixelpuffer angelegt werden.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrUndecodable)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrUndecodable, format)
	}
	if limit := maxPixels.Load(); int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, fmt.Errorf("%w: %s image %dx%d exceeds %d pixels",
			ErrUndecodable, format, cfg.Width, cfg.Height, limit)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrUndecodable, format)
	}
	return img, nil
}

// DecodeDataURL dekodiert eine Data-URL ("data:image/jpeg;base64,...") oder reines Base64
func DecodeDataURL(s string) (image.Image, error) {
	data, err := DataURLBytes(s)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// DataURLBytes liefert die Nutzdaten einer Data-URL bzw. eines Base64-Strings
func DataURLBytes(s string) ([]byte, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URL without payload", ErrUndecodable)
		}
		if !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, fmt.Errorf("%w: only base64 data URLs are supported", ErrUndecodable)
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Manche Browser lassen das Padding weg
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", ErrUndecodable, err)
		}
	}
	return data, nil
}
