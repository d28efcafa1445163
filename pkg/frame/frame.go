package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"PostureGuard/internal/entity"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyPayload     = errors.New("image payload is empty")
	ErrMalformedDataURL = errors.New("malformed data url")
	ErrInvalidBase64    = errors.New("image payload is not valid base64")
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

const dataURLPrefix = "data:"

// Decode accepts either a data URL ("data:image/jpeg;base64,...") or a bare
// base64 string and returns the decoded frame.
func Decode(payload string) (*entity.Frame, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	declaredMime := ""
	if strings.HasPrefix(payload, dataURLPrefix) {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, ErrMalformedDataURL
		}
		meta := strings.TrimPrefix(header, dataURLPrefix)
		if !strings.HasSuffix(meta, ";base64") {
			return nil, ErrMalformedDataURL
		}
		declaredMime = strings.TrimSuffix(meta, ";base64")
		payload = body
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, err
	}

	f, err := FromBytes(data)
	if err != nil {
		return nil, err
	}
	if f.MimeType == "" {
		f.MimeType = declaredMime
	}

	return f, nil
}

// FromBytes validates raw image bytes and reads their dimensions.
func FromBytes(data []byte) (*entity.Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrUnsupportedImage
	}

	return &entity.Frame{
		Data:     data,
		MimeType: mimeFor(format, data),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidBase64
	}
	return data, nil
}

func mimeFor(format string, data []byte) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}
