package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

// Frame bounding keeps captured images inside the vision endpoint's
// limits before transmission.
const (
	maxFrameDim   = 1024
	maxFrameBytes = 512 << 10
	jpegQuality   = 85
	minQuality    = 20
	qualityDecay  = 0.9
)

// boundFrame validates one captured JPEG and re-encodes it only when it
// exceeds the dimension or byte limits.
func boundFrame(data []byte) (domain.EncodedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("decode frame header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return domain.EncodedImage{}, fmt.Errorf("frame has zero dimensions (%dx%d)", cfg.Width, cfg.Height)
	}

	if cfg.Width <= maxFrameDim && cfg.Height <= maxFrameDim && len(data) <= maxFrameBytes {
		return domain.EncodedImage{
			Data:     data,
			MIMEType: "image/jpeg",
			Width:    cfg.Width,
			Height:   cfg.Height,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("decode frame: %w", err)
	}

	w, h := targetDimensions(cfg.Width, cfg.Height, maxFrameDim)
	if w != cfg.Width || h != cfg.Height {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
	}

	encoded, err := encodeToFit(img, maxFrameBytes)
	if err != nil {
		return domain.EncodedImage{}, err
	}

	return domain.EncodedImage{
		Data:     encoded,
		MIMEType: "image/jpeg",
		Width:    w,
		Height:   h,
	}, nil
}

// targetDimensions shrinks (w, h) proportionally until both fit maxDim.
func targetDimensions(w, h, maxDim int) (int, int) {
	if w > maxDim {
		h = h * maxDim / w
		w = maxDim
	}
	if h > maxDim {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// encodeToFit lowers JPEG quality step by step until the result fits the
// byte budget or quality bottoms out.
func encodeToFit(img image.Image, maxBytes int) ([]byte, error) {
	quality := jpegQuality
	for {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
		if buf.Len() <= maxBytes || quality <= minQuality {
			return buf.Bytes(), nil
		}
		quality = int(float64(quality) * qualityDecay)
		if quality < minQuality {
			quality = minQuality
		}
	}
}
