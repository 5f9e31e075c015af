package image

import (
	"bytes"
	"errors"
	stdimage "image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage() *stdimage.RGBA {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 23, 23))
	for y := 0; y < 23; y++ {
		for x := 0; x < 23; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(), nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", encodePNG(t), MIMEPNG},
		{"jpeg", encodeJPEG(t), MIMEJPEG},
		{"gif", encodeGIF(t), MIMEGIF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectType(tt.data)
			if err != nil {
				t.Fatalf("DetectType: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectType = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := DetectType([]byte("not an image")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestSanitize_KeepsFormat(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	for _, tc := range []struct {
		contentType string
		data        []byte
	}{
		{MIMEPNG, encodePNG(t)},
		{MIMEJPEG, encodeJPEG(t)},
	} {
		out, err := p.Sanitize(tc.data, tc.contentType)
		if err != nil {
			t.Fatalf("Sanitize(%s): %v", tc.contentType, err)
		}
		got, err := DetectType(out)
		if err != nil {
			t.Fatalf("DetectType: %v", err)
		}
		if got != tc.contentType {
			t.Errorf("output type = %s, want %s", got, tc.contentType)
		}
		clean, err := VerifyNoEXIF(out)
		if err != nil {
			t.Fatalf("VerifyNoEXIF: %v", err)
		}
		if !clean {
			t.Errorf("%s output still carries EXIF", tc.contentType)
		}
	}
}

func TestSanitize_GIFPassesThrough(t *testing.T) {
	data := encodeGIF(t)
	out, err := NewProcessor(DefaultConfig()).Sanitize(data, MIMEGIF)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("GIF bytes were modified")
	}
}

func TestSanitize_TypeMismatch(t *testing.T) {
	_, err := NewProcessor(DefaultConfig()).Sanitize(encodePNG(t), MIMEJPEG)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestNewProcessor_ClampsQuality(t *testing.T) {
	p := NewProcessor(ProcessorConfig{Quality: 0, StripMetadata: true})
	if p.config.Quality != 85 {
		t.Errorf("Quality = %d, want 85", p.config.Quality)
	}
}
