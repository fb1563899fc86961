package converter

import (
	"errors"
	"testing"

	"github.com/nuance-dev/convierto-sub000/internal/format"
)

func desc(t *testing.T, ext string) format.Descriptor {
	t.Helper()
	d, ok := format.Lookup(ext)
	if !ok {
		t.Fatalf("unknown format %q", ext)
	}
	return d
}

func TestFactorySelection(t *testing.T) {
	f := NewFactory(&fakeBackend{})

	tests := []struct {
		name string
		from string
		to   string
		want interface{}
	}{
		{"ImageToImage", "jpg", "png", &ImageConverter{}},
		{"ImageToVideo", "png", "mp4", &ImageConverter{}},
		{"ImageToDocument", "jpg", "pdf", &DocumentConverter{}},
		{"AudioToAudio", "mp3", "wav", &AudioConverter{}},
		{"AudioToImage", "wav", "png", &AudioConverter{}},
		{"AudioToVideo", "mp3", "mp4", &AudioConverter{}},
		{"VideoToVideo", "mp4", "webm", &VideoConverter{}},
		{"VideoToImage", "mp4", "jpg", &VideoConverter{}},
		{"VideoToAudio", "mov", "mp3", &VideoConverter{}},
		{"DocumentToImage", "pdf", "png", &DocumentConverter{}},
		{"DocumentToDocument", "pdf", "pdf", &DocumentConverter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.For(desc(t, tt.from), desc(t, tt.to))
			if err != nil {
				t.Fatalf("For(%s, %s) failed: %v", tt.from, tt.to, err)
			}

			switch tt.want.(type) {
			case *ImageConverter:
				if _, ok := c.(*ImageConverter); !ok {
					t.Errorf("Expected ImageConverter, got %T", c)
				}
			case *AudioConverter:
				if _, ok := c.(*AudioConverter); !ok {
					t.Errorf("Expected AudioConverter, got %T", c)
				}
			case *VideoConverter:
				if _, ok := c.(*VideoConverter); !ok {
					t.Errorf("Expected VideoConverter, got %T", c)
				}
			case *DocumentConverter:
				if _, ok := c.(*DocumentConverter); !ok {
					t.Errorf("Expected DocumentConverter, got %T", c)
				}
			}
		})
	}
}

func TestFactoryIncompatiblePairs(t *testing.T) {
	f := NewFactory(&fakeBackend{})

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"DocumentToAudio", "pdf", "mp3"},
		{"DocumentToVideo", "pdf", "mp4"},
		{"AudioToDocument", "mp3", "pdf"},
		{"VideoToDocument", "mp4", "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.For(desc(t, tt.from), desc(t, tt.to))
			var incompatible *format.IncompatibleError
			if !errors.As(err, &incompatible) {
				t.Errorf("For(%s, %s): expected IncompatibleError, got %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestFactoryCachesVariants(t *testing.T) {
	f := NewFactory(&fakeBackend{})

	a, err := f.For(desc(t, "jpg"), desc(t, "png"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.For(desc(t, "png"), desc(t, "webp"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("Expected the same cached variant instance across calls")
	}
}

func TestFactoryCompositeCanConvert(t *testing.T) {
	f := NewFactory(&fakeBackend{})

	if !f.CanConvert(desc(t, "mp3"), desc(t, "mp4")) {
		t.Error("CanConvert(mp3, mp4) should be true")
	}
	if f.CanConvert(desc(t, "pdf"), desc(t, "mp3")) {
		t.Error("CanConvert(pdf, mp3) should be false")
	}
}
