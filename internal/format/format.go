package format

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Category is the top-level media category of a format.
type Category string

const (
	// CategoryImage represents still image formats.
	CategoryImage Category = "image"
	// CategoryAudio represents pure audio formats.
	CategoryAudio Category = "audio"
	// CategoryVideo represents video container formats.
	CategoryVideo Category = "video"
	// CategoryDocument represents paged document formats.
	CategoryDocument Category = "document"

	// CategoryAudiovisual is the supercategory video formats conform to.
	// Pure audio joins it only via the visualize strategy.
	CategoryAudiovisual Category = "audiovisual"
)

// Categories lists the four top-level categories in a stable order.
var Categories = []Category{CategoryImage, CategoryAudio, CategoryVideo, CategoryDocument}

// Descriptor identifies a media format and its category.
type Descriptor struct {
	// Ext is the lowercase file extension without the leading dot.
	Ext string
	// MIME is the canonical MIME type.
	MIME string
	// Category is the top-level category the format belongs to.
	Category Category
}

// ConformsTo reports whether the format conforms to the given category.
// Conformance is reflexive per top-level category; video formats also
// conform to the audiovisual supercategory.
func (d Descriptor) ConformsTo(c Category) bool {
	if d.Category == c {
		return true
	}
	return c == CategoryAudiovisual && d.Category == CategoryVideo
}

// String returns the extension as the format's display name.
func (d Descriptor) String() string {
	return d.Ext
}

var byExt = map[string]Descriptor{
	// Images
	"jpg":  {Ext: "jpg", MIME: "image/jpeg", Category: CategoryImage},
	"jpeg": {Ext: "jpeg", MIME: "image/jpeg", Category: CategoryImage},
	"png":  {Ext: "png", MIME: "image/png", Category: CategoryImage},
	"gif":  {Ext: "gif", MIME: "image/gif", Category: CategoryImage},
	"bmp":  {Ext: "bmp", MIME: "image/bmp", Category: CategoryImage},
	"webp": {Ext: "webp", MIME: "image/webp", Category: CategoryImage},
	"tiff": {Ext: "tiff", MIME: "image/tiff", Category: CategoryImage},
	"tif":  {Ext: "tif", MIME: "image/tiff", Category: CategoryImage},
	"heic": {Ext: "heic", MIME: "image/heic", Category: CategoryImage},
	"heif": {Ext: "heif", MIME: "image/heif", Category: CategoryImage},

	// Audio
	"mp3":  {Ext: "mp3", MIME: "audio/mpeg", Category: CategoryAudio},
	"m4a":  {Ext: "m4a", MIME: "audio/mp4", Category: CategoryAudio},
	"wav":  {Ext: "wav", MIME: "audio/wav", Category: CategoryAudio},
	"flac": {Ext: "flac", MIME: "audio/flac", Category: CategoryAudio},
	"ogg":  {Ext: "ogg", MIME: "audio/ogg", Category: CategoryAudio},
	"aiff": {Ext: "aiff", MIME: "audio/aiff", Category: CategoryAudio},
	"aac":  {Ext: "aac", MIME: "audio/aac", Category: CategoryAudio},

	// Video
	"mp4":  {Ext: "mp4", MIME: "video/mp4", Category: CategoryVideo},
	"mov":  {Ext: "mov", MIME: "video/quicktime", Category: CategoryVideo},
	"mkv":  {Ext: "mkv", MIME: "video/x-matroska", Category: CategoryVideo},
	"webm": {Ext: "webm", MIME: "video/webm", Category: CategoryVideo},
	"avi":  {Ext: "avi", MIME: "video/x-msvideo", Category: CategoryVideo},
	"m4v":  {Ext: "m4v", MIME: "video/x-m4v", Category: CategoryVideo},
	"mpeg": {Ext: "mpeg", MIME: "video/mpeg", Category: CategoryVideo},
	"mpg":  {Ext: "mpg", MIME: "video/mpeg", Category: CategoryVideo},

	// Documents
	"pdf": {Ext: "pdf", MIME: "application/pdf", Category: CategoryDocument},
}

// Lookup returns the descriptor for a file extension. The extension may be
// given with or without the leading dot and in any case.
func Lookup(ext string) (Descriptor, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	d, ok := byExt[ext]
	return d, ok
}

// Parse classifies a file path by its extension.
func Parse(path string) (Descriptor, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return Descriptor{}, fmt.Errorf("no file extension in %q", path)
	}
	d, ok := Lookup(ext)
	if !ok {
		return Descriptor{}, fmt.Errorf("unrecognized format %q", strings.TrimPrefix(ext, "."))
	}
	return d, nil
}

// IsSupported reports whether the extension maps to a known format.
func IsSupported(ext string) bool {
	_, ok := Lookup(ext)
	return ok
}

// Supported returns every known descriptor sorted by extension.
func Supported() []Descriptor {
	out := make([]Descriptor, 0, len(byExt))
	for _, d := range byExt {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ext < out[j].Ext })
	return out
}
