//go:build !cgo

package backend

import (
	"fmt"

	"github.com/nuance-dev/convierto-sub000/internal/format"
)

// InitVips is a no-op when built without cgo; image work stays on the
// pure-Go path.
func InitVips() {}

// ShutdownVips is a no-op when built without cgo.
func ShutdownVips() {}

// vipsEncodable reports whether the vips fast path can produce the target.
// Without cgo the fast path is never available.
func vipsEncodable(ext string) bool {
	return false
}

// vipsReencode is unavailable without cgo.
func vipsReencode(input, output string, target format.Descriptor, opts Options) error {
	return fmt.Errorf("vips unavailable: built without cgo")
}
