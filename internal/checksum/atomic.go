package checksum

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// WriteAtomic writes content to path via a tempfile+fsync+rename so readers
// never observe a partially-written file. On failure the temp file is
// unlinked by the underlying library.
func WriteAtomic(path string, content []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("write atomic %s: %w", path, err)
	}
	return nil
}
