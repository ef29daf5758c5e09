package dispatch

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// ReadExcerpt returns at most n bytes of the file at path, from its head or
// its tail. Invalid UTF-8, including a character cut at the excerpt edge, is
// dropped.
func ReadExcerpt(path string, n int, from string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if from == types.ExcerptTail {
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		if off := info.Size() - int64(n); off > 0 {
			if _, err := f.Seek(off, io.SeekStart); err != nil {
				return "", fmt.Errorf("seek tail: %w", err)
			}
		}
	}
	data, err := io.ReadAll(io.LimitReader(f, int64(n)))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
