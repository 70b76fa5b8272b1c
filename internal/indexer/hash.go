package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/maestro-ai/maestro/internal/core"
)

const hashBufSize = 8 * 1024

// HashFile streams absPath through SHA-256 and returns the lowercase
// hex digest. A missing file is a not-found error, everything else an
// indexing error.
func HashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.ErrNotFound("FILE_NOT_FOUND", "file does not exist").
				WithDetail("path", absPath)
		}
		return "", core.ErrIndexing(absPath, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, hashBufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", core.ErrIndexing(absPath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
