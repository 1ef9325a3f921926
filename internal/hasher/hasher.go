// Package hasher computes streaming SHA-1 hashes over files and
// readers, 64 KiB at a time, per spec section 4.1.
package hasher

import (
	"crypto/sha1" //nolint:gosec // content-addressing hash mandated by the remote manifest format, not used for security
	"encoding/hex"
	"io"
	"os"

	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// ChunkSize is the read buffer size used by every hashing pass in the
// patcher, matching the manifest protocol's 64 KiB chunking.
const ChunkSize = 64 * 1024

// HashFile returns the lowercase hex SHA-1 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", patcherr.Wrap(patcherr.KindIO, err)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader returns the lowercase hex SHA-1 of everything remaining
// to be read from r. If r also implements io.Seeker, it seeks to the
// start first so a reused handle hashes its full contents.
func HashReader(r io.Reader) (string, error) {
	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", patcherr.Wrap(patcherr.KindIO, err)
		}
	}

	h := sha1.New() //nolint:gosec
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", patcherr.Wrap(patcherr.KindIO, werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", patcherr.Wrap(patcherr.KindIO, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
