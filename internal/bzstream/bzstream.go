// Package bzstream streams bzip2-compressed payloads to an arbitrary
// sink 64 KiB at a time, per spec section 4.2. Decompression only:
// the manifest protocol never asks the patcher to compress anything,
// and no third-party bz2 codec in the example corpus offers more than
// the standard library already does for decode-only use (see
// DESIGN.md).
package bzstream

import (
	"compress/bzip2"
	"io"

	"github.com/sanbornm/ttr-patcher/internal/hasher"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// ProgressFunc is invoked after each chunk is written to dst, with the
// cumulative number of decompressed bytes written so far.
type ProgressFunc func(bytesWritten int64)

// Decompress reads a bzip2 stream from src and writes the decompressed
// bytes to dst, reporting progress via onProgress (nil is fine). Any
// decoder error is reported as patcherr.KindCorruptArchive, matching
// the propagation policy in spec section 7.
func Decompress(dst io.Writer, src io.Reader, onProgress ProgressFunc) (int64, error) {
	zr := bzip2.NewReader(src)
	buf := make([]byte, hasher.ChunkSize)
	var total int64

	for {
		n, err := zr.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, patcherr.Wrap(patcherr.KindIO, werr)
			}
			total += int64(n)
			if onProgress != nil {
				onProgress(total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, patcherr.Wrap(patcherr.KindCorruptArchive, err)
		}
	}
	return total, nil
}
