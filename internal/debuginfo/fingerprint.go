package debuginfo

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	coralerrors "github.com/coral-mesh/coral-probe/internal/errors"
	"github.com/coral-mesh/coral-probe/internal/safe"
)

// Fingerprint returns the xxh3 64-bit hash of the content of r. Two binaries
// with the same fingerprint produce the same source-to-address mapping.
func Fingerprint(r io.Reader) (uint64, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// FingerprintFile returns the fingerprint of the file at path.
func FingerprintFile(path string, logger zerolog.Logger) (sum uint64, err error) {
	f, err := safe.OpenRegularFile(path, &safe.OpenFileOptions{AllowSymlinks: true})
	if err != nil {
		return 0, fmt.Errorf("failed to open binary: %w", err)
	}
	defer coralerrors.CloseInto(f, &err, "failed to close binary")

	sum, err = Fingerprint(f)
	if err != nil {
		return 0, fmt.Errorf("failed to hash binary: %w", err)
	}

	logger.Debug().
		Str("binary", path).
		Str("fingerprint", fmt.Sprintf("%016x", sum)).
		Msg("Fingerprinted binary")

	return sum, nil
}
