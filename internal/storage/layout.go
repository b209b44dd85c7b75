package storage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
)

// ErrContentConflict means a different file is already stored under the same name.
var ErrContentConflict = fmt.Errorf("%w: stored file has different content", common.ErrConflict)

// Layout is the on-disk receipt tree: <root>/receipts/<RFC>/<YYYY-MM-DD>/<file>.
// Older deployments stored files in <root>/receipts/<RFC>/<file> or flat in
// <root>/receipts/<file>; Locate still reads those.
type Layout struct {
	root   string
	logger *slog.Logger
}

func NewLayout(root string, logger *slog.Logger) *Layout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layout{root: root, logger: logger}
}

func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) receiptsDir() string {
	return filepath.Join(l.root, constants.ReceiptsDir)
}

func (l *Layout) rfcDir(rfc string) (string, error) {
	if rfc == "" || strings.ContainsAny(rfc, `/\`) || rfc == "." || rfc == ".." {
		return "", fmt.Errorf("%w: invalid rfc folder %q", common.ErrInvalidInput, rfc)
	}
	return filepath.Join(l.receiptsDir(), rfc), nil
}

// ReceiptPath is where the file of rfc's receipt for period is stored.
func (l *Layout) ReceiptPath(rfc string, period time.Time, filename string) (string, error) {
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	dir, err := l.rfcDir(rfc)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, period.Format(constants.PeriodDateLayout), name), nil
}

// CopyIn stores src for (rfc, period) under filename. An existing file is never replaced:
// identical content is accepted as already stored, different content fails with ErrContentConflict.
func (l *Layout) CopyIn(src, rfc string, period time.Time, filename string) (string, error) {
	dest, err := l.ReceiptPath(rfc, period, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create receipt folder: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".incoming-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("copy %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", filename, err)
	}

	// Link fails instead of replacing when dest exists.
	err = os.Link(tmpName, dest)
	switch {
	case err == nil:
		l.logger.Debug("storage.copied", "rfc", rfc, "file", filename, "path", dest)
		return dest, nil
	case errors.Is(err, fs.ErrExist):
		same, cerr := sameContent(tmpName, dest)
		if cerr != nil {
			return "", fmt.Errorf("compare %s: %w", filename, cerr)
		}
		if !same {
			l.logger.Warn("storage.conflict", "rfc", rfc, "file", filename, "path", dest)
			return "", fmt.Errorf("%s: %w", dest, ErrContentConflict)
		}
		l.logger.Debug("storage.already_stored", "rfc", rfc, "file", filename, "path", dest)
		return dest, nil
	default:
		return "", fmt.Errorf("place %s: %w", filename, err)
	}
}

// Locate finds a stored receipt file: the period folder first, then the legacy
// per-RFC folder, then the legacy flat folder.
func (l *Layout) Locate(rfc string, period time.Time, filename string) (string, error) {
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	candidates := make([]string, 0, 3)
	if p, err := l.ReceiptPath(rfc, period, name); err == nil {
		candidates = append(candidates, p)
	}
	if dir, err := l.rfcDir(rfc); err == nil {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	candidates = append(candidates, filepath.Join(l.receiptsDir(), name))
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: file %s for %s", common.ErrNotFound, filename, rfc)
}

func sameContent(a, b string) (bool, error) {
	ha, err := fileHash(a)
	if err != nil {
		return false, err
	}
	hb, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ha, hb), nil
}

func fileHash(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func cleanName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) || name != filename {
		return "", fmt.Errorf("%w: invalid file name %q", common.ErrInvalidInput, filename)
	}
	return name, nil
}
