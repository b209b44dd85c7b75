package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultMaxBytes caps the total uncompressed size of one archive.
const DefaultMaxBytes int64 = 2 << 30

type Options struct {
	// MaxBytes is the total uncompressed size allowed; <= 0 uses DefaultMaxBytes.
	MaxBytes int64
}

// Workspace is a per-batch scratch directory holding the unpacked archive.
// It is owned by one worker and must be released with Close.
type Workspace struct {
	base   string // directory created for this run
	root   string // archive root inside base
	files  int
	bytes  int64
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open validates archivePath as a ZIP and unpacks it into a fresh directory under tempRoot.
// Any failure returns an *ArchiveError and leaves nothing behind.
func Open(ctx context.Context, archivePath, tempRoot string, batchID int, opts Options, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if zr != nil {
			_ = zr.Close()
		}
		return nil, &ArchiveError{Path: archivePath, Reason: "cannot open as zip", Err: err}
	}
	defer zr.Close()

	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return nil, &ArchiveError{Path: archivePath, Reason: "cannot create workspace root", Err: err}
	}
	base, err := os.MkdirTemp(tempRoot, fmt.Sprintf("batch-%d-", batchID))
	if err != nil {
		return nil, &ArchiveError{Path: archivePath, Reason: "cannot create workspace", Err: err}
	}

	ws := &Workspace{base: base, root: base, logger: logger}
	if err := ws.unpack(ctx, archivePath, zr.File, opts.MaxBytes); err != nil {
		_ = os.RemoveAll(base)
		return nil, err
	}
	ws.root = singleFolderRoot(base)

	logger.Info("archive.unpacked",
		"batch_id", batchID,
		"workspace", base,
		"files", ws.files,
		"bytes", ws.bytes)
	return ws, nil
}

func (w *Workspace) unpack(ctx context.Context, archivePath string, files []*zip.File, maxBytes int64) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &ArchiveError{Path: archivePath, Reason: "extraction cancelled", Err: err}
		}
		name := filepath.FromSlash(f.Name)
		if skipEntry(f.Name) {
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if !f.Mode().IsRegular() {
			w.logger.Debug("archive.entry.skipped", "entry", f.Name, "mode", f.Mode().String())
			continue
		}

		dest := filepath.Join(w.base, name)
		if !within(w.base, dest) {
			return &ArchiveError{Path: archivePath, Reason: fmt.Sprintf("entry %q escapes the workspace", f.Name)}
		}
		if w.bytes+int64(f.UncompressedSize64) > maxBytes {
			return &ArchiveError{Path: archivePath, Reason: fmt.Sprintf("uncompressed size exceeds %d bytes", maxBytes)}
		}

		n, err := extractFile(f, dest, maxBytes-w.bytes)
		if err != nil {
			return &ArchiveError{Path: archivePath, Reason: fmt.Sprintf("cannot extract %q", f.Name), Err: err}
		}
		w.bytes += n
		w.files++
	}
	return nil
}

var errTooLarge = errors.New("entry larger than declared size limit")

func extractFile(f *zip.File, dest string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	// Read one byte past the budget so a lying header is caught.
	n, copyErr := io.Copy(out, io.LimitReader(rc, budget+1))
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return n, err
	}
	if n > budget {
		return n, errTooLarge
	}
	return n, nil
}

// skipEntry drops macOS resource forks and hidden files.
func skipEntry(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" || (strings.HasPrefix(part, ".") && part != "." && part != "..") {
			return true
		}
	}
	return false
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// singleFolderRoot descends into dir when it holds exactly one directory and nothing else.
func singleFolderRoot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}

// Dir is the archive root to resolve documents from.
func (w *Workspace) Dir() string {
	return w.root
}

// Files is the number of regular files unpacked.
func (w *Workspace) Files() int {
	return w.files
}

// Close removes the workspace. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = os.RemoveAll(w.base)
		if w.closeErr != nil {
			w.logger.Warn("archive.workspace.cleanup_failed", "workspace", w.base, "error", w.closeErr)
		}
	})
	return w.closeErr
}
