package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

// Mode tells how the document list was obtained.
type Mode string

const (
	ModeManifest Mode = "manifest"
	ModeFolders  Mode = "folders"
	ModeFlat     Mode = "flat"
)

// Resolution is the ordered document list for one archive.
type Resolution struct {
	Mode      Mode
	Documents []*entity.Document
	Warnings  []string
	// Manifest is set when a valid manifest was found, even if it was not used.
	Manifest *Manifest
}

// Resolve builds the document list for the archive unpacked at dir.
// A missing or invalid manifest is not an error; only an unreadable dir is.
func Resolve(dir string, logger *slog.Logger) (Resolution, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Resolution

	m, err := load(dir)
	switch {
	case err == nil:
		res.Manifest = m
		docs, warnings := fromManifest(dir, m)
		res.Warnings = append(res.Warnings, warnings...)
		if len(docs) > 0 {
			res.Mode = ModeManifest
			res.Documents = docs
			res.Warnings = append(res.Warnings, m.CountWarnings()...)
			logWarnings(logger, res.Warnings)
			return res, nil
		}
		res.Warnings = append(res.Warnings, "none of the declared files exist; scanning archive instead")
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("manifest.absent", "dir", dir)
	default:
		var me *ManifestError
		if errors.As(err, &me) {
			res.Warnings = append(res.Warnings, me.Error())
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("manifest unreadable: %v", err))
		}
	}

	docs, mode, err := scan(dir, logger)
	if err != nil {
		return res, err
	}
	res.Mode = mode
	res.Documents = docs
	logWarnings(logger, res.Warnings)
	return res, nil
}

func logWarnings(logger *slog.Logger, warnings []string) {
	for _, w := range warnings {
		logger.Warn("manifest.warning", "detail", w)
	}
}

func load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ManifestName))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func fromManifest(dir string, m *Manifest) ([]*entity.Document, []string) {
	var (
		docs     []*entity.Document
		warnings []string
		seen     = make(map[string]bool)
	)
	for _, f := range m.Files {
		name := filepath.Clean(filepath.FromSlash(f.Name))
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			warnings = append(warnings, fmt.Sprintf("declared file %q is outside the archive", f.Name))
			continue
		}
		typ := f.FileType()
		path, ok := locateDeclared(dir, name, typ)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("declared file %q not found in archive", f.Name))
			continue
		}
		if seen[path] {
			warnings = append(warnings, fmt.Sprintf("declared file %q listed more than once", f.Name))
			continue
		}
		seen[path] = true
		docs = append(docs, &entity.Document{
			Index: len(docs),
			Name:  filepath.Base(path),
			Path:  path,
			Type:  typ,
		})
	}
	return docs, warnings
}

// locateDeclared looks for a declared file under its type folder, then at the root.
func locateDeclared(dir, name string, typ constants.FileType) (string, bool) {
	var candidates []string
	switch typ {
	case constants.FileTypePDF:
		candidates = append(candidates, filepath.Join(dir, constants.PDFDir, name))
	case constants.FileTypeXML:
		candidates = append(candidates, filepath.Join(dir, constants.XMLDir, name))
	}
	candidates = append(candidates, filepath.Join(dir, name))
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// scan lists pdf/ then xml/ when either exists, otherwise the root (legacy layout).
func scan(dir string, logger *slog.Logger) ([]*entity.Document, Mode, error) {
	var folders []string
	for _, sub := range []string{constants.PDFDir, constants.XMLDir} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err == nil && info.IsDir() {
			folders = append(folders, filepath.Join(dir, sub))
		}
	}
	mode := ModeFolders
	if len(folders) == 0 {
		folders = []string{dir}
		mode = ModeFlat
	}

	var docs []*entity.Document
	for _, folder := range folders {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil, mode, fmt.Errorf("read %s: %w", folder, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			if name == constants.ManifestName {
				continue
			}
			typ := constants.MapExtToFileType(filepath.Ext(name))
			if typ == constants.FileTypeUnknown {
				logger.Debug("manifest.scan.skipped", "file", name)
				continue
			}
			docs = append(docs, &entity.Document{
				Index: len(docs),
				Name:  name,
				Path:  filepath.Join(folder, name),
				Type:  typ,
			})
		}
	}
	return docs, mode, nil
}
