package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func names(res Resolution) []string {
	out := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		out[i] = d.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"periodType":"quincenal","periodId":"2024-01","fechaPeriodo":"2024-01-15","counts":{"pdf":1,"xml":1,"total":2},"files":[{"name":"a.pdf","type":"pdf"},{"name":"a.xml","type":"XML"}]}`},
		{name: "bom", data: "\xef\xbb\xbf" + `{"files":[]}`},
		{name: "not json", data: `{files:`, wantErr: true},
		{name: "missing files", data: `{"periodId":"x"}`, wantErr: true},
		{name: "bad type", data: `{"files":[{"name":"a.doc","type":"doc"}]}`, wantErr: true},
		{name: "negative count", data: `{"counts":{"pdf":-1},"files":[]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			if tt.wantErr {
				var me *ManifestError
				if !errors.As(err, &me) {
					t.Fatalf("expected ManifestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, f := range m.Files {
				if f.Type != "pdf" && f.Type != "xml" {
					t.Fatalf("type not normalized: %q", f.Type)
				}
			}
		})
	}
}

func TestResolveManifestAuthoritative(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"manifest.json":                   `{"counts":{"pdf":2,"xml":1,"total":3},"files":[{"name":"ABC850101AAA.xml","type":"xml"},{"name":"recibo_Juan_Perez_Enero.pdf","type":"pdf"},{"name":"missing.pdf","type":"pdf"}]}`,
		"xml/ABC850101AAA.xml":            "<x/>",
		"pdf/recibo_Juan_Perez_Enero.pdf": "%PDF",
		"pdf/undeclared.pdf":              "%PDF",
	})

	res, err := Resolve(dir, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Mode != ModeManifest {
		t.Fatalf("expected manifest mode, got %s", res.Mode)
	}
	if want := []string{"ABC850101AAA.xml", "recibo_Juan_Perez_Enero.pdf"}; !equal(names(res), want) {
		t.Fatalf("documents = %v, want %v", names(res), want)
	}
	if res.Documents[0].Type != constants.FileTypeXML || res.Documents[1].Type != constants.FileTypePDF {
		t.Fatalf("unexpected types")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning for the missing declared file")
	}
}

func TestResolveManifestNothingPresentFallsBack(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"manifest.json": `{"files":[{"name":"ghost.pdf","type":"pdf"}]}`,
		"pdf/real.pdf":  "%PDF",
	})
	res, err := Resolve(dir, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Mode != ModeFolders || !equal(names(res), []string{"real.pdf"}) {
		t.Fatalf("unexpected resolution %s %v", res.Mode, names(res))
	}
}

func TestResolveInvalidManifestFallsBack(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"manifest.json": `not json`,
		"b.xml":         "<x/>",
		"a.pdf":         "%PDF",
		"notes.txt":     "skip me",
	})
	res, err := Resolve(dir, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Mode != ModeFlat {
		t.Fatalf("expected flat mode, got %s", res.Mode)
	}
	if !equal(names(res), []string{"a.pdf", "b.xml"}) {
		t.Fatalf("unexpected documents %v", names(res))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
}

func TestResolveFoldersOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"xml/b.xml": "<x/>",
		"xml/a.xml": "<x/>",
		"pdf/z.pdf": "%PDF",
		"pdf/y.pdf": "%PDF",
		"stray.pdf": "%PDF",
	})
	res, err := Resolve(dir, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"y.pdf", "z.pdf", "a.xml", "b.xml"}
	if !equal(names(res), want) {
		t.Fatalf("documents = %v, want %v", names(res), want)
	}
	for i, d := range res.Documents {
		if d.Index != i {
			t.Fatalf("index %d for position %d", d.Index, i)
		}
	}
}
