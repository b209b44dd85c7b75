package identify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

const DefaultWorkers = 4

type Options struct {
	Workers int
	// ValidatePDF runs a relaxed pdfcpu validation on every PDF.
	ValidatePDF bool
}

// Identifier establishes the RFC of each document. It only reads files.
type Identifier struct {
	workers int
	pdfConf *model.Configuration
	logger  *slog.Logger
}

func NewIdentifier(opts Options, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	id := &Identifier{workers: opts.Workers, logger: logger}
	if opts.ValidatePDF {
		api.DisableConfigDir()
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		id.pdfConf = conf
	}
	return id
}

// IdentifyAll identifies docs concurrently, writing results into each document.
// Per-file failures land in Document.Err; the returned error is only cancellation.
func (i *Identifier) IdentifyAll(ctx context.Context, docs []*entity.Document) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			i.Identify(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var xmls, pdfs, orphans, failed int
	for _, d := range docs {
		switch {
		case d.Err != nil:
			failed++
		case d.Type == constants.FileTypeXML:
			xmls++
		case d.RFC == "":
			orphans++
		default:
			pdfs++
		}
	}
	i.logger.Info("identify.done",
		"documents", len(docs),
		"xml", xmls,
		"pdf", pdfs,
		"orphans", orphans,
		"failed", failed)
	return nil
}

// Identify fills RFC and identity hints for one document.
// A PDF without an RFC in its name is left unidentified for the linker.
func (i *Identifier) Identify(doc *entity.Document) {
	switch doc.Type {
	case constants.FileTypeXML:
		i.identifyXML(doc)
	case constants.FileTypePDF:
		i.identifyPDF(doc)
	default:
		doc.Err = &IdentityError{File: doc.Name, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(doc.Name))}
	}
}

func (i *Identifier) identifyXML(doc *entity.Document) {
	f, err := os.Open(doc.Path)
	if err != nil {
		doc.Err = &IdentityError{File: doc.Name, Err: err}
		return
	}
	defer f.Close()

	c, err := ParseCFDI(f)
	if err != nil {
		doc.Err = &IdentityError{File: doc.Name, Err: fmt.Errorf("invalid CFDI: %w", err)}
		i.logger.Warn("identify.xml.failed", "file", doc.Name, "error", err)
		return
	}
	if !ValidRFC(c.RFC) {
		doc.Err = &IdentityError{File: doc.Name, Err: fmt.Errorf("%w: %q", ErrInvalidRFC, c.RFC)}
		return
	}
	doc.RFC = c.RFC
	doc.ReceiverName = c.Name
	doc.EmployeeNumber = c.EmployeeNumber
	doc.LinkedBy = entity.LinkCFDI
}

func (i *Identifier) identifyPDF(doc *entity.Document) {
	if i.pdfConf != nil {
		if err := api.ValidateFile(doc.Path, i.pdfConf); err != nil {
			doc.Err = &IdentityError{File: doc.Name, Err: fmt.Errorf("unreadable PDF: %w", err)}
			i.logger.Warn("identify.pdf.invalid", "file", doc.Name, "error", err)
			return
		}
	}
	base := strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name))
	if rfc := ExtractRFC(base); rfc != "" {
		doc.RFC = rfc
		doc.LinkedBy = entity.LinkFilename
	}
}
