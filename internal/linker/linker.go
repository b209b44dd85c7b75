package linker

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

// MinNameWords is how many receiver-name words must appear in a filename for a name match.
const MinNameWords = 2

// minWordRunes: only words longer than this count toward a name match.
const minWordRunes = 3

type Stats struct {
	Orphans          int
	ByEmployeeNumber int
	ByName           int
	Unresolved       int
}

type candidate struct {
	rfc            string
	employeeNumber string
	words          []string
}

// Link assigns an RFC to each unidentified PDF using identity hints from the batch's XML documents.
// Candidates are taken in discovery order; every orphan tries the employee-number pass over all
// candidates before the name pass, and the first match wins.
func Link(docs []*entity.Document, logger *slog.Logger) Stats {
	if logger == nil {
		logger = slog.Default()
	}
	cands := candidates(docs)

	var st Stats
	for _, d := range docs {
		if d.Type != constants.FileTypePDF || d.RFC != "" || d.Err != nil {
			continue
		}
		st.Orphans++
		rfc, method := match(d.Name, cands)
		if rfc == "" {
			st.Unresolved++
			logger.Debug("linker.unresolved", "file", d.Name)
			continue
		}
		d.RFC = rfc
		d.LinkedBy = method
		if method == entity.LinkEmployeeNumber {
			st.ByEmployeeNumber++
		} else {
			st.ByName++
		}
		logger.Debug("linker.linked", "file", d.Name, "rfc", rfc, "linked_by", string(method))
	}
	return st
}

func candidates(docs []*entity.Document) []candidate {
	var out []candidate
	for _, d := range docs {
		if d.Type != constants.FileTypeXML || !d.Identified() {
			continue
		}
		out = append(out, candidate{
			rfc:            d.RFC,
			employeeNumber: d.EmployeeNumber,
			words:          nameWords(d.ReceiverName),
		})
	}
	return out
}

func match(filename string, cands []candidate) (string, entity.LinkMethod) {
	for _, c := range cands {
		if c.employeeNumber != "" && strings.Contains(filename, c.employeeNumber) {
			return c.rfc, entity.LinkEmployeeNumber
		}
	}
	folded := fold(filename)
	for _, c := range cands {
		hits := 0
		for _, w := range c.words {
			if strings.Contains(folded, w) {
				hits++
			}
		}
		if hits >= MinNameWords {
			return c.rfc, entity.LinkName
		}
	}
	return "", entity.LinkNone
}

// nameWords returns the distinct folded words of name longer than minWordRunes, in order.
func nameWords(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(fold(name)) {
		if utf8.RuneCountInString(w) <= minWordRunes || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// fold lowercases and strips diacritics so "PÉREZ" and "perez" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
