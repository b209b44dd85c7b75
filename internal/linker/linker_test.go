package linker

import (
	"testing"

	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

func xml(rfc, name, num string) *entity.Document {
	return &entity.Document{Name: rfc + ".xml", Type: constants.FileTypeXML, RFC: rfc, ReceiverName: name, EmployeeNumber: num, LinkedBy: entity.LinkCFDI}
}

func pdf(name string) *entity.Document {
	return &entity.Document{Name: name, Type: constants.FileTypePDF}
}

func TestLinkByName(t *testing.T) {
	orphan := pdf("recibo_Juan_Perez_Enero.pdf")
	docs := []*entity.Document{xml("ABC850101AAA", "Juan Perez Lopez", ""), orphan}

	st := Link(docs, nil)
	if orphan.RFC != "ABC850101AAA" || orphan.LinkedBy != entity.LinkName {
		t.Fatalf("expected name link, got %+v", orphan)
	}
	if st.Orphans != 1 || st.ByName != 1 || st.Unresolved != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLinkEmployeeNumberTakesPriority(t *testing.T) {
	// The filename matches the first candidate by name and the second by employee number.
	orphan := pdf("juan_perez_000777.pdf")
	docs := []*entity.Document{
		xml("ABC850101AAA", "Juan Perez Lopez", "000123"),
		xml("XAXX010101000", "Otro Empleado", "000777"),
		orphan,
	}
	Link(docs, nil)
	if orphan.RFC != "XAXX010101000" || orphan.LinkedBy != entity.LinkEmployeeNumber {
		t.Fatalf("employee number pass must win, got %+v", orphan)
	}
}

func TestLinkFirstCandidateInDiscoveryOrderWins(t *testing.T) {
	docs := []*entity.Document{
		xml("AAA010101AAA", "Maria Guadalupe Torres", ""),
		xml("BBB010101BBB", "Maria Guadalupe Torres", ""),
		pdf("maria_guadalupe.pdf"),
	}
	for i := 0; i < 5; i++ {
		docs[2].RFC, docs[2].LinkedBy = "", entity.LinkNone
		Link(docs, nil)
		if docs[2].RFC != "AAA010101AAA" {
			t.Fatalf("run %d: expected first candidate, got %s", i, docs[2].RFC)
		}
	}
}

func TestLinkNameRules(t *testing.T) {
	tests := []struct {
		name     string
		receiver string
		filename string
		want     string
	}{
		{"accent and case insensitive", "JOSÉ PÉREZ NÚÑEZ", "recibo_jose_perez.pdf", "XAXX010101000"},
		{"one word is not enough", "Juan Perez Lopez", "recibo_perez.pdf", ""},
		{"short words ignored", "Ana Lia Perez", "ana_lia_perez.pdf", ""},
		{"repeated word counts once", "Perez Perez", "perez_perez.pdf", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orphan := pdf(tt.filename)
			Link([]*entity.Document{xml("XAXX010101000", tt.receiver, ""), orphan}, nil)
			if orphan.RFC != tt.want {
				t.Fatalf("got %q, want %q", orphan.RFC, tt.want)
			}
		})
	}
}

func TestLinkLeavesIdentifiedAlone(t *testing.T) {
	known := &entity.Document{Name: "XAXX010101000.pdf", Type: constants.FileTypePDF, RFC: "XAXX010101000", LinkedBy: entity.LinkFilename}
	unmatched := pdf("scan_999.pdf")
	docs := []*entity.Document{xml("ABC850101AAA", "Juan Perez Lopez", "000123"), known, unmatched}

	st := Link(docs, nil)
	if known.RFC != "XAXX010101000" || known.LinkedBy != entity.LinkFilename {
		t.Fatalf("identified pdf modified: %+v", known)
	}
	if unmatched.RFC != "" || unmatched.LinkedBy != entity.LinkNone {
		t.Fatalf("unmatched pdf linked: %+v", unmatched)
	}
	if st.Orphans != 1 || st.Unresolved != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
