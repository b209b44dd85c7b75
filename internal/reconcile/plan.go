package reconcile

import (
	"github.com/joseph-ayodele/nomina-receipts/constants"
	"github.com/joseph-ayodele/nomina-receipts/internal/entity"
)

// Group is the identified documents of one RFC, in discovery order.
type Group struct {
	RFC  string
	Docs []*entity.Document
}

// DisplayName is the first receiver name carried by an XML in the group.
func (g Group) DisplayName() string {
	for _, d := range g.Docs {
		if d.Type == constants.FileTypeXML && d.ReceiverName != "" {
			return d.ReceiverName
		}
	}
	return ""
}

// GroupByRFC groups identified documents by RFC in order of first appearance.
func GroupByRFC(docs []*entity.Document) []Group {
	var (
		groups []Group
		index  = make(map[string]int)
	)
	for _, d := range docs {
		if !d.Identified() {
			continue
		}
		i, ok := index[d.RFC]
		if !ok {
			i = len(groups)
			index[d.RFC] = i
			groups = append(groups, Group{RFC: d.RFC})
		}
		groups[i].Docs = append(groups[i].Docs, d)
	}
	return groups
}

// Assignment puts a document into an empty slot.
type Assignment struct {
	Doc  *entity.Document
	Slot entity.Slot
}

// Plan is the slot decision for one group against the stored receipt.
type Plan struct {
	// Assign fills empty slots.
	Assign []Assignment
	// Present are documents already stored in a slot under the same name.
	Present []*entity.Document
	// Rejected found every slot of their type occupied by another file.
	Rejected []*entity.Document
}

var pdfSlots = []entity.Slot{entity.SlotPDF1, entity.SlotPDF2}

// PlanSlots decides where each document goes without touching storage or the database.
// Slots already holding a file are never reassigned.
func PlanSlots(existing *entity.PayrollReceipt, docs []*entity.Document) Plan {
	slots := map[entity.Slot]string{}
	if existing != nil {
		for _, s := range []entity.Slot{entity.SlotPDF1, entity.SlotPDF2, entity.SlotXML} {
			slots[s] = existing.SlotValue(s)
		}
	}

	var p Plan
	for _, d := range docs {
		candidates := pdfSlots
		if d.Type == constants.FileTypeXML {
			candidates = []entity.Slot{entity.SlotXML}
		}

		if holds(slots, candidates, d.Name) {
			p.Present = append(p.Present, d)
			continue
		}
		placed := false
		for _, s := range candidates {
			if slots[s] == "" {
				slots[s] = d.Name
				p.Assign = append(p.Assign, Assignment{Doc: d, Slot: s})
				placed = true
				break
			}
		}
		if !placed {
			p.Rejected = append(p.Rejected, d)
		}
	}
	return p
}

func holds(slots map[entity.Slot]string, candidates []entity.Slot, name string) bool {
	for _, s := range candidates {
		if slots[s] == name {
			return true
		}
	}
	return false
}
