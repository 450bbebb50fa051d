package record

import (
	"sort"
	"strings"
)

type Medication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Dose string `json:"dose,omitempty"`
}

// Catalog is an immutable view of the user's configured medications.
// The zero value is an empty catalog.
type Catalog struct {
	byID    map[string]Medication
	ordered []Medication
}

func NewCatalog(medications []Medication) Catalog {
	catalog := Catalog{
		byID:    make(map[string]Medication, len(medications)),
		ordered: make([]Medication, 0, len(medications)),
	}
	for _, medication := range medications {
		medication.ID = strings.TrimSpace(medication.ID)
		medication.Name = strings.TrimSpace(medication.Name)
		if medication.ID == "" {
			continue
		}
		if _, exists := catalog.byID[medication.ID]; exists {
			continue
		}
		catalog.byID[medication.ID] = medication
		catalog.ordered = append(catalog.ordered, medication)
	}
	return catalog
}

func (catalog Catalog) Empty() bool {
	return len(catalog.ordered) == 0
}

func (catalog Catalog) Lookup(id string) (Medication, bool) {
	medication, ok := catalog.byID[strings.TrimSpace(id)]
	return medication, ok
}

func (catalog Catalog) Medications() []Medication {
	return append([]Medication(nil), catalog.ordered...)
}

// MatchName finds the medication whose name occurs in text. The longest
// matching name wins so "metformin xr" beats "metformin".
func (catalog Catalog) MatchName(text string) (Medication, bool) {
	haystack := " " + strings.ToLower(text) + " "
	candidates := catalog.Medications()
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Name) > len(candidates[j].Name)
	})
	for _, medication := range candidates {
		name := strings.ToLower(strings.TrimSpace(medication.Name))
		if name == "" {
			continue
		}
		if strings.Contains(haystack, " "+name+" ") || strings.Contains(haystack, " "+name+"s ") {
			return medication, true
		}
	}
	return Medication{}, false
}
