// File: internal/rules/declaration.go
package rules

import (
	"fmt"
	"sort"
)

// DeclarationItem is one yes/no statement a donor must affirm.
type DeclarationItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DeclarationSection groups related statements under a heading.
type DeclarationSection struct {
	Title string            `json:"title"`
	Items []DeclarationItem `json:"items"`
}

var baseSections = []DeclarationSection{
	{
		Title: "Basic Eligibility (MANDATORY)",
		Items: []DeclarationItem{
			{ID: "age", Label: "I am 18 years or older"},
			{ID: "weight", Label: "My weight is 50 kg or more"},
			{ID: "healthy", Label: "I feel healthy today"},
		},
	},
	{
		Title: "Current Health Status",
		Items: []DeclarationItem{
			{ID: "no_symptoms", Label: "I do not have fever, cold, cough, or infection"},
			{ID: "hemoglobin", Label: "I do not have low hemoglobin / anemia"},
			{ID: "chronic_disease", Label: "I do not have heart, kidney disease, or cancer"},
			{ID: "epilepsy", Label: "I have not had fits / epilepsy recently"},
		},
	},
	{
		Title: "Blood-Borne Diseases",
		Items: []DeclarationItem{
			{ID: "hiv", Label: "I have never had HIV / AIDS"},
			{ID: "hepatitis", Label: "I have never had Hepatitis B or C"},
			{ID: "syphilis", Label: "I have never had Syphilis"},
			{ID: "malaria", Label: "I have not had Malaria in the last 3 months"},
		},
	},
	{
		Title: "Medical History",
		Items: []DeclarationItem{
			{ID: "surgery", Label: "I have not undergone surgery in the last 6 months"},
			{ID: "blood_loss", Label: "I have not had major blood loss or accident recently"},
			{ID: "vaccination", Label: "I have not taken any vaccination in the last 14 to 28 days"},
			{ID: "tattoo", Label: "I have not done tattoo / piercing in the last 6 months"},
		},
	},
	{
		Title: "Lifestyle Safety",
		Items: []DeclarationItem{
			{ID: "alcohol", Label: "I have not consumed alcohol in the last 24 hours"},
			{ID: "drugs", Label: "I do not use injectable drugs"},
		},
	},
}

var femaleSection = DeclarationSection{
	Title: "For Female Donors",
	Items: []DeclarationItem{
		{ID: "pregnant", Label: "I am not pregnant"},
		{ID: "breastfeeding", Label: "I am not breastfeeding"},
		{ID: "menstruation", Label: "I am not having heavy menstruation today"},
	},
}

// DeclarationChecklist returns the statements applicable to a donor of the
// given gender, in display order.
func DeclarationChecklist(gender string) []DeclarationSection {
	female := IsFemale(gender)

	sections := make([]DeclarationSection, 0, len(baseSections)+2)
	for _, s := range baseSections {
		sections = append(sections, DeclarationSection{Title: s.Title, Items: append([]DeclarationItem(nil), s.Items...)})
	}
	if female {
		sections = append(sections, DeclarationSection{Title: femaleSection.Title, Items: append([]DeclarationItem(nil), femaleSection.Items...)})
	}

	months := 3
	if female {
		months = 4
	}
	sections = append(sections, DeclarationSection{
		Title: "Previous Blood Donation",
		Items: []DeclarationItem{{
			ID:    "prev_donation",
			Label: fmt.Sprintf("I have not donated blood in the last %d months", months),
		}},
	})
	return sections
}

// RequiredDeclarationItems lists the ids of every applicable statement.
func RequiredDeclarationItems(gender string) []string {
	var ids []string
	for _, s := range DeclarationChecklist(gender) {
		for _, it := range s.Items {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// ValidateDeclaration returns the applicable statements missing from checked,
// in display order. An empty result means the declaration is complete.
func ValidateDeclaration(gender string, checked []string) []string {
	set := make(map[string]bool, len(checked))
	for _, id := range checked {
		set[id] = true
	}
	var missing []string
	for _, id := range RequiredDeclarationItems(gender) {
		if !set[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// DeclarationForm is the interactive state of one declaration attempt. A new
// form is needed for every attempt; nothing carries over.
type DeclarationForm struct {
	required []string
	known    map[string]bool
	checked  map[string]bool
}

// NewDeclarationForm starts an empty declaration for a donor of the given gender.
func NewDeclarationForm(gender string) *DeclarationForm {
	f := &DeclarationForm{
		required: RequiredDeclarationItems(gender),
		known:    make(map[string]bool),
		checked:  make(map[string]bool),
	}
	for _, id := range f.required {
		f.known[id] = true
	}
	return f
}

// Check affirms one statement.
func (f *DeclarationForm) Check(id string) error {
	if !f.known[id] {
		return fmt.Errorf("unknown declaration item %q", id)
	}
	f.checked[id] = true
	return nil
}

// Uncheck withdraws one statement.
func (f *DeclarationForm) Uncheck(id string) {
	delete(f.checked, id)
}

// Toggle flips one statement.
func (f *DeclarationForm) Toggle(id string) error {
	if f.checked[id] {
		f.Uncheck(id)
		return nil
	}
	return f.Check(id)
}

// AllSelected reports whether every statement is affirmed.
func (f *DeclarationForm) AllSelected() bool {
	return len(f.required) > 0 && len(f.checked) == len(f.required)
}

// SelectAll affirms every statement, or clears the form when everything is
// already affirmed.
func (f *DeclarationForm) SelectAll() {
	if f.AllSelected() {
		f.checked = make(map[string]bool)
		return
	}
	for _, id := range f.required {
		f.checked[id] = true
	}
}

// Complete reports whether the form may be submitted.
func (f *DeclarationForm) Complete() bool {
	return len(f.Missing()) == 0
}

// Missing lists the statements not yet affirmed, in display order.
func (f *DeclarationForm) Missing() []string {
	var missing []string
	for _, id := range f.required {
		if !f.checked[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Checked lists the affirmed statements, sorted.
func (f *DeclarationForm) Checked() []string {
	ids := make([]string, 0, len(f.checked))
	for id := range f.checked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
