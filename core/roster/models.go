package roster

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// Student is owned by the school's roster; read-only for attendance purposes.
type Student struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"` // empty when no guardian is linked
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	ClassID  string `json:"class_id"`
}

// HasGuardian reports whether a guardian is linked to the student.
func (s Student) HasGuardian() bool { return s.ParentID != "" }

// Guardian is the account receiving a student's attendance alerts.
type Guardian struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Import is the JSON document used to seed or import a roster.
type Import struct {
	Guardians []Guardian `json:"guardians"`
	Students  []Student  `json:"students"`
}

func (imp *Import) Clean() {
	for i := range imp.Guardians {
		g := &imp.Guardians[i]
		g.ID = core.CleanString(g.ID)
		g.Name = core.CleanString(g.Name)
		g.Email = core.CleanString(g.Email, true /* lower */)
	}
	for i := range imp.Students {
		s := &imp.Students[i]
		s.ID = core.CleanString(s.ID)
		s.ParentID = core.CleanString(s.ParentID)
		s.Name = core.CleanString(s.Name)
		s.Grade = core.CleanString(s.Grade)
		s.ClassID = core.CleanString(s.ClassID)
	}
}

// Validate checks that ids are present and unique, and that every linked guardian is part of the import.
func (imp Import) Validate() error {
	guardians := make(map[string]bool, len(imp.Guardians))
	for i, g := range imp.Guardians {
		if g.ID == "" {
			return core.NewValidationError(errors.Errorf("guardians[%d]: missing id", i))
		}
		if guardians[g.ID] {
			return core.NewValidationError(errors.Errorf("guardians[%d]: duplicate id %q", i, g.ID))
		}
		guardians[g.ID] = true
	}
	students := make(map[string]bool, len(imp.Students))
	for i, s := range imp.Students {
		if s.ID == "" || s.ClassID == "" {
			return core.NewValidationError(errors.Errorf("students[%d]: id and class_id are required", i))
		}
		if students[s.ID] {
			return core.NewValidationError(errors.Errorf("students[%d]: duplicate id %q", i, s.ID))
		}
		if s.HasGuardian() && !guardians[s.ParentID] {
			return core.NewValidationError(errors.Errorf("students[%d]: unknown guardian %q", i, s.ParentID))
		}
		students[s.ID] = true
	}
	return nil
}

// Decode reads, cleans and validates a roster Import.
func Decode(r io.Reader) (Import, error) {
	var imp Import
	if err := json.NewDecoder(r).Decode(&imp); err != nil {
		return Import{}, errors.Wrap(err, "decoding roster")
	}
	imp.Clean()
	if err := imp.Validate(); err != nil {
		return Import{}, err
	}
	return imp, nil
}

func LoadFile(path string) (Import, error) {
	f, err := os.Open(path)
	if err != nil {
		return Import{}, errors.Wrap(err, "opening roster file")
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}
