package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const caseIDPrefix = "case-"

// CaseID identifies one case session from intake through resolution.
type CaseID struct {
	value string
}

// NewCaseID creates a new random CaseID
func NewCaseID() CaseID {
	return CaseID{value: caseIDPrefix + uuid.New().String()}
}

// NewCaseIDFromString parses a CaseID of the form case-<uuid>.
func NewCaseIDFromString(id string) (CaseID, error) {
	if id == "" {
		return CaseID{}, errors.New("case ID cannot be empty")
	}
	raw, ok := strings.CutPrefix(id, caseIDPrefix)
	if !ok {
		return CaseID{}, errors.New("case ID must start with " + caseIDPrefix)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return CaseID{}, errors.New("case ID must end with a valid UUID")
	}
	return CaseID{value: id}, nil
}

func (id CaseID) String() string {
	return id.value
}

func (id CaseID) Equals(other CaseID) bool {
	return id.value == other.value
}

func (id CaseID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id CaseID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *CaseID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("CaseID must be a string")
	}
	parsed, err := NewCaseIDFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
