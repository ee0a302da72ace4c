package classifier

import (
	"fmt"
	"os"
	"strings"
)

var diseaseLabels = []string{
	"Argulus",
	"Bacterial aeromoniasis",
	"Bacterial gill",
	"Bacterial red spot",
	"EUS",
	"Fungal saprolegniasis",
	"Healthy",
	"Parasitic",
	"Tail and fin rot",
	"White tail",
}

// Labels returns a copy of the built-in disease labels, ordered by class index.
func Labels() []string {
	out := make([]string, len(diseaseLabels))
	copy(out, diseaseLabels)
	return out
}

// LabelTable maps a class index to its disease name. It is never mutated
// after construction.
type LabelTable struct {
	names []string
}

func NewLabelTable(names []string) (*LabelTable, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("label table is empty")
	}
	cp := make([]string, len(names))
	copy(cp, names)
	return &LabelTable{names: cp}, nil
}

// LoadLabelTable uses the built-in labels when path is empty.
func LoadLabelTable(path string) (*LabelTable, error) {
	if path == "" {
		return NewLabelTable(Labels())
	}
	names, err := ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return NewLabelTable(names)
}

func (t *LabelTable) Len() int {
	return len(t.names)
}

func (t *LabelTable) Label(i int) (string, error) {
	if i < 0 || i >= len(t.names) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", i, len(t.names))
	}
	return t.names[i], nil
}

func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(b), "\n")
	var tags []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			tags = append(tags, l)
		}
	}
	return tags, nil
}
