package classify

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultTreatment is used for conditions with no known treatment.
const DefaultTreatment = "Consult a healthcare provider for treatment recommendations"

// Treatments maps condition names to a treatment recommendation.
type Treatments struct {
	byCondition map[string]string
}

// NewTreatments builds a lookup from a condition -> treatment map.
func NewTreatments(m map[string]string) *Treatments {
	t := &Treatments{byCondition: make(map[string]string, len(m))}
	for k, v := range m {
		if v = strings.TrimSpace(v); v != "" {
			t.byCondition[normalizeCondition(k)] = v
		}
	}
	return t
}

// LoadTreatments reads a CSV with "Disease" and "Treatments" header columns.
// The first non-empty treatment seen for a disease wins.
func LoadTreatments(path string) (*Treatments, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open treatments file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadTreatments(f)
	if err != nil {
		return nil, fmt.Errorf("treatments file %s: %w", path, err)
	}
	return t, nil
}

// ReadTreatments parses treatments CSV from r.
func ReadTreatments(r io.Reader) (*Treatments, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	diseaseCol, treatmentCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "disease":
			diseaseCol = i
		case "treatments", "treatment":
			treatmentCol = i
		}
	}
	if diseaseCol < 0 || treatmentCol < 0 {
		return nil, fmt.Errorf("header must contain Disease and Treatments columns, got %v", header)
	}

	t := &Treatments{byCondition: make(map[string]string)}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if diseaseCol >= len(rec) || treatmentCol >= len(rec) {
			continue
		}
		disease := normalizeCondition(rec[diseaseCol])
		treatment := strings.TrimSpace(rec[treatmentCol])
		if disease == "" || treatment == "" {
			continue
		}
		if _, ok := t.byCondition[disease]; !ok {
			t.byCondition[disease] = treatment
		}
	}
	return t, nil
}

// Lookup returns the treatment for condition, or DefaultTreatment.
func (t *Treatments) Lookup(condition string) string {
	if t != nil {
		if v, ok := t.byCondition[normalizeCondition(condition)]; ok {
			return v
		}
	}
	return DefaultTreatment
}

// Len reports how many conditions have a treatment.
func (t *Treatments) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byCondition)
}

// Annotate returns a copy of preds with Treatment filled in where empty.
func (t *Treatments) Annotate(preds []Prediction) []Prediction {
	out := clonePredictions(preds)
	for i := range out {
		if out[i].Treatment == "" {
			out[i].Treatment = t.Lookup(out[i].Condition)
		}
	}
	return out
}

func normalizeCondition(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
