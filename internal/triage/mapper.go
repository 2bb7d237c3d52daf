package triage

import (
	"errors"
	"fmt"
	"strings"
)

// MaxAge is the upper bound accepted for age guards.
const MaxAge = 120

// Mapper evaluates a frozen rule table. The zero value is not usable, build
// one with NewMapper.
type Mapper struct {
	rules    []Rule
	fallback Level
}

var defaultMapper = mustDefaultMapper()

func mustDefaultMapper() *Mapper {
	m, err := NewMapper(DefaultRules(), LevelConsultGP)
	if err != nil {
		panic(fmt.Sprintf("triage: built-in rule table is invalid: %v", err))
	}
	return m
}

// Default returns the mapper for the built-in rule table.
func Default() *Mapper { return defaultMapper }

// Map evaluates text and optional demographics against the built-in table.
func Map(text string, age *int, gender *string) Level {
	return defaultMapper.Map(text, age, gender)
}

// NewMapper validates rules and returns a Mapper holding a normalized deep
// copy of them. fallback is returned when no rule matches.
func NewMapper(rules []Rule, fallback Level) (*Mapper, error) {
	var errs []error

	if !fallback.Valid() {
		errs = append(errs, fmt.Errorf("invalid default level %q", fallback))
	}

	seen := make(map[string]bool, len(rules))
	frozen := make([]Rule, 0, len(rules))
	for i := range rules {
		r := rules[i].clone()
		r.Name = strings.TrimSpace(r.Name)
		if err := validateRule(i, &r, seen); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, clause := range r.Match {
			for j, p := range clause {
				clause[j] = strings.ToLower(strings.TrimSpace(p))
			}
		}
		for j, g := range r.Guard.Genders {
			r.Guard.Genders[j] = strings.TrimSpace(g)
		}
		frozen = append(frozen, r)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Mapper{rules: frozen, fallback: fallback}, nil
}

func validateRule(idx int, r *Rule, seen map[string]bool) error {
	var errs []error
	label := fmt.Sprintf("rule %d", idx)
	if r.Name != "" {
		label = fmt.Sprintf("rule %d (%s)", idx, r.Name)
	}

	switch {
	case r.Name == "":
		errs = append(errs, errors.New("name is required"))
	case r.Name == DefaultRuleName:
		errs = append(errs, fmt.Errorf("name %q is reserved", DefaultRuleName))
	case seen[r.Name]:
		errs = append(errs, fmt.Errorf("duplicate name %q", r.Name))
	default:
		seen[r.Name] = true
	}

	if !r.Level.Valid() {
		errs = append(errs, fmt.Errorf("invalid level %q", r.Level))
	}

	if len(r.Match) == 0 {
		errs = append(errs, errors.New("at least one match clause is required"))
	}
	for ci, clause := range r.Match {
		if len(clause) == 0 {
			errs = append(errs, fmt.Errorf("match clause %d is empty", ci))
			continue
		}
		for _, p := range clause {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, fmt.Errorf("match clause %d has a blank phrase", ci))
				break
			}
		}
	}

	g := r.Guard
	if g.MinAge != nil && (*g.MinAge < 0 || *g.MinAge > MaxAge) {
		errs = append(errs, fmt.Errorf("min_age %d out of range 0..%d", *g.MinAge, MaxAge))
	}
	if g.MaxAge != nil && (*g.MaxAge < 0 || *g.MaxAge > MaxAge) {
		errs = append(errs, fmt.Errorf("max_age %d out of range 0..%d", *g.MaxAge, MaxAge))
	}
	if g.MinAge != nil && g.MaxAge != nil && *g.MinAge > *g.MaxAge {
		errs = append(errs, fmt.Errorf("min_age %d greater than max_age %d", *g.MinAge, *g.MaxAge))
	}
	for _, gender := range g.Genders {
		if strings.TrimSpace(gender) == "" {
			errs = append(errs, errors.New("blank gender in guard"))
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", label, errors.Join(errs...))
	}
	return nil
}

// Map returns the level of the first matching rule, or the fallback.
func (m *Mapper) Map(text string, age *int, gender *string) Level {
	return m.Decide(Input{Text: text, Age: age, Gender: gender}).Level
}

// Decide evaluates the rules top to bottom and reports which one fired.
func (m *Mapper) Decide(in Input) Decision {
	text := strings.ToLower(in.Text)
	for i := range m.rules {
		r := &m.rules[i]
		if !r.Guard.allows(in.Age, in.Gender) {
			continue
		}
		if r.matches(text) {
			return Decision{Level: r.Level, Rule: r.Name}
		}
	}
	return Decision{Level: m.fallback, Rule: DefaultRuleName}
}

// Rules returns a copy of the frozen table.
func (m *Mapper) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.clone()
	}
	return out
}

// Fallback returns the level used when no rule matches.
func (m *Mapper) Fallback() Level { return m.fallback }
