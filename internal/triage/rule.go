package triage

import "strings"

// DefaultRuleName is reported in a Decision when no rule matched.
const DefaultRuleName = "default"

// Input is a single triage request. Age and Gender are optional.
type Input struct {
	Text   string
	Age    *int
	Gender *string
}

// Decision is the outcome of evaluating a rule table against an Input.
type Decision struct {
	Level Level  `json:"next_step"`
	Rule  string `json:"matched_rule"`
}

// Rule is one entry of an ordered rule table.
//
// Match is in disjunctive form: the rule's text predicate holds when any
// clause has all of its phrases contained in the case-folded text.
type Rule struct {
	Name  string     `json:"name" yaml:"name"`
	Level Level      `json:"level" yaml:"level"`
	Match [][]string `json:"match" yaml:"match"`
	Guard Guard      `json:"guard,omitzero" yaml:"guard,omitempty"`
}

// Guard restricts a rule to a demographic. A zero Guard always passes.
// A guard on age fails when age is absent, likewise for gender.
type Guard struct {
	MinAge  *int     `json:"min_age,omitempty" yaml:"min_age,omitempty"`
	MaxAge  *int     `json:"max_age,omitempty" yaml:"max_age,omitempty"`
	Genders []string `json:"genders,omitempty" yaml:"genders,omitempty"`
}

// IsZero reports whether the guard has no conditions.
func (g Guard) IsZero() bool {
	return g.MinAge == nil && g.MaxAge == nil && len(g.Genders) == 0
}

func (g Guard) allows(age *int, gender *string) bool {
	if g.MinAge != nil || g.MaxAge != nil {
		if age == nil {
			return false
		}
		if g.MinAge != nil && *age < *g.MinAge {
			return false
		}
		if g.MaxAge != nil && *age > *g.MaxAge {
			return false
		}
	}
	if len(g.Genders) > 0 {
		if gender == nil {
			return false
		}
		for _, want := range g.Genders {
			if strings.EqualFold(strings.TrimSpace(*gender), want) {
				return true
			}
		}
		return false
	}
	return true
}

// matches expects text to be case-folded already and phrases to be lower case.
func (r *Rule) matches(text string) bool {
	for _, clause := range r.Match {
		if containsAll(text, clause) {
			return true
		}
	}
	return false
}

func containsAll(text string, phrases []string) bool {
	for _, p := range phrases {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

func (r Rule) clone() Rule {
	out := Rule{Name: r.Name, Level: r.Level}
	out.Match = make([][]string, len(r.Match))
	for i, clause := range r.Match {
		out.Match[i] = append([]string(nil), clause...)
	}
	if r.Guard.MinAge != nil {
		v := *r.Guard.MinAge
		out.Guard.MinAge = &v
	}
	if r.Guard.MaxAge != nil {
		v := *r.Guard.MaxAge
		out.Guard.MaxAge = &v
	}
	if len(r.Guard.Genders) > 0 {
		out.Guard.Genders = append([]string(nil), r.Guard.Genders...)
	}
	return out
}
