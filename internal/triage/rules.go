package triage

// redFlags force emergency escalation regardless of anything else in the text.
var redFlags = []string{
	"chest pain",
	"shortness of breath",
	"difficulty breathing",
	"severe bleeding",
	"unconscious",
	"stroke",
	"vision loss",
}

// ElderlyAge is the age from which the elderly_fever rule applies.
const ElderlyAge = 65

// RedFlags returns the red-flag phrases in evaluation order.
func RedFlags() []string {
	return append([]string(nil), redFlags...)
}

// DefaultRules returns a fresh copy of the built-in rule table.
// Order matters: red flags must stay first.
func DefaultRules() []Rule {
	redFlagClauses := make([][]string, len(redFlags))
	for i, f := range redFlags {
		redFlagClauses[i] = []string{f}
	}
	elderly := ElderlyAge

	return []Rule{
		{
			Name:  "red_flag",
			Level: LevelEmergency,
			Match: redFlagClauses,
		},
		{
			Name:  "respiratory_febrile",
			Level: LevelConsultGP,
			Match: [][]string{
				{"fever", "cough"},
				{"sore throat", "fever"},
			},
		},
		{
			// shadowed by red_flag for "chest pain", reachable for these phrasings
			Name:  "chest_discomfort",
			Level: LevelEmergency,
			Match: [][]string{
				{"chest tightness"},
				{"chest discomfort"},
			},
		},
		{
			Name:  "self_care",
			Level: LevelSelfCare,
			Match: [][]string{
				{"migraine"},
				{"headache", "mild"},
			},
		},
		{
			Name:  "gastrointestinal",
			Level: LevelConsultGP,
			Match: [][]string{
				{"loose motions"},
				{"diarrhea"},
			},
		},
		{
			// same outcome as the fallback today; hook for stricter elderly-care policy
			Name:  "elderly_fever",
			Level: LevelConsultGP,
			Match: [][]string{{"fever"}},
			Guard: Guard{MinAge: &elderly},
		},
	}
}
