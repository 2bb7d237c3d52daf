package triage

// Level is the next-step recommendation returned to the end user.
type Level string

const (
	// LevelEmergency means seek emergency care now
	LevelEmergency Level = "Emergency"

	// LevelConsultGP means book a general physician consultation
	LevelConsultGP Level = "Consult a General Physician"

	// LevelSelfCare means the symptoms can be managed at home
	LevelSelfCare Level = "Self-care"
)

var knownLevels = []Level{LevelEmergency, LevelConsultGP, LevelSelfCare}

// Levels returns the known levels, most urgent first.
func Levels() []Level {
	out := make([]Level, len(knownLevels))
	copy(out, knownLevels)
	return out
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	for _, k := range knownLevels {
		if l == k {
			return true
		}
	}
	return false
}

func (l Level) String() string { return string(l) }
