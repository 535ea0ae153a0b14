package predict

// Label is the binary classification outcome.
type Label string

const (
	LabelReal Label = "REAL"
	LabelFake Label = "FAKE"
)

// DecisionThreshold is the fixed score cutoff. Strictly greater than the
// threshold means FAKE; a score of exactly 0.5 is classified REAL.
const DecisionThreshold = 0.5

// Interpretation is the immutable label + confidence pair derived from a
// raw classifier score.
type Interpretation struct {
	Label      Label
	Confidence float64 // percent in [0, 100]
}

// Interpret maps a raw sigmoid score in [0, 1] to a label and a
// threshold-relative confidence percentage:
//
//	score > 0.5 → FAKE, confidence = score * 100
//	otherwise   → REAL, confidence = (1 - score) * 100
//
// The confidence is not a calibrated probability of the reported label;
// it is this fixed mapping.
func Interpret(score float64) Interpretation {
	if score > DecisionThreshold {
		return Interpretation{Label: LabelFake, Confidence: score * 100}
	}
	return Interpretation{Label: LabelReal, Confidence: (1 - score) * 100}
}
