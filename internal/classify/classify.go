// Package classify talks to the condition classifier that ranks likely
// conditions for a symptom description. The model itself runs out of process;
// this package only holds the client, a cache in front of it and the
// treatment lookup used to annotate its predictions.
package classify

import "context"

// Prediction is one ranked condition.
type Prediction struct {
	Condition  string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Treatment  string  `json:"treatment,omitempty"`
}

// Classifier ranks candidate conditions for a symptom description.
type Classifier interface {
	Predict(ctx context.Context, text string, topK int) ([]Prediction, error)
}
