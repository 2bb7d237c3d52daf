package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type countingClassifier struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
	preds []Prediction
}

func (c *countingClassifier) Predict(_ context.Context, text string, _ int) ([]Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.texts = append(c.texts, text)
	if c.err != nil {
		return nil, c.err
	}
	// echo the input so tests can tell which call produced an entry
	out := clonePredictions(c.preds)
	for i := range out {
		out[i].Treatment = text
	}
	return out, nil
}

func TestNewCached_ZeroSizeReturnsInner(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{}
	got, err := NewCached(inner, 0)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	if got != Classifier(inner) {
		t.Fatal("expected inner classifier back when size is 0")
	}
}

func TestCached_HitsAndKeying(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{preds: []Prediction{{Condition: "Influenza", Confidence: 0.9}}}
	c, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Predict(ctx, "fever and cough", 3); err != nil {
			t.Fatalf("Predict: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	// different topK is a different key
	if _, err := c.Predict(ctx, "fever and cough", 5); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	if n := c.(*Cached).Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestCached_KeysOnExactText(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{preds: []Prediction{{Condition: "Influenza", Confidence: 0.9}}}
	c, _ := NewCached(inner, 8)
	ctx := context.Background()

	inputs := []string{"Fever and cough", "fever and cough", "  FEVER AND COUGH "}
	for _, text := range inputs {
		got, err := c.Predict(ctx, text, 3)
		if err != nil {
			t.Fatalf("Predict(%q): %v", text, err)
		}
		if got[0].Treatment != text {
			t.Errorf("Predict(%q) served entry for %q", text, got[0].Treatment)
		}
	}
	if inner.calls != len(inputs) {
		t.Errorf("inner calls = %d, want %d", inner.calls, len(inputs))
	}
	for i, text := range inputs {
		if inner.texts[i] != text {
			t.Errorf("inner text[%d] = %q, want %q", i, inner.texts[i], text)
		}
	}
}

func TestCached_ReturnsCopies(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{preds: []Prediction{{Condition: "Influenza", Confidence: 0.9}}}
	c, _ := NewCached(inner, 8)
	ctx := context.Background()

	first, _ := c.Predict(ctx, "x", 1)
	first[0].Condition = "mutated"

	second, _ := c.Predict(ctx, "x", 1)
	if second[0].Condition != "Influenza" {
		t.Errorf("cached entry mutated through returned slice: %+v", second[0])
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{err: errors.New("boom")}
	c, _ := NewCached(inner, 8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Predict(ctx, "x", 1); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestCached_Eviction(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{preds: []Prediction{{Condition: "A"}}}
	c, _ := NewCached(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "a"} {
		_, _ = c.Predict(ctx, text, 1)
	}
	// "a" was evicted by "c"
	if inner.calls != 4 {
		t.Errorf("inner calls = %d, want 4", inner.calls)
	}
}
