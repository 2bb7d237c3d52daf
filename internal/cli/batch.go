package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// batchLine is one JSON input record. Plain-text lines are treated as Text.
type batchLine struct {
	Text   string  `json:"text"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

type batchResult struct {
	Line int `json:"line"`
	triage.Decision
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Triage one case per stdin line, writing JSON lines",
		Long: `Reads stdin line by line. A line starting with "{" is parsed as
{"text": "...", "age": 30, "gender": "female"}; any other non-blank line is
symptom text. Each case produces one JSON decision on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := root.mapper()
			if err != nil {
				return err
			}
			return runBatch(cmd, m)
		},
	}
}

func runBatch(cmd *cobra.Command, m *triage.Mapper) error {
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), assess.MaxSymptomsBytes*2)
	enc := json.NewEncoder(cmd.OutOrStdout())

	for n := 1; sc.Scan(); n++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var in batchLine
		if raw[0] == '{' {
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
		} else {
			in.Text = string(raw)
		}

		req := assess.Request{Symptoms: in.Text, Age: in.Age, Gender: in.Gender}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}

		d := m.Decide(triage.Input{Text: req.Symptoms, Age: req.Age, Gender: req.Gender})
		if err := enc.Encode(batchResult{Line: n, Decision: d}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}
