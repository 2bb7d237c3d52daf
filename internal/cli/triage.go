package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/triage"
)

// maxStdinBytes bounds what triage reads from stdin. Anything larger is
// rejected outright, never truncated.
const maxStdinBytes = 1 << 20

type triageOptions struct {
	*rootOptions
	age    int
	gender string
	format string
}

func newTriageCmd(root *rootOptions) *cobra.Command {
	o := &triageOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "triage [text...]",
		Short: "Print the next step for one symptom description",
		Long:  "Triage symptom text given as arguments, or read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	cmd.Flags().IntVar(&o.age, "age", 0, "patient age in years (0..120)")
	cmd.Flags().StringVar(&o.gender, "gender", "", "patient gender")
	cmd.Flags().StringVarP(&o.format, "format", "f", formatText, "output format: text or json")
	return cmd
}

func (o *triageOptions) run(cmd *cobra.Command, args []string) error {
	if o.format != formatText && o.format != formatJSON {
		return fmt.Errorf("unknown format %q (want text or json)", o.format)
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes+1))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if len(b) > maxStdinBytes {
			return fmt.Errorf("%w: stdin exceeds %d bytes", assess.ErrSymptomsTooLong, maxStdinBytes)
		}
		text = strings.TrimSpace(string(b))
	}

	req := &assess.Request{Symptoms: text}
	if cmd.Flags().Changed("age") {
		req.Age = &o.age
	}
	if cmd.Flags().Changed("gender") {
		req.Gender = &o.gender
	}
	if err := req.Validate(); err != nil {
		return err
	}

	m, err := o.mapper()
	if err != nil {
		return err
	}
	d := m.Decide(triage.Input{Text: req.Symptoms, Age: req.Age, Gender: req.Gender})

	out := cmd.OutOrStdout()
	if o.format == formatJSON {
		return json.NewEncoder(out).Encode(d)
	}
	_, err = fmt.Fprintln(out, d.Level)
	return err
}
