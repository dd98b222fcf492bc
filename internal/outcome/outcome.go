// Package outcome holds the result state shared by the parser, the progress
// store and the session engine.
package outcome

import "fmt"

type Kind int

const (
	NotRun Kind = iota
	Passed
	Failed
	// Errored means the test could not be evaluated at all: the build broke,
	// the process crashed, the toolchain was missing or the run timed out.
	Errored
)

func (k Kind) String() string {
	switch k {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return "not_run"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "not_run":
		return NotRun, nil
	case "passed":
		return Passed, nil
	case "failed":
		return Failed, nil
	case "errored":
		return Errored, nil
	}
	return NotRun, fmt.Errorf("unknown outcome %q", s)
}

// Outcome is the last known result of a single test. Message carries the
// failure text for Failed, the reason for Errored, and any captured output
// for Passed.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

func Pass(msg string) Outcome { return Outcome{Kind: Passed, Message: msg} }
func Fail(msg string) Outcome { return Outcome{Kind: Failed, Message: msg} }
func Error(reason string) Outcome { return Outcome{Kind: Errored, Message: reason} }

func (o Outcome) IsPassed() bool { return o.Kind == Passed }

func (o Outcome) String() string {
	if o.Message == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Message)
}
