// Package parser turns `go test -v` output into per-test outcomes.
//
// Parse never fails. Lines that cannot be tied to a test are kept in
// Report.Unattributed so the caller can still show them.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codedojo/internal/outcome"

	"github.com/charmbracelet/x/ansi"
)

var (
	markerLine  = regexp.MustCompile(`^=== (RUN|PAUSE|CONT|NAME)\s+(\S+)`)
	resultLine  = regexp.MustCompile(`^\s*--- (PASS|FAIL|SKIP): (\S+)(?: \(([0-9.]+)s\))?`)
	summaryLine = regexp.MustCompile(`^(PASS|FAIL)$|^(ok  |FAIL|\?   )\t|^exit status \d+$|^coverage: `)
)

type TestResult struct {
	Name    string
	Outcome outcome.Outcome
	Skipped bool
	Elapsed time.Duration
}

type Report struct {
	// Results holds top-level tests in the order their result lines were seen.
	// Subtest output is folded into the parent's message.
	Results      []TestResult
	Unattributed string

	// ToolchainFailure is set when the command exited non-zero before any test
	// marker was printed, typically a build failure. Diagnostic then holds the
	// full raw output and Results is empty.
	ToolchainFailure bool
	Diagnostic       string
}

func (r Report) Lookup(name string) (TestResult, bool) {
	for _, tr := range r.Results {
		if tr.Name == name {
			return tr, true
		}
	}
	return TestResult{}, false
}

type state struct {
	buffers  map[string][]string
	seen     map[string]bool
	order    []string
	started  []string
	resolved map[string]int
	results  []TestResult

	current    string
	lastFailed int
	panicTo    int

	unattributed []string
	sawMarker    bool
}

func Parse(raw []byte, exitCode int) Report {
	s := &state{
		buffers:    map[string][]string{},
		seen:       map[string]bool{},
		resolved:   map[string]int{},
		lastFailed: -1,
		panicTo:    -1,
	}
	text := strings.TrimSuffix(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	for _, line := range strings.Split(text, "\n") {
		s.line(ansi.Strip(line))
	}

	if exitCode != 0 && !s.sawMarker {
		return Report{ToolchainFailure: true, Diagnostic: string(raw)}
	}
	s.finish(exitCode)
	for i := range s.results {
		s.results[i].Outcome.Message = strings.TrimRight(s.results[i].Outcome.Message, "\n")
	}
	return Report{
		Results:      s.results,
		Unattributed: strings.Trim(strings.Join(s.unattributed, "\n"), "\n"),
	}
}

func (s *state) line(line string) {
	if m := markerLine.FindStringSubmatch(line); m != nil {
		s.marker(m[1], m[2])
		return
	}
	if m := resultLine.FindStringSubmatch(line); m != nil {
		s.result(strings.TrimSpace(line), m[1], m[2], m[3])
		return
	}
	if summaryLine.MatchString(line) {
		s.panicTo = -1
		s.current = ""
		s.unattributed = append(s.unattributed, line)
		return
	}
	if strings.HasPrefix(line, "panic: ") && s.panicTo < 0 && s.lastFailed >= 0 && s.current == "" {
		s.panicTo = s.lastFailed
	}
	switch {
	case s.panicTo >= 0:
		s.appendMessage(s.panicTo, line)
	case s.current != "":
		s.buffers[s.current] = append(s.buffers[s.current], line)
	default:
		s.unattributed = append(s.unattributed, line)
	}
}

func (s *state) marker(kind, name string) {
	s.sawMarker = true
	s.register(name)
	switch kind {
	case "RUN":
		s.panicTo = -1
		s.lastFailed = -1
		s.current = name
	case "PAUSE":
		if s.current == name {
			s.current = ""
		}
	default:
		// A resumed test owns whatever follows, including a panic.
		s.panicTo = -1
		s.lastFailed = -1
		s.current = name
	}
}

func (s *state) result(line, status, name, elapsed string) {
	s.sawMarker = true
	s.panicTo = -1
	root := rootOf(name)

	if root != name {
		s.register(root)
		if idx, ok := s.resolved[root]; ok {
			s.appendMessage(idx, line)
		} else {
			s.buffers[root] = append(s.buffers[root], line)
		}
		if s.current == name {
			s.current = root
		}
		return
	}

	tr := TestResult{Name: name, Elapsed: parseElapsed(elapsed)}
	msg := s.collect(name)
	switch status {
	case "PASS":
		tr.Outcome = outcome.Pass(msg)
	case "SKIP":
		tr.Outcome = outcome.Pass(msg)
		tr.Skipped = true
	default:
		tr.Outcome = outcome.Fail(msg)
	}

	idx, ok := s.resolved[name]
	if ok {
		s.results[idx] = tr
	} else {
		idx = len(s.results)
		s.results = append(s.results, tr)
		s.resolved[name] = idx
	}
	if status == "FAIL" {
		s.lastFailed = idx
	}
	if rootOf(s.current) == name {
		s.current = ""
	}
}

func (s *state) register(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.order = append(s.order, name)
	if rootOf(name) == name {
		s.started = append(s.started, name)
	}
}

// finish settles tests that started but never printed a result. A panic in
// their output or a failing exit status means the binary died under them.
func (s *state) finish(exitCode int) {
	for _, name := range s.started {
		if _, ok := s.resolved[name]; ok {
			continue
		}
		msg := s.collect(name)
		if exitCode != 0 || strings.Contains(msg, "panic: ") {
			if msg == "" {
				msg = "test exited before reporting a result"
			}
			s.resolved[name] = len(s.results)
			s.results = append(s.results, TestResult{Name: name, Outcome: outcome.Fail(msg)})
			continue
		}
		if msg != "" {
			s.unattributed = append(s.unattributed, name+":", msg)
		}
	}
}

// collect drains the buffers of name and its subtests, in start order.
func (s *state) collect(name string) string {
	var lines []string
	prefix := name + "/"
	for _, n := range s.order {
		if n != name && !strings.HasPrefix(n, prefix) {
			continue
		}
		lines = append(lines, s.buffers[n]...)
		s.buffers[n] = nil
	}
	for i, l := range lines {
		lines[i] = dedent(l)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func (s *state) appendMessage(idx int, line string) {
	o := &s.results[idx].Outcome
	if o.Message == "" {
		o.Message = line
		return
	}
	o.Message += "\n" + line
}

func rootOf(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

// dedent removes the four-space indent go test puts in front of t.Log output.
func dedent(line string) string {
	return strings.TrimPrefix(strings.TrimRight(line, " \t"), "    ")
}

func parseElapsed(s string) time.Duration {
	if s == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(math.Round(secs * float64(time.Second)))
}
