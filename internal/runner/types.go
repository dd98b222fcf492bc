package runner

import (
	"time"
)

type Config struct {
	// Command is the argv template. {package} and {unit} are replaced in
	// every argument.
	Command     []string
	VersionArgs []string
	Dir         string
	Env         []string

	// IdleTimeout kills a run that produces no output for this long. Zero
	// disables the check.
	IdleTimeout    time.Duration
	MaxOutputBytes int
	WaitDelay      time.Duration
}

func DefaultCommand() []string {
	return []string{"go", "test", "-v", "-count=1", "{package}"}
}

func DefaultConfig() Config {
	return Config{
		Command:        DefaultCommand(),
		VersionArgs:    []string{"version"},
		IdleTimeout:    2 * time.Minute,
		MaxOutputBytes: defaultOutputTailBytes,
		WaitDelay:      2 * time.Second,
	}
}

type Request struct {
	Seq     uint64
	UnitID  string
	Package string
}

type EventKind int

const (
	EventOutput EventKind = iota
	EventFinished
)

// Event is delivered on Manager.Events. For a given run, Output events come
// first and a single Finished event is last.
type Event struct {
	Seq    uint64
	UnitID string
	Kind   EventKind
	Chunk  []byte
	Result *Result
}

type Status int

const (
	StatusRunning Status = iota
	StatusFinished
)

type Result struct {
	Output    []byte
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration

	// SpawnErr is set when the command could not be started at all.
	SpawnErr error
	// Err is any other failure waiting for the process.
	Err error

	TimedOut  bool
	Cancelled bool
	Truncated bool
}

type ToolchainInfo struct {
	Name    string
	Path    string
	Version string
}
