package parser

import (
	"testing"
	"time"

	"codedojo/internal/outcome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePassPassPanic(t *testing.T) {
	raw := "=== RUN   TestAlpha\n" +
		"--- PASS: TestAlpha (0.00s)\n" +
		"=== RUN   TestBeta\n" +
		"--- PASS: TestBeta (0.01s)\n" +
		"=== RUN   TestGamma\n" +
		"--- FAIL: TestGamma (0.00s)\n" +
		"panic: index out of range [3] with length 3 [recovered]\n" +
		"\tpanic: index out of range [3] with length 3\n" +
		"\n" +
		"goroutine 7 [running]:\n" +
		"testing.tRunner.func1.2({0x1, 0x2})\n" +
		"exit status 2\n" +
		"FAIL\texample.com/dojo/units/slices\t0.011s\n"

	rep := Parse([]byte(raw), 1)

	require.False(t, rep.ToolchainFailure)
	require.Len(t, rep.Results, 3)
	assert.Equal(t, "TestAlpha", rep.Results[0].Name)
	assert.Equal(t, outcome.Passed, rep.Results[0].Outcome.Kind)
	assert.Equal(t, 10*time.Millisecond, rep.Results[1].Elapsed)
	assert.Equal(t, outcome.Passed, rep.Results[1].Outcome.Kind)

	gamma := rep.Results[2]
	assert.Equal(t, outcome.Failed, gamma.Outcome.Kind)
	assert.Contains(t, gamma.Outcome.Message, "panic: index out of range [3] with length 3 [recovered]")
	assert.Contains(t, gamma.Outcome.Message, "goroutine 7 [running]:")
	assert.NotContains(t, gamma.Outcome.Message, "exit status 2")
	assert.Contains(t, rep.Unattributed, "exit status 2")
	assert.Contains(t, rep.Unattributed, "FAIL\texample.com/dojo/units/slices")
}

func TestParseBuildFailureIsToolchainFailure(t *testing.T) {
	raw := "# example.com/dojo/units/slices [example.com/dojo/units/slices.test]\n" +
		"./slices.go:12:2: undefined: foo\n" +
		"FAIL\texample.com/dojo/units/slices [build failed]\n" +
		"FAIL\n"

	rep := Parse([]byte(raw), 1)

	assert.True(t, rep.ToolchainFailure)
	assert.Empty(t, rep.Results)
	assert.Equal(t, raw, rep.Diagnostic)
}

func TestParseZeroExitWithoutMarkersIsNotToolchainFailure(t *testing.T) {
	rep := Parse([]byte("testing: warning: no tests to run\nPASS\nok  \texample.com/x\t0.002s\n"), 0)

	assert.False(t, rep.ToolchainFailure)
	assert.Empty(t, rep.Results)
	assert.Contains(t, rep.Unattributed, "no tests to run")
}

func TestParseAttachesLogOutputToItsTest(t *testing.T) {
	raw := "building...\n" +
		"=== RUN   TestSum\n" +
		"    sum_test.go:14: Sum([1 2]) = 4, want 3\n" +
		"--- FAIL: TestSum (0.00s)\n" +
		"=== RUN   TestEmpty\n" +
		"    sum_test.go:20: checked empty input\n" +
		"--- PASS: TestEmpty (0.00s)\n" +
		"FAIL\n"

	rep := Parse([]byte(raw), 1)

	require.Len(t, rep.Results, 2)
	assert.Equal(t, outcome.Fail("sum_test.go:14: Sum([1 2]) = 4, want 3"), rep.Results[0].Outcome)
	assert.Equal(t, outcome.Pass("sum_test.go:20: checked empty input"), rep.Results[1].Outcome)
	assert.Equal(t, "building...\nFAIL", rep.Unattributed)
}

func TestParseFoldsSubtestsIntoParent(t *testing.T) {
	raw := "=== RUN   TestTable\n" +
		"=== RUN   TestTable/zero\n" +
		"    table_test.go:9: got 1, want 0\n" +
		"=== RUN   TestTable/one\n" +
		"--- FAIL: TestTable (0.00s)\n" +
		"    --- FAIL: TestTable/zero (0.00s)\n" +
		"    --- PASS: TestTable/one (0.00s)\n" +
		"FAIL\n"

	rep := Parse([]byte(raw), 1)

	require.Len(t, rep.Results, 1)
	got := rep.Results[0]
	assert.Equal(t, "TestTable", got.Name)
	assert.Equal(t, outcome.Failed, got.Outcome.Kind)
	assert.Equal(t, "table_test.go:9: got 1, want 0\n--- FAIL: TestTable/zero (0.00s)\n--- PASS: TestTable/one (0.00s)", got.Outcome.Message)
}

func TestParseSkipMapsToPassedWithFlag(t *testing.T) {
	raw := "=== RUN   TestLater\n" +
		"    later_test.go:5: not implemented yet\n" +
		"--- SKIP: TestLater (0.00s)\n" +
		"PASS\n"

	rep := Parse([]byte(raw), 0)

	require.Len(t, rep.Results, 1)
	assert.True(t, rep.Results[0].Skipped)
	assert.Equal(t, outcome.Passed, rep.Results[0].Outcome.Kind)
	assert.Equal(t, "later_test.go:5: not implemented yet", rep.Results[0].Outcome.Message)
}

func TestParseParallelPauseAndCont(t *testing.T) {
	raw := "=== RUN   TestA\n" +
		"=== PAUSE TestA\n" +
		"=== RUN   TestB\n" +
		"=== PAUSE TestB\n" +
		"=== CONT  TestA\n" +
		"    a_test.go:3: from a\n" +
		"=== CONT  TestB\n" +
		"    b_test.go:3: from b\n" +
		"--- PASS: TestB (0.00s)\n" +
		"--- FAIL: TestA (0.00s)\n" +
		"FAIL\n"

	rep := Parse([]byte(raw), 1)

	b, ok := rep.Lookup("TestB")
	require.True(t, ok)
	assert.Equal(t, "b_test.go:3: from b", b.Outcome.Message)
	a, ok := rep.Lookup("TestA")
	require.True(t, ok)
	assert.Equal(t, outcome.Fail("a_test.go:3: from a"), a.Outcome)
	assert.Equal(t, "TestB", rep.Results[0].Name, "results keep the order they were reported in")
}

func TestParseTimeoutPanicFailsRunningTest(t *testing.T) {
	raw := "=== RUN   TestFast\n" +
		"--- PASS: TestFast (0.00s)\n" +
		"=== RUN   TestSlow\n" +
		"panic: test timed out after 1s\n" +
		"\trunning tests:\n" +
		"\t\tTestSlow (1s)\n" +
		"\n" +
		"goroutine 17 [running]:\n" +
		"exit status 2\n" +
		"FAIL\texample.com/x\t1.012s\n"

	rep := Parse([]byte(raw), 1)

	slow, ok := rep.Lookup("TestSlow")
	require.True(t, ok)
	assert.Equal(t, outcome.Failed, slow.Outcome.Kind)
	assert.Contains(t, slow.Outcome.Message, "panic: test timed out after 1s")
}

func TestParseUnfinishedTestOnCleanExitIsUnattributed(t *testing.T) {
	rep := Parse([]byte("=== RUN   TestHalf\n    half_test.go:1: still going\n"), 0)

	assert.Empty(t, rep.Results)
	assert.Equal(t, "TestHalf:\nhalf_test.go:1: still going", rep.Unattributed)
}

func TestParseUnfinishedTestOnFailingExitFails(t *testing.T) {
	rep := Parse([]byte("=== RUN   TestExit\n"), 1)

	got, ok := rep.Lookup("TestExit")
	require.True(t, ok)
	assert.Equal(t, outcome.Fail("test exited before reporting a result"), got.Outcome)
}

func TestParseStripsANSIAndCarriageReturns(t *testing.T) {
	raw := "\x1b[32m=== RUN   TestColor\x1b[0m\r\n\x1b[32m--- PASS: TestColor (0.00s)\x1b[0m\r\nPASS\r\n"

	rep := Parse([]byte(raw), 0)

	require.Len(t, rep.Results, 1)
	assert.Equal(t, "TestColor", rep.Results[0].Name)
	assert.Equal(t, outcome.Passed, rep.Results[0].Outcome.Kind)
}

func TestParseNeverPanicsOnNoise(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"--- FAIL: TestOrphan (0.00s)\npanic: x\n",
		"    --- PASS: TestNoParent/sub (0.00s)\n",
		"=== CONT  TestNeverRan\nline\n",
		"=== RUN\n--- PASS:\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Parse([]byte(in), 1) }, "input %q", in)
		assert.NotPanics(t, func() { _ = Parse([]byte(in), 0) }, "input %q", in)
	}
}

func TestParseOrphanFailureKeepsPanic(t *testing.T) {
	rep := Parse([]byte("--- FAIL: TestOrphan (0.00s)\npanic: x\n"), 2)

	got, ok := rep.Lookup("TestOrphan")
	require.True(t, ok)
	assert.Equal(t, outcome.Fail("panic: x"), got.Outcome)
}

func TestParsePanicAfterContBelongsToResumedTest(t *testing.T) {
	raw := "=== RUN   TestA\n" +
		"=== PAUSE TestA\n" +
		"=== RUN   TestB\n" +
		"=== PAUSE TestB\n" +
		"=== CONT  TestA\n" +
		"    a_test.go:5: bad\n" +
		"--- FAIL: TestA (0.00s)\n" +
		"=== CONT  TestB\n" +
		"panic: boom in B\n" +
		"\n" +
		"goroutine 9 [running]:\n" +
		"exit status 2\n" +
		"FAIL\texample.com/x\t0.004s\n"

	rep := Parse([]byte(raw), 1)

	a, ok := rep.Lookup("TestA")
	require.True(t, ok)
	assert.Equal(t, outcome.Fail("a_test.go:5: bad"), a.Outcome)

	b, ok := rep.Lookup("TestB")
	require.True(t, ok)
	assert.Equal(t, outcome.Failed, b.Outcome.Kind)
	assert.Contains(t, b.Outcome.Message, "panic: boom in B")
	assert.Contains(t, b.Outcome.Message, "goroutine 9 [running]:")
}
