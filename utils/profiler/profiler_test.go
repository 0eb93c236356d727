package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(ms int) { c.t = c.t.Add(time.Duration(ms) * time.Millisecond) }

func newTestProfiler() (*Profiler, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	p := New()
	p.now = clock.now
	return p, clock
}

func captureLogger() (*core.Logger, *[]map[string]any) {
	var lines []map[string]any
	return core.NewLogger(core.LevelDebug, func(_ core.Level, msg string, attrs map[string]any) {
		entry := map[string]any{"msg": msg}
		for k, v := range attrs {
			entry[k] = v
		}
		lines = append(lines, entry)
	}), &lines
}

func TestStopWithoutStart(t *testing.T) {
	p := New()
	assert.Equal(t, 0.0, p.Stop("x"))
	assert.Empty(t, p.Entries())
}

func TestStartStop(t *testing.T) {
	p, clock := newTestProfiler()
	p.Start("x")
	clock.advance(250)
	assert.Equal(t, 250.0, p.Stop("x"))

	wall := New()
	wall.Start("y")
	assert.GreaterOrEqual(t, wall.Stop("y"), 0.0)
}

func TestStartOverwrites(t *testing.T) {
	p, clock := newTestProfiler()
	p.Start("x")
	clock.advance(1000)
	p.Start("x")
	clock.advance(10)
	assert.Equal(t, 10.0, p.Stop("x"))
}

func TestResetClearsReport(t *testing.T) {
	p, clock := newTestProfiler()
	p.Start("a")
	clock.advance(5)
	p.Stop("a")
	p.Reset()

	logger, lines := captureLogger()
	assert.Empty(t, p.Report(logger))
	assert.Empty(t, *lines)
	assert.Equal(t, 0.0, p.Stop("a"))
}

func TestReportGradesInOrder(t *testing.T) {
	p, clock := newTestProfiler()
	for _, tc := range []struct {
		name string
		ms   int
	}{{"llm_ttft", 120}, {"tts_ttfs", 450}, {"stt", 900}} {
		p.Start(tc.name)
		clock.advance(tc.ms)
		p.Stop(tc.name)
	}

	logger, lines := captureLogger()
	entries := p.Report(logger)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Name: "llm_ttft", Ms: 120, Grade: GradeGood}, entries[0])
	assert.Equal(t, Entry{Name: "tts_ttfs", Ms: 450, Grade: GradeWarning}, entries[1])
	assert.Equal(t, Entry{Name: "stt", Ms: 900, Grade: GradePoor}, entries[2])
	assert.Len(t, *lines, 4)
	assert.Equal(t, "stt", (*lines)[3]["stage"])
}

func TestGrades(t *testing.T) {
	assert.Equal(t, GradeGood, ReportGrade(299))
	assert.Equal(t, GradeWarning, ReportGrade(300))
	assert.Equal(t, GradeWarning, ReportGrade(600))
	assert.Equal(t, GradePoor, ReportGrade(601))

	assert.Equal(t, GradeGood, GradeWithin(150, TranscribeGoodBelowMs, TranscribeWarnBelowMs))
	assert.Equal(t, GradeWarning, GradeWithin(200, TranscribeGoodBelowMs, TranscribeWarnBelowMs))
	assert.Equal(t, GradePoor, GradeWithin(800, TranscribeGoodBelowMs, TranscribeWarnBelowMs))
}
