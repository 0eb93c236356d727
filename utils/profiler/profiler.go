package profiler

import (
	"time"

	"midas/core"
)

// Stage names recorded by the chat pipeline and the transcription endpoint.
const (
	StageLLMFirstToken = "llm_ttft"
	StageTTSFirstSynth = "tts_ttfs"
	StageTranscription = "stt"
)

// Transcription latency is logged against its own thresholds.
const (
	TranscribeGoodBelowMs = 200
	TranscribeWarnBelowMs = 800
)

const (
	reportGoodBelowMs = 300
	reportWarnUpToMs  = 600
)

type Grade string

const (
	GradeGood    Grade = "good"
	GradeWarning Grade = "warning"
	GradePoor    Grade = "poor"
)

// GradeWithin grades ms as good below good, warning below warn, poor otherwise.
func GradeWithin(ms, good, warn float64) Grade {
	switch {
	case ms < good:
		return GradeGood
	case ms < warn:
		return GradeWarning
	default:
		return GradePoor
	}
}

// ReportGrade applies the report thresholds: under 300ms good, up to 600ms
// warning, above that poor.
func ReportGrade(ms float64) Grade {
	switch {
	case ms < reportGoodBelowMs:
		return GradeGood
	case ms <= reportWarnUpToMs:
		return GradeWarning
	default:
		return GradePoor
	}
}

type Entry struct {
	Name  string
	Ms    float64
	Grade Grade
}

// Profiler records named wall-clock spans for one request. It is not safe
// for concurrent use.
type Profiler struct {
	now    func() time.Time
	starts map[string]time.Time
	times  map[string]float64
	order  []string
}

func New() *Profiler {
	return &Profiler{
		now:    time.Now,
		starts: make(map[string]time.Time),
		times:  make(map[string]float64),
	}
}

// Start records the start of name, replacing any earlier start.
func (p *Profiler) Start(name string) {
	p.starts[name] = p.now()
}

// Stop records and returns the milliseconds since Start(name). Without a
// matching start it returns the previously recorded value, or 0.
func (p *Profiler) Stop(name string) float64 {
	started, ok := p.starts[name]
	if ok {
		if _, seen := p.times[name]; !seen {
			p.order = append(p.order, name)
		}
		// time.Since-style subtraction uses the monotonic reading
		p.times[name] = float64(p.now().Sub(started).Microseconds()) / 1000
	}
	return p.times[name]
}

// Elapsed returns the recorded duration of name.
func (p *Profiler) Elapsed(name string) (float64, bool) {
	ms, ok := p.times[name]
	return ms, ok
}

func (p *Profiler) Reset() {
	clear(p.starts)
	clear(p.times)
	p.order = p.order[:0]
}

// Entries returns the recorded durations in first-recorded order.
func (p *Profiler) Entries() []Entry {
	out := make([]Entry, 0, len(p.order))
	for _, name := range p.order {
		ms := p.times[name]
		out = append(out, Entry{Name: name, Ms: ms, Grade: ReportGrade(ms)})
	}
	return out
}

// Report logs every recorded duration with its grade and returns the entries.
func (p *Profiler) Report(logger *core.Logger) []Entry {
	entries := p.Entries()
	if len(entries) == 0 {
		return entries
	}
	logger.Info("latency report")
	for _, e := range entries {
		logger.With(map[string]any{
			"stage": e.Name,
			"ms":    int64(e.Ms + 0.5),
			"grade": e.Grade,
		}).Info("latency")
	}
	return entries
}
