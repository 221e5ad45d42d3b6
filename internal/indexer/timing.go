package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Stage and per-file timings stream to a JSONL file so slow runs can be
// broken down after the fact. One event per line; offsets are
// milliseconds from the start of the run.

type timelineEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"` // "stage" or "file"
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timeline appends events to the JSONL sink. The zero path makes an
// inert timeline so call sites never branch on whether timing is on.
type timeline struct {
	origin time.Time
	mu     sync.Mutex
	out    *os.File
	enc    *json.Encoder
	err    error
}

func openTimeline(origin time.Time, path string) *timeline {
	tl := &timeline{origin: origin}
	if path == "" {
		return tl
	}
	f, err := os.Create(path)
	if err != nil {
		tl.err = err
		return tl
	}
	tl.out = f
	tl.enc = json.NewEncoder(f)
	return tl
}

func (tl *timeline) Err() error {
	if tl == nil {
		return nil
	}
	return tl.err
}

func (tl *timeline) Close() {
	if tl == nil || tl.out == nil {
		return
	}
	_ = tl.out.Close()
}

// Stage records one pipeline stage (scan, extract, policy, ...).
func (tl *timeline) Stage(phase string, start time.Time, duration time.Duration, status string) {
	tl.emit("stage", phase, "", status, start, duration)
}

// File records one per-file event inside a stage; safe from the
// extraction workers.
func (tl *timeline) File(phase, file, status string, start time.Time, duration time.Duration) {
	tl.emit("file", phase, file, status, start, duration)
}

func (tl *timeline) emit(kind, phase, file, status string, start time.Time, duration time.Duration) {
	if tl == nil || tl.enc == nil {
		return
	}
	startMS := millis(start.Sub(tl.origin))
	durMS := millis(duration)
	ev := timelineEvent{
		Phase:      phase,
		Kind:       kind,
		File:       file,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durMS,
		EndMS:      startMS + durMS,
	}
	tl.mu.Lock()
	_ = tl.enc.Encode(ev)
	tl.mu.Unlock()
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// resolveTimingPath decides where timing events go: SV_TIMING_JSONL
// names an explicit sink, --timing (or SV_TIMING=1) defaults to
// timing.jsonl under the lint root. Empty means timing is off.
func (idx *Indexer) resolveTimingPath(rootPath string) string {
	if path := os.Getenv("SV_TIMING_JSONL"); path != "" {
		return path
	}
	if !idx.Timing && !envBool("SV_TIMING") {
		return ""
	}
	if idx.Timing && idx.TimingPath != "" {
		return idx.TimingPath
	}
	if rootPath == "" {
		return "timing.jsonl"
	}
	return filepath.Join(rootPath, "timing.jsonl")
}
