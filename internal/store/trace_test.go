package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	baseDir := t.TempDir()
	jobID := "trace-job"

	tw, err := NewTraceWriter(baseDir, jobID, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	entries := []TraceEntry{
		{Iteration: 100, Value: -0.5, LearningRate: 0.01, Timestamp: time.Now()},
		{Iteration: 200, Value: -0.1, LearningRate: 0.02, Timestamp: time.Now()},
		{Iteration: 300, Value: 0.9, LearningRate: 0.015, Timestamp: time.Now()},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	expectedPath := filepath.Join(baseDir, "jobs", jobID, "trace.jsonl")
	if tw.Path() != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, tw.Path())
	}

	got, err := ReadTrace(baseDir, jobID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Iteration != entries[i].Iteration || got[i].Value != entries[i].Value || got[i].LearningRate != entries[i].LearningRate {
			t.Errorf("Entry %d mismatch: got %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestTraceWriter_Append(t *testing.T) {
	baseDir := t.TempDir()
	jobID := "append-job"

	for run := 0; run < 2; run++ {
		tw, err := NewTraceWriter(baseDir, jobID, run > 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := tw.Write(TraceEntry{Iteration: run + 1, Value: float64(run)}); err != nil {
			t.Fatal(err)
		}
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadTrace(baseDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Iteration != 1 || got[1].Iteration != 2 {
		t.Errorf("Expected both runs in the trace, got %+v", got)
	}
}

func TestTraceWriter_TruncatesWithoutAppend(t *testing.T) {
	baseDir := t.TempDir()

	for run := 0; run < 2; run++ {
		tw, err := NewTraceWriter(baseDir, "truncate", false)
		if err != nil {
			t.Fatal(err)
		}
		if err := tw.Write(TraceEntry{Iteration: run}); err != nil {
			t.Fatal(err)
		}
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadTrace(baseDir, "truncate")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Iteration != 1 {
		t.Errorf("Expected only the second run, got %+v", got)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "flush", false)
	if err != nil {
		t.Fatal(err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Iteration: 1, Value: 2}); err != nil {
		t.Fatal(err)
	}

	// Buffered until flushed
	data, _ := os.ReadFile(tw.Path())
	if len(data) != 0 {
		t.Errorf("Expected empty file before flush, got %q", data)
	}

	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	data, err = os.ReadFile(tw.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"iteration":1`) || !strings.HasSuffix(string(data), "\n") {
		t.Errorf("Unexpected file content after flush: %q", data)
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "iter", false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := tw.Write(TraceEntry{Iteration: i * 10}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err := OpenTrace(baseDir, "iter")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	n := 0
	for tr.Next() {
		if got := tr.Entry().Iteration; got != n*10 {
			t.Errorf("Entry %d: expected iteration %d, got %d", n, n*10, got)
		}
		n++
	}
	if err := tr.Err(); err != nil {
		t.Fatalf("Err after last entry: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 entries, got %d", n)
	}
	if tr.Next() {
		t.Error("Next should stay false at end of trace")
	}
}

func TestTraceReader_SkipsBlankLines(t *testing.T) {
	baseDir := t.TempDir()
	dir := filepath.Join(baseDir, "jobs", "blank")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "{\"iteration\":1}\n\n  \n{\"iteration\":2}\n"
	if err := os.WriteFile(filepath.Join(dir, "trace.jsonl"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(baseDir, "blank")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Iteration != 1 || got[1].Iteration != 2 {
		t.Errorf("Expected iterations 1 and 2, got %+v", got)
	}
}

func TestTraceReader_MalformedLine(t *testing.T) {
	baseDir := t.TempDir()
	dir := filepath.Join(baseDir, "jobs", "bad")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "{\"iteration\":1}\n{\"iteration\":\n{\"iteration\":3}\n"
	if err := os.WriteFile(filepath.Join(dir, "trace.jsonl"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	tr, err := OpenTrace(baseDir, "bad")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if !tr.Next() || tr.Entry().Iteration != 1 {
		t.Fatal("Expected the first entry to decode")
	}
	if tr.Next() {
		t.Fatal("Expected Next to stop at the malformed line")
	}
	if err := tr.Err(); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error naming line 2, got %v", err)
	}
	if tr.Next() {
		t.Error("Next should stay false after an error")
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := OpenTrace(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := ReadTrace(t.TempDir(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from ReadTrace, got %v", err)
	}
}

func TestTraceReader_InvalidJobID(t *testing.T) {
	_, err := OpenTrace(t.TempDir(), "../escape")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestTraceWriter_PointIsOptional(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "points", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Iteration: 1, Point: []float64{1.5, -2}}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Iteration: 2}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(tw.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"point":[1.5,-2]`) {
		t.Errorf("Expected point in first line: %s", lines[0])
	}
	if strings.Contains(lines[1], "point") || strings.Contains(lines[1], "learningRate") {
		t.Errorf("Empty fields should be omitted: %s", lines[1])
	}
}

func TestTraceWriter_InvalidJobID(t *testing.T) {
	if _, err := NewTraceWriter(t.TempDir(), "../escape", false); err == nil {
		t.Error("Expected error for job ID with separator")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "concurrent", false)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := tw.Write(TraceEntry{Iteration: g*100 + i}); err != nil {
					t.Error(fmt.Errorf("write: %w", err))
				}
			}
		}(g)
	}
	wg.Wait()

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(baseDir, "concurrent")
	if err != nil {
		t.Fatalf("ReadTrace failed (interleaved lines?): %v", err)
	}
	if len(got) != 100 {
		t.Errorf("Expected 100 entries, got %d", len(got))
	}
}
