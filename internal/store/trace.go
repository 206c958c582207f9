package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceEntry represents a single entry in the progress trace.
// Each entry is serialized as a JSON line in trace.jsonl.
type TraceEntry struct {
	// Iteration is the number of completed iterations
	Iteration int `json:"iteration"`

	// Value is the noise-free objective at this iteration
	Value float64 `json:"value"`

	// LearningRate is the step size at this iteration (spsa only)
	LearningRate float64 `json:"learningRate,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Point is optional and left out to keep traces small
	Point []float64 `json:"point,omitempty"`
}

// tracePath is <baseDir>/jobs/<jobID>/trace.jsonl.
func tracePath(baseDir, jobID string) string {
	return filepath.Join(baseDir, "jobs", jobID, "trace.jsonl")
}

// TraceWriter writes trace entries to a JSONL file.
// It uses buffered I/O for performance and is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates a new trace writer for the given job.
// The trace file is created at <baseDir>/jobs/<jobID>/trace.jsonl.
// If append is true, new entries are appended to existing file.
func NewTraceWriter(baseDir, jobID string, append bool) (*TraceWriter, error) {
	if err := validJobID(jobID); err != nil {
		return nil, err
	}
	jobDir := filepath.Join(baseDir, "jobs", jobID)

	// Ensure job directory exists
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	path := tracePath(baseDir, jobID)

	// Open file in append or create mode
	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	writer := bufio.NewWriterSize(file, 64*1024) // 64KB buffer

	return &TraceWriter{
		file:   file,
		writer: writer,
		path:   path,
	}, nil
}

// Write appends a trace entry to the file.
// The entry is buffered and will be written on Flush() or Close().
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Serialize to JSON
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	// Write JSON line
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}

	// Write newline
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush writes any buffered data to the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}

	// Also sync to disk for durability
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}

	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Flush buffer first
	if err := tw.writer.Flush(); err != nil {
		tw.file.Close() // Try to close anyway
		return fmt.Errorf("failed to flush on close: %w", err)
	}

	// Close file
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}

	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader streams the entries of a job trace in file order:
//
//	tr, err := store.OpenTrace(baseDir, jobID)
//	...
//	defer tr.Close()
//	for tr.Next() {
//		use(tr.Entry())
//	}
//	if err := tr.Err(); err != nil { ... }
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
	entry   TraceEntry
	line    int
	err     error
}

// OpenTrace opens the trace written by a TraceWriter for jobID. A job
// without a trace yields a *NotFoundError.
func OpenTrace(baseDir, jobID string) (*TraceReader, error) {
	if err := validJobID(jobID); err != nil {
		return nil, err
	}

	file, err := os.Open(tracePath(baseDir, jobID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Entries that carry a point grow with the dimension
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Next advances to the next entry. It returns false at the end of the
// trace or on the first malformed line; Err tells the two apart.
func (tr *TraceReader) Next() bool {
	if tr.err != nil {
		return false
	}
	for tr.scanner.Scan() {
		tr.line++
		raw := tr.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		tr.entry = TraceEntry{}
		if err := json.Unmarshal(raw, &tr.entry); err != nil {
			tr.err = fmt.Errorf("trace line %d: %w", tr.line, err)
			return false
		}
		return true
	}
	if err := tr.scanner.Err(); err != nil {
		tr.err = fmt.Errorf("failed to scan trace: %w", err)
	}
	return false
}

// Entry returns the entry Next advanced to.
func (tr *TraceReader) Entry() TraceEntry {
	return tr.entry
}

// Err returns the error that stopped Next, if any.
func (tr *TraceReader) Err() error {
	return tr.err
}

// Close closes the trace file.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads every entry of a job trace.
func ReadTrace(baseDir, jobID string) ([]TraceEntry, error) {
	tr, err := OpenTrace(baseDir, jobID)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	var entries []TraceEntry
	for tr.Next() {
		entries = append(entries, tr.Entry())
	}
	return entries, tr.Err()
}
