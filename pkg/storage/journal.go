package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxJournalLine bounds a single journal entry.
const maxJournalLine = 16 << 20

// Outcome is the journaled result of one comparison.
type Outcome struct {
	RunID         string    `json:"run_id"`
	Case          string    `json:"case"`
	Reference     string    `json:"reference"`
	Passed        bool      `json:"passed"`
	FailedColumns []string  `json:"failed_columns,omitempty"`
	Tolerance     float64   `json:"tolerance"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Journal is an append-only JSON lines log of comparison outcomes. Each
// journal writes its own file, named after its run.
type Journal struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

const journalExt = ".jsonl"

// OpenJournal creates a journal file for a new run under dir.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	runID := uuid.NewString()
	filename := filepath.Join(dir, fmt.Sprintf("run-%s-%s%s", time.Now().UTC().Format("20060102T150405.000000000"), runID, journalExt))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Journal{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// RunID identifies the run this journal records.
func (j *Journal) RunID() string {
	return j.runID
}

// Append records an outcome and flushes it to the file. RunID and Timestamp
// are filled in when empty.
func (j *Journal) Append(o Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if o.RunID == "" {
		o.RunID = j.runID
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	if _, err := j.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}

	return nil
}

// Close closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// ReplayJournal calls handler for every outcome recorded under dir, oldest
// run first. A missing directory holds no outcomes.
func ReplayJournal(dir string, handler func(Outcome) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read journal directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), journalExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		filename := filepath.Join(dir, name)
		if err := replayJournalFile(filename, handler); err != nil {
			return fmt.Errorf("failed to replay %s: %w", filename, err)
		}
	}

	return nil
}

// replayJournalFile replays a single journal file
func replayJournalFile(filename string, handler func(Outcome) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var o Outcome
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			return fmt.Errorf("failed to unmarshal journal entry: %w", err)
		}

		if err := handler(o); err != nil {
			return err
		}
	}

	return scanner.Err()
}
