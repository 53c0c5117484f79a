// Package recorder appends run output (trades and equity points) to an
// append-only JSONL journal, so a failed or killed run still leaves its
// partial record on disk.
package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

const (
	recordKindTrade  = "trade"
	recordKindEquity = "equity"

	defaultFilePrefix = "run"
)

// Record is one JSONL line of a run journal.
type Record struct {
	Kind   string             `json:"kind"`
	Trade  *model.Trade       `json:"trade,omitempty"`
	Equity *model.EquityPoint `json:"equity,omitempty"`
}

// JournalConfig controls journal output.
type JournalConfig struct {
	Dir        string
	FilePrefix string
	// SyncEveryLine flushes after every record. Slower, but a crash
	// loses at most the line being written.
	SyncEveryLine bool
}

func (c JournalConfig) withDefaults() JournalConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c JournalConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid journal config: Dir is empty")
	}
	return nil
}

// Journal writes run records to a single JSONL file.
type Journal struct {
	cfg  JournalConfig
	file *os.File
	w    *bufio.Writer
}

// NewJournal creates the journal file, named by prefix and start time.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%d.jsonl", cfg.FilePrefix, time.Now().UTC().UnixMilli())
	file, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create journal file")
	}
	return &Journal{
		cfg:  cfg,
		file: file,
		w:    bufio.NewWriter(file),
	}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.file.Name()
}

// AppendTrade writes one trade record.
func (j *Journal) AppendTrade(t model.Trade) error {
	return j.append(Record{Kind: recordKindTrade, Trade: &t})
}

// AppendEquity writes one equity point record.
func (j *Journal) AppendEquity(p model.EquityPoint) error {
	return j.append(Record{Kind: recordKindEquity, Equity: &p})
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	if err := j.w.Flush(); err != nil {
		_ = j.file.Close()
		return errors.Wrap(err, "flush journal")
	}
	return j.file.Close()
}

func (j *Journal) append(rec Record) error {
	line, err := sonic.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode journal record")
	}
	if _, err := j.w.Write(line); err != nil {
		return errors.Wrap(err, "write journal record")
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write journal record")
	}
	if j.cfg.SyncEveryLine {
		return errors.Wrap(j.w.Flush(), "flush journal record")
	}
	return nil
}

// ReadJournal loads every record from a journal file, tolerating a
// truncated final line from a crashed run.
func ReadJournal(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := sonic.Unmarshal(line, &rec); err != nil {
			break
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, errors.Wrap(err, "scan journal")
	}
	return records, nil
}
