// Package credentials persists registered users as a flat CSV table.
//
// Passwords and security answers are stored in cleartext. This mirrors the
// behaviour clients depend on (password recovery returns the stored value)
// and is a known security defect, not a design goal.
package credentials

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileName is the default name of the credentials table inside the data dir.
const FileName = "user_credentials.csv"

// Columns is the header of the credentials table, in storage order.
var Columns = []string{"username", "email", "password", "security_question", "security_answer"}

// Record is one registered user.
type Record struct {
	Username         string
	Email            string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
}

// newlines folds CRLF and lone CR into LF. encoding/csv drops the CR of a
// CRLF pair even inside quoted fields, so stored values never carry CR.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines returns s with every line ending rewritten as LF. Values
// compared against stored records must go through it.
func NormalizeNewlines(s string) string {
	return newlines.Replace(s)
}

// Normalized returns r with NormalizeNewlines applied to every field.
func (r Record) Normalized() Record {
	return Record{
		Username:         NormalizeNewlines(r.Username),
		Email:            NormalizeNewlines(r.Email),
		Password:         NormalizeNewlines(r.Password),
		SecurityQuestion: NormalizeNewlines(r.SecurityQuestion),
		SecurityAnswer:   NormalizeNewlines(r.SecurityAnswer),
	}
}

func (r Record) row() []string {
	return []string{r.Username, r.Email, r.Password, r.SecurityQuestion, r.SecurityAnswer}
}

// Store is the storage contract used by the identity layer.
// Append performs no uniqueness check.
type Store interface {
	Load() ([]Record, error)
	Append(r Record) error
}

// CSVStore keeps the full record set in a single CSV file and rewrites it
// on every append.
type CSVStore struct {
	path string

	mu sync.Mutex
}

// NewCSVStore returns a store backed by the CSV file at path. The file is
// created on first append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Open returns a CSVStore for FileName inside dataDir.
func Open(dataDir string) *CSVStore {
	return NewCSVStore(filepath.Join(dataDir, FileName))
}

// Path returns the location of the backing file.
func (s *CSVStore) Path() string { return s.path }

// Load returns all records in insertion order. A missing file is an empty table.
func (s *CSVStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append adds r to the table and durably rewrites the file before returning.
// Line endings in r are normalized to LF.
func (s *CSVStore) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, r.Normalized())
	return s.write(records)
}

func (s *CSVStore) load() ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening credentials: %w", err)
	}
	defer f.Close()

	return parse(bufio.NewReader(f))
}

func parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("credentials: missing column %q", c)
		}
	}

	out := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(name string) string {
			i := col[name]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}
		out = append(out, Record{
			Username:         get("username"),
			Email:            get("email"),
			Password:         get("password"),
			SecurityQuestion: get("security_question"),
			SecurityAnswer:   get("security_answer"),
		})
	}
	return out, nil
}

// write replaces the file with records via a temp file and rename so readers
// never observe a partially written table.
func (s *CSVStore) write(records []Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp credentials file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.row()); err != nil {
			tmp.Close()
			return fmt.Errorf("writing credential row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credentials: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("setting credentials mode: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}
