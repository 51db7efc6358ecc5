// Package csvledger stores the attendance ledger as a CSV file with the
// columns Name, StudentID, Date, Time, IsLate.
package csvledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Header is the ledger's column set.
var Header = []string{"Name", "StudentID", "Date", "Time", "IsLate"}

// lockRetryDelay is how often a blocked writer polls for the file lock.
const lockRetryDelay = 10 * time.Millisecond

// snapshot is an immutable view of one version of the ledger file.
type snapshot struct {
	info    os.FileInfo // nil when the file did not exist
	records []database.AttendanceRecord
	keys    map[string]struct{} // identity + "\x00" + date
}

// exists reports whether the snapshot was read from a file on disk.
func (s *snapshot) exists() bool {
	return s.info != nil
}

// current reports whether fi describes the same file version the snapshot
// was read from. Every write replaces the file by rename, so a changed file
// is a different inode.
func (s *snapshot) current(fi os.FileInfo) bool {
	if s.info == nil || fi == nil {
		return s.info == nil && fi == nil
	}
	return os.SameFile(s.info, fi) && s.info.Size() == fi.Size() && s.info.ModTime().Equal(fi.ModTime())
}

// Ledger is a file-backed ledger that may be shared by several processes.
// Writers hold an exclusive lock on a sidecar lock file for the whole
// check-then-write step and re-read the file under it. Readers never take
// the lock: they reload the published snapshot when the file on disk has
// changed, and the rename-based rewrite means they always see a whole file.
type Ledger struct {
	path string
	loc  *time.Location
	lock *flock.Flock

	mu   sync.Mutex // serializes writers within this process
	snap atomic.Pointer[snapshot]
}

// Open loads the ledger at path. A missing file is not an error; it is
// created with its header on the first append.
func Open(path string, loc *time.Location) (*Ledger, error) {
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{path: path, loc: loc, lock: flock.New(path + ".lock")}
	l.snap.Store(&snapshot{})

	if _, err := l.refresh(); err != nil {
		return nil, err
	}
	return l, nil
}

// refresh returns a snapshot matching the file on disk, reading the file
// only when it changed since the last published snapshot.
func (l *Ledger) refresh() (*snapshot, error) {
	cur := l.snap.Load()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		if !cur.exists() {
			return cur, nil
		}
		next := &snapshot{}
		return l.publish(cur, next), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat ledger: %w", err)
	}
	if cur.current(fi) {
		return cur, nil
	}

	records, err := Decode(f, l.loc)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}
	return l.publish(cur, newSnapshot(fi, records)), nil
}

// publish swaps in next unless another goroutine already replaced prev,
// in which case its snapshot wins. The winner is returned.
func (l *Ledger) publish(prev, next *snapshot) *snapshot {
	if l.snap.CompareAndSwap(prev, next) {
		return next
	}
	return l.snap.Load()
}

func newSnapshot(fi os.FileInfo, records []database.AttendanceRecord) *snapshot {
	s := &snapshot{info: fi, records: records, keys: make(map[string]struct{}, len(records))}
	for i := range records {
		s.keys[recordKey(&records[i])] = struct{}{}
	}
	return s
}

func recordKey(r *database.AttendanceRecord) string {
	return r.Identity + "\x00" + r.Date()
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Exists reports whether the ledger file has been created.
func (l *Ledger) Exists(ctx context.Context) (bool, error) {
	s, err := l.refresh()
	if err != nil {
		return false, err
	}
	return s.exists(), nil
}

// List returns the records in the date range in insertion order.
func (l *Ledger) List(ctx context.Context, dates database.DateRange) ([]database.AttendanceRecord, error) {
	s, err := l.refresh()
	if err != nil {
		return nil, err
	}
	var out []database.AttendanceRecord
	for _, r := range s.records {
		if dates.Contains(r.Date()) {
			out = append(out, r)
		}
	}
	return out, nil
}

// AppendUnique appends rec unless its identity already attended that day.
// The duplicate check runs against the file as it is on disk while the
// file lock is held, so writes from other processes are never lost.
func (l *Ledger) AppendUnique(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	locked, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return false, fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("lock ledger: %s is held elsewhere", l.lock.Path())
	}
	defer func() { _ = l.lock.Unlock() }()

	cur, err := l.refresh()
	if err != nil {
		return false, err
	}

	rec.ObservedAt = rec.ObservedAt.In(l.loc).Truncate(time.Second)
	key := recordKey(&rec)
	if _, dup := cur.keys[key]; dup {
		return false, nil
	}

	records := make([]database.AttendanceRecord, len(cur.records), len(cur.records)+1)
	copy(records, cur.records)
	records = append(records, rec)

	if err := l.write(records); err != nil {
		return false, err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return false, fmt.Errorf("stat ledger: %w", err)
	}

	keys := make(map[string]struct{}, len(cur.keys)+1)
	for k := range cur.keys {
		keys[k] = struct{}{}
	}
	keys[key] = struct{}{}
	l.snap.Store(&snapshot{info: fi, records: records, keys: keys})
	return true, nil
}

// write rewrites the whole file through a temp file and rename.
func (l *Ledger) write(records []database.AttendanceRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}
	if err := renameio.WriteFile(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Encode writes records as ledger CSV, header first. An empty slice
// produces the header only.
func Encode(w io.Writer, records []database.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Identity, r.ExternalID, r.Date(), r.Time(), formatBool(r.IsLate)}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// formatBool writes the capitalised literals of the ledger file format.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Decode parses ledger CSV. Columns are located by header name, so files
// with reordered columns still load.
func Decode(r io.Reader, loc *time.Location) ([]database.AttendanceRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range Header {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records []database.AttendanceRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(row))
		}

		observed, err := time.ParseInLocation(
			database.DateLayout+" "+database.TimeLayout,
			row[idx["Date"]]+" "+row[idx["Time"]],
			loc,
		)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		late, err := strconv.ParseBool(row[idx["IsLate"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid IsLate: %w", line, err)
		}

		records = append(records, database.AttendanceRecord{
			Identity:   row[idx["Name"]],
			ExternalID: row[idx["StudentID"]],
			ObservedAt: observed,
			IsLate:     late,
		})
	}
	return records, nil
}
