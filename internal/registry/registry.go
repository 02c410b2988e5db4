package registry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	bolt "go.etcd.io/bbolt"

	"github.com/imamik/hpcmaker/internal/config"
)

var serialsBucket = []byte("serials")

var (
	// ErrNotFound is returned when an entity has no serial record.
	ErrNotFound = errors.New("serial record not found")

	// ErrLocked is returned when another invocation holds the index or
	// the entity being changed.
	ErrLocked = errors.New("locked by another hpcmaker process")

	// ErrReadOnly is returned by writes on a registry opened read-only.
	ErrReadOnly = errors.New("registry is open read-only")
)

// Entry is the index value stored per entity.
type Entry struct {
	Key       string      `json:"-"`
	Serial    string      `json:"serial"`
	Kind      config.Kind `json:"kind"`
	Tier      string      `json:"tier"`
	Zone      string      `json:"zone"`
	Owner     string      `json:"owner"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
	RunID     string      `json:"run_id,omitempty"`
}

// Registry is the serial number registry for one state tree.
//
// The bbolt index is opened per call, so its file lock is only held for
// the length of one transaction. Long running changes to one entity are
// serialized with Lock instead.
type Registry struct {
	root        string
	path        string
	lockTimeout time.Duration
	readOnly    bool

	mu    sync.Mutex
	locks map[string]string // entity key -> lock file held by this handle
}

// Open opens (creating if needed) the registry under root. Each index
// access waits up to lockTimeout for another process to release it.
func Open(root string, lockTimeout time.Duration) (*Registry, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state dir %s: %w", root, err)
	}

	r := newRegistry(root, lockTimeout, false)
	if err := r.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(serialsBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	return r, nil
}

// OpenReadOnly opens the registry under root for List, Lookup and the
// serial record readers. A missing index reads as empty.
func OpenReadOnly(root string, lockTimeout time.Duration) *Registry {
	return newRegistry(root, lockTimeout, true)
}

func newRegistry(root string, lockTimeout time.Duration, readOnly bool) *Registry {
	return &Registry{
		root:        root,
		path:        filepath.Join(root, "registry.db"),
		lockTimeout: lockTimeout,
		readOnly:    readOnly,
		locks:       make(map[string]string),
	}
}

// Close releases every entity lock taken through this handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, path := range r.locks {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to release lock %s: %w", path, err))
		}
		delete(r.locks, key)
	}
	return errors.Join(errs...)
}

// Lock takes the change lock for e: a lock file next to its serial
// record, created exclusively. It waits up to the lock timeout for
// another run to finish with e. Other entities and readers of the index
// are not blocked. The returned func releases the lock; Close releases
// any lock still held.
func (r *Registry) Lock(e config.Entity, runID string) (func() error, error) {
	if r.readOnly {
		return nil, ErrReadOnly
	}

	path := lockPath(r.root, e)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create serial dir: %w", err)
	}

	deadline := time.Now().Add(r.lockTimeout)
	for {
		err := createLockFile(path, runID)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if time.Now().After(deadline) {
			holder, _ := os.ReadFile(path) // #nosec G304
			return nil, fmt.Errorf("%w: %s is held by %q; remove it if no run for %s is active",
				ErrLocked, path, strings.TrimSpace(string(holder)), e.FullName())
		}
		time.Sleep(lockPollInterval)
	}

	key := string(indexKey(e))
	r.mu.Lock()
	r.locks[key] = path
	r.mu.Unlock()

	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			r.mu.Lock()
			_, held := r.locks[key]
			delete(r.locks, key)
			r.mu.Unlock()
			if !held {
				return
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				releaseErr = fmt.Errorf("failed to release lock %s: %w", path, err)
			}
		})
		return releaseErr
	}, nil
}

const lockPollInterval = 50 * time.Millisecond

func lockPath(root string, e config.Entity) string {
	return config.NewPaths(root, e).SerialFile() + ".lock"
}

func createLockFile(path, runID string) error {
	// #nosec G304
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return fmt.Errorf("failed to create lock %s: %w", path, err)
	}
	_, werr := fmt.Fprintf(f, "pid %d run %s\n", os.Getpid(), runID)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write lock %s: %w", path, errors.Join(werr, cerr))
	}
	return nil
}

func (r *Registry) update(fn func(*bolt.Tx) error) error {
	if r.readOnly {
		return ErrReadOnly
	}
	db, err := r.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

// view runs fn in a read transaction. On a read-only registry with no
// index yet fn is not called.
func (r *Registry) view(fn func(*bolt.Tx) error) error {
	if r.readOnly {
		if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	db, err := r.openDB(r.readOnly)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(serialsBucket) == nil {
			return nil
		}
		return fn(tx)
	})
}

func (r *Registry) openDB(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(r.path, 0o600, &bolt.Options{Timeout: r.lockTimeout, ReadOnly: readOnly})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("registry index %w: %s", ErrLocked, r.path)
		}
		return nil, fmt.Errorf("failed to open registry %s: %w", r.path, err)
	}
	return db, nil
}

// Root returns the state tree this registry manages.
func (r *Registry) Root() string {
	return r.root
}

// Allocation is the result of Allocate.
type Allocation struct {
	Serial  Serial
	Created bool // false when an existing record was returned
}

// Allocate returns the serial for e, creating it from now if no record
// exists. An existing record is returned untouched, so the original
// command line is never overwritten.
func (r *Registry) Allocate(e config.Entity, argv []string, runID string, now time.Time) (Allocation, error) {
	paths := config.NewPaths(r.root, e)
	key := indexKey(e)

	var (
		alloc   Allocation
		written string
	)

	err := r.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(serialsBucket)

		existing, err := readSerialFile(paths.SerialFile())
		switch {
		case err == nil:
			alloc.Serial = existing
			if bucket.Get(key) != nil {
				return nil
			}
			// Record predates the index: backfill.
			return putEntry(bucket, key, newEntry(e, existing, runID, now))
		case !errors.Is(err, ErrNotFound):
			return err
		}

		serial := NewSerial(e.FullName(), now)
		if err := createSerialFile(paths.SerialFile(), serial, argv); err != nil {
			return err
		}
		written = paths.SerialFile()

		alloc = Allocation{Serial: serial, Created: true}
		return putEntry(bucket, key, newEntry(e, serial, runID, now))
	})
	if err != nil {
		if written != "" {
			_ = os.Remove(written)
		}
		return Allocation{}, err
	}

	return alloc, nil
}

// Resolve reads the serial recorded for e.
func (r *Registry) Resolve(e config.Entity) (Serial, error) {
	return readSerialFile(config.NewPaths(r.root, e).SerialFile())
}

// Lines returns every line of the serial record for e.
func (r *Registry) Lines(e config.Entity) ([]string, error) {
	return readLines(config.NewPaths(r.root, e).SerialFile())
}

// Command returns the command line that created e.
func (r *Registry) Command(e config.Entity) (string, error) {
	lines, err := r.Lines(e)
	if err != nil {
		return "", err
	}
	if len(lines) < 2 {
		return "", fmt.Errorf("serial record for %s has no command line", e.FullName())
	}
	return lines[1], nil
}

// Append adds a driven sub-step command to the serial record for e.
func (r *Registry) Append(e config.Entity, argv []string) error {
	if r.readOnly {
		return ErrReadOnly
	}
	path := config.NewPaths(r.root, e).SerialFile()

	// #nosec G304
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open serial record: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, shellquote.Join(argv...)); err != nil {
		return fmt.Errorf("failed to append to serial record: %w", err)
	}
	return nil
}

// Remove deletes the serial record and index entry for e. Missing pieces
// are ignored.
func (r *Registry) Remove(e config.Entity) error {
	if r.readOnly {
		return ErrReadOnly
	}
	path := config.NewPaths(r.root, e).SerialFile()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove serial record: %w", err)
	}

	return r.update(func(tx *bolt.Tx) error {
		return tx.Bucket(serialsBucket).Delete(indexKey(e))
	})
}

// List returns all indexed entities ordered by tier, kind and name.
func (r *Registry) List() ([]Entry, error) {
	var entries []Entry
	err := r.view(func(tx *bolt.Tx) error {
		return tx.Bucket(serialsBucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt registry entry %q: %w", k, err)
			}
			entry.Key = string(k)
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Lookup returns the index entry for e. Only the kind, tier, owner and
// name of e are used.
func (r *Registry) Lookup(e config.Entity) (Entry, error) {
	key := indexKey(e)
	var entry Entry
	found := false
	err := r.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(serialsBucket).Get(key)
		if v == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("corrupt registry entry %q: %w", key, err)
		}
		entry.Key = string(key)
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entry, nil
}

func indexKey(e config.Entity) []byte {
	return []byte(e.Tier + "/" + string(e.Kind) + "/" + e.FullName())
}

func newEntry(e config.Entity, s Serial, runID string, now time.Time) Entry {
	return Entry{
		Serial:    s.String(),
		Kind:      e.Kind,
		Tier:      e.Tier,
		Zone:      e.Zone,
		Owner:     e.Owner,
		Name:      e.Name,
		CreatedAt: now.UTC(),
		RunID:     runID,
	}
}

func putEntry(bucket *bolt.Bucket, key []byte, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode registry entry: %w", err)
	}
	return bucket.Put(key, value)
}

func createSerialFile(path string, s Serial, argv []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create serial dir: %w", err)
	}

	// #nosec G304
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create serial record: %w", err)
	}

	_, werr := fmt.Fprintf(f, "%s\n%s\n", s, shellquote.Join(argv...))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write serial record: %w", errors.Join(werr, cerr))
	}
	return nil
}

func readSerialFile(path string) (Serial, error) {
	lines, err := readLines(path)
	if err != nil {
		return Serial{}, err
	}
	if len(lines) == 0 {
		return Serial{}, fmt.Errorf("serial record %s is empty", path)
	}
	return ParseSerial(lines[0])
}

func readLines(path string) ([]string, error) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read serial record: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read serial record: %w", err)
	}
	return lines, nil
}
