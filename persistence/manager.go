package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/reroaring/blobstore"
	"github.com/hupe1980/reroaring/resource"
)

var (
	// ErrNoSnapshot is returned by LoadLatest when the store holds no
	// readable snapshot.
	ErrNoSnapshot = errors.New("persistence: no snapshot")
	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("persistence: manager is closed")
)

const snapshotSuffix = ".rrb"

// Options configure a Manager.
type Options struct {
	// Prefix starts every snapshot name. Defaults to "snapshot-".
	Prefix      string
	Compression Compression
	BlockSize   int
	// Concurrency bounds the goroutines used by Capture and Restore.
	// Zero means GOMAXPROCS.
	Concurrency int
	// Retain is the number of snapshots kept after each Save. Zero keeps
	// all of them.
	Retain int
	// Controller throttles saves and loads. Nil means no limits.
	Controller *resource.Controller
	// OnCorrupt is called for every snapshot LoadLatest skips.
	OnCorrupt func(name string, err error)
}

// DefaultOptions are the defaults of NewManager.
var DefaultOptions = Options{
	Prefix:      "snapshot-",
	Compression: CompressionLZ4,
	BlockSize:   DefaultBlockSize,
	Retain:      2,
}

// Info describes a stored snapshot.
type Info struct {
	Name      string
	CreatedAt time.Time
	// Size is the stored size in bytes. List leaves it zero.
	Size int64
}

// Manager stores snapshots in a blobstore.Store. Names embed the creation
// time zero-padded, so lexical order is chronological.
type Manager struct {
	store blobstore.Store
	opts  Options

	mu     sync.Mutex
	closed bool
	last   time.Time
}

// NewManager returns a manager over store.
func NewManager(store blobstore.Store, optFns ...func(o *Options)) *Manager {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultOptions.Prefix
	}
	return &Manager{store: store, opts: opts}
}

// Options returns the effective options.
func (m *Manager) Options() Options { return m.opts }

// Store returns the underlying blob store.
func (m *Manager) Store() blobstore.Store { return m.store }

func (m *Manager) name(t time.Time) string {
	return fmt.Sprintf("%s%019d%s", m.opts.Prefix, t.UnixNano(), snapshotSuffix)
}

func (m *Manager) parse(name string) (Info, bool) {
	if !strings.HasPrefix(name, m.opts.Prefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return Info{}, false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, m.opts.Prefix), snapshotSuffix)
	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Info{}, false
	}
	return Info{Name: name, CreatedAt: time.Unix(0, ns)}, true
}

// Save encodes sn into a new snapshot and prunes old ones down to Retain.
// It holds a background slot of the controller for its whole run and
// reserves the encoded size in memory while writing.
func (m *Manager) Save(ctx context.Context, sn *Snapshot) (Info, error) {
	if err := m.check(); err != nil {
		return Info{}, err
	}
	rc := m.opts.Controller
	if err := rc.AcquireBackground(ctx); err != nil {
		return Info{}, err
	}
	defer rc.ReleaseBackground()

	reserve := sn.Size()
	if err := rc.AcquireMemory(ctx, reserve); err != nil {
		return Info{}, fmt.Errorf("persistence: reserve memory: %w", err)
	}
	defer rc.ReleaseMemory(reserve)

	sn.Header.CreatedAt = m.nextTime()
	info := Info{Name: m.name(sn.Header.CreatedAt), CreatedAt: sn.Header.CreatedAt}

	w, err := m.store.Create(ctx, info.Name)
	if err != nil {
		return Info{}, fmt.Errorf("persistence: create %s: %w", info.Name, err)
	}
	n, err := Encode(resource.NewRateLimitedWriter(ctx, w, rc), sn, EncodeOptions{
		Compression: m.opts.Compression,
		BlockSize:   m.opts.BlockSize,
	})
	if err != nil {
		return Info{}, errors.Join(fmt.Errorf("persistence: write %s: %w", info.Name, err), w.Abort())
	}
	if err := w.Close(); err != nil {
		return Info{}, fmt.Errorf("persistence: commit %s: %w", info.Name, err)
	}
	info.Size = n

	if m.opts.Retain > 0 {
		if _, err := m.Prune(ctx, m.opts.Retain); err != nil {
			return info, err
		}
	}
	return info, nil
}

// nextTime returns a timestamp strictly after the previous one so that two
// saves within one clock tick get distinct names.
func (m *Manager) nextTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := time.Now()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

// List returns the stored snapshots, oldest first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	names, err := m.store.List(ctx, m.opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("persistence: list: %w", err)
	}
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if info, ok := m.parse(name); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Load reads the snapshot called name.
func (m *Manager) Load(ctx context.Context, name string) (*Snapshot, Info, error) {
	if err := m.check(); err != nil {
		return nil, Info{}, err
	}
	info, ok := m.parse(name)
	if !ok {
		info = Info{Name: name}
	}
	rc := m.opts.Controller
	if err := rc.AcquireBackground(ctx); err != nil {
		return nil, Info{}, err
	}
	defer rc.ReleaseBackground()

	b, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, Info{}, fmt.Errorf("persistence: open %s: %w", name, err)
	}
	defer b.Close()
	info.Size = b.Size()

	body, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, Info{}, fmt.Errorf("persistence: read %s: %w", name, err)
	}
	defer body.Close()

	sn, err := Decode(resource.NewRateLimitedReader(ctx, body, rc))
	if err != nil {
		return nil, Info{}, fmt.Errorf("persistence: decode %s: %w", name, err)
	}
	return sn, info, nil
}

// LoadLatest reads the newest snapshot that decodes. Corrupt snapshots are
// reported to OnCorrupt and skipped; other errors abort.
func (m *Manager) LoadLatest(ctx context.Context) (*Snapshot, Info, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return nil, Info{}, err
	}
	for i := len(infos) - 1; i >= 0; i-- {
		sn, info, err := m.Load(ctx, infos[i].Name)
		if err == nil {
			return sn, info, nil
		}
		if !errors.Is(err, ErrCorrupt) && !errors.Is(err, ErrInvalidMagic) && !errors.Is(err, ErrInvalidVersion) {
			return nil, Info{}, err
		}
		if m.opts.OnCorrupt != nil {
			m.opts.OnCorrupt(infos[i].Name, err)
		}
	}
	return nil, Info{}, ErrNoSnapshot
}

// Prune deletes all but the newest keep snapshots and returns how many it
// deleted.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	deleted := 0
	for i := 0; i < len(infos)-keep; i++ {
		if err := m.store.Delete(ctx, infos[i].Name); err != nil {
			return deleted, fmt.Errorf("persistence: delete %s: %w", infos[i].Name, err)
		}
		deleted++
	}
	return deleted, nil
}

// Close makes further calls fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Manager) check() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}
