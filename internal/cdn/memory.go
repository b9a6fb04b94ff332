package cdn

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Registry. It enforces ETags, refuses to delete keys
// still referenced by a group and records every mutation in a journal.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     int
	keys    map[string]*memKey
	groups  map[string]*memGroup
	journal []string
	// PageSize bounds ListPublicKeys pages; it only affects ListPage.
	PageSize int
}

type memKey struct {
	pk         PublicKey
	etag       int
	encodedKey string
	callerRef  string
}

type memGroup struct {
	g    KeyGroup
	etag int
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		keys:     map[string]*memKey{},
		groups:   map[string]*memGroup{},
		PageSize: 100,
	}
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%012d", prefix, m.seq)
}

func etagString(v int) string { return "E" + strconv.Itoa(v) }

// AddKeyGroup seeds a key group trusting items.
func (m *Memory) AddKeyGroup(name string, items ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("G")
	m.groups[id] = &memGroup{g: KeyGroup{ID: id, Name: name, Items: slices.Clone(items)}, etag: 1}
	return id
}

// EnsureKeyGroup creates an empty group with a fixed id unless it exists.
func (m *Memory) EnsureKeyGroup(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		m.groups[id] = &memGroup{g: KeyGroup{ID: id, Name: name}, etag: 1}
	}
}

// Journal returns a copy of the mutation log, e.g. "create:edge-KEY_1",
// "delete:K000000000001", "group:G000000000001=[K1 K2]".
func (m *Memory) Journal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.journal)
}

// EncodedKey returns the PEM registered under id.
func (m *Memory) EncodedKey(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return "", false
	}
	return k.encodedKey, true
}

// ListPublicKeys returns keys ordered by creation.
func (m *Memory) ListPublicKeys(ctx context.Context) ([]PublicKey, error) {
	var (
		out    []PublicKey
		marker string
	)
	for {
		page, next := m.ListPage(marker)
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		marker = next
	}
}

// ListPage returns one page starting after marker and the marker of the next
// page, or "" on the last page.
func (m *Memory) ListPage(marker string) ([]PublicKey, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]PublicKey, 0, len(m.keys))
	for _, k := range m.keys {
		all = append(all, k.pk)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := 0
	if marker != "" {
		start = sort.Search(len(all), func(i int) bool { return all[i].ID > marker })
	}
	size := m.PageSize
	if size <= 0 {
		size = len(all)
	}
	end := min(start+size, len(all))
	page := slices.Clone(all[start:end])
	if end < len(all) && len(page) > 0 {
		return page, page[len(page)-1].ID
	}
	return page, ""
}

func (m *Memory) GetPublicKey(ctx context.Context, id string) (PublicKey, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return PublicKey{}, "", fmt.Errorf("%w: public key %s", ErrNotFound, id)
	}
	return k.pk, etagString(k.etag), nil
}

func (m *Memory) CreatePublicKey(ctx context.Context, name, callerReference, encodedKey string) (PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.pk.Name == name || k.callerRef == callerReference {
			return PublicKey{}, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
	}
	id := m.nextID("K")
	pk := PublicKey{ID: id, Name: name, CreatedAt: m.now().Add(time.Duration(m.seq) * time.Millisecond)}
	m.keys[id] = &memKey{pk: pk, etag: 1, encodedKey: encodedKey, callerRef: callerReference}
	m.journal = append(m.journal, "create:"+name)
	return pk, nil
}

func (m *Memory) DeletePublicKey(ctx context.Context, id, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return fmt.Errorf("%w: public key %s", ErrNotFound, id)
	}
	if etagString(k.etag) != etag {
		return fmt.Errorf("%w: public key %s", ErrPreconditionFailed, id)
	}
	for _, g := range m.groups {
		if slices.Contains(g.g.Items, id) {
			return fmt.Errorf("%w: %s in %s", ErrInUse, id, g.g.ID)
		}
	}
	delete(m.keys, id)
	m.journal = append(m.journal, "delete:"+id)
	return nil
}

func (m *Memory) GetKeyGroup(ctx context.Context, id string) (KeyGroup, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return KeyGroup{}, "", fmt.Errorf("%w: key group %s", ErrNotFound, id)
	}
	out := g.g
	out.Items = slices.Clone(g.g.Items)
	return out, etagString(g.etag), nil
}

func (m *Memory) UpdateKeyGroup(ctx context.Context, group KeyGroup, etag string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[group.ID]
	if !ok {
		return "", fmt.Errorf("%w: key group %s", ErrNotFound, group.ID)
	}
	if etagString(g.etag) != etag {
		return "", fmt.Errorf("%w: key group %s", ErrPreconditionFailed, group.ID)
	}
	if len(group.Items) == 0 {
		return "", ErrEmptyKeyGroup
	}
	for _, id := range group.Items {
		if _, ok := m.keys[id]; !ok {
			return "", fmt.Errorf("%w: public key %s", ErrNotFound, id)
		}
	}
	g.g = KeyGroup{ID: group.ID, Name: group.Name, Comment: group.Comment, Items: slices.Clone(group.Items)}
	g.etag++
	m.journal = append(m.journal, fmt.Sprintf("group:%s=%v", group.ID, group.Items))
	return etagString(g.etag), nil
}
