package session

import (
	"sort"
	"sync"
	"time"

	"github.com/telefoot/telefoot-bot/bot/store"
)

// Descriptor is the persisted record of one linked account. The Connected
// flag reflects the last known state and survives restarts; it is reporting
// state only — RestoreAll retries every descriptor, including those that
// failed last time, so a transient failure heals at the next pass.
type Descriptor struct {
	Phone     string    `json:"phone"`
	Connected bool      `json:"connected"`
	LinkedAt  time.Time `json:"linked_at"`
}

func (d *Descriptor) clone() *Descriptor {
	cp := *d
	return &cp
}

// Registry is the snapshot-backed set of session descriptors, keyed by
// canonical phone number. Every mutation persists the whole set before
// returning, and a failed persist rolls the in-memory state back.
type Registry struct {
	mu    sync.Mutex
	snap  *store.Snapshot
	items map[string]*Descriptor
}

func OpenRegistry(path string) (*Registry, error) {
	snap, err := store.NewSnapshot(path)
	if err != nil {
		return nil, err
	}
	items := make(map[string]*Descriptor)
	if _, err := snap.Load(&items); err != nil {
		return nil, err
	}
	for phone, d := range items {
		if d.Phone == "" {
			d.Phone = phone
		}
	}
	return &Registry{snap: snap, items: items}, nil
}

func (r *Registry) Get(phone string) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[phone]
	if !ok {
		return nil, false
	}
	return d.clone(), true
}

// All returns the descriptors sorted by phone number.
func (r *Registry) All() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Descriptor, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Counts reports total and connected descriptors.
func (r *Registry) Counts() (total, connected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.Connected {
			connected++
		}
	}
	return len(r.items), connected
}

func (r *Registry) Put(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.items[d.Phone]
	r.items[d.Phone] = d.clone()
	if err := r.persistLocked(); err != nil {
		if had {
			r.items[d.Phone] = prev
		} else {
			delete(r.items, d.Phone)
		}
		return err
	}
	return nil
}

func (r *Registry) Delete(phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.items[phone]
	if !had {
		return nil
	}
	delete(r.items, phone)
	if err := r.persistLocked(); err != nil {
		r.items[phone] = prev
		return err
	}
	return nil
}

func (r *Registry) SetConnected(phone string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[phone]
	if !ok || d.Connected == connected {
		return nil
	}
	d.Connected = connected
	if err := r.persistLocked(); err != nil {
		d.Connected = !connected
		return err
	}
	return nil
}

func (r *Registry) persistLocked() error {
	return r.snap.Save(r.items)
}
