package meta

import (
	"sync"

	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/internal/xlog"
)

// Service is the transactional façade over Store + cache: a single
// shared/exclusive mutex gates the entire meta subsystem. Reads never block
// reads; any mutation serializes with everything, including other
// mutations.
type Service struct {
	mu    sync.RWMutex
	store Store
	cache *cache
}

// NewService opens store at uri and replays its full contents into a fresh
// in-memory cache before returning.
func NewService(uri string) (*Service, error) {
	store, err := NewStore(uri)
	if err != nil {
		return nil, err
	}
	s := &Service{store: store, cache: newCache()}
	cols, err := store.ListCollections()
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		s.cache.append(c)
	}
	return s, nil
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

// CreateCollection validates param, mints identity, persists the new
// revision-0 collection (and its columns/repository), and caches it. On any
// persistence failure the partially-written rows are compensated away.
func (s *Service) CreateCollection(param *CreateParam) (*Collection, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.cache.current(param.Name); existing != nil {
		return nil, cmn.NewError(cmn.CodeDuplicateCollection, "collection %q already exists", param.Name)
	}

	col := fromCreateParam(param)
	if err := s.store.CreateCollection(col); err != nil {
		xlog.Errorf("meta: create_collection %q persist failed, compensating: %v", param.Name, err)
		if derr := s.store.DeleteCollectionByUUID(col.UUID); derr != nil {
			xlog.Errorf("meta: compensating delete for %q failed: %v", param.Name, derr)
		}
		return nil, cmn.NewError(cmn.CodeWriteData, "persist collection %q: %v", param.Name, err)
	}
	s.cache.append(col)
	return col, nil
}

// UpdateCollection builds the next revision of the named collection's
// latest revision by merging param's mutable fields, enforcing §3's
// immutable-field rules, persists it, and caches it. The new revision is
// not current until EnableCollection is called.
func (s *Service) UpdateCollection(param *UpdateParam) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cache.latest(param.Name)
	if prev == nil {
		return nil, cmn.NewError(cmn.CodeInexistentCollection, "collection %q not found", param.Name)
	}

	next, err := mergeUpdate(prev, param)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateCollection(next); err != nil {
		return nil, cmn.NewError(cmn.CodeWriteData, "persist updated collection %q: %v", param.Name, err)
	}
	s.cache.append(next)
	return next, nil
}

// EnableCollection promotes revision to current for name, demoting
// whichever revision was previously current. Both rows are persisted.
func (s *Service) EnableCollection(name string, revision uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *Collection
	for _, col := range s.cache.byName[name] {
		if col.Revision == revision {
			target = col
			break
		}
	}
	if target == nil {
		return cmn.NewError(cmn.CodeInexistentCollection, "collection %q revision %d not found", name, revision)
	}

	prev := s.cache.current(name)
	if prev != nil && prev.UUID != target.UUID {
		demoted := *prev
		demoted.Current = false
		demoted.Readable = false
		demoted.Writable = false
		if err := s.store.UpdateCollection(&demoted); err != nil {
			return cmn.NewError(cmn.CodeWriteData, "demote previous revision of %q: %v", name, err)
		}
		s.cache.append(&demoted)
	}

	enabled := *target
	enabled.Current = true
	enabled.Status = cmn.StatusServing
	enabled.Readable = true
	enabled.Writable = true
	if err := s.store.UpdateCollection(&enabled); err != nil {
		return cmn.NewError(cmn.CodeWriteData, "enable revision of %q: %v", name, err)
	}
	s.cache.append(&enabled)
	return nil
}

// UpdateStatus mutates the status field of the current revision only.
func (s *Service) UpdateStatus(name string, status cmn.CollectionStatus) error {
	return s.mutateCurrent(name, func(c *Collection) { c.Status = status })
}

// SuspendRead / ResumeRead / SuspendWrite / ResumeWrite flip the
// independent readable/writable flags on the current revision.
func (s *Service) SuspendRead(name string) error {
	return s.mutateCurrent(name, func(c *Collection) { c.Readable = false })
}

func (s *Service) ResumeRead(name string) error {
	return s.mutateCurrent(name, func(c *Collection) { c.Readable = true })
}

func (s *Service) SuspendWrite(name string) error {
	return s.mutateCurrent(name, func(c *Collection) { c.Writable = false })
}

func (s *Service) ResumeWrite(name string) error {
	return s.mutateCurrent(name, func(c *Collection) { c.Writable = true })
}

func (s *Service) mutateCurrent(name string, mutate func(*Collection)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cache.current(name)
	if cur == nil {
		return cmn.NewError(cmn.CodeInexistentCollection, "collection %q not found", name)
	}
	next := *cur
	mutate(&next)
	if err := s.store.UpdateCollection(&next); err != nil {
		return cmn.NewError(cmn.CodeWriteData, "persist %q: %v", name, err)
	}
	s.cache.append(&next)
	return nil
}

// DropCollection removes every revision of name from store and cache.
// Idempotent: dropping an already-absent name succeeds.
func (s *Service) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache.latest(name) == nil {
		return nil
	}
	if err := s.store.DeleteCollectionByName(name); err != nil {
		return cmn.NewError(cmn.CodeWriteData, "delete collection %q: %v", name, err)
	}
	s.cache.deleteByName(name)
	return nil
}

// DescribeCollection returns the current revision for name.
func (s *Service) DescribeCollection(name string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.cache.current(name)
	if cur == nil {
		return nil, cmn.NewError(cmn.CodeInexistentCollection, "collection %q not found", name)
	}
	cp := *cur
	return &cp, nil
}

// ListCollections returns every name's current revision, optionally
// filtered by repository name (empty string means no filter).
func (s *Service) ListCollections(repositoryFilter string) []*Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if repositoryFilter == "" {
		return s.cache.listCurrent()
	}
	return s.cache.filterScanByRepository(repositoryFilter)
}
