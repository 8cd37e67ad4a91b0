// Package selection tracks the weddings that belong to the current session
// and which one is active. It reloads on every auth transition and is the
// only writer of the durable selected-wedding slot.
package selection

import (
	"context"
	"sync"

	"planner-agent/internal/logger"
	"planner-agent/internal/session"
	"planner-agent/internal/storage"
	"planner-agent/internal/wedding"
)

// Fetcher lists the weddings visible to the stored bearer token.
type Fetcher interface {
	ListWeddings(ctx context.Context) ([]wedding.Wedding, error)
}

// State is a point-in-time copy of the selection. Err holds the text of the
// last failed fetch; the list is empty in that case, as it is for a user with
// no weddings yet.
type State struct {
	Weddings []wedding.Wedding
	Active   *wedding.Wedding
	Loading  bool
	Err      string
}

type Store struct {
	fetcher Fetcher
	durable storage.Store

	mu       sync.RWMutex
	weddings []wedding.Wedding
	active   *wedding.Wedding
	loading  bool
	lastErr  string

	// gen identifies the newest load or reset; results of older loads are
	// dropped. cancel aborts the fetch belonging to gen.
	gen    uint64
	cancel context.CancelFunc

	// pending holds mutations made while the fetch for gen is in flight.
	// They are replayed onto its result.
	pending []mutation
}

type mutationKind int

const (
	mutationSelect mutationKind = iota
	mutationAdd
	mutationUpdate
	mutationRemove
)

type mutation struct {
	kind mutationKind
	w    *wedding.Wedding
	id   string
}

func New(fetcher Fetcher, durable storage.Store) *Store {
	return &Store{
		fetcher:  fetcher,
		durable:  durable,
		weddings: []wedding.Wedding{},
		loading:  true,
	}
}

// OnAuthTransition reloads on login and clears on logout.
func (s *Store) OnAuthTransition(ctx context.Context, t session.Transition) {
	if t.Authenticated {
		s.Load(ctx)
		return
	}
	s.reset(ctx)
}

// Load fetches the wedding list and resolves the active wedding from the
// durable reference, falling back to the first wedding. Without a stored
// token it settles to empty without calling the backend. A fetch failure
// also settles to empty. A newer Load or reset supersedes this one.
func (s *Store) Load(ctx context.Context) {
	gen, fetchCtx := s.begin(ctx)

	if !storage.Has(fetchCtx, s.durable, storage.KeyToken) {
		s.finish(ctx, gen, []wedding.Wedding{}, nil, "")
		return
	}

	list, err := s.fetcher.ListWeddings(fetchCtx)
	if err != nil {
		logger.Warn("loading weddings failed", map[string]any{"error": err.Error()})
		s.finish(ctx, gen, []wedding.Wedding{}, nil, err.Error())
		return
	}

	savedID, _, err := s.durable.Get(fetchCtx, storage.KeySelectedWedding)
	if err != nil {
		logger.Warn("reading selected wedding failed", map[string]any{"error": err.Error()})
		savedID = ""
	}

	s.finish(ctx, gen, list, resolveActive(list, savedID), "")
}

// finish settles load gen and, when mutations were replayed onto it, records
// the resulting active wedding. ctx is the caller's context; the fetch
// context is already cancelled by then.
func (s *Store) finish(ctx context.Context, gen uint64, list []wedding.Wedding, active *wedding.Wedding, errText string) {
	if active, replayed := s.settle(gen, list, active, errText); replayed {
		s.persist(ctx, active)
	}
}

// Reload is Load under the name page components use after a mutation.
func (s *Store) Reload(ctx context.Context) {
	s.Load(ctx)
}

func (s *Store) begin(parent context.Context) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	s.loading = true
	s.pending = nil
	return s.gen, ctx
}

// settle installs the result of load gen. Mutations recorded while it was
// in flight are replayed onto a successful result; replayed reports whether
// any were, in which case the caller persists the returned active wedding.
func (s *Store) settle(gen uint64, list []wedding.Wedding, active *wedding.Wedding, errText string) (*wedding.Wedding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		logger.Debug("discarding superseded wedding load", map[string]any{"generation": gen})
		return nil, false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	replayed := errText == "" && len(s.pending) > 0
	if replayed {
		for _, m := range s.pending {
			list, active = m.apply(list, active)
		}
	}
	s.pending = nil

	s.weddings = list
	s.active = active
	s.loading = false
	s.lastErr = errText

	fields := map[string]any{"count": len(list)}
	if active != nil {
		fields["active_id"] = active.ID
	}
	logger.Debug("weddings loaded", fields)

	return copyWedding(active), replayed
}

// record keeps m for replay when a load is in flight. Callers hold s.mu.
func (s *Store) record(m mutation) {
	if s.cancel != nil {
		s.pending = append(s.pending, m)
	}
}

func (m mutation) apply(list []wedding.Wedding, active *wedding.Wedding) ([]wedding.Wedding, *wedding.Wedding) {
	switch m.kind {
	case mutationSelect:
		return list, m.resolve(list)
	case mutationAdd:
		return prepend(list, *m.w), copyWedding(m.w)
	case mutationUpdate:
		list = replace(list, *m.w)
		if active != nil && active.ID == m.w.ID {
			active = copyWedding(m.w)
		}
		return list, active
	case mutationRemove:
		list = without(list, m.id)
		if active != nil && active.ID == m.id {
			active = nil
			if len(list) > 0 {
				active = copyWedding(&list[0])
			}
		}
		return list, active
	}
	return list, active
}

// resolve maps a selection onto the freshly fetched list, preferring the
// fetched copy of the same wedding.
func (m mutation) resolve(list []wedding.Wedding) *wedding.Wedding {
	if m.w == nil {
		return nil
	}
	for i := range list {
		if list[i].ID == m.w.ID {
			return copyWedding(&list[i])
		}
	}
	return copyWedding(m.w)
}

func prepend(list []wedding.Wedding, w wedding.Wedding) []wedding.Wedding {
	out := make([]wedding.Wedding, 0, len(list)+1)
	out = append(out, w)
	for _, existing := range list {
		if existing.ID != w.ID {
			out = append(out, existing)
		}
	}
	return out
}

func replace(list []wedding.Wedding, w wedding.Wedding) []wedding.Wedding {
	out := make([]wedding.Wedding, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == w.ID {
			out[i] = w
		}
	}
	return out
}

func without(list []wedding.Wedding, id string) []wedding.Wedding {
	out := make([]wedding.Wedding, 0, len(list))
	for _, w := range list {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

func copyWedding(w *wedding.Wedding) *wedding.Wedding {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}

func (s *Store) reset(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.pending = nil
	s.weddings = []wedding.Wedding{}
	s.active = nil
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()

	if err := s.durable.Delete(ctx, storage.KeySelectedWedding); err != nil {
		logger.Warn("clearing selected wedding failed", map[string]any{"error": err.Error()})
	}
}

func resolveActive(list []wedding.Wedding, savedID string) *wedding.Wedding {
	if len(list) == 0 {
		return nil
	}
	if savedID != "" {
		for i := range list {
			if list[i].ID == savedID {
				return copyWedding(&list[i])
			}
		}
	}
	return copyWedding(&list[0])
}

// Select makes w active, or clears the selection when w is nil, and records
// the choice in durable storage.
func (s *Store) Select(ctx context.Context, w *wedding.Wedding) {
	s.mu.Lock()
	s.active = copyWedding(w)
	s.record(mutation{kind: mutationSelect, w: copyWedding(w)})
	s.mu.Unlock()

	s.persist(ctx, w)
}

// SelectByID selects the listed wedding with the given id. It reports false
// and changes nothing when no such wedding is listed.
func (s *Store) SelectByID(ctx context.Context, id string) (wedding.Wedding, bool) {
	s.mu.RLock()
	var found *wedding.Wedding
	for i := range s.weddings {
		if s.weddings[i].ID == id {
			found = copyWedding(&s.weddings[i])
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return wedding.Wedding{}, false
	}
	s.Select(ctx, found)
	return *found, true
}

// Add puts a newly created wedding at the front of the list and selects it.
func (s *Store) Add(ctx context.Context, w wedding.Wedding) {
	s.mu.Lock()
	s.weddings = prepend(s.weddings, w)
	s.active = copyWedding(&w)
	s.record(mutation{kind: mutationAdd, w: copyWedding(&w)})
	s.mu.Unlock()

	s.persist(ctx, &w)
}

// Remove drops the wedding with id. If it was active, the new first wedding
// becomes active, or nothing when the list is now empty.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	wasActive := s.active != nil && s.active.ID == id
	m := mutation{kind: mutationRemove, id: id}
	s.weddings, s.active = m.apply(s.weddings, s.active)
	s.record(m)
	next := copyWedding(s.active)
	s.mu.Unlock()

	if wasActive {
		s.persist(ctx, next)
	}
}

// Update replaces the listed wedding that has the same id, keeping its
// position, and refreshes the active wedding when the ids match.
func (s *Store) Update(_ context.Context, w wedding.Wedding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := mutation{kind: mutationUpdate, w: copyWedding(&w)}
	s.weddings, s.active = m.apply(s.weddings, s.active)
	s.record(m)
}

func (s *Store) persist(ctx context.Context, w *wedding.Wedding) {
	var err error
	if w == nil {
		err = s.durable.Delete(ctx, storage.KeySelectedWedding)
	} else {
		err = s.durable.Set(ctx, storage.KeySelectedWedding, w.ID)
	}
	if err != nil {
		logger.Warn("persisting selected wedding failed", map[string]any{"error": err.Error()})
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Weddings: make([]wedding.Wedding, len(s.weddings)),
		Loading:  s.loading,
		Err:      s.lastErr,
	}
	copy(st.Weddings, s.weddings)
	st.Active = copyWedding(s.active)
	return st
}

var _ session.Listener = (*Store)(nil)
