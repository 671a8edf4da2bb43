package api

import "sync"

// DefaultStoreSize bounds how many invocation results are kept for GET.
const DefaultStoreSize = 256

// InvocationStore keeps the most recent invocation results by id.
type InvocationStore struct {
	mu    sync.Mutex
	limit int
	byID  map[string]Invocation
	order []string
}

func NewInvocationStore(limit int) *InvocationStore {
	if limit <= 0 {
		limit = DefaultStoreSize
	}
	return &InvocationStore{limit: limit, byID: make(map[string]Invocation)}
}

// Put stores inv, evicting the oldest entry when full.
func (s *InvocationStore) Put(inv Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[inv.ID]; !ok {
		s.order = append(s.order, inv.ID)
	}
	s.byID[inv.ID] = inv
	for len(s.order) > s.limit {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *InvocationStore) Get(id string) (Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	return inv, ok
}

func (s *InvocationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *InvocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
