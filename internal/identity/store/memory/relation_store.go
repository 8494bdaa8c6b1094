package memory

import (
	"context"

	id "servio/pkg/domain"
)

// relationStore adapts one relation's rows to the migrator's ports. It
// implements merge.KeyedRelationStore; the catalog only relies on the keyed
// methods for composite relations.
type relationStore struct {
	db   *DB
	name string
}

func (s *relationStore) data() *relationData {
	return s.db.relations[s.name]
}

func (s *relationStore) CountOwned(_ context.Context, owner id.IdentityID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.data().failures["count"]; err != nil {
		return 0, err
	}
	return s.data().count(owner), nil
}

func (s *relationStore) RepointAll(_ context.Context, from, to id.IdentityID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rel := s.data()
	if err := rel.failures["repoint"]; err != nil {
		return 0, err
	}
	moved := 0
	for i := range rel.rows {
		if rel.rows[i].Owner == from {
			rel.rows[i].Owner = to
			moved++
		}
	}
	return moved, nil
}

func (s *relationStore) DeleteOwned(_ context.Context, owner id.IdentityID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rel := s.data()
	if err := rel.failures["delete"]; err != nil {
		return 0, err
	}
	kept := rel.rows[:0]
	dropped := 0
	for _, rw := range rel.rows {
		if rw.Owner == owner {
			dropped++
			continue
		}
		kept = append(kept, rw)
	}
	rel.rows = kept
	return dropped, nil
}

func (s *relationStore) OwnedKeys(_ context.Context, owner id.IdentityID) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.data().failures["keys"]; err != nil {
		return nil, err
	}
	return s.data().keys(owner), nil
}

func (s *relationStore) RepointKeys(_ context.Context, from, to id.IdentityID, keys []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rel := s.data()
	if err := rel.failures["repoint"]; err != nil {
		return 0, err
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	moved := 0
	for i := range rel.rows {
		if rel.rows[i].Owner != from {
			continue
		}
		if _, ok := want[rel.rows[i].Key]; ok {
			rel.rows[i].Owner = to
			moved++
		}
	}
	return moved, nil
}

func (s *relationStore) DeleteKeys(_ context.Context, owner id.IdentityID, keys []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rel := s.data()
	if err := rel.failures["delete"]; err != nil {
		return 0, err
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	kept := rel.rows[:0]
	dropped := 0
	for _, rw := range rel.rows {
		if rw.Owner == owner {
			if _, ok := want[rw.Key]; ok {
				dropped++
				continue
			}
		}
		kept = append(kept, rw)
	}
	rel.rows = kept
	return dropped, nil
}
