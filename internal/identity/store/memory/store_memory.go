// Package memory backs unit tests and local runs with an in-memory identity
// database. RunInTx takes a coarse lock and snapshots all state, so a failing
// merge rolls back exactly like the Postgres implementation.
package memory

import (
	"sort"
	"sync"

	"servio/internal/identity/merge"
	"servio/internal/identity/models"
	id "servio/pkg/domain"
)

// row is one owned-relation row. Key is empty for non-composite relations.
type row struct {
	Owner id.IdentityID
	Key   string
}

type relationData struct {
	class merge.Class
	rows  []row
	// failures maps operation names ("count", "repoint", "delete", "keys")
	// to an injected error, for atomicity tests.
	failures map[string]error
}

// DB is the in-memory identity database. All stores derived from it share its
// state and its lock.
type DB struct {
	mu         sync.Mutex
	identities map[id.IdentityID]models.Identity
	relations  map[string]*relationData
	order      []string
}

func NewDB() *DB {
	return &DB{
		identities: make(map[id.IdentityID]models.Identity),
		relations:  make(map[string]*relationData),
	}
}

// AddRelation registers a relation type. Call order fixes catalog order.
func (d *DB) AddRelation(name string, class merge.Class) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.relations[name]; exists {
		return
	}
	d.relations[name] = &relationData{class: class, failures: make(map[string]error)}
	d.order = append(d.order, name)
}

// Catalog builds the merge catalog over every registered relation.
func (d *DB) Catalog() merge.Catalog {
	d.mu.Lock()
	defer d.mu.Unlock()
	catalog := make(merge.Catalog, 0, len(d.order))
	for _, name := range d.order {
		catalog = append(catalog, merge.Entry{
			Relation: name,
			Class:    d.relations[name].class,
			Store:    &relationStore{db: d, name: name},
		})
	}
	return catalog
}

// SeedIdentity inserts an identity record.
func (d *DB) SeedIdentity(identity models.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[identity.ID] = identity
}

// SeedRow inserts an owned-relation row. For composite relations key must be
// the secondary key; for others it may be empty.
func (d *DB) SeedRow(relation string, owner id.IdentityID, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rel := d.relations[relation]
	rel.rows = append(rel.rows, row{Owner: owner, Key: key})
}

// FailOn injects an error for one operation of one relation. op is one of
// "count", "repoint", "delete", "keys". Cleared by ClearFailures.
func (d *DB) FailOn(relation, op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.relations[relation].failures[op] = err
}

// ClearFailures removes all injected errors.
func (d *DB) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rel := range d.relations {
		rel.failures = make(map[string]error)
	}
}

// Identity returns a copy of the stored identity.
func (d *DB) Identity(identityID id.IdentityID) (models.Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.identities[identityID]
	return rec, ok
}

// CountRows counts rows of one relation owned by the given identity.
func (d *DB) CountRows(relation string, owner id.IdentityID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relations[relation].count(owner)
}

// Keys returns the sorted composite keys owned by the identity.
func (d *DB) Keys(relation string, owner id.IdentityID) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relations[relation].keys(owner)
}

// snapshot deep-copies all mutable state. Caller holds the lock.
func (d *DB) snapshot() (map[id.IdentityID]models.Identity, map[string][]row) {
	identities := make(map[id.IdentityID]models.Identity, len(d.identities))
	for k, v := range d.identities {
		identities[k] = v
	}
	relations := make(map[string][]row, len(d.relations))
	for name, rel := range d.relations {
		rows := make([]row, len(rel.rows))
		copy(rows, rel.rows)
		relations[name] = rows
	}
	return identities, relations
}

// restore reinstates a snapshot. Caller holds the lock.
func (d *DB) restore(identities map[id.IdentityID]models.Identity, relations map[string][]row) {
	d.identities = identities
	for name, rows := range relations {
		d.relations[name].rows = rows
	}
}

func (r *relationData) count(owner id.IdentityID) int {
	n := 0
	for _, rw := range r.rows {
		if rw.Owner == owner {
			n++
		}
	}
	return n
}

func (r *relationData) keys(owner id.IdentityID) []string {
	var out []string
	for _, rw := range r.rows {
		if rw.Owner == owner {
			out = append(out, rw.Key)
		}
	}
	sort.Strings(out)
	return out
}
