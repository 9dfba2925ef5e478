package domain

import (
	"reflect"
	"sort"

	"github.com/google/uuid"
)

// Snapshotter is implemented by entities that participate in change tracking.
// Snapshot returns the scalar fields; Links returns the navigation collections
// keyed by relation name. Entities without navigation collections return nil.
type Snapshotter interface {
	Snapshot() map[string]any
	Links() map[string][]uuid.UUID
	EntityID() uuid.UUID
	EntityType() AggregateType
}

// FieldChange holds the old and new value of a changed scalar field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// LinkChange holds the IDs added to and removed from a navigation collection.
type LinkChange struct {
	Added   []uuid.UUID `json:"added,omitempty"`
	Removed []uuid.UUID `json:"removed,omitempty"`
}

// ChangeSet describes the difference between a tracked snapshot and the
// current state of an entity.
type ChangeSet struct {
	EntityID   uuid.UUID              `json:"entity_id"`
	EntityType AggregateType          `json:"entity_type"`
	Fields     map[string]FieldChange `json:"fields,omitempty"`
	Links      map[string]LinkChange  `json:"links,omitempty"`
}

// HasFieldChanges reports whether any scalar field changed.
func (c *ChangeSet) HasFieldChanges() bool {
	return len(c.Fields) > 0
}

// HasLinkChanges reports whether any navigation collection changed.
func (c *ChangeSet) HasLinkChanges() bool {
	return len(c.Links) > 0
}

// IsEmpty reports whether nothing changed at all.
func (c *ChangeSet) IsEmpty() bool {
	return !c.HasFieldChanges() && !c.HasLinkChanges()
}

// SuppressUpdate reports whether the generic updated event must be suppressed:
// only navigation collections changed, so relation events alone describe the
// modification.
func (c *ChangeSet) SuppressUpdate() bool {
	return !c.HasFieldChanges()
}

// OldFields returns the previous values of all changed scalar fields.
func (c *ChangeSet) OldFields() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for name, fc := range c.Fields {
		out[name] = fc.Old
	}
	return out
}

// NewFields returns the current values of all changed scalar fields.
func (c *ChangeSet) NewFields() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for name, fc := range c.Fields {
		out[name] = fc.New
	}
	return out
}

// trackedState is the snapshot captured when an entity was first tracked.
type trackedState struct {
	entityType AggregateType
	fields     map[string]any
	links      map[string][]uuid.UUID
}

// Tracker captures entity snapshots and computes change sets against them.
// It is scoped to a single unit of work and is not safe for concurrent use.
type Tracker struct {
	tracked map[uuid.UUID]trackedState
}

// NewTracker creates an empty change tracker.
func NewTracker() *Tracker {
	return &Tracker{tracked: make(map[uuid.UUID]trackedState)}
}

// Track captures the current state of an entity. Tracking an entity twice
// keeps the original snapshot so the diff spans the whole unit of work.
func (t *Tracker) Track(entity Snapshotter) {
	id := entity.EntityID()
	if _, ok := t.tracked[id]; ok {
		return
	}
	t.tracked[id] = trackedState{
		entityType: entity.EntityType(),
		fields:     copyFields(entity.Snapshot()),
		links:      copyLinks(entity.Links()),
	}
}

// IsTracked reports whether the entity has a captured snapshot.
func (t *Tracker) IsTracked(entity Snapshotter) bool {
	_, ok := t.tracked[entity.EntityID()]
	return ok
}

// Changes computes the change set of an entity against its captured snapshot.
// An untracked entity yields an empty change set, never a false full diff.
func (t *Tracker) Changes(entity Snapshotter) ChangeSet {
	cs := ChangeSet{
		EntityID:   entity.EntityID(),
		EntityType: entity.EntityType(),
	}

	state, ok := t.tracked[entity.EntityID()]
	if !ok {
		return cs
	}

	current := entity.Snapshot()
	for name, newVal := range current {
		oldVal, existed := state.fields[name]
		if !existed || !reflect.DeepEqual(oldVal, newVal) {
			if cs.Fields == nil {
				cs.Fields = make(map[string]FieldChange)
			}
			cs.Fields[name] = FieldChange{Old: oldVal, New: newVal}
		}
	}
	// Fields present in the snapshot but missing now count as cleared.
	for name, oldVal := range state.fields {
		if _, exists := current[name]; !exists {
			if cs.Fields == nil {
				cs.Fields = make(map[string]FieldChange)
			}
			cs.Fields[name] = FieldChange{Old: oldVal, New: nil}
		}
	}

	currentLinks := entity.Links()
	relations := make(map[string]struct{})
	for name := range state.links {
		relations[name] = struct{}{}
	}
	for name := range currentLinks {
		relations[name] = struct{}{}
	}
	for name := range relations {
		added, removed := diffIDs(state.links[name], currentLinks[name])
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		if cs.Links == nil {
			cs.Links = make(map[string]LinkChange)
		}
		cs.Links[name] = LinkChange{Added: added, Removed: removed}
	}

	return cs
}

// Reset forgets all captured snapshots.
func (t *Tracker) Reset() {
	t.tracked = make(map[uuid.UUID]trackedState)
}

// diffIDs computes the set difference between two ID collections. Order is
// irrelevant; the results are sorted so diffs are deterministic.
func diffIDs(before, after []uuid.UUID) (added, removed []uuid.UUID) {
	beforeSet := make(map[uuid.UUID]struct{}, len(before))
	for _, id := range before {
		beforeSet[id] = struct{}{}
	}
	afterSet := make(map[uuid.UUID]struct{}, len(after))
	for _, id := range after {
		afterSet[id] = struct{}{}
	}

	for _, id := range after {
		if _, ok := beforeSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if _, ok := afterSet[id]; !ok {
			removed = append(removed, id)
		}
	}

	sortIDs(added)
	sortIDs(removed)
	return added, removed
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func copyLinks(links map[string][]uuid.UUID) map[string][]uuid.UUID {
	if links == nil {
		return nil
	}
	out := make(map[string][]uuid.UUID, len(links))
	for k, v := range links {
		ids := make([]uuid.UUID, len(v))
		copy(ids, v)
		out[k] = ids
	}
	return out
}
