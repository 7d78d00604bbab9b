// Package historystore implements the agent's modification-history
// database: a concurrent map from FieldLocator to the ordered
// FieldModifications recorded against it, and from container identity to
// the ordered ContainerModifications recorded against it. Settings
// changes (enable/disable tracking, clear history) take a write lock that
// drains in-flight appends first; appends themselves only take the
// read lock and never block each other on different keys (spec.md §4.6).
package historystore

import (
	"sync"

	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/stack"
)

// fieldList is one FieldLocator's modification history, with its own
// short-critical-section lock so concurrent appends to different
// locators never contend on a single slice.
type fieldList struct {
	mu   sync.Mutex
	mods []FieldModification
}

type containerList struct {
	mu   sync.Mutex
	mods []ContainerModification
}

// Store is the process-wide (or, in tests, per-instance) modification
// history database.
type Store struct {
	settingsMu sync.RWMutex // guards `active` and structural membership only
	active     map[FieldLocator]bool
	fields     map[FieldLocator]*fieldList
	containers map[identitykey.Key]*containerList
	trackers   map[identitykey.Key]map[FieldLocator]struct{}
}

// New returns an empty Store. The engine keeps one process-wide instance
// (see pkg/agentruntime) but every test constructs its own isolated Store.
func New() *Store {
	return &Store{
		active:     make(map[FieldLocator]bool),
		fields:     make(map[FieldLocator]*fieldList),
		containers: make(map[identitykey.Key]*containerList),
		trackers:   make(map[identitykey.Key]map[FieldLocator]struct{}),
	}
}

// SetTrackingEnabled is the `enable-tracking` / `set-tracking-enabled`
// external operation (spec.md §4.5/§6). Re-enabling an already-enabled
// locator, or disabling an inactive one, leaves the store as it was —
// round-trip idempotence spec.md §8 requires.
func (s *Store) SetTrackingEnabled(locator FieldLocator, enabled bool) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.active[locator] = enabled
}

// IsActive reports whether locator currently accepts appends.
func (s *Store) IsActive(locator FieldLocator) bool {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.active[locator]
}

// RegisterTracker associates container with locator, so that later
// mutator deltas on the container can be attributed back to the field(s)
// that put it there (spec.md §4.5 step 5: "Record class-name+field-name in
// container.trackers").
func (s *Store) RegisterTracker(container identitykey.Key, locator FieldLocator) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	set, ok := s.trackers[container]
	if !ok {
		set = make(map[FieldLocator]struct{})
		s.trackers[container] = set
	}
	set[locator] = struct{}{}
}

// IsContainerActive reports whether any locator tracking container is
// currently active — the condition CaptureInline/CaptureMutator must see
// before appending a ContainerModification.
func (s *Store) IsContainerActive(container identitykey.Key) bool {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	for locator := range s.trackers[container] {
		if s.active[locator] {
			return true
		}
	}
	return false
}

// AppendFieldModification appends mod under locator if locator is active.
// Returns false (no side effect) if the locator is inactive — the
// LookupMiss error kind of spec.md §7.
func (s *Store) AppendFieldModification(locator FieldLocator, mod FieldModification) bool {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	if !s.active[locator] {
		return false
	}
	list := s.fieldListLocked(locator)
	list.mu.Lock()
	list.mods = append(list.mods, mod)
	list.mu.Unlock()
	return true
}

// fieldListLocked returns (creating if needed) the fieldList for locator.
// Callers must already hold settingsMu (read or write); the map itself is
// only ever mutated under that lock, so concurrent callers racing to
// create the same list are already serialized by the caller's lock.
func (s *Store) fieldListLocked(locator FieldLocator) *fieldList {
	list, ok := s.fields[locator]
	if !ok {
		list = &fieldList{}
		s.fields[locator] = list
	}
	return list
}

// AppendContainerModification appends mod for container if at least one
// tracker of container is active.
func (s *Store) AppendContainerModification(container identitykey.Key, mod ContainerModification) bool {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	active := false
	for locator := range s.trackers[container] {
		if s.active[locator] {
			active = true
			break
		}
	}
	if !active {
		return false
	}
	list := s.containerListLocked(container)
	list.mu.Lock()
	list.mods = append(list.mods, mod)
	list.mu.Unlock()
	return true
}

func (s *Store) containerListLocked(container identitykey.Key) *containerList {
	list, ok := s.containers[container]
	if !ok {
		list = &containerList{}
		s.containers[container] = list
	}
	return list
}

// GetFieldModifications returns a snapshot of the FieldModifications
// recorded for locator, in append order.
func (s *Store) GetFieldModifications(locator FieldLocator) []FieldModification {
	s.settingsMu.RLock()
	list, ok := s.fields[locator]
	s.settingsMu.RUnlock()
	if !ok {
		return nil
	}
	list.mu.Lock()
	defer list.mu.Unlock()
	out := make([]FieldModification, len(list.mods))
	copy(out, list.mods)
	return out
}

// GetContainerModifications returns a snapshot of the
// ContainerModifications recorded for container, in append order.
func (s *Store) GetContainerModifications(container identitykey.Key) []ContainerModification {
	s.settingsMu.RLock()
	list, ok := s.containers[container]
	s.settingsMu.RUnlock()
	if !ok {
		return nil
	}
	list.mu.Lock()
	defer list.mu.Unlock()
	out := make([]ContainerModification, len(list.mods))
	copy(out, list.mods)
	return out
}

// GetFieldStack returns the captured stack frames for the index-th
// FieldModification recorded against locator, or nil if index is out of
// range (StackCaptureFailure/LookupMiss both surface as an empty result
// here, per spec.md §7).
func (s *Store) GetFieldStack(locator FieldLocator, index int) stack.Frames {
	mods := s.GetFieldModifications(locator)
	if index < 0 || index >= len(mods) {
		return nil
	}
	return mods[index].Stack
}

// GetContainerStack returns the captured stack frames for the index-th
// ContainerModification recorded against container.
func (s *Store) GetContainerStack(container identitykey.Key, index int) stack.Frames {
	mods := s.GetContainerModifications(container)
	if index < 0 || index >= len(mods) {
		return nil
	}
	return mods[index].Stack
}

// ClearHistory implements spec.md §4.6's literal four-step sequence:
// acquire write lock, remove every FieldLocator whose (class, field)
// matches, evict containers that were tracked only by one of those
// locators, release.
func (s *Store) ClearHistory(class, field string) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	var removed []FieldLocator
	for locator := range s.fields {
		if locator.Class == class && locator.Field == field {
			removed = append(removed, locator)
		}
	}
	for locator := range s.active {
		if locator.Class == class && locator.Field == field {
			alreadyListed := false
			for _, r := range removed {
				if r == locator {
					alreadyListed = true
					break
				}
			}
			if !alreadyListed {
				removed = append(removed, locator)
			}
		}
	}

	removedSet := make(map[FieldLocator]struct{}, len(removed))
	for _, locator := range removed {
		removedSet[locator] = struct{}{}
		delete(s.fields, locator)
		delete(s.active, locator)
	}

	for container, trackedBy := range s.trackers {
		for locator := range removedSet {
			delete(trackedBy, locator)
		}
		if len(trackedBy) == 0 {
			delete(s.trackers, container)
			delete(s.containers, container)
		}
	}
}

// Size reports the total number of FieldModification and
// ContainerModification entries currently retained, for
// internal/resourcemonitor's unbounded-growth check.
func (s *Store) Size() int {
	s.settingsMu.RLock()
	fieldLists := make([]*fieldList, 0, len(s.fields))
	for _, list := range s.fields {
		fieldLists = append(fieldLists, list)
	}
	containerLists := make([]*containerList, 0, len(s.containers))
	for _, list := range s.containers {
		containerLists = append(containerLists, list)
	}
	s.settingsMu.RUnlock()

	total := 0
	for _, list := range fieldLists {
		list.mu.Lock()
		total += len(list.mods)
		list.mu.Unlock()
	}
	for _, list := range containerLists {
		list.mu.Lock()
		total += len(list.mods)
		list.mu.Unlock()
	}
	return total
}

// FieldSnapshot pairs a FieldLocator with its recorded modifications, for
// a full-history export.
type FieldSnapshot struct {
	Locator       FieldLocator
	Modifications []FieldModification
}

// ContainerSnapshot pairs a container identity with its recorded
// modifications, for a full-history export.
type ContainerSnapshot struct {
	Container     identitykey.Key
	Modifications []ContainerModification
}

// Export returns a snapshot of the field modifications of every locator
// that has a history list (active or not) and of every tracked container's
// modifications, for the offline-analysis dump at GET /v1/export. It takes
// the same read lock as an ordinary append only to list the keys, then
// copies each list under that list's own lock, so the snapshot is
// consistent per list but not across lists.
func (s *Store) Export() ([]FieldSnapshot, []ContainerSnapshot) {
	s.settingsMu.RLock()
	fieldLocators := make([]FieldLocator, 0, len(s.fields))
	for locator := range s.fields {
		fieldLocators = append(fieldLocators, locator)
	}
	containerKeys := make([]identitykey.Key, 0, len(s.containers))
	for key := range s.containers {
		containerKeys = append(containerKeys, key)
	}
	s.settingsMu.RUnlock()

	fields := make([]FieldSnapshot, 0, len(fieldLocators))
	for _, locator := range fieldLocators {
		fields = append(fields, FieldSnapshot{Locator: locator, Modifications: s.GetFieldModifications(locator)})
	}
	containers := make([]ContainerSnapshot, 0, len(containerKeys))
	for _, key := range containerKeys {
		containers = append(containers, ContainerSnapshot{Container: key, Modifications: s.GetContainerModifications(key)})
	}
	return fields, containers
}
