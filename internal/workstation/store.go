package workstation

import "slices"

// Store is the ordered, shot-scoped set of generation records. It is not
// safe for concurrent use; Session guards it.
type Store struct {
	shotID  string
	records []GenerationRecord
}

// ShotID returns the shot the store currently belongs to.
func (s *Store) ShotID() string {
	return s.shotID
}

// Reset drops every record and rebinds the store to shotID.
func (s *Store) Reset(shotID string) {
	s.shotID = shotID
	s.records = nil
}

// Records returns a copy of the records, newest first.
func (s *Store) Records() []GenerationRecord {
	return slices.Clone(s.records)
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Find looks a record up by id.
func (s *Store) Find(id string) (GenerationRecord, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.records[i], true
	}
	return GenerationRecord{}, false
}

// Insert adds an optimistic record. Records for other shots are ignored.
func (s *Store) Insert(r GenerationRecord) bool {
	if r.ShotID != s.shotID || s.indexOf(r.ID) >= 0 {
		return false
	}
	s.records = append(s.records, r)
	sortNewestFirst(s.records)
	return true
}

// Upgrade replaces a temp id with the server-issued id. If the server record
// already arrived through a poll, the temp record is dropped instead.
func (s *Store) Upgrade(tempID, serverID string) bool {
	i := s.indexOf(tempID)
	if i < 0 {
		return false
	}
	if s.indexOf(serverID) >= 0 {
		s.records = slices.Delete(s.records, i, i+1)
		return true
	}
	s.records[i].ID = serverID
	return true
}

// Remove deletes a record by id.
func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.records = slices.Delete(s.records, i, i+1)
	return true
}

// Apply reconciles a server fetch into the store and reports whether the
// server still has pending work.
func (s *Store) Apply(server []GenerationRecord) bool {
	merged, pending := Reconcile(s.records, server)
	s.records = merged
	return pending
}

// HasPending reports whether any local record is pending.
func (s *Store) HasPending() bool {
	for _, r := range s.records {
		if r.IsPending() {
			return true
		}
	}
	return false
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r GenerationRecord) bool { return r.ID == id })
}
