package workstation

import (
	"cmp"
	"slices"
)

// Reconcile merges a freshly fetched server list into the local state.
//
// Local pending records the server does not know yet are kept so optimistic
// placeholders do not flicker out during read-after-write lag. When ids
// collide the later entry wins, so server data replaces stale local data.
// The result is sorted newest first. serverPending reports whether the
// server list itself still has pending work.
func Reconcile(local, server []GenerationRecord) (merged []GenerationRecord, serverPending bool) {
	serverIDs := make(map[string]struct{}, len(server))
	for _, r := range server {
		serverIDs[r.ID] = struct{}{}
		if r.IsPending() {
			serverPending = true
		}
	}

	var missingPending []GenerationRecord
	for _, r := range local {
		if !r.IsPending() {
			continue
		}
		if _, ok := serverIDs[r.ID]; !ok {
			missingPending = append(missingPending, r)
		}
	}

	combined := make([]GenerationRecord, 0, len(missingPending)+len(server))
	combined = append(combined, missingPending...)
	combined = append(combined, server...)

	merged = dedupeByID(combined)
	sortNewestFirst(merged)
	return merged, serverPending
}

func dedupeByID(records []GenerationRecord) []GenerationRecord {
	out := make([]GenerationRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		if pos, ok := index[r.ID]; ok {
			out[pos] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

func sortNewestFirst(records []GenerationRecord) {
	slices.SortStableFunc(records, func(a, b GenerationRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
