package recon

import (
	"sort"

	"toggl-redmine-sync/internal/models"
)

// ReconciliationSet owns the SyncedEntries of one day window and computes
// the best conflict-free one-to-one pairing against a list of Redmine
// candidates.
//
// Matching is greedy: all cross-product combinations are scored, sorted by
// score descending and committed in order unless either side is already
// taken. A higher-scoring pairing always wins over a conflicting lower one,
// but no backtracking is done to maximize the total score.
type ReconciliationSet struct {
	entries     map[int64]*SyncedEntry
	entryOrder  []int64
	candidates  map[int64]models.RedmineTimeEntry
	candOrder   []int64
	assoc       map[int64]int64 // source id -> ledger id
	ledgerTaken map[int64]bool
}

// NewReconciliationSet returns an empty set for one day window.
func NewReconciliationSet() *ReconciliationSet {
	return &ReconciliationSet{
		entries:     make(map[int64]*SyncedEntry),
		assoc:       make(map[int64]int64),
		ledgerTaken: make(map[int64]bool),
	}
}

// AddSource wraps a Toggl entry in a new SyncedEntry keyed by its ID.
// Adding the same ID twice replaces the earlier entry (last write wins).
func (s *ReconciliationSet) AddSource(entry models.TogglTimeEntry) {
	if _, ok := s.entries[entry.ID]; !ok {
		s.entryOrder = append(s.entryOrder, entry.ID)
	}
	s.entries[entry.ID] = NewSyncedEntry(entry)
}

type combination struct {
	sourceID int64
	ledgerID int64
	score    int
}

// Reconcile replaces the candidate list and commits the greedy
// maximum-score one-to-one assignment. Any previous associations are
// discarded; the set is rebuilt from scratch on every call.
func (s *ReconciliationSet) Reconcile(candidates []models.RedmineTimeEntry) {
	s.candidates = make(map[int64]models.RedmineTimeEntry, len(candidates))
	s.candOrder = s.candOrder[:0]
	s.assoc = make(map[int64]int64)
	s.ledgerTaken = make(map[int64]bool)

	combinations := make([]combination, 0, len(candidates)*len(s.entries))
	for _, candidate := range candidates {
		if _, ok := s.candidates[candidate.ID]; !ok {
			s.candOrder = append(s.candOrder, candidate.ID)
		}
		s.candidates[candidate.ID] = candidate

		for id, entry := range s.entries {
			combinations = append(combinations, combination{
				sourceID: id,
				ledgerID: candidate.ID,
				score:    entry.MatchScore(candidate),
			})
		}
	}

	sort.Slice(combinations, func(i, j int) bool {
		return combinations[i].score > combinations[j].score
	})

	for _, comb := range combinations {
		// Sorted descending, so nothing after this can qualify either.
		if comb.score < MinScore {
			break
		}
		if _, taken := s.assoc[comb.sourceID]; taken {
			continue
		}
		if s.ledgerTaken[comb.ledgerID] {
			continue
		}
		s.assoc[comb.sourceID] = comb.ledgerID
		s.ledgerTaken[comb.ledgerID] = true
		s.entries[comb.sourceID].SetLedger(s.candidates[comb.ledgerID])
	}
}

// UnmatchedLedgerEntries returns the candidates that ended up on no
// committed pairing: Redmine entries with no counterpart in Toggl.
func (s *ReconciliationSet) UnmatchedLedgerEntries() []models.RedmineTimeEntry {
	var unmatched []models.RedmineTimeEntry
	for _, id := range s.candOrder {
		if !s.ledgerTaken[id] {
			unmatched = append(unmatched, s.candidates[id])
		}
	}
	return unmatched
}

// Entries returns all SyncedEntries in insertion order.
func (s *ReconciliationSet) Entries() []*SyncedEntry {
	entries := make([]*SyncedEntry, 0, len(s.entryOrder))
	for _, id := range s.entryOrder {
		entries = append(entries, s.entries[id])
	}
	return entries
}

// IsEmpty reports whether the set holds no source entries.
func (s *ReconciliationSet) IsEmpty() bool {
	return len(s.entries) == 0
}

// Len returns the number of source entries.
func (s *ReconciliationSet) Len() int {
	return len(s.entries)
}
