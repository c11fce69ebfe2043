package pull

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/launchpadtt/phabricator/internal/catalog"
)

// RetryTable maps repository identifiers to the next moment each one may
// be synchronized. A repository without an entry is eligible immediately.
// The running loop owns the table exclusively and threads it from one
// iteration to the next; nothing else reads or writes it.
type RetryTable map[int64]time.Time

// Reconcile folds pending update requests into the table and drops
// entries for repositories no longer in the working set. Requests set the
// deadline to now so the repository sorts ahead of anything still waiting.
// Untracked repositories never acquire an entry, and entries for
// repositories that left the set (or stopped being tracked) are removed so
// the table cannot leak.
func (t RetryTable) Reconcile(now time.Time, repos []*catalog.Repository, requests []catalog.UpdateRequest) {
	tracked := make(map[int64]struct{}, len(repos))
	for _, repo := range repos {
		if repo.Tracked {
			tracked[repo.ID] = struct{}{}
		}
	}

	for _, req := range requests {
		if _, ok := tracked[req.RepositoryID]; ok {
			t[req.RepositoryID] = now
		}
	}

	for id := range t {
		if _, ok := tracked[id]; !ok {
			delete(t, id)
		}
	}
}

// Order returns the iteration order for repos: repositories with table
// entries first, sorted soonest deadline first, then the rest in their
// catalog order. An empty table is the cold start; then the whole set is
// shuffled once so many daemons starting against a shared catalog do not
// herd onto the same repositories in the same order.
func (t RetryTable) Order(repos []*catalog.Repository, rng *rand.Rand) []*catalog.Repository {
	ordered := append([]*catalog.Repository(nil), repos...)

	if len(t) == 0 {
		if rng != nil {
			rng.Shuffle(len(ordered), func(i, j int) {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			})
		}
		return ordered
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		di, iok := t[ordered[i].ID]
		dj, jok := t[ordered[j].ID]
		switch {
		case iok && jok:
			return di.Before(dj)
		case iok:
			return true
		default:
			return false
		}
	})
	return ordered
}

// EarliestDeadline returns the soonest deadline in the table, or the zero
// time when the table is empty.
func (t RetryTable) EarliestDeadline() time.Time {
	var earliest time.Time
	for _, deadline := range t {
		if earliest.IsZero() || deadline.Before(earliest) {
			earliest = deadline
		}
	}
	return earliest
}
