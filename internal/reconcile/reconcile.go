// Package reconcile splits the participants of a course into users the target
// platform already knows (matched by email) and users that still have to be created.
package reconcile

import "moodle-sync/internal/domain"

// Result is the outcome of Partition. All slices are freshly allocated.
type Result struct {
	// ExistingIDs are target ids of matched candidates, in candidate order.
	ExistingIDs []int64
	// Matched are the candidates that were found among existing users.
	Matched []domain.User
	// New are the candidates to insert, in candidate order.
	New []domain.User
	// Duplicates repeat an email seen earlier in the same batch and are skipped.
	Duplicates []domain.User
}

// Partition matches candidates against existing users by exact email equality.
//
// When two existing rows share an email the first one wins, so callers should pass
// existing users ordered by id. Each candidate is matched at most once and a
// candidate whose email already appeared earlier in the batch is reported as a
// duplicate instead of being inserted twice. Candidates without an email are
// always new: an empty email is hidden, not shared. Neither input slice is
// modified.
func Partition(candidates []domain.User, existing []domain.ExistsUser) Result {
	known := make(map[string]int64, len(existing))
	for _, e := range existing {
		if e.Email == "" {
			continue
		}
		if _, ok := known[e.Email]; ok {
			continue
		}
		known[e.Email] = e.ID
	}

	res := Result{
		ExistingIDs: []int64{},
		Matched:     []domain.User{},
		New:         []domain.User{},
	}
	seen := make(map[string]bool, len(candidates))
	for _, u := range candidates {
		if u.Email == "" {
			res.New = append(res.New, u)
			continue
		}
		if seen[u.Email] {
			res.Duplicates = append(res.Duplicates, u)
			continue
		}
		seen[u.Email] = true

		if id, ok := known[u.Email]; ok {
			res.ExistingIDs = append(res.ExistingIDs, id)
			res.Matched = append(res.Matched, u)
			continue
		}
		res.New = append(res.New, u)
	}
	return res
}

// Emails returns the distinct non-empty emails of users in order of first
// appearance.
func Emails(users []domain.User) []string {
	out := make([]string, 0, len(users))
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		if u.Email == "" || seen[u.Email] {
			continue
		}
		seen[u.Email] = true
		out = append(out, u.Email)
	}
	return out
}
