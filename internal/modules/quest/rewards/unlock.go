// Package rewards decides which rewards a stamp count earns.
package rewards

import (
	"sort"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
)

// Table is a reward threshold list. It is read-only once built.
type Table []quest.RewardThreshold

// NewTable copies and orders thresholds by count, then reward id.
func NewTable(thresholds []quest.RewardThreshold) Table {
	t := append(Table(nil), thresholds...)
	sort.SliceStable(t, func(i, j int) bool {
		if t[i].Count != t[j].Count {
			return t[i].Count < t[j].Count
		}
		return t[i].RewardID < t[j].RewardID
	})
	return t
}

// Unlock returns the rewards earned at total that are not already held, in
// threshold order. The result is never nil.
func (t Table) Unlock(total int, alreadyUnlocked []string) []string {
	held := make(map[string]struct{}, len(alreadyUnlocked))
	for _, id := range alreadyUnlocked {
		held[id] = struct{}{}
	}
	out := []string{}
	for _, th := range t {
		if th.Count > total {
			continue
		}
		if _, ok := held[th.RewardID]; ok {
			continue
		}
		held[th.RewardID] = struct{}{}
		out = append(out, th.RewardID)
	}
	return out
}

// Merge appends newly earned ids to the held set, preserving order and
// dropping repeats. The input slices are not modified.
func Merge(held, newly []string) []string {
	out := make([]string, 0, len(held)+len(newly))
	seen := make(map[string]struct{}, len(held)+len(newly))
	for _, list := range [][]string{held, newly} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
