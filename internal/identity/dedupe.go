package identity

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Result of a deduplication pass.
type Result struct {
	Accounts []Account        // Survivors, in input order of each group's primary
	Merged   map[string]string // Removed account id -> id it was folded into
}

// Dedupe groups accounts that denote the same person and folds every group
// into one primary record. Accounts are compared only within a provider;
// conflicting pairs are never joined directly, though a chain of other
// matches can still place them in one group. preferredID (the account bound
// to the default instance) wins primary selection within its group.
func Dedupe(accounts []Account, preferredID string) Result {
	n := len(accounts)
	arena := make([]Account, n)
	keys := make([][]string, n)
	for i, a := range accounts {
		arena[i] = a.Clone()
		keys[i] = Keys(a)
	}

	ds := newDisjointSet(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !sameProvider(arena[i], arena[j]) || !intersects(keys[i], keys[j]) {
				continue
			}
			if Conflicts(arena[i], arena[j]) {
				continue
			}
			ds.union(i, j)
		}
	}

	type survivor struct {
		index   int
		account Account
	}
	res := Result{Merged: make(map[string]string)}
	var survivors []survivor
	for _, group := range ds.groups() {
		members := slices.Clone(group)
		sort.SliceStable(members, func(x, y int) bool {
			return better(arena[members[x]], arena[members[y]], preferredID)
		})
		primary := arena[members[0]].Clone()
		for _, m := range members[1:] {
			primary = merge(primary, arena[m])
			res.Merged[arena[m].ID] = primary.ID
		}
		survivors = append(survivors, survivor{index: members[0], account: primary})
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].index < survivors[j].index })
	res.Accounts = make([]Account, len(survivors))
	for i, s := range survivors {
		res.Accounts[i] = s.account
	}
	return res
}

// better orders primary candidates: the preferred id, then most recently
// used, then earliest created, then smallest id.
func better(a, b Account, preferredID string) bool {
	if preferredID != "" {
		ap, bp := a.ID == preferredID, b.ID == preferredID
		if ap != bp {
			return ap
		}
	}
	if !a.LastUsed.Equal(b.LastUsed) {
		return a.LastUsed.After(b.LastUsed)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		switch {
		case a.CreatedAt.IsZero():
			return false
		case b.CreatedAt.IsZero():
			return true
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// merge folds dup into primary. Empty primary fields are filled; nothing the
// primary already has is overwritten.
func merge(primary, dup Account) Account {
	fill(&primary.Email, dup.Email)
	fill(&primary.UserID, dup.UserID)
	fill(&primary.Login, dup.Login)
	fill(&primary.DisplayName, dup.DisplayName)
	fill(&primary.ResourceARN, dup.ResourceARN)
	fill(&primary.AccessToken, dup.AccessToken)
	fill(&primary.RefreshToken, dup.RefreshToken)
	fill(&primary.TokenType, dup.TokenType)
	fill(&primary.ServerURL, dup.ServerURL)
	if len(primary.Scopes) == 0 {
		primary.Scopes = slices.Clone(dup.Scopes)
	}
	if primary.ExpiresAt.IsZero() {
		primary.ExpiresAt = dup.ExpiresAt
	}

	primary.Tags = unionTags(primary.Tags, dup.Tags)
	primary.CreatedAt = earliest(primary.CreatedAt, dup.CreatedAt)
	if dup.LastUsed.After(primary.LastUsed) {
		primary.LastUsed = dup.LastUsed
	}

	for k, v := range dup.Raw {
		if _, ok := primary.Raw[k]; ok {
			continue
		}
		if primary.Raw == nil {
			primary.Raw = make(map[string]json.RawMessage, len(dup.Raw))
		}
		primary.Raw[k] = v
	}
	return primary
}

func fill(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && src != "" {
		*dst = src
	}
}

// unionTags keeps the first spelling of each tag, compared case-insensitively.
func unionTags(a, b []string) []string {
	all := lo.Compact(append(slices.Clone(a), b...))
	if len(all) == 0 {
		return nil
	}
	return lo.UniqBy(all, func(t string) string { return strings.ToLower(strings.TrimSpace(t)) })
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}
