package identity

import (
	"strings"
)

// Providers whose login name is a stable, unique handle.
var loginProviders = map[string]bool{
	"github":            true,
	"github-enterprise": true,
}

// Keys derives the identity keys of an account. Two accounts of the same
// provider sharing any key are the same person unless they conflict.
func Keys(a Account) []string {
	var keys []string
	if id := strings.TrimSpace(a.UserID); id != "" {
		keys = append(keys, "user:"+id)
	}
	if email := normEmail(a.Email); email != "" {
		keys = append(keys, "email:"+email)
	}
	if rt := strings.TrimSpace(a.RefreshToken); rt != "" {
		keys = append(keys, "token:"+rt)
	}
	if arn := strings.TrimSpace(a.ResourceARN); arn != "" {
		keys = append(keys, "arn:"+arn)
	}
	if loginProviders[strings.ToLower(a.Provider)] {
		if login := strings.ToLower(strings.TrimSpace(a.Login)); login != "" {
			keys = append(keys, "login:"+login)
		}
	}
	return keys
}

// Conflicts reports an explicit identity clash: both accounts carry a
// resource ARN and their user ids or emails are both set and disagree.
func Conflicts(a, b Account) bool {
	if strings.TrimSpace(a.ResourceARN) == "" || strings.TrimSpace(b.ResourceARN) == "" {
		return false
	}
	ua, ub := strings.TrimSpace(a.UserID), strings.TrimSpace(b.UserID)
	if ua != "" && ub != "" && ua != ub {
		return true
	}
	ea, eb := normEmail(a.Email), normEmail(b.Email)
	return ea != "" && eb != "" && ea != eb
}

// sameProvider compares provider ids case-insensitively.
func sameProvider(a, b Account) bool {
	return strings.EqualFold(a.Provider, b.Provider)
}

// intersects reports whether two key sets share an element.
func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}
