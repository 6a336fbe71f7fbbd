package identity

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/logging"
)

// Store persists accounts. Implementations are safe for concurrent use.
type Store interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id string) (Account, error) // apperr.KindNotFound when absent
	Save(ctx context.Context, a Account) error           // Insert or replace by ID
	Delete(ctx context.Context, id string) error
}

// Resolver matches incoming OAuth payloads to stored accounts.
type Resolver struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver returns a Resolver over store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying account store.
func (r *Resolver) Store() Store {
	return r.store
}

// Match finds the stored account payload belongs to.
func (r *Resolver) Match(ctx context.Context, payload Account) (Account, bool, error) {
	accounts, err := r.store.List(ctx)
	if err != nil {
		return Account{}, false, err
	}
	return match(accounts, payload)
}

func match(accounts []Account, payload Account) (Account, bool, error) {
	pkeys := Keys(payload)
	var (
		best  Account
		found bool
	)
	for _, a := range accounts {
		if !matches(a, payload, pkeys) {
			continue
		}
		if !found || better(a, best, "") {
			best, found = a, true
		}
	}
	return best, found, nil
}

func matches(existing, payload Account, pkeys []string) bool {
	if !sameProvider(existing, payload) {
		return false
	}
	ea, pa := strings.TrimSpace(existing.ResourceARN), strings.TrimSpace(payload.ResourceARN)
	if ea != "" && pa != "" && ea != pa {
		return false
	}
	if Conflicts(existing, payload) {
		return false
	}
	return intersects(Keys(existing), pkeys)
}

// Upsert stores payload, updating the account it matches or creating a new
// one. New ids are derived from the strongest identity signal, so repeating
// the same login yields the same id. Reports whether an account was created.
func (r *Resolver) Upsert(ctx context.Context, payload Account) (Account, bool, error) {
	const op apperr.Op = "identity.Upsert"
	if strings.TrimSpace(payload.Provider) == "" {
		return Account{}, false, apperr.Invalid(op, "payload has no provider")
	}
	if len(Keys(payload)) == 0 {
		return Account{}, false, apperr.Invalid(op, "payload carries no identity (user id, email, refresh token or arn)")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.store.List(ctx)
	if err != nil {
		return Account{}, false, err
	}
	now := r.now()

	if existing, ok, _ := match(accounts, payload); ok {
		updated := apply(existing, payload, now)
		if err := r.store.Save(ctx, updated); err != nil {
			return Account{}, false, err
		}
		logging.Infof("[identity] updated account %s (%s)", updated.ID, updated.Label())
		return updated, false, nil
	}

	acct := payload.Clone()
	acct.ID = uniqueID(accounts, payload)
	acct.Tags = unionTags(acct.Tags, nil)
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.LastUsed = now
	if err := r.store.Save(ctx, acct); err != nil {
		return Account{}, false, err
	}
	logging.Infof("[identity] created account %s (%s)", acct.ID, acct.Label())
	return acct, true, nil
}

// apply writes payload onto existing: fresh credentials replace stored ones,
// identity fields only fill gaps.
func apply(existing, payload Account, now time.Time) Account {
	out := existing.Clone()
	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&out.AccessToken, payload.AccessToken)
	override(&out.RefreshToken, payload.RefreshToken)
	override(&out.TokenType, payload.TokenType)
	override(&out.ServerURL, payload.ServerURL)
	if len(payload.Scopes) > 0 {
		out.Scopes = slices.Clone(payload.Scopes)
	}
	if !payload.ExpiresAt.IsZero() {
		out.ExpiresAt = payload.ExpiresAt
	}

	fill(&out.Email, payload.Email)
	fill(&out.UserID, payload.UserID)
	fill(&out.Login, payload.Login)
	fill(&out.DisplayName, payload.DisplayName)
	fill(&out.ResourceARN, payload.ResourceARN)

	out.Tags = unionTags(out.Tags, payload.Tags)
	if len(payload.Raw) > 0 {
		if out.Raw == nil {
			out.Raw = maps.Clone(payload.Raw)
		} else {
			maps.Copy(out.Raw, payload.Raw)
		}
	}
	out.LastUsed = now
	return out
}

// StableID derives an account id from the best identity seed:
// user id, then arn, then email, then refresh token, then login.
func StableID(a Account) string {
	seed := identitySeed(a)
	if seed == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("switchyard:account:"+strings.ToLower(a.Provider)+":"+seed)).String()
}

func identitySeed(a Account) string {
	switch {
	case strings.TrimSpace(a.UserID) != "":
		return "user:" + strings.TrimSpace(a.UserID)
	case strings.TrimSpace(a.ResourceARN) != "":
		return "arn:" + strings.TrimSpace(a.ResourceARN)
	case normEmail(a.Email) != "":
		return "email:" + normEmail(a.Email)
	case strings.TrimSpace(a.RefreshToken) != "":
		return "token:" + strings.TrimSpace(a.RefreshToken)
	case strings.TrimSpace(a.Login) != "":
		return "login:" + strings.ToLower(strings.TrimSpace(a.Login))
	}
	return ""
}

// uniqueID is StableID unless a different, non-matching account already
// holds that id (e.g. same email, conflicting arn); then a counter is mixed in.
func uniqueID(accounts []Account, payload Account) string {
	taken := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		taken[a.ID] = true
	}
	id := StableID(payload)
	base := identitySeed(payload)
	for n := 1; taken[id]; n++ {
		id = uuid.NewSHA1(uuid.NameSpaceURL,
			[]byte(fmt.Sprintf("switchyard:account:%s:%s#%d", strings.ToLower(payload.Provider), base, n))).String()
	}
	return id
}

// Deduplicate folds duplicate accounts in the store. Merged primaries are
// saved before duplicates are deleted, so an interrupted pass leaves
// duplicates behind rather than losing data. The returned Merged map is what
// instance bindings must be rewritten with.
func (r *Resolver) Deduplicate(ctx context.Context, preferredID string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.store.List(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Dedupe(accounts, preferredID)
	if len(res.Merged) == 0 {
		return res, nil
	}

	targets := make(map[string]bool)
	for _, primary := range res.Merged {
		targets[primary] = true
	}
	for _, a := range res.Accounts {
		if targets[a.ID] {
			if err := r.store.Save(ctx, a); err != nil {
				return Result{}, err
			}
		}
	}
	for dup, primary := range res.Merged {
		if err := r.store.Delete(ctx, dup); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return Result{}, err
		}
		logging.Infof("[identity] merged account %s into %s", dup, primary)
	}
	return res, nil
}
