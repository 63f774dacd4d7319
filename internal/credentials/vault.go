// Package credentials holds per-provider authentication material: API keys
// and OpenAI browser sessions, each with expiry, rotation, and an
// access-event observer so callers can audit when and how a secret was
// used without holding a lock during the callback.
package credentials

import (
	"fmt"
	"sync"
	"time"
)

// AccessAction records why a credential was touched.
type AccessAction string

const (
	ActionRead    AccessAction = "read"
	ActionSet     AccessAction = "set"
	ActionRotated AccessAction = "rotated"
)

// Credential is either a bearer API key or an OpenAI browser session
// cookie. Exactly one of the two is populated.
type Credential struct {
	APIKey        string
	SessionToken  string
	isBrowserSess bool
}

// NewAPIKey returns an API-key credential.
func NewAPIKey(key string) Credential {
	return Credential{APIKey: key}
}

// NewBrowserSession returns an OpenAI browser-session credential.
func NewBrowserSession(token string) Credential {
	return Credential{SessionToken: token, isBrowserSess: true}
}

// IsBrowserSession reports whether this credential is a browser session
// rather than an API key.
func (c Credential) IsBrowserSession() bool {
	return c.isBrowserSess
}

// String redacts the secret value; never log a Credential directly.
func (c Credential) String() string {
	return "Credential{redacted}"
}

// meta tracks the lifecycle of one stored credential.
type meta struct {
	credential   Credential
	createdAt    time.Time
	expiresAt    *time.Time
	lastUsedAt   *time.Time
	lastRotated  *time.Time
	accessCount  int
}

// AccessEvent describes one access to a stored credential, delivered to
// observers after the vault's internal lock has been released.
type AccessEvent struct {
	Provider string
	Action   AccessAction
	At       time.Time
}

// AccessObserver is notified after every vault access.
type AccessObserver interface {
	OnAccess(event AccessEvent)
}

// AccessObserverFunc adapts a function to an AccessObserver.
type AccessObserverFunc func(event AccessEvent)

func (f AccessObserverFunc) OnAccess(event AccessEvent) { f(event) }

// Vault stores one credential per provider name.
type Vault struct {
	mu        sync.Mutex
	entries   map[string]*meta
	observers []AccessObserver
}

// NewVault returns an empty credential vault.
func NewVault() *Vault {
	return &Vault{entries: make(map[string]*meta)}
}

// Observe registers an observer notified on every access.
func (v *Vault) Observe(o AccessObserver) {
	v.mu.Lock()
	v.observers = append(v.observers, o)
	v.mu.Unlock()
}

// Set stores or replaces the credential for provider, with an optional TTL.
func (v *Vault) Set(provider string, cred Credential, ttl *time.Duration) {
	now := time.Now()
	var expiresAt *time.Time
	if ttl != nil {
		t := now.Add(*ttl)
		expiresAt = &t
	}
	v.mu.Lock()
	v.entries[provider] = &meta{credential: cred, createdAt: now, expiresAt: expiresAt}
	v.mu.Unlock()
	v.emit(AccessEvent{Provider: provider, Action: ActionSet, At: now})
}

// Rotate replaces the stored credential, recording it as a rotation rather
// than an initial set.
func (v *Vault) Rotate(provider string, cred Credential, ttl *time.Duration) error {
	now := time.Now()
	var expiresAt *time.Time
	if ttl != nil {
		t := now.Add(*ttl)
		expiresAt = &t
	}
	v.mu.Lock()
	existing, ok := v.entries[provider]
	if !ok {
		v.mu.Unlock()
		return fmt.Errorf("credentials: no stored credential for provider %q to rotate", provider)
	}
	existing.credential = cred
	existing.expiresAt = expiresAt
	existing.lastRotated = &now
	v.mu.Unlock()
	v.emit(AccessEvent{Provider: provider, Action: ActionRotated, At: now})
	return nil
}

// Get returns the live (non-expired) credential for provider.
func (v *Vault) Get(provider string) (Credential, error) {
	now := time.Now()
	v.mu.Lock()
	entry, ok := v.entries[provider]
	if !ok {
		v.mu.Unlock()
		return Credential{}, fmt.Errorf("credentials: no credential stored for provider %q", provider)
	}
	if entry.expiresAt != nil && now.After(*entry.expiresAt) {
		v.mu.Unlock()
		return Credential{}, fmt.Errorf("credentials: credential for provider %q expired at %s", provider, entry.expiresAt)
	}
	entry.lastUsedAt = &now
	entry.accessCount++
	cred := entry.credential
	v.mu.Unlock()
	v.emit(AccessEvent{Provider: provider, Action: ActionRead, At: now})
	return cred, nil
}

func (v *Vault) emit(event AccessEvent) {
	v.mu.Lock()
	observers := append([]AccessObserver(nil), v.observers...)
	v.mu.Unlock()
	for _, o := range observers {
		o.OnAccess(event)
	}
}
