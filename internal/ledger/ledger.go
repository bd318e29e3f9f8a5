// Package ledger keeps in-memory usage counters per session and per
// credential fingerprint for the admin view.
package ledger

import (
	"sort"
	"sync"
	"time"
)

// Outcome kinds counted by RecordOutcome.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
)

// Fingerprint returns the display label for an API key: "..." followed by the
// last 10 characters. It is not a secure identifier and two keys sharing a
// suffix collapse into the same record.
func Fingerprint(apiKey string) string {
	r := []rune(apiKey)
	if len(r) <= 10 {
		return "..." + apiKey
	}
	return "..." + string(r[len(r)-10:])
}

// Session is the usage record for one generation request.
type Session struct {
	ID           string    `json:"session_id"`
	KeyPrefix    string    `json:"api_key_prefix"`
	RequestCount int       `json:"request_count"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	LastActive   time.Time `json:"last_active"`
	CreatedAt    time.Time `json:"created_at"`
	ClientIP     string    `json:"user_ip"`
}

// KeyUsage aggregates counters across every session that used a key.
type KeyUsage struct {
	KeyPrefix    string    `json:"api_key_prefix"`
	RequestCount int       `json:"request_count"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	LastUsed     time.Time `json:"last_used"`
	Sessions     []string  `json:"sessions"`
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	keys     map[string]*KeyUsage
	now      func() time.Time
}

// New builds an empty ledger.
func New() *Ledger {
	return &Ledger{
		sessions: make(map[string]*Session),
		keys:     make(map[string]*KeyUsage),
		now:      time.Now,
	}
}

// RecordRequest tallies a generation request, creating the session and key
// records on first use.
func (l *Ledger) RecordRequest(sessionID, apiKey, clientIP string) {
	prefix := Fingerprint(apiKey)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if !ok {
		s = &Session{ID: sessionID, KeyPrefix: prefix, CreatedAt: now, ClientIP: clientIP}
		l.sessions[sessionID] = s
	}
	s.LastActive = now
	s.RequestCount++

	k, ok := l.keys[prefix]
	if !ok {
		k = &KeyUsage{KeyPrefix: prefix}
		l.keys[prefix] = k
	}
	k.LastUsed = now
	k.RequestCount++
	if !contains(k.Sessions, sessionID) {
		k.Sessions = append(k.Sessions, sessionID)
	}
}

// Touch refreshes the session's last activity. Unknown sessions are ignored.
func (l *Ledger) Touch(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sessions[sessionID]; ok {
		s.LastActive = l.now()
	}
}

// RecordOutcome counts a terminal job outcome against the session and the key
// it was created with. Nothing is counted once the session has been evicted.
func (l *Ledger) RecordOutcome(sessionID, outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[sessionID]
	if !ok {
		return
	}
	k := l.keys[s.KeyPrefix]
	switch outcome {
	case OutcomeSuccess:
		s.SuccessCount++
		if k != nil {
			k.SuccessCount++
		}
	case OutcomeFail:
		s.FailCount++
		if k != nil {
			k.FailCount++
		}
	default:
		return
	}
	s.LastActive = l.now()
}

// EvictIdle removes sessions whose last activity is before cutoff and returns
// their ids.
func (l *Ledger) EvictIdle(cutoff time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []string
	for id, s := range l.sessions {
		if s.LastActive.Before(cutoff) {
			delete(l.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// PruneKeySessions drops session references that no longer exist. Key
// records themselves are kept.
func (l *Ledger) PruneKeySessions() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range l.keys {
		kept := k.Sessions[:0]
		for _, id := range k.Sessions {
			if _, ok := l.sessions[id]; ok {
				kept = append(kept, id)
			}
		}
		k.Sessions = kept
	}
}

// Session returns a copy of one session record.
func (l *Ledger) Session(id string) (Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Key returns a copy of one key usage record.
func (l *Ledger) Key(prefix string) (KeyUsage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	k, ok := l.keys[prefix]
	if !ok {
		return KeyUsage{}, false
	}
	out := *k
	out.Sessions = append([]string(nil), k.Sessions...)
	return out, true
}

// Sessions returns copies of all session records, most recently active first.
func (l *Ledger) Sessions() []Session {
	l.mu.RLock()
	out := make([]Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, *s)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out
}

// Keys returns copies of all key usage records, most recently used first.
func (l *Ledger) Keys() []KeyUsage {
	l.mu.RLock()
	out := make([]KeyUsage, 0, len(l.keys))
	for _, k := range l.keys {
		c := *k
		c.Sessions = append([]string{}, k.Sessions...)
		out = append(out, c)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out
}

// SessionCount returns the number of live sessions.
func (l *Ledger) SessionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// KeyCount returns the number of distinct fingerprints seen.
func (l *Ledger) KeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
