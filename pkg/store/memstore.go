package store

import (
	"fmt"
	"sync"
	"time"
)

// MemStore is a fully in-memory Store. It backs the test suites and local
// development runs where no SurrealDB is available.
type MemStore struct {
	mu       sync.Mutex
	attempts []VerificationAttempt
	sessions []AdultSession
	profiles map[string]*AdultProfile
	content  []ContentItem
	events   []SecurityEvent
	recent   map[string][]RecentMessage
	names    map[string]string
	nextID   int

	// FailAll makes every call return ErrStoreUnavailable, for testing
	// the error propagation path.
	FailAll bool

	// Now is the clock used for time-window queries. Tests override it to
	// simulate the passage of time.
	Now func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		profiles: make(map[string]*AdultProfile),
		recent:   make(map[string][]RecentMessage),
		names:    make(map[string]string),
		Now:      time.Now,
	}
}

func (m *MemStore) fail() error {
	if m.FailAll {
		return ErrStoreUnavailable
	}
	return nil
}

// Verification attempts

func (m *MemStore) CreateAttempt(a VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MemStore) GetAttempt(userID, token string) (*VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for i := range m.attempts {
		if m.attempts[i].UserID == userID && m.attempts[i].VerificationToken == token {
			copy := m.attempts[i]
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) SetAttemptStage(userID, token, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for i := range m.attempts {
		if m.attempts[i].UserID == userID && m.attempts[i].VerificationToken == token {
			m.attempts[i].Stage = stage
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) RecordAttemptAge(userID, token string, age int, confirmed bool, sessionToken, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for i := range m.attempts {
		if m.attempts[i].UserID == userID && m.attempts[i].VerificationToken == token {
			m.attempts[i].AgeProvided = age
			m.attempts[i].AgeConfirmed = confirmed
			m.attempts[i].SessionToken = sessionToken
			m.attempts[i].Stage = stage
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) ListRecentAttempts(userID string, within time.Duration) ([]VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	since := m.Now().Add(-within)
	var out []VerificationAttempt
	for i := len(m.attempts) - 1; i >= 0; i-- {
		a := m.attempts[i]
		if a.UserID == userID && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Adult sessions

func (m *MemStore) GetActiveSession(userID string) (*AdultSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID && m.sessions[i].IsActive {
			copy := m.sessions[i]
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) CreateSession(s AdultSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for i := range m.sessions {
		if m.sessions[i].UserID == s.UserID && m.sessions[i].IsActive {
			m.sessions[i].IsActive = false
			m.sessions[i].DeactivationReason = ReasonSuperseded
		}
	}
	s.IsActive = true
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *MemStore) DeactivateSessions(userID, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	count := 0
	for i := range m.sessions {
		if m.sessions[i].UserID == userID && m.sessions[i].IsActive {
			m.sessions[i].IsActive = false
			m.sessions[i].DeactivationReason = reason
			count++
		}
	}
	return count, nil
}

func (m *MemStore) DeactivateExpiredSessions(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	count := 0
	for i := range m.sessions {
		if m.sessions[i].IsActive && m.sessions[i].ExpiresAt.Before(now) {
			m.sessions[i].IsActive = false
			m.sessions[i].DeactivationReason = ReasonExpired
			count++
		}
	}
	return count, nil
}

// Adult profiles

func (m *MemStore) GetProfile(userID string) (*AdultProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MemStore) ensureProfile(userID string, now time.Time) *AdultProfile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &AdultProfile{
			UserID:           userID,
			IntensityLevel:   2,
			GenderPreference: GenderFeminine,
			UpdatedAt:        now,
		}
		m.profiles[userID] = p
	}
	return p
}

func (m *MemStore) UpsertProfile(userID string, update ProfileUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	p := m.ensureProfile(userID, now)
	if update.IntensityLevel != nil {
		p.IntensityLevel = *update.IntensityLevel
	}
	if update.GenderPreference != nil {
		p.GenderPreference = *update.GenderPreference
	}
	p.UpdatedAt = now
	return nil
}

func (m *MemStore) IncrementInteraction(userID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	p := m.ensureProfile(userID, at)
	p.InteractionCount++
	p.LastInteraction = at
	p.UpdatedAt = at
	return p.InteractionCount, nil
}

// Content corpus

func (m *MemStore) CountContent() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	return len(m.content), nil
}

func (m *MemStore) SeedContent(items []ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for _, item := range items {
		m.nextID++
		item.ID = fmt.Sprintf("c%d", m.nextID)
		item.IsActive = true
		item.UsageCount = 0
		m.content = append(m.content, item)
	}
	return nil
}

func (m *MemStore) ListContent(category, gender string, maxIntensity int) ([]ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var out []ContentItem
	for _, item := range m.content {
		if item.IsActive && item.Category == category && item.GenderContext == gender && item.Intensity <= maxIntensity {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MemStore) IncrementUsage(contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for i := range m.content {
		if m.content[i].ID == contentID {
			m.content[i].UsageCount++
			return nil
		}
	}
	return ErrNotFound
}

// ContentByID returns a copy of a corpus row, for assertions in tests.
func (m *MemStore) ContentByID(contentID string) (ContentItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.content {
		if item.ID == contentID {
			return item, true
		}
	}
	return ContentItem{}, false
}

// Security log

func (m *MemStore) AppendSecurityEvent(ev SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.events = append(m.events, ev)
	return nil
}

// SecurityEvents returns a copy of the audit trail, for tests.
func (m *MemStore) SecurityEvents() []SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SecurityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Sessions returns a copy of all session rows, for tests.
func (m *MemStore) Sessions() []AdultSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AdultSession, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Attempts returns a copy of all verification attempt rows, for tests.
func (m *MemStore) Attempts() []VerificationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VerificationAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// Recent messages

func (m *MemStore) AddRecentMessage(userID, role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	msgs := append(m.recent[userID], RecentMessage{
		UserID:    userID,
		Role:      role,
		Text:      text,
		Timestamp: m.Now().UnixNano(),
	})
	if len(msgs) > 15 {
		msgs = msgs[len(msgs)-15:]
	}
	m.recent[userID] = msgs
	return nil
}

func (m *MemStore) GetRecentMessages(userID string) ([]RecentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	msgs := m.recent[userID]
	out := make([]RecentMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Display names

func (m *MemStore) GetDisplayName(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return "", err
	}
	return m.names[userID], nil
}

func (m *MemStore) SetDisplayName(userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.names[userID] = name
	return nil
}
