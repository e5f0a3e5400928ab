package store

import (
	"errors"
	"time"
)

// ErrStoreUnavailable wraps any persistence failure so callers can map it to
// a generic "try again" message instead of leaking driver errors.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Verification attempt stages. Terminal stages are immutable once written.
const (
	StageStarted          = "started"
	StageTermsAccepted    = "terms_accepted"
	StageAwaitingAge      = "awaiting_age"
	StageSuccess          = "completed_success"
	StageFailUnderage     = "completed_fail:underage"
	StageCancelledUser    = "cancelled:user"
	StageCancelledRestart = "cancelled:restarted"
)

// Session deactivation reasons.
const (
	ReasonSuperseded = "superseded"
	ReasonExpired    = "expired"
	ReasonUser       = "user_request"
	ReasonRevoked    = "revoked"
)

// Gender contexts accepted by the corpus and profile.
const (
	GenderFeminine  = "feminine"
	GenderMasculine = "masculine"
	GenderNeutral   = "neutral"
)

// Relationship stages, derived from the interaction counter.
const (
	StageInitial    = "initial"
	StageDeveloping = "developing"
	StageIntimate   = "intimate"
)

type VerificationAttempt struct {
	UserID            string    `json:"user_id"`
	VerificationToken string    `json:"verification_token"`
	AgeProvided       int       `json:"age_provided"`
	AgeConfirmed      bool      `json:"age_confirmed"`
	SessionToken      string    `json:"session_token,omitempty"`
	Stage             string    `json:"stage"`
	Surface           string    `json:"surface"`
	CreatedAt         time.Time `json:"created_at"`
}

// Terminal reports whether the attempt can no longer advance.
func (a *VerificationAttempt) Terminal() bool {
	switch a.Stage {
	case StageStarted, StageTermsAccepted, StageAwaitingAge:
		return false
	}
	return true
}

type AdultSession struct {
	UserID             string    `json:"user_id"`
	SessionToken       string    `json:"session_token"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	IsActive           bool      `json:"is_active"`
	DeactivationReason string    `json:"deactivation_reason,omitempty"`
}

func (s *AdultSession) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

type AdultProfile struct {
	UserID           string    `json:"user_id"`
	IntensityLevel   int       `json:"intensity_level"`
	GenderPreference string    `json:"gender_preference"`
	InteractionCount int       `json:"interaction_count"`
	LastInteraction  time.Time `json:"last_interaction"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProfileUpdate is a partial update; nil fields are left untouched.
// The relationship stage is derived from the counter and never written.
type ProfileUpdate struct {
	IntensityLevel   *int
	GenderPreference *string
}

type ContentItem struct {
	ID            string   `json:"id,omitempty"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory,omitempty"`
	GenderContext string   `json:"gender_context"`
	Intensity     int      `json:"intensity"`
	Text          string   `json:"text"`
	UsageCount    int      `json:"usage_count"`
	Tags          []string `json:"tags,omitempty"`
	IsActive      bool     `json:"is_active"`
}

type SecurityEvent struct {
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Surface   string    `json:"surface"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	IPHash    string    `json:"ip_hash,omitempty"`
}

type RecentMessage struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Store is the single shared datastore behind the age gate and the
// response selector. Implementations must be safe for concurrent use.
type Store interface {
	// Verification attempts
	CreateAttempt(a VerificationAttempt) error
	GetAttempt(userID, token string) (*VerificationAttempt, error)
	SetAttemptStage(userID, token, stage string) error
	RecordAttemptAge(userID, token string, age int, confirmed bool, sessionToken, stage string) error
	ListRecentAttempts(userID string, within time.Duration) ([]VerificationAttempt, error)

	// Adult sessions
	GetActiveSession(userID string) (*AdultSession, error)
	// CreateSession atomically deactivates any prior active session
	// (reason superseded) and inserts the new one.
	CreateSession(s AdultSession) error
	DeactivateSessions(userID, reason string) (int, error)
	DeactivateExpiredSessions(now time.Time) (int, error)

	// Adult profiles
	GetProfile(userID string) (*AdultProfile, error)
	UpsertProfile(userID string, update ProfileUpdate, now time.Time) error
	IncrementInteraction(userID string, at time.Time) (int, error)

	// Content corpus
	CountContent() (int, error)
	SeedContent(items []ContentItem) error
	ListContent(category, gender string, maxIntensity int) ([]ContentItem, error)
	IncrementUsage(contentID string) error

	// Security log
	AppendSecurityEvent(ev SecurityEvent) error

	// Conversation context for the normal chat path
	AddRecentMessage(userID, role, text string) error
	GetRecentMessages(userID string) ([]RecentMessage, error)

	// Display names written by the surfaces, read for personalisation
	GetDisplayName(userID string) (string, error)
	SetDisplayName(userID, name string) error
}
