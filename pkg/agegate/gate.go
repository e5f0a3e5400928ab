// Package agegate implements the verification flow that gates adult mode:
// a token-driven state machine over the shared store, with rate limiting,
// token expiry and idempotent lifecycle transitions shared by both surfaces.
package agegate

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"luara/pkg/profile"
	"luara/pkg/store"
	"luara/pkg/token"
)

const tokenRetries = 3

// CooldownCache is an optional fast path for the underage cooldown check.
// The store stays authoritative; cache errors degrade to a store lookup.
type CooldownCache interface {
	InCooldown(userID string) (bool, error)
	MarkCooldown(userID string, ttl time.Duration) error
}

// SessionCache is an optional fast path for the granted check: the active
// session token is cached on grant and dropped on any deactivation, so busy
// users skip a store read. The store stays authoritative.
type SessionCache interface {
	CacheSessionToken(userID, token string) error
	GetSessionToken(userID string) (string, error)
	DropSessionToken(userID string) error
}

type Gate struct {
	store    store.Store
	tokens   *token.Service
	profiles *profile.Manager
	cooldown CooldownCache
	sessions SessionCache

	verificationTTL time.Duration
	sessionTTL      time.Duration
	cooldownWindow  time.Duration

	now func() time.Time

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex
}

type Options struct {
	VerificationTTL time.Duration
	SessionTTL      time.Duration
	CooldownWindow  time.Duration
	Cooldown        CooldownCache
	Sessions        SessionCache
	Clock           func() time.Time
}

func New(s store.Store, tokens *token.Service, profiles *profile.Manager, opts Options) *Gate {
	if opts.VerificationTTL == 0 {
		opts.VerificationTTL = time.Hour
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 720 * time.Hour
	}
	if opts.CooldownWindow == 0 {
		opts.CooldownWindow = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Gate{
		store:           s,
		tokens:          tokens,
		profiles:        profiles,
		cooldown:        opts.Cooldown,
		sessions:        opts.Sessions,
		verificationTTL: opts.VerificationTTL,
		sessionTTL:      opts.SessionTTL,
		cooldownWindow:  opts.CooldownWindow,
		now:             opts.Clock,
		userLocks:       make(map[string]*sync.Mutex),
	}
}

// Lock serialises all gate commands and responder turns for one user.
// Callers must invoke the returned unlock when done.
func (g *Gate) Lock(userID string) func() {
	g.locksMu.Lock()
	mu, ok := g.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		g.userLocks[userID] = mu
	}
	g.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (g *Gate) audit(userID, action, surface, ipHash string, success bool) {
	err := g.store.AppendSecurityEvent(store.SecurityEvent{
		UserID:    userID,
		Action:    action,
		Surface:   surface,
		Success:   success,
		Timestamp: g.now(),
		IPHash:    ipHash,
	})
	if err != nil {
		log.Printf("Error appending security event %s for %s: %v", action, userID, err)
	}
}

// activeSession returns the user's active session, lazily deactivating it
// when expired. nil means no active session.
func (g *Gate) activeSession(userID string) (*store.AdultSession, error) {
	sess, err := g.store.GetActiveSession(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(g.now()) {
		if _, err := g.store.DeactivateSessions(userID, store.ReasonExpired); err != nil {
			return nil, err
		}
		g.dropSessionToken(userID)
		g.audit(userID, EventSessionDeactivated(store.ReasonExpired), "", "", true)
		return nil, nil
	}
	return sess, nil
}

// Granted reports whether the user currently holds an active, unexpired
// adult session. A cached session token answers without a store read.
func (g *Gate) Granted(userID string) (bool, error) {
	if g.sessions != nil {
		tok, err := g.sessions.GetSessionToken(userID)
		if err == nil && tok != "" {
			return true, nil
		}
		if err != nil {
			log.Printf("Session cache error for %s, falling back to store: %v", userID, err)
		}
	}

	sess, err := g.activeSession(userID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	g.cacheSessionToken(userID, sess.SessionToken)
	return true, nil
}

func (g *Gate) cacheSessionToken(userID, token string) {
	if g.sessions == nil {
		return
	}
	if err := g.sessions.CacheSessionToken(userID, token); err != nil {
		log.Printf("Error caching session token for %s: %v", userID, err)
	}
}

func (g *Gate) dropSessionToken(userID string) {
	if g.sessions == nil {
		return
	}
	if err := g.sessions.DropSessionToken(userID); err != nil {
		log.Printf("Error dropping cached session token for %s: %v", userID, err)
	}
}

func (g *Gate) inCooldown(userID string) (bool, error) {
	if g.cooldown != nil {
		hit, err := g.cooldown.InCooldown(userID)
		if err == nil && hit {
			return true, nil
		}
		if err != nil {
			log.Printf("Cooldown cache error for %s, falling back to store: %v", userID, err)
		}
	}

	attempts, err := g.store.ListRecentAttempts(userID, g.cooldownWindow)
	if err != nil {
		return false, err
	}
	for _, a := range attempts {
		if a.Stage == store.StageFailUnderage {
			return true, nil
		}
	}
	return false, nil
}

// RequestActivation starts (or restarts) the verification flow.
func (g *Gate) RequestActivation(userID, surface, ipHash string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	sess, err := g.activeSession(userID)
	if err != nil {
		return Result{}, err
	}
	if sess != nil {
		// Idempotent: no new rows while granted
		return Result{Status: StatusAlreadyActive, Message: msgAlreadyActive}, nil
	}

	blocked, err := g.inCooldown(userID)
	if err != nil {
		return Result{}, err
	}
	if blocked {
		g.audit(userID, EventRateLimited, surface, ipHash, false)
		return Result{Status: StatusRecentAttempt, Message: msgRecentAttempt}, nil
	}

	// Cancel any in-flight attempt so only one can advance
	recent, err := g.store.ListRecentAttempts(userID, g.verificationTTL)
	if err != nil {
		return Result{}, err
	}
	for _, a := range recent {
		if !a.Terminal() {
			if err := g.store.SetAttemptStage(userID, a.VerificationToken, store.StageCancelledRestart); err != nil {
				return Result{}, err
			}
			g.audit(userID, EventCancelledRestarted, surface, ipHash, true)
		}
	}

	verificationToken, err := g.mintVerificationToken(userID)
	if err != nil {
		return Result{}, err
	}

	err = g.store.CreateAttempt(store.VerificationAttempt{
		UserID:            userID,
		VerificationToken: verificationToken,
		Stage:             store.StageStarted,
		Surface:           surface,
		CreatedAt:         g.now(),
	})
	if err != nil {
		return Result{}, err
	}

	g.audit(userID, EventVerificationStarted, surface, ipHash, true)
	return Result{
		Status:  StatusTermsRequired,
		Message: msgTerms,
		Token:   verificationToken,
	}, nil
}

// mintVerificationToken generates a token that does not collide with an
// existing attempt row, retrying a bounded number of times.
func (g *Gate) mintVerificationToken(userID string) (string, error) {
	for i := 0; i < tokenRetries; i++ {
		tok, err := g.tokens.NewVerificationToken(userID)
		if err != nil {
			continue
		}
		_, err = g.store.GetAttempt(userID, tok)
		if errors.Is(err, store.ErrNotFound) {
			return tok, nil
		}
		if err != nil {
			return "", err
		}
		// Collision, retry with a fresh token
	}
	return "", store.ErrStoreUnavailable
}

// validAttempt loads and checks the in-flight attempt bound to a token.
// nil result means the token is unknown, expired or already terminal.
func (g *Gate) validAttempt(userID, verificationToken string) (*store.VerificationAttempt, error) {
	attempt, err := g.store.GetAttempt(userID, verificationToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if attempt.Terminal() {
		return nil, nil
	}
	if !token.ValidVerification(attempt.CreatedAt, g.now(), g.verificationTTL) {
		return nil, nil
	}
	return attempt, nil
}

func normalizeTermsReply(response string) string {
	return strings.ToUpper(strings.TrimSpace(response))
}

// SubmitTerms processes the accept/cancel answer of the terms step.
func (g *Gate) SubmitTerms(userID, verificationToken, response, surface, ipHash string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	attempt, err := g.validAttempt(userID, verificationToken)
	if err != nil {
		return Result{}, err
	}
	if attempt == nil {
		return Result{Status: StatusInvalidToken, Message: msgInvalidToken}, nil
	}

	switch normalizeTermsReply(response) {
	case "ACEITO18", "ACCEPT18":
		if err := g.store.SetAttemptStage(userID, verificationToken, store.StageAwaitingAge); err != nil {
			return Result{}, err
		}
		g.audit(userID, EventTermsAccepted, surface, ipHash, true)
		return Result{
			Status:     StatusAgeVerification,
			Message:    msgAgePrompt,
			NextPrompt: QuestionBirthYear,
		}, nil

	case "CANCELAR", "CANCEL":
		if err := g.store.SetAttemptStage(userID, verificationToken, store.StageCancelledUser); err != nil {
			return Result{}, err
		}
		g.audit(userID, EventCancelledUser, surface, ipHash, true)
		return Result{Status: StatusCancelled, Message: msgCancelled}, nil

	default:
		return Result{Status: StatusInvalidResponse, Message: msgInvalidReply}, nil
	}
}

// SubmitAge processes the age answer, granting or denying access.
// questionKind must echo the prompt the surface asked (birth_year or
// current_age).
func (g *Gate) SubmitAge(userID, verificationToken, questionKind, valueText, surface, ipHash string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	attempt, err := g.validAttempt(userID, verificationToken)
	if err != nil {
		return Result{}, err
	}
	if attempt == nil || attempt.Stage != store.StageAwaitingAge {
		return Result{Status: StatusInvalidToken, Message: msgInvalidToken}, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(valueText))
	if err != nil || value < 0 {
		return Result{Status: StatusInvalidFormat, Message: msgInvalidFormat}, nil
	}

	age, ofAge := g.computeAge(questionKind, value)
	if !ofAge {
		if err := g.store.RecordAttemptAge(userID, verificationToken, age, false, "", store.StageFailUnderage); err != nil {
			return Result{}, err
		}
		g.markCooldown(userID)
		g.audit(userID, EventAgeFailedUnderage, surface, ipHash, false)
		return Result{Status: StatusAccessDenied, Message: msgAccessDenied}, nil
	}

	sessionToken, err := g.tokens.NewSessionToken(userID)
	if err != nil {
		return Result{}, store.ErrStoreUnavailable
	}

	now := g.now()
	err = g.store.CreateSession(store.AdultSession{
		UserID:       userID,
		SessionToken: sessionToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(g.sessionTTL),
		IsActive:     true,
	})
	if err != nil {
		return Result{}, err
	}
	if err := g.store.RecordAttemptAge(userID, verificationToken, age, true, sessionToken, store.StageSuccess); err != nil {
		return Result{}, err
	}

	g.cacheSessionToken(userID, sessionToken)
	g.audit(userID, EventAgeSuccess, surface, ipHash, true)
	return Result{
		Status:       StatusAccessGranted,
		Message:      msgAccessGranted,
		SessionToken: sessionToken,
	}, nil
}

// computeAge turns the submitted value into an age and reports whether it
// clears the threshold. Future birth years fail the check.
func (g *Gate) computeAge(questionKind string, value int) (int, bool) {
	switch questionKind {
	case QuestionBirthYear:
		currentYear := g.now().Year()
		age := currentYear - value
		return age, age >= 18 && value <= currentYear-18
	default: // current_age
		return value, value >= 18
	}
}

func (g *Gate) markCooldown(userID string) {
	if g.cooldown == nil {
		return
	}
	if err := g.cooldown.MarkCooldown(userID, g.cooldownWindow); err != nil {
		log.Printf("Error marking cooldown for %s: %v", userID, err)
	}
}

// Deactivate turns off the active session at the user's request.
func (g *Gate) Deactivate(userID, reason, surface, ipHash string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	sess, err := g.activeSession(userID)
	if err != nil {
		return Result{}, err
	}
	if sess == nil {
		return Result{Status: StatusNotActive, Message: msgNotActive}, nil
	}

	if _, err := g.store.DeactivateSessions(userID, reason); err != nil {
		return Result{}, err
	}
	g.dropSessionToken(userID)
	g.audit(userID, EventSessionDeactivated(reason), surface, ipHash, true)
	return Result{Status: StatusDeactivated, Message: msgDeactivated}, nil
}

// Revoke removes adult access. Profile data is retained; only sessions go.
func (g *Gate) Revoke(userID, reason, surface, ipHash string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	if reason == "" {
		reason = store.ReasonRevoked
	}
	if _, err := g.store.DeactivateSessions(userID, reason); err != nil {
		return Result{}, err
	}
	g.dropSessionToken(userID)
	g.audit(userID, EventAccessRevoked, surface, ipHash, true)
	return Result{Status: StatusRevoked, Message: msgRevoked}, nil
}

// Status reports the current gate state plus profile settings.
func (g *Gate) Status(userID string) (StatusInfo, error) {
	unlock := g.Lock(userID)
	defer unlock()

	sess, err := g.activeSession(userID)
	if err != nil {
		return StatusInfo{}, err
	}

	p, err := g.profiles.Get(userID)
	if err != nil {
		return StatusInfo{}, err
	}

	info := StatusInfo{
		Active:    sess != nil,
		Intensity: p.IntensityLevel,
		Gender:    p.GenderPreference,
		Stage:     profile.DeriveStage(p.InteractionCount),
	}
	if sess != nil {
		info.ExpiresAt = sess.ExpiresAt.Unix()
	}
	return info, nil
}

// SetIntensity updates the vocabulary tier. Requires an active session.
func (g *Gate) SetIntensity(userID string, level int) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	granted, err := g.Granted(userID)
	if err != nil {
		return Result{}, err
	}
	if !granted {
		return Result{Status: StatusNoAccess, Message: msgNoAccess}, nil
	}

	err = g.profiles.SetIntensity(userID, level)
	if errors.Is(err, profile.ErrInvalidLevel) {
		return Result{Status: StatusInvalidLevel, Message: msgInvalidLevel}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusActiveStatus, Message: msgSettingsSaved}, nil
}

// SetGender updates the gender preference. Requires an active session.
func (g *Gate) SetGender(userID, pref string) (Result, error) {
	unlock := g.Lock(userID)
	defer unlock()

	granted, err := g.Granted(userID)
	if err != nil {
		return Result{}, err
	}
	if !granted {
		return Result{Status: StatusNoAccess, Message: msgNoAccess}, nil
	}

	err = g.profiles.SetGender(userID, pref)
	if errors.Is(err, profile.ErrInvalidGender) {
		return Result{Status: StatusInvalidGender, Message: msgInvalidGender}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusActiveStatus, Message: msgSettingsSaved}, nil
}
