package store

import (
	"fmt"
	"time"

	"luara/pkg/surreal"
)

type SurrealStore struct {
	client *surreal.Client
}

func NewSurrealStore(client *surreal.Client) *SurrealStore {
	return &SurrealStore{
		client: client,
	}
}

func (s *SurrealStore) Init() error {
	query := `
		DEFINE TABLE IF NOT EXISTS age_verifications SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON age_verifications TYPE string;
		DEFINE FIELD IF NOT EXISTS verification_token ON age_verifications TYPE string;
		DEFINE FIELD IF NOT EXISTS age_provided ON age_verifications TYPE int;
		DEFINE FIELD IF NOT EXISTS age_confirmed ON age_verifications TYPE bool;
		DEFINE FIELD IF NOT EXISTS session_token ON age_verifications TYPE string;
		DEFINE FIELD IF NOT EXISTS stage ON age_verifications TYPE string;
		DEFINE FIELD IF NOT EXISTS surface ON age_verifications TYPE string;
		DEFINE FIELD IF NOT EXISTS created_at ON age_verifications TYPE int;
		DEFINE INDEX IF NOT EXISTS verification_idx ON age_verifications FIELDS user_id, verification_token;

		DEFINE TABLE IF NOT EXISTS adult_sessions SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON adult_sessions TYPE string;
		DEFINE FIELD IF NOT EXISTS session_token ON adult_sessions TYPE string;
		DEFINE FIELD IF NOT EXISTS created_at ON adult_sessions TYPE int;
		DEFINE FIELD IF NOT EXISTS expires_at ON adult_sessions TYPE int;
		DEFINE FIELD IF NOT EXISTS is_active ON adult_sessions TYPE bool;
		DEFINE FIELD IF NOT EXISTS deactivation_reason ON adult_sessions TYPE string;
		DEFINE INDEX IF NOT EXISTS session_idx ON adult_sessions FIELDS user_id, is_active, expires_at;

		DEFINE TABLE IF NOT EXISTS adult_profiles SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON adult_profiles TYPE string;
		DEFINE FIELD IF NOT EXISTS intensity_level ON adult_profiles TYPE int;
		DEFINE FIELD IF NOT EXISTS gender_preference ON adult_profiles TYPE string;
		DEFINE FIELD IF NOT EXISTS interaction_count ON adult_profiles TYPE int;
		DEFINE FIELD IF NOT EXISTS last_interaction ON adult_profiles TYPE int;
		DEFINE FIELD IF NOT EXISTS updated_at ON adult_profiles TYPE int;

		DEFINE TABLE IF NOT EXISTS content_database SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS category ON content_database TYPE string;
		DEFINE FIELD IF NOT EXISTS subcategory ON content_database TYPE string;
		DEFINE FIELD IF NOT EXISTS gender_context ON content_database TYPE string;
		DEFINE FIELD IF NOT EXISTS intensity ON content_database TYPE int;
		DEFINE FIELD IF NOT EXISTS text ON content_database TYPE string;
		DEFINE FIELD IF NOT EXISTS usage_count ON content_database TYPE int;
		DEFINE FIELD IF NOT EXISTS tags ON content_database TYPE array<string>;
		DEFINE FIELD IF NOT EXISTS is_active ON content_database TYPE bool;
		DEFINE INDEX IF NOT EXISTS content_idx ON content_database FIELDS category, gender_context, intensity;

		DEFINE TABLE IF NOT EXISTS security_log SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON security_log TYPE string;
		DEFINE FIELD IF NOT EXISTS action ON security_log TYPE string;
		DEFINE FIELD IF NOT EXISTS surface ON security_log TYPE string;
		DEFINE FIELD IF NOT EXISTS success ON security_log TYPE bool;
		DEFINE FIELD IF NOT EXISTS timestamp ON security_log TYPE int;
		DEFINE FIELD IF NOT EXISTS ip_hash ON security_log TYPE string;

		DEFINE TABLE IF NOT EXISTS recent_messages SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON recent_messages TYPE string;
		DEFINE FIELD IF NOT EXISTS role ON recent_messages TYPE string;
		DEFINE FIELD IF NOT EXISTS text ON recent_messages TYPE string;
		DEFINE FIELD IF NOT EXISTS timestamp ON recent_messages TYPE int;

		DEFINE TABLE IF NOT EXISTS user_profiles SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON user_profiles TYPE string;
		DEFINE FIELD IF NOT EXISTS display_name ON user_profiles TYPE string;
		DEFINE FIELD IF NOT EXISTS last_updated ON user_profiles TYPE int;
	`
	_, err := s.client.Query(query, map[string]interface{}{})
	return err
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Verification attempts

func (s *SurrealStore) CreateAttempt(a VerificationAttempt) error {
	item := map[string]interface{}{
		"user_id":            a.UserID,
		"verification_token": a.VerificationToken,
		"age_provided":       a.AgeProvided,
		"age_confirmed":      a.AgeConfirmed,
		"session_token":      a.SessionToken,
		"stage":              a.Stage,
		"surface":            a.Surface,
		"created_at":         a.CreatedAt.Unix(),
	}
	if _, err := s.client.Create("age_verifications", item); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) GetAttempt(userID, token string) (*VerificationAttempt, error) {
	query := `
		SELECT * FROM age_verifications
		WHERE user_id = $user_id AND verification_token = $token
		LIMIT 1;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"user_id": userID,
		"token":   token,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	attempt := attemptFromRow(rows[0])
	return &attempt, nil
}

func (s *SurrealStore) SetAttemptStage(userID, token, stage string) error {
	query := `
		UPDATE age_verifications SET stage = $stage
		WHERE user_id = $user_id AND verification_token = $token;
	`
	_, err := s.client.Query(query, map[string]interface{}{
		"user_id": userID,
		"token":   token,
		"stage":   stage,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) RecordAttemptAge(userID, token string, age int, confirmed bool, sessionToken, stage string) error {
	query := `
		UPDATE age_verifications SET
			age_provided = $age,
			age_confirmed = $confirmed,
			session_token = $session_token,
			stage = $stage
		WHERE user_id = $user_id AND verification_token = $token;
	`
	_, err := s.client.Query(query, map[string]interface{}{
		"user_id":       userID,
		"token":         token,
		"age":           age,
		"confirmed":     confirmed,
		"session_token": sessionToken,
		"stage":         stage,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) ListRecentAttempts(userID string, within time.Duration) ([]VerificationAttempt, error) {
	query := `
		SELECT * FROM age_verifications
		WHERE user_id = $user_id AND created_at >= $since
		ORDER BY created_at DESC;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"user_id": userID,
		"since":   time.Now().Add(-within).Unix(),
	})
	if err != nil {
		return nil, storeErr(err)
	}

	var attempts []VerificationAttempt
	for _, row := range asRows(result) {
		attempts = append(attempts, attemptFromRow(row))
	}
	return attempts, nil
}

// Adult sessions

func (s *SurrealStore) GetActiveSession(userID string) (*AdultSession, error) {
	query := `
		SELECT * FROM adult_sessions
		WHERE user_id = $user_id AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1;
	`
	result, err := s.client.Query(query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	session := sessionFromRow(rows[0])
	return &session, nil
}

func (s *SurrealStore) CreateSession(sess AdultSession) error {
	// Single multi-statement query so the supersede + insert is atomic.
	query := `
		UPDATE adult_sessions SET is_active = false, deactivation_reason = $superseded
		WHERE user_id = $user_id AND is_active = true;
		CREATE adult_sessions CONTENT {
			user_id: $user_id,
			session_token: $session_token,
			created_at: $created_at,
			expires_at: $expires_at,
			is_active: true,
			deactivation_reason: ""
		};
	`
	_, err := s.client.Query(query, map[string]interface{}{
		"user_id":       sess.UserID,
		"session_token": sess.SessionToken,
		"created_at":    sess.CreatedAt.Unix(),
		"expires_at":    sess.ExpiresAt.Unix(),
		"superseded":    ReasonSuperseded,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) DeactivateSessions(userID, reason string) (int, error) {
	query := `
		UPDATE adult_sessions SET is_active = false, deactivation_reason = $reason
		WHERE user_id = $user_id AND is_active = true;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"user_id": userID,
		"reason":  reason,
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return len(asRows(result)), nil
}

func (s *SurrealStore) DeactivateExpiredSessions(now time.Time) (int, error) {
	query := `
		UPDATE adult_sessions SET is_active = false, deactivation_reason = $reason
		WHERE is_active = true AND expires_at < $now;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"now":    now.Unix(),
		"reason": ReasonExpired,
	})
	if err != nil {
		return 0, storeErr(err)
	}
	return len(asRows(result)), nil
}

// Adult profiles

func (s *SurrealStore) GetProfile(userID string) (*AdultProfile, error) {
	query := `SELECT * FROM type::thing("adult_profiles", $user_id);`
	result, err := s.client.Query(query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	profile := profileFromRow(rows[0])
	return &profile, nil
}

func (s *SurrealStore) UpsertProfile(userID string, update ProfileUpdate, now time.Time) error {
	// Ensure the record exists with defaults, then apply only the
	// supplied fields. updated_at always refreshes.
	query := `
		INSERT INTO adult_profiles (id, user_id, intensity_level, gender_preference, interaction_count, last_interaction, updated_at)
		VALUES (type::thing("adult_profiles", $user_id), $user_id, 2, $feminine, 0, 0, $now)
		ON DUPLICATE KEY UPDATE updated_at = $now;
	`
	vars := map[string]interface{}{
		"user_id":  userID,
		"feminine": GenderFeminine,
		"now":      now.Unix(),
	}
	if update.IntensityLevel != nil {
		query += `
		UPDATE type::thing("adult_profiles", $user_id) SET intensity_level = $intensity, updated_at = $now;
		`
		vars["intensity"] = *update.IntensityLevel
	}
	if update.GenderPreference != nil {
		query += `
		UPDATE type::thing("adult_profiles", $user_id) SET gender_preference = $gender, updated_at = $now;
		`
		vars["gender"] = *update.GenderPreference
	}

	if _, err := s.client.Query(query, vars); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) IncrementInteraction(userID string, at time.Time) (int, error) {
	query := `
		INSERT INTO adult_profiles (id, user_id, intensity_level, gender_preference, interaction_count, last_interaction, updated_at)
		VALUES (type::thing("adult_profiles", $user_id), $user_id, 2, $feminine, 0, 0, $now)
		ON DUPLICATE KEY UPDATE user_id = $user_id;
		UPDATE type::thing("adult_profiles", $user_id) SET
			interaction_count += 1,
			last_interaction = $now,
			updated_at = $now;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"user_id":  userID,
		"feminine": GenderFeminine,
		"now":      at.Unix(),
	})
	if err != nil {
		return 0, storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: profile update returned no rows", ErrStoreUnavailable)
	}
	return rowInt(rows[0], "interaction_count"), nil
}

// Content corpus

func (s *SurrealStore) CountContent() (int, error) {
	query := `SELECT count() AS total FROM content_database GROUP ALL;`
	result, err := s.client.Query(query, map[string]interface{}{})
	if err != nil {
		return 0, storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return 0, nil
	}
	return rowInt(rows[0], "total"), nil
}

func (s *SurrealStore) SeedContent(items []ContentItem) error {
	for _, item := range items {
		data := map[string]interface{}{
			"category":       item.Category,
			"subcategory":    item.Subcategory,
			"gender_context": item.GenderContext,
			"intensity":      item.Intensity,
			"text":           item.Text,
			"usage_count":    0,
			"tags":           item.Tags,
			"is_active":      true,
		}
		if data["tags"] == nil {
			data["tags"] = []string{}
		}
		if _, err := s.client.Create("content_database", data); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

func (s *SurrealStore) ListContent(category, gender string, maxIntensity int) ([]ContentItem, error) {
	query := `
		SELECT * FROM content_database
		WHERE category = $category
			AND gender_context = $gender
			AND intensity <= $max_intensity
			AND is_active = true;
	`
	result, err := s.client.Query(query, map[string]interface{}{
		"category":      category,
		"gender":        gender,
		"max_intensity": maxIntensity,
	})
	if err != nil {
		return nil, storeErr(err)
	}

	var items []ContentItem
	for _, row := range asRows(result) {
		items = append(items, contentFromRow(row))
	}
	return items, nil
}

func (s *SurrealStore) IncrementUsage(contentID string) error {
	if err := surreal.ValidateIdentifier(contentID); err != nil {
		return err
	}
	query := `UPDATE type::thing("content_database", $id) SET usage_count += 1;`
	_, err := s.client.Query(query, map[string]interface{}{"id": contentID})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Security log

func (s *SurrealStore) AppendSecurityEvent(ev SecurityEvent) error {
	item := map[string]interface{}{
		"user_id":   ev.UserID,
		"action":    ev.Action,
		"surface":   ev.Surface,
		"success":   ev.Success,
		"timestamp": ev.Timestamp.Unix(),
		"ip_hash":   ev.IPHash,
	}
	if _, err := s.client.Create("security_log", item); err != nil {
		return storeErr(err)
	}
	return nil
}

// Recent messages

func (s *SurrealStore) AddRecentMessage(userID, role, text string) error {
	item := map[string]interface{}{
		"user_id":   userID,
		"role":      role,
		"text":      text,
		"timestamp": time.Now().UnixNano(),
	}
	if _, err := s.client.Create("recent_messages", item); err != nil {
		return storeErr(err)
	}

	// Keep the last 15 per user
	query := `
		DELETE recent_messages
		WHERE user_id = $user_id
		AND id NOT IN (
			SELECT VALUE id FROM (
				SELECT id, timestamp FROM recent_messages
				WHERE user_id = $user_id
				ORDER BY timestamp DESC
				LIMIT 15
			)
		);
	`
	if _, err := s.client.Query(query, map[string]interface{}{"user_id": userID}); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SurrealStore) GetRecentMessages(userID string) ([]RecentMessage, error) {
	query := `
		SELECT user_id, role, text, timestamp FROM recent_messages
		WHERE user_id = $user_id
		ORDER BY timestamp ASC;
	`
	result, err := s.client.Query(query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, storeErr(err)
	}

	var messages []RecentMessage
	for _, row := range asRows(result) {
		messages = append(messages, RecentMessage{
			UserID:    rowString(row, "user_id"),
			Role:      rowString(row, "role"),
			Text:      rowString(row, "text"),
			Timestamp: int64(rowInt(row, "timestamp")),
		})
	}
	return messages, nil
}

// Display names

func (s *SurrealStore) GetDisplayName(userID string) (string, error) {
	query := `SELECT display_name FROM type::thing("user_profiles", $user_id);`
	result, err := s.client.Query(query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return "", storeErr(err)
	}

	rows := asRows(result)
	if len(rows) == 0 {
		return "", nil
	}
	return rowString(rows[0], "display_name"), nil
}

func (s *SurrealStore) SetDisplayName(userID, name string) error {
	query := `
		INSERT INTO user_profiles (id, user_id, display_name, last_updated)
		VALUES (type::thing("user_profiles", $user_id), $user_id, $name, time::unix())
		ON DUPLICATE KEY UPDATE display_name = $name, last_updated = time::unix();
	`
	_, err := s.client.Query(query, map[string]interface{}{
		"user_id": userID,
		"name":    name,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}
