package store

import (
	"fmt"
	"strings"
	"time"
)

// Row parsing helpers. The driver hands back loosely typed maps; numbers may
// arrive as float64, int64 or uint64 depending on the decode path.

func asRows(result interface{}) []map[string]interface{} {
	raw, ok := result.([]interface{})
	if !ok {
		return nil
	}
	var rows []map[string]interface{}
	for _, item := range raw {
		if row, ok := item.(map[string]interface{}); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func rowString(row map[string]interface{}, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func rowInt(row map[string]interface{}, key string) int {
	switch v := row[key].(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	}
	return 0
}

func rowBool(row map[string]interface{}, key string) bool {
	if v, ok := row[key].(bool); ok {
		return v
	}
	return false
}

func rowTime(row map[string]interface{}, key string) time.Time {
	unix := rowInt(row, key)
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(int64(unix), 0)
}

// rowID extracts the bare record id, stripping the "table:" prefix the
// driver includes.
func rowID(row map[string]interface{}) string {
	raw, ok := row["id"]
	if !ok {
		return ""
	}
	id := fmt.Sprintf("%v", raw)
	if idx := strings.IndexByte(id, ':'); idx >= 0 {
		id = id[idx+1:]
	}
	return strings.Trim(id, "⟨⟩")
}

func attemptFromRow(row map[string]interface{}) VerificationAttempt {
	return VerificationAttempt{
		UserID:            rowString(row, "user_id"),
		VerificationToken: rowString(row, "verification_token"),
		AgeProvided:       rowInt(row, "age_provided"),
		AgeConfirmed:      rowBool(row, "age_confirmed"),
		SessionToken:      rowString(row, "session_token"),
		Stage:             rowString(row, "stage"),
		Surface:           rowString(row, "surface"),
		CreatedAt:         rowTime(row, "created_at"),
	}
}

func sessionFromRow(row map[string]interface{}) AdultSession {
	return AdultSession{
		UserID:             rowString(row, "user_id"),
		SessionToken:       rowString(row, "session_token"),
		CreatedAt:          rowTime(row, "created_at"),
		ExpiresAt:          rowTime(row, "expires_at"),
		IsActive:           rowBool(row, "is_active"),
		DeactivationReason: rowString(row, "deactivation_reason"),
	}
}

func profileFromRow(row map[string]interface{}) AdultProfile {
	return AdultProfile{
		UserID:           rowString(row, "user_id"),
		IntensityLevel:   rowInt(row, "intensity_level"),
		GenderPreference: rowString(row, "gender_preference"),
		InteractionCount: rowInt(row, "interaction_count"),
		LastInteraction:  rowTime(row, "last_interaction"),
		UpdatedAt:        rowTime(row, "updated_at"),
	}
}

func contentFromRow(row map[string]interface{}) ContentItem {
	item := ContentItem{
		ID:            rowID(row),
		Category:      rowString(row, "category"),
		Subcategory:   rowString(row, "subcategory"),
		GenderContext: rowString(row, "gender_context"),
		Intensity:     rowInt(row, "intensity"),
		Text:          rowString(row, "text"),
		UsageCount:    rowInt(row, "usage_count"),
		IsActive:      rowBool(row, "is_active"),
	}
	if tags, ok := row["tags"].([]interface{}); ok {
		for _, tag := range tags {
			if str, ok := tag.(string); ok {
				item.Tags = append(item.Tags, str)
			}
		}
	}
	return item
}
