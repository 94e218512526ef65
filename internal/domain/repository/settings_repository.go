package repository

import "context"

// Well-known settings keys
const (
	SettingCurrentJourneyID = "current_journey_id"
	SettingUserID           = "user_id"
	SettingAnonymousToken   = "anonymous_token"
)

// SettingsRepository is the local store's small key-value settings collection
type SettingsRepository interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key
	Set(ctx context.Context, key, value string) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}
