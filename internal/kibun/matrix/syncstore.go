package matrix

// syncstore.go implements mautrix.SyncStore on top of the Kibun store.
// Persisting next_batch across restarts keeps the bot from replaying room
// history and answering diary commands twice.

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*DBSyncStore)(nil)

const (
	keyFilterID  = "filter_id"
	keyNextBatch = "next_batch"
)

// SyncStateStore is the key/value persistence DBSyncStore needs.
// *store.Store satisfies it.
type SyncStateStore interface {
	SaveSyncValue(ctx context.Context, userID, key, value string) error
	LoadSyncValue(ctx context.Context, userID, key string) (string, error)
}

// DBSyncStore keeps the sync filter ID and next_batch token in the
// matrix_sync_state table.
type DBSyncStore struct {
	state SyncStateStore
}

// NewDBSyncStore wraps state.
func NewDBSyncStore(state SyncStateStore) *DBSyncStore {
	return &DBSyncStore{state: state}
}

// SaveFilterID persists the event-filter ID for userID.
func (s *DBSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.state.SaveSyncValue(ctx, userID.String(), keyFilterID, filterID)
}

// LoadFilterID returns ("", nil) when no filter has been saved.
func (s *DBSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.LoadSyncValue(ctx, userID.String(), keyFilterID)
}

// SaveNextBatch persists the /sync next_batch token.
func (s *DBSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.state.SaveSyncValue(ctx, userID.String(), keyNextBatch, nextBatchToken)
}

// LoadNextBatch returns ("", nil) on first run.
func (s *DBSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.LoadSyncValue(ctx, userID.String(), keyNextBatch)
}
