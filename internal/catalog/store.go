package catalog

import (
	"context"
	"fmt"
	"time"

	"freetoair/catalog/internal/database"
	"freetoair/catalog/internal/models"
)

// ChannelStore defines persistence for channel records. A single instance
// is shared by the API handlers, the seeder and the health reconciler;
// synchronization is delegated to the database layer.
type ChannelStore interface {
	// InsertIfAbsent persists the channel unless its id already exists.
	// It returns false without mutating anything when the id is taken.
	InsertIfAbsent(ctx context.Context, ch *models.Channel) (bool, error)
	// ListAll returns a full snapshot of the catalog.
	ListAll(ctx context.Context) ([]models.Channel, error)
	// ListByCountry returns channels whose country matches the value,
	// case-insensitively. An empty result is not an error.
	ListByCountry(ctx context.Context, country string) ([]models.Channel, error)
	// ListByLanguage returns channels whose language matches the value,
	// case-insensitively. An empty result is not an error.
	ListByLanguage(ctx context.Context, language string) ([]models.Channel, error)
	// ListByCategory returns channels whose category matches the value,
	// case-insensitively. An empty result is not an error.
	ListByCategory(ctx context.Context, category string) ([]models.Channel, error)
	// UpdateStatus sets is_active for an existing id. It is a silent no-op
	// when the id does not exist.
	UpdateStatus(ctx context.Context, id string, active bool) error
	// Count returns the number of channels in the catalog.
	Count(ctx context.Context) (int, error)
}

// sqlxStore implements ChannelStore using sqlx over SQLite.
type sqlxStore struct {
	db *database.DB
}

// NewStore creates a new store instance.
func NewStore(db *database.DB) ChannelStore {
	return &sqlxStore{db: db}
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING so that concurrent
// inserts of the same id race safely: exactly one wins, the rest see
// zero rows affected.
func (s *sqlxStore) InsertIfAbsent(ctx context.Context, ch *models.Channel) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, country, language, category, stream_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		ch.ID, ch.Name, ch.Country, ch.Language, ch.Category, ch.StreamURL,
		ch.IsActive, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert channel %q: %w", ch.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for channel %q: %w", ch.ID, err)
	}
	return n > 0, nil
}

// ListAll retrieves every channel, ordered by id for stability within a call.
func (s *sqlxStore) ListAll(ctx context.Context) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := s.db.SelectContext(ctx, &channels, `SELECT * FROM channels ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// ListByCountry matches the country exactly but case-insensitively:
// "uk" and "UK" are the same country, "United" does not match
// "United Kingdom".
func (s *sqlxStore) ListByCountry(ctx context.Context, country string) ([]models.Channel, error) {
	return s.listByField(ctx, "country", country)
}

// ListByLanguage matches the language exactly but case-insensitively.
func (s *sqlxStore) ListByLanguage(ctx context.Context, language string) ([]models.Channel, error) {
	return s.listByField(ctx, "language", language)
}

// ListByCategory matches the category exactly but case-insensitively.
func (s *sqlxStore) ListByCategory(ctx context.Context, category string) ([]models.Channel, error) {
	return s.listByField(ctx, "category", category)
}

func (s *sqlxStore) listByField(ctx context.Context, field, value string) ([]models.Channel, error) {
	channels := []models.Channel{}
	query := fmt.Sprintf(`SELECT * FROM channels WHERE %s = ? COLLATE NOCASE ORDER BY id ASC`, field)
	err := s.db.SelectContext(ctx, &channels, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels by %s: %w", field, err)
	}
	return channels, nil
}

// UpdateStatus writes the latest probe verdict for a channel. Updating a
// nonexistent id affects zero rows and is deliberately not an error, so a
// sweep that started before a row disappeared cannot resurrect it.
func (s *sqlxStore) UpdateStatus(ctx context.Context, id string, active bool) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET is_active = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?`,
		active, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for channel %q: %w", id, err)
	}
	return nil
}

// Count returns the number of channels in the catalog.
func (s *sqlxStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM channels`)
	if err != nil {
		return 0, fmt.Errorf("failed to count channels: %w", err)
	}
	return count, nil
}
