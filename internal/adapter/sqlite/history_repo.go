package sqlite

import (
	"fmt"
	"time"

	"github.com/vertextoedge/download-manager/internal/domain"
)

// AddHistory appends a completed download
func (s *Store) AddHistory(item *domain.HistoryItem) error {
	if item.CompletedAt.IsZero() {
		item.CompletedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO download_history (download_id, filename, url, size, download_path, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.DownloadID, item.Filename, item.URL, item.Size, item.DownloadPath, item.CompletedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// ListHistory returns the most recent completed downloads, newest first
func (s *Store) ListHistory(limit int) ([]*domain.HistoryItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, download_id, filename, url, size, download_path, completed_at
		FROM download_history
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.HistoryItem
	for rows.Next() {
		item := &domain.HistoryItem{}
		var completedAt int64
		if err := rows.Scan(&item.ID, &item.DownloadID, &item.Filename, &item.URL,
			&item.Size, &item.DownloadPath, &completedAt); err != nil {
			return nil, err
		}
		item.CompletedAt = time.UnixMilli(completedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddEvent appends a lifecycle event
func (s *Store) AddEvent(rec *domain.EventRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO download_events (download_id, event, error, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.DownloadID, rec.Event, rec.Error, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// ListEvents returns the events recorded for a download, oldest first
func (s *Store) ListEvents(downloadID string) ([]*domain.EventRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, download_id, event, error, created_at
		FROM download_events
		WHERE download_id = ?
		ORDER BY created_at ASC, id ASC
	`, downloadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.EventRecord
	for rows.Next() {
		rec := &domain.EventRecord{}
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.DownloadID, &rec.Event, &rec.Error, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes history and events older than age
func (s *Store) DeleteOlderThan(age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	historyResult, err := tx.Exec(`DELETE FROM download_history WHERE completed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	eventsResult, err := tx.Exec(`DELETE FROM download_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	historyRows, _ := historyResult.RowsAffected()
	eventRows, _ := eventsResult.RowsAffected()
	return int(historyRows + eventRows), nil
}
