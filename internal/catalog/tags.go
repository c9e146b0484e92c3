package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photosphere/internal/logging"
)

// GetOrCreateTag returns the tag named name, creating it if needed.
// Matching is case-sensitive. A color passed for an existing tag
// updates its color.
func (d *Database) GetOrCreateTag(ctx context.Context, name, color string) (*Tag, error) {
	done := observeQuery("get_or_create_tag")

	name = strings.TrimSpace(name)
	if name == "" {
		err := fmt.Errorf("%w: tag name cannot be empty", ErrConstraint)
		done(err)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var tag Tag
	var createdAt int64
	var existingColor sql.NullString

	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, color, created_date FROM tags WHERE name = ?",
		name,
	).Scan(&tag.ID, &tag.Name, &existingColor, &createdAt)

	if err == nil {
		tag.CreatedAt = time.Unix(createdAt, 0)
		if existingColor.Valid {
			tag.Color = existingColor.String
		}
		if color != "" && color != tag.Color {
			if _, err := d.db.ExecContext(ctx,
				"UPDATE tags SET color = ? WHERE id = ?", color, tag.ID,
			); err != nil {
				err = classify(err)
				done(err)
				return nil, err
			}
			tag.Color = color
		}
		done(nil)
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		err = classify(err)
		done(err)
		return nil, err
	}

	var colorVal interface{}
	if color != "" {
		colorVal = color
	}
	result, err := d.db.ExecContext(ctx,
		"INSERT INTO tags (name, color) VALUES (?, ?)", name, colorVal)
	if err != nil {
		err = classify(err)
		done(err)
		return nil, err
	}

	tag.ID, _ = result.LastInsertId()
	tag.Name = name
	tag.Color = color
	tag.CreatedAt = time.Now()

	done(nil)
	return &tag, nil
}

// ListTags returns all tags with their photo counts.
func (d *Database) ListTags(ctx context.Context) ([]Tag, error) {
	done := observeQuery("list_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_date, COUNT(pt.id) AS item_count
		FROM tags t
		LEFT JOIN photo_tags pt ON t.id = pt.tag_id
		GROUP BY t.id
		ORDER BY t.name
	`)
	if err != nil {
		err = classify(err)
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var createdAt int64
		var color sql.NullString

		if err := rows.Scan(&tag.ID, &tag.Name, &color, &createdAt, &tag.ItemCount); err != nil {
			err = classify(err)
			done(err)
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		if color.Valid {
			tag.Color = color.String
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		err = classify(err)
		done(err)
		return nil, err
	}

	done(nil)
	return tags, nil
}

// DeleteTag removes a tag; its photo associations cascade, the photos
// themselves are never touched.
func (d *Database) DeleteTag(ctx context.Context, name string) error {
	done := observeQuery("delete_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM tags WHERE name = ?", name)
	if err != nil {
		err = classify(err)
		done(err)
		return err
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		err = fmt.Errorf("tag %q: %w", name, ErrNotFound)
		done(err)
		return err
	}

	done(nil)
	return nil
}

// AssignTags associates every tag in tagIDs with every photo in
// photoIDs as one logical operation with per-photo outcomes: one bad
// photo id never aborts the rest.
func (d *Database) AssignTags(ctx context.Context, photoIDs, tagIDs []int64) []TagOpResult {
	done := observeQuery("assign_tags")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	results := make([]TagOpResult, 0, len(photoIDs))
	for _, photoID := range photoIDs {
		result := TagOpResult{PhotoID: photoID, OK: true}
		for _, tagID := range tagIDs {
			_, err := d.db.ExecContext(ctx,
				"INSERT OR IGNORE INTO photo_tags (photo_id, tag_id) VALUES (?, ?)",
				photoID, tagID,
			)
			if err != nil {
				result.OK = false
				result.Error = classify(err).Error()
				break
			}
		}
		results = append(results, result)
	}

	done(nil)
	return results
}

// RemoveTags drops the (photo, tag) associations for every photo in
// photoIDs, with per-photo outcomes. Removing an association that does
// not exist is a success.
func (d *Database) RemoveTags(ctx context.Context, photoIDs, tagIDs []int64) []TagOpResult {
	done := observeQuery("remove_tags")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	results := make([]TagOpResult, 0, len(photoIDs))
	for _, photoID := range photoIDs {
		result := TagOpResult{PhotoID: photoID, OK: true}
		for _, tagID := range tagIDs {
			_, err := d.db.ExecContext(ctx,
				"DELETE FROM photo_tags WHERE photo_id = ? AND tag_id = ?",
				photoID, tagID,
			)
			if err != nil {
				result.OK = false
				result.Error = classify(err).Error()
				break
			}
		}
		results = append(results, result)
	}

	done(nil)
	return results
}

// photoTagsUnlocked returns tag names for a photo.
// Caller must hold at least a read lock.
func (d *Database) photoTagsUnlocked(ctx context.Context, photoID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		INNER JOIN photo_tags pt ON t.id = pt.tag_id
		WHERE pt.photo_id = ?
		ORDER BY t.name
	`, photoID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}
