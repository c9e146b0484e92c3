package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photosphere/internal/logging"
)

// SortKey selects the ordering column for photo queries.
type SortKey string

const (
	SortDateAdded SortKey = "date_added"
	SortDateTaken SortKey = "date_taken"
	SortFilename  SortKey = "filename"
	SortFileSize  SortKey = "file_size"
	SortCamera    SortKey = "camera"
	SortISO       SortKey = "iso"
	SortPixels    SortKey = "pixels"
)

// Order is the sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Filter narrows a photo query. TagIDs uses AND semantics: a photo
// must carry every listed tag. Untagged selects photos with no tag
// associations at all; it is mutually exclusive with TagIDs.
type Filter struct {
	TagIDs   []int64
	Untagged bool
}

// sort expressions per key; every key is reachable only through this
// whitelist, never from caller-supplied SQL.
var sortColumns = map[SortKey]string{
	SortDateAdded: "p.date_added",
	SortDateTaken: "p.date_taken",
	SortFilename:  "p.filename COLLATE NOCASE",
	SortFileSize:  "p.file_size",
	SortCamera:    "p.camera_make COLLATE NOCASE, p.camera_model COLLATE NOCASE",
	SortISO:       "p.iso",
	SortPixels:    "COALESCE(p.width, 0) * COALESCE(p.height, 0)",
}

// ParseSortKey maps a request string to a SortKey, defaulting to
// date added.
func ParseSortKey(s string) SortKey {
	key := SortKey(s)
	if _, ok := sortColumns[key]; ok {
		return key
	}
	return SortDateAdded
}

// ParseOrder maps a request string to an Order, defaulting to
// descending (newest first, the grid's natural order).
func ParseOrder(s string) Order {
	if Order(strings.ToLower(s)) == Ascending {
		return Ascending
	}
	return Descending
}

// QueryPhotos returns the ordered photo ids matching the filter.
// Presentation resolves thumbnails for the ids lazily through the
// cache.
func (d *Database) QueryPhotos(ctx context.Context, filter Filter, sort SortKey, order Order) ([]int64, error) {
	done := observeQuery("query_photos")

	if filter.Untagged && len(filter.TagIDs) > 0 {
		err := fmt.Errorf("untagged filter cannot be combined with tag filters")
		done(err)
		return nil, err
	}

	sortExpr, ok := sortColumns[sort]
	if !ok {
		sortExpr = sortColumns[SortDateAdded]
	}
	direction := "DESC"
	if order == Ascending {
		direction = "ASC"
	}
	// Stable tiebreak on id so pagination over equal keys is
	// deterministic.
	orderBy := orderClause(sortExpr, direction)

	var query string
	var args []interface{}

	switch {
	case filter.Untagged:
		query = `
			SELECT p.id FROM photos p
			WHERE NOT EXISTS (SELECT 1 FROM photo_tags pt WHERE pt.photo_id = p.id)
		` + orderBy
	case len(filter.TagIDs) > 0:
		placeholders := strings.Repeat("?,", len(filter.TagIDs))
		placeholders = placeholders[:len(placeholders)-1]
		query = fmt.Sprintf(`
			SELECT p.id FROM photos p
			INNER JOIN photo_tags pt ON pt.photo_id = p.id
			WHERE pt.tag_id IN (%s)
			GROUP BY p.id
			HAVING COUNT(DISTINCT pt.tag_id) = ?
		`, placeholders) + orderBy
		for _, id := range filter.TagIDs {
			args = append(args, id)
		}
		args = append(args, len(filter.TagIDs))
	default:
		query = "SELECT p.id FROM photos p" + orderBy
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
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

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			err = classify(err)
			done(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		err = classify(err)
		done(err)
		return nil, err
	}

	done(nil)
	return ids, nil
}

// orderClause applies the direction to every column of a sort
// expression and appends the id tiebreak.
func orderClause(sortExpr, direction string) string {
	cols := strings.Split(sortExpr, ", ")
	for i, col := range cols {
		cols[i] = col + " " + direction
	}
	return " ORDER BY " + strings.Join(cols, ", ") + ", p.id " + direction
}
