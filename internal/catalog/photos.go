package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

const photoColumns = `id, filename, filepath, file_size, date_added, date_taken,
	camera_make, camera_model, lens_model, focal_length, aperture, shutter_speed,
	iso, flash, orientation, width, height,
	gps_latitude, gps_longitude, gps_altitude, gps_location_name, metadata_json`

// InsertPhoto catalogs a photo and its requested tag associations as a
// single atomic operation: either the row and every association land,
// or nothing does.
func (d *Database) InsertPhoto(ctx context.Context, photo *Photo, tagIDs []int64) (int64, error) {
	done := observeQuery("insert_photo")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		err = classify(err)
		done(err)
		return 0, err
	}

	committed := false
	defer func() {
		if !committed {
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("rollback failed: %v", rbErr)
			}
		}
	}()

	var dateTaken interface{}
	if photo.DateTaken != nil {
		dateTaken = photo.DateTaken.Unix()
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO photos (filename, filepath, file_size, date_taken,
			camera_make, camera_model, lens_model, focal_length, aperture,
			shutter_speed, iso, flash, orientation, width, height,
			gps_latitude, gps_longitude, gps_altitude, gps_location_name, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		photo.Filename, photo.Filepath, photo.FileSize, dateTaken,
		photo.CameraMake, photo.CameraModel, photo.LensModel,
		photo.FocalLength, photo.Aperture, photo.ShutterSpeed,
		photo.ISO, photo.Flash, photo.Orientation, photo.Width, photo.Height,
		photo.GPSLatitude, photo.GPSLongitude, photo.GPSAltitude,
		photo.GPSLocation, photo.MetadataJSON,
	)
	if err != nil {
		err = classify(err)
		done(err)
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		err = classify(err)
		done(err)
		return 0, err
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO photo_tags (photo_id, tag_id) VALUES (?, ?)",
			id, tagID,
		); err != nil {
			err = classify(err)
			done(err)
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		err = classify(err)
		done(err)
		return 0, err
	}
	committed = true
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())

	done(nil)
	return id, nil
}

// GetPhoto returns the full photo record including its tag names.
func (d *Database) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	done := observeQuery("get_photo")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM photos WHERE id = ?", photoColumns), id)

	photo, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("photo %d: %w", id, ErrNotFound)
		} else {
			err = classify(err)
		}
		done(err)
		return nil, err
	}

	tags, err := d.photoTagsUnlocked(ctx, id)
	if err != nil {
		err = classify(err)
		done(err)
		return nil, err
	}
	photo.Tags = tags

	done(nil)
	return photo, nil
}

// DeletePhoto removes a photo; its associations cascade. The thumbnail
// cache entry becomes an orphan until the next reclaim pass.
func (d *Database) DeletePhoto(ctx context.Context, id int64) error {
	done := observeQuery("delete_photo")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		err = classify(err)
		done(err)
		return err
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		err = fmt.Errorf("photo %d: %w", id, ErrNotFound)
		done(err)
		return err
	}

	done(nil)
	return nil
}

// PathExists reports whether a filepath is already cataloged.
func (d *Database) PathExists(ctx context.Context, path string) (bool, error) {
	done := observeQuery("path_exists")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM photos WHERE filepath = ?)", path,
	).Scan(&exists)
	if err != nil {
		err = classify(err)
		done(err)
		return false, err
	}

	done(nil)
	return exists, nil
}

// PhotoIDs returns the ids of every cataloged photo. The thumbnail
// cache uses it to find orphaned entries.
func (d *Database) PhotoIDs(ctx context.Context) ([]int64, error) {
	done := observeQuery("photo_ids")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id FROM photos ORDER BY id")
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

// PhotoFile returns a photo's source path and orientation code, the
// two attributes thumbnail generation needs.
func (d *Database) PhotoFile(ctx context.Context, id int64) (string, int, error) {
	done := observeQuery("photo_file")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var path string
	var orientation int
	err := d.db.QueryRowContext(ctx,
		"SELECT filepath, orientation FROM photos WHERE id = ?", id,
	).Scan(&path, &orientation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("photo %d: %w", id, ErrNotFound)
		} else {
			err = classify(err)
		}
		done(err)
		return "", 0, err
	}

	done(nil)
	return path, orientation, nil
}

// ReplaceMetadata overwrites a photo's extracted attributes after a
// re-extraction. Identity fields (id, filepath, date_added) and tag
// associations are untouched.
func (d *Database) ReplaceMetadata(ctx context.Context, id int64, photo *Photo) error {
	done := observeQuery("replace_metadata")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var dateTaken interface{}
	if photo.DateTaken != nil {
		dateTaken = photo.DateTaken.Unix()
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE photos SET
			filename = ?, file_size = ?, date_taken = ?,
			camera_make = ?, camera_model = ?, lens_model = ?,
			focal_length = ?, aperture = ?, shutter_speed = ?,
			iso = ?, flash = ?, orientation = ?, width = ?, height = ?,
			gps_latitude = ?, gps_longitude = ?, gps_altitude = ?,
			gps_location_name = ?, metadata_json = ?
		WHERE id = ?
	`,
		photo.Filename, photo.FileSize, dateTaken,
		photo.CameraMake, photo.CameraModel, photo.LensModel,
		photo.FocalLength, photo.Aperture, photo.ShutterSpeed,
		photo.ISO, photo.Flash, photo.Orientation, photo.Width, photo.Height,
		photo.GPSLatitude, photo.GPSLongitude, photo.GPSAltitude,
		photo.GPSLocation, photo.MetadataJSON, id,
	)
	if err != nil {
		err = classify(err)
		done(err)
		return err
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		err = fmt.Errorf("photo %d: %w", id, ErrNotFound)
		done(err)
		return err
	}

	done(nil)
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row scanner) (*Photo, error) {
	var photo Photo
	var dateAdded int64
	var dateTaken sql.NullInt64
	var cameraMake, cameraModel, lensModel, shutterSpeed, flash, gpsLocation, metadataJSON sql.NullString
	var focalLength, aperture, gpsLat, gpsLon, gpsAlt sql.NullFloat64
	var iso, width, height sql.NullInt64

	err := row.Scan(
		&photo.ID, &photo.Filename, &photo.Filepath, &photo.FileSize,
		&dateAdded, &dateTaken,
		&cameraMake, &cameraModel, &lensModel,
		&focalLength, &aperture, &shutterSpeed,
		&iso, &flash, &photo.Orientation, &width, &height,
		&gpsLat, &gpsLon, &gpsAlt, &gpsLocation, &metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	photo.DateAdded = time.Unix(dateAdded, 0)
	if dateTaken.Valid {
		taken := time.Unix(dateTaken.Int64, 0)
		photo.DateTaken = &taken
	}
	photo.CameraMake = nullString(cameraMake)
	photo.CameraModel = nullString(cameraModel)
	photo.LensModel = nullString(lensModel)
	photo.ShutterSpeed = nullString(shutterSpeed)
	photo.Flash = nullString(flash)
	photo.GPSLocation = nullString(gpsLocation)
	photo.FocalLength = nullFloat(focalLength)
	photo.Aperture = nullFloat(aperture)
	photo.GPSLatitude = nullFloat(gpsLat)
	photo.GPSLongitude = nullFloat(gpsLon)
	photo.GPSAltitude = nullFloat(gpsAlt)
	photo.ISO = nullInt(iso)
	photo.Width = nullInt(width)
	photo.Height = nullInt(height)
	if metadataJSON.Valid {
		photo.MetadataJSON = metadataJSON.String
	}

	return &photo, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
