package store

import (
	"database/sql"
	"time"
)

// ArtifactRepository handles artifact upload bookkeeping.
type ArtifactRepository struct {
	db *sql.DB
}

// Artifacts returns an ArtifactRepository for the store.
func (s *Store) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{db: s.db}
}

// ListBySession retrieves a session's artifacts ordered by camera then kind.
func (r *ArtifactRepository) ListBySession(sessionID string) ([]Artifact, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, camera, kind, path, upload_status, upload_error, attempts, updated_at
		 FROM artifacts WHERE session_id = ? ORDER BY camera, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Camera, &a.Kind, &a.Path, &a.UploadStatus, &a.UploadError, &a.Attempts, &a.UpdatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// MarkUploaded records a successful upload of the artifact at path.
func (r *ArtifactRepository) MarkUploaded(path string, attempts int) error {
	return r.setStatus(path, UploadUploaded, "", attempts)
}

// MarkFailed records that every upload attempt for the artifact at path failed.
func (r *ArtifactRepository) MarkFailed(path string, uploadErr error, attempts int) error {
	msg := ""
	if uploadErr != nil {
		msg = uploadErr.Error()
	}
	return r.setStatus(path, UploadFailed, msg, attempts)
}

func (r *ArtifactRepository) setStatus(path string, status UploadStatus, msg string, attempts int) error {
	result, err := r.db.Exec(
		`UPDATE artifacts SET upload_status = ?, upload_error = ?, attempts = ?, updated_at = ? WHERE path = ?`,
		status, msg, attempts, time.Now(), path,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
