package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ArtifactKind names the image a persisted artifact holds.
type ArtifactKind string

// Artifact kinds written per camera, plus the session manifest.
const (
	KindOriginal ArtifactKind = "original"
	KindContours ArtifactKind = "contours"
	KindPressure ArtifactKind = "pressure"
	KindMask     ArtifactKind = "mask"
	KindManifest ArtifactKind = "manifest"
)

// UploadStatus tracks the remote copy of an artifact.
type UploadStatus string

// Upload states.
const (
	UploadPending  UploadStatus = "pending"
	UploadUploaded UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// Session is one capture-and-persist event.
type Session struct {
	ID           string        `json:"id"`
	Folder       string        `json:"folder"`
	CapturedAt   time.Time     `json:"captured_at"`
	CreatedAt    time.Time     `json:"created_at"`
	Artifacts    []Artifact    `json:"artifacts,omitempty"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

// Artifact is one file written for a session.
type Artifact struct {
	ID           int64        `json:"id"`
	SessionID    string       `json:"session_id"`
	Camera       int          `json:"camera"`
	Kind         ArtifactKind `json:"kind"`
	Path         string       `json:"path"`
	UploadStatus UploadStatus `json:"upload_status"`
	UploadError  string       `json:"upload_error,omitempty"`
	Attempts     int          `json:"attempts"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Measurement holds the foot metrics of one camera in a session.
type Measurement struct {
	SessionID        string  `json:"session_id"`
	Camera           int     `json:"camera"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Area             float64 `json:"area"`
	Perimeter        float64 `json:"perimeter"`
	Arch             string  `json:"arch"`
	Fascia           float64 `json:"fascia"`
	MetatarsalPixels int     `json:"metatarsal_pixels"`
}

// UploadSummary counts a session's artifacts per upload state.
type UploadSummary struct {
	Pending  int `json:"pending"`
	Uploaded int `json:"uploaded"`
	Failed   int `json:"failed"`
}

// Total returns the number of artifacts counted.
func (u UploadSummary) Total() int {
	return u.Pending + u.Uploaded + u.Failed
}

// SessionRepository handles session database operations.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns a SessionRepository for the store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts the session together with its artifacts and measurements in
// one transaction. Artifact IDs are filled in on success.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, folder, captured_at, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Folder, sess.CapturedAt, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}

	for i := range sess.Artifacts {
		a := &sess.Artifacts[i]
		a.SessionID = sess.ID
		if a.UploadStatus == "" {
			a.UploadStatus = UploadPending
		}
		a.UpdatedAt = sess.CreatedAt
		res, err := tx.Exec(
			`INSERT INTO artifacts (session_id, camera, kind, path, upload_status, upload_error, attempts, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.SessionID, a.Camera, a.Kind, a.Path, a.UploadStatus, a.UploadError, a.Attempts, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Path, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	for i := range sess.Measurements {
		m := &sess.Measurements[i]
		m.SessionID = sess.ID
		_, err := tx.Exec(
			`INSERT INTO measurements (session_id, camera, width, height, area, perimeter, arch, fascia, metatarsal_pixels)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.SessionID, m.Camera, m.Width, m.Height, m.Area, m.Perimeter, m.Arch, m.Fascia, m.MetatarsalPixels,
		)
		if err != nil {
			return fmt.Errorf("insert measurement for camera %d: %w", m.Camera, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a session with its artifacts and measurements.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	err := r.db.QueryRow(
		`SELECT id, folder, captured_at, created_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Folder, &sess.CapturedAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if sess.Artifacts, err = (&ArtifactRepository{db: r.db}).ListBySession(id); err != nil {
		return nil, err
	}
	if sess.Measurements, err = r.measurements(id); err != nil {
		return nil, err
	}
	return sess, nil
}

// Latest returns the most recently captured session.
func (r *SessionRepository) Latest() (*Session, error) {
	var id string
	err := r.db.QueryRow(
		`SELECT id FROM sessions ORDER BY captured_at DESC, created_at DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// List retrieves all sessions, newest first. Artifacts and measurements are
// not loaded.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, folder, captured_at, created_at FROM sessions ORDER BY captured_at DESC, created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.Folder, &s.CapturedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session; artifacts and measurements cascade.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
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

// UploadStatus counts the session's artifacts per upload state.
func (r *SessionRepository) UploadStatus(id string) (UploadSummary, error) {
	var summary UploadSummary

	var exists int
	err := r.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, ErrNotFound
	}
	if err != nil {
		return summary, err
	}

	rows, err := r.db.Query(
		`SELECT upload_status, COUNT(*) FROM artifacts WHERE session_id = ? GROUP BY upload_status`,
		id,
	)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var status UploadStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return summary, err
		}
		switch status {
		case UploadPending:
			summary.Pending = n
		case UploadUploaded:
			summary.Uploaded = n
		case UploadFailed:
			summary.Failed = n
		}
	}
	return summary, rows.Err()
}

func (r *SessionRepository) measurements(sessionID string) ([]Measurement, error) {
	rows, err := r.db.Query(
		`SELECT session_id, camera, width, height, area, perimeter, arch, fascia, metatarsal_pixels
		 FROM measurements WHERE session_id = ? ORDER BY camera`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.SessionID, &m.Camera, &m.Width, &m.Height, &m.Area, &m.Perimeter, &m.Arch, &m.Fascia, &m.MetatarsalPixels); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
