package session

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ayusman/podoscan/internal/store"
)

// ManifestVersion is written into every manifest.
const ManifestVersion = 1

// Manifest describes a persisted session next to its images.
type Manifest struct {
	Version    int              `cbor:"version"`
	SessionID  string           `cbor:"session_id"`
	Folder     string           `cbor:"folder"`
	CapturedAt time.Time        `cbor:"captured_at"`
	RunID      string           `cbor:"run_id"`
	Note       string           `cbor:"note,omitempty"`
	Cameras    []CameraManifest `cbor:"cameras"`
}

// CameraManifest lists one camera's files and, when a foot was found, its
// measurement.
type CameraManifest struct {
	Camera           int                `cbor:"camera"`
	Files            map[string]string  `cbor:"files"`
	Measurement      *store.Measurement `cbor:"measurement,omitempty"`
	MetatarsalPixels int                `cbor:"metatarsal_pixels"`
}

var manifestEnc = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// WriteManifest encodes m to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := manifestEnc.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
