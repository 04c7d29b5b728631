package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/metrics"
	"github.com/ayusman/podoscan/internal/store"
	"github.com/ayusman/podoscan/internal/vision"
)

// IDLayout formats session identifiers from the capture time.
const IDLayout = "20060102-150405"

// ManifestName is the file name of the session manifest.
const ManifestName = "manifest.cbor"

// Outcome describes a persisted session.
type Outcome struct {
	ID           string              `json:"id"`
	Folder       string              `json:"folder"`
	Dir          string              `json:"dir"`
	CapturedAt   time.Time           `json:"captured_at"`
	Artifacts    []store.Artifact    `json:"artifacts"`
	Measurements []store.Measurement `json:"measurements"`
}

// ArtifactName returns the file name of one camera's artifact.
func ArtifactName(camera int, kind store.ArtifactKind, id string) string {
	return fmt.Sprintf("foot_cam%d_%s_%s.png", camera, kind, id)
}

// persist writes the retained frame pair as a new session. It runs on the loop
// goroutine between cycles.
func (c *Capturer) persist(ctx context.Context) (*Outcome, error) {
	if c.latest[0] == nil || c.latest[1] == nil {
		metrics.CapturesTotal.WithLabelValues("nothing_to_save").Inc()
		return nil, ErrNothingToSave
	}

	c.setState(StateCapturing)
	defer c.setState(StateRunning)

	ctx, span := otel.Tracer("session").Start(ctx, "Capturer.Capture")
	defer span.End()

	capturedAt := c.clock()
	id, dir, err := claimFolder(c.captureDir, c.prefix, capturedAt.Format(IDLayout))
	if err != nil {
		metrics.CapturesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return nil, err
	}
	folder := filepath.Base(dir)
	span.SetAttributes(attribute.String("session.id", id), attribute.String("session.folder", folder))
	log := c.logger.With(zap.String("session", id), zap.String("folder", folder))

	out := &Outcome{ID: id, Folder: folder, Dir: dir, CapturedAt: capturedAt}
	if err := c.writeArtifacts(out); err != nil {
		os.RemoveAll(dir)
		metrics.CapturesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		log.Error("failed to persist session", zap.Error(err))
		return nil, err
	}

	if c.store != nil {
		rec := &store.Session{
			ID:           out.ID,
			Folder:       out.Folder,
			CapturedAt:   out.CapturedAt,
			Artifacts:    out.Artifacts,
			Measurements: out.Measurements,
		}
		if err := c.store.Sessions().Create(rec); err != nil {
			log.Error("failed to record session", zap.Error(err))
		}
	}

	c.mu.Lock()
	c.last = out
	c.mu.Unlock()

	metrics.CapturesTotal.WithLabelValues("saved").Inc()
	log.Info("session persisted", zap.Int("artifacts", len(out.Artifacts)), zap.String("dir", dir))

	c.dispatchUploads(ctx, out.Folder, out.Artifacts)
	return out, nil
}

func (c *Capturer) writeArtifacts(out *Outcome) error {
	m := Manifest{
		Version:    ManifestVersion,
		SessionID:  out.ID,
		Folder:     out.Folder,
		CapturedAt: out.CapturedAt,
		RunID:      c.runID,
		Note:       vision.PressureCaption,
	}

	for i, a := range c.latest {
		camera := i + 1
		cm := CameraManifest{Camera: camera, Files: map[string]string{}}

		images := []struct {
			kind store.ArtifactKind
			mat  gocv.Mat
		}{
			{store.KindOriginal, a.Original},
			{store.KindContours, a.Overlay},
			{store.KindPressure, a.Pressure.Color},
			{store.KindMask, a.Mask},
		}
		for _, img := range images {
			name := ArtifactName(camera, img.kind, out.ID)
			path := filepath.Join(out.Dir, name)
			if ok := gocv.IMWrite(path, img.mat); !ok {
				return fmt.Errorf("write %s: encoder rejected image", path)
			}
			out.Artifacts = append(out.Artifacts, store.Artifact{Camera: camera, Kind: img.kind, Path: path, UploadStatus: store.UploadPending})
			cm.Files[string(img.kind)] = name
		}

		cm.MetatarsalPixels = a.Load.HighLoadPixels
		if a.Found() {
			rec := store.Measurement{
				Camera:           camera,
				Width:            a.Measurement.Width,
				Height:           a.Measurement.Height,
				Area:             a.Measurement.Area,
				Perimeter:        a.Measurement.Perimeter,
				Arch:             string(a.Arch.Category),
				Fascia:           *a.Fascia,
				MetatarsalPixels: a.Load.HighLoadPixels,
			}
			out.Measurements = append(out.Measurements, rec)
			cm.Measurement = &rec
		}
		m.Cameras = append(m.Cameras, cm)
	}

	path := filepath.Join(out.Dir, ManifestName)
	if err := WriteManifest(path, &m); err != nil {
		return err
	}
	out.Artifacts = append(out.Artifacts, store.Artifact{Kind: store.KindManifest, Path: path, UploadStatus: store.UploadPending})
	return nil
}

// claimFolder creates "<prefix>_<stamp>" under root. When that folder already
// exists the stamp gets a "-2", "-3", ... suffix. It returns the session id
// (stamp plus any suffix) and the created directory.
func claimFolder(root, prefix, stamp string) (string, string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", "", fmt.Errorf("create capture dir: %w", err)
	}

	id := stamp
	for n := 2; ; n++ {
		dir := filepath.Join(root, prefix+"_"+id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("create session folder: %w", err)
		}
		id = stamp + "-" + strconv.Itoa(n)
	}
}
