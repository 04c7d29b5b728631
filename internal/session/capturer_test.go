package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/capture"
	"github.com/ayusman/podoscan/internal/store"
	"github.com/ayusman/podoscan/internal/upload"
	"github.com/ayusman/podoscan/internal/vision"
	"github.com/ayusman/podoscan/testdata"
)

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
}

type recorder struct {
	mu    sync.Mutex
	calls map[string]string
	fail  bool
}

func (r *recorder) Upload(_ context.Context, localPath, folder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]string{}
	}
	r.calls[localPath] = folder
	if r.fail {
		return errors.New("bucket unreachable")
	}
	return nil
}

func (r *recorder) snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.calls))
	for k, v := range r.calls {
		out[k] = v
	}
	return out
}

type fixture struct {
	capturer *Capturer
	sources  [2]*capture.MockSource
	frames   []*gocv.Mat
	dir      string
	runErr   chan error
}

func newFixture(t *testing.T, cfg Config, loop bool) *fixture {
	t.Helper()

	left := testdata.FootFrame(240, 320)
	right := testdata.DiskFrame(240, 320, image.Pt(160, 120), 60)
	t.Cleanup(func() { testdata.CloseAll(left, right) })

	f := &fixture{
		sources: [2]*capture.MockSource{
			capture.NewMockSource(0, []*gocv.Mat{left}, loop),
			capture.NewMockSource(1, []*gocv.Mat{right}, loop),
		},
		frames: []*gocv.Mat{left, right},
		dir:    t.TempDir(),
		runErr: make(chan error, 1),
	}

	cfg.Sources = [2]capture.Source{f.sources[0], f.sources[1]}
	cfg.CaptureDir = f.dir
	cfg.Analyzer = vision.DefaultAnalyzerConfig()
	if cfg.FPS == 0 {
		cfg.FPS = 50
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.capturer = c
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	go func() { f.runErr <- f.capturer.Run(context.Background()) }()
	t.Cleanup(func() {
		f.capturer.Quit()
		<-f.capturer.Done()
		f.capturer.WaitUploads()
	})
	waitFor(t, func() bool { return f.capturer.State() == StateRunning })
}

func (f *fixture) firstCycle(t *testing.T) View {
	t.Helper()
	select {
	case v := <-f.capturer.Views():
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no view published")
		return View{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_RequiresSources(t *testing.T) {
	if _, err := New(Config{CaptureDir: t.TempDir()}); err == nil {
		t.Error("New() without sources should fail")
	}
}

func TestCapture_NotRunning(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{}, true)
	if _, err := f.capturer.Capture(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Capture() before Run error = %v, want ErrNotRunning", err)
	}
}

func TestRun_OpenFailureNeverRuns(t *testing.T) {
	skipShort(t)

	tests := []struct {
		name   string
		failed int
	}{
		{name: "first camera", failed: 0},
		{name: "second camera", failed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{}, true)
			f.sources[tt.failed].FailOpen(errors.New("device busy"))

			err := f.capturer.Run(context.Background())
			if !errors.Is(err, ErrSourceOpen) {
				t.Fatalf("Run() error = %v, want ErrSourceOpen", err)
			}
			if f.capturer.State() != StateStopped {
				t.Errorf("State() = %v, want stopped", f.capturer.State())
			}

			for i, src := range f.sources {
				opens, closes, reads := src.Calls()
				if reads != 0 {
					t.Errorf("camera %d reads = %d, want 0", i+1, reads)
				}
				if src.IsOpen() {
					t.Errorf("camera %d left open", i+1)
				}
				if i < tt.failed && closes != 1 {
					t.Errorf("camera %d closes = %d, want 1", i+1, closes)
				}
				if i > tt.failed && opens != 0 {
					t.Errorf("camera %d opens = %d, want 0", i+1, opens)
				}
			}

			if err := f.capturer.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
				t.Errorf("second Run() error = %v, want ErrAlreadyStarted", err)
			}
		})
	}
}

func TestRun_ReadFailureReleasesSources(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{}, false)

	err := f.capturer.Run(context.Background())
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("Run() error = %v, want ErrSourceRead", err)
	}
	for i, src := range f.sources {
		if _, closes, _ := src.Calls(); closes != 1 {
			t.Errorf("camera %d closes = %d, want 1", i+1, closes)
		}
	}
	if f.capturer.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", f.capturer.State())
	}
}

func TestRun_QuitReleasesSources(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{}, true)
	f.start(t)
	f.firstCycle(t)

	f.capturer.Quit()
	f.capturer.Quit()

	select {
	case err := <-f.runErr:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	for i, src := range f.sources {
		if src.IsOpen() {
			t.Errorf("camera %d left open", i+1)
		}
	}
	if _, err := f.capturer.Capture(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Capture() after quit error = %v, want ErrNotRunning", err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{}, true)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { f.runErr <- f.capturer.Run(ctx) }()
	waitFor(t, func() bool { return f.capturer.State() == StateRunning })

	cancel()
	if err := <-f.runErr; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.sources[0].IsOpen() || f.sources[1].IsOpen() {
		t.Error("sources left open after cancel")
	}
}

func TestCapture_NothingToSave(t *testing.T) {
	skipShort(t)

	up := &recorder{}
	f := newFixture(t, Config{FPS: 1, Uploader: up}, true)
	f.start(t)

	out, err := f.capturer.Capture(context.Background())
	if !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("Capture() error = %v, want ErrNothingToSave", err)
	}
	if out != nil {
		t.Errorf("Capture() outcome = %+v, want nil", out)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("capture dir has %d entries, want 0", len(entries))
	}
	f.capturer.WaitUploads()
	if n := len(up.snapshot()); n != 0 {
		t.Errorf("uploads = %d, want 0", n)
	}
}

func TestCapture_PersistsAndUploads(t *testing.T) {
	skipShort(t)

	st, err := store.New(filepath.Join(t.TempDir(), "podoscan.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	at := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	up := &recorder{}
	f := newFixture(t, Config{
		Uploader: up,
		Store:    st,
		Clock:    func() time.Time { return at },
	}, true)
	f.start(t)

	v := f.firstCycle(t)
	if len(v.Overlay) == 0 || len(v.Pressure) == 0 {
		t.Error("view carries no rendered images")
	}

	out, err := f.capturer.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if out.ID != "20240301-093015" {
		t.Errorf("ID = %q", out.ID)
	}
	if out.Folder != "patient_20240301-093015" {
		t.Errorf("Folder = %q", out.Folder)
	}
	if len(out.Artifacts) != 9 {
		t.Fatalf("artifacts = %d, want 8 images and a manifest", len(out.Artifacts))
	}

	wantNames := map[string]bool{}
	for _, cam := range []int{1, 2} {
		for _, kind := range []store.ArtifactKind{store.KindOriginal, store.KindContours, store.KindPressure, store.KindMask} {
			wantNames[ArtifactName(cam, kind, out.ID)] = true
		}
	}
	wantNames[ManifestName] = true
	for _, a := range out.Artifacts {
		name := filepath.Base(a.Path)
		if !wantNames[name] {
			t.Errorf("unexpected artifact %s", name)
		}
		if _, err := os.Stat(a.Path); err != nil {
			t.Errorf("artifact %s not on disk: %v", name, err)
		}
	}

	f.capturer.WaitUploads()
	calls := up.snapshot()
	if len(calls) != 9 {
		t.Fatalf("uploads = %d, want 9", len(calls))
	}
	for path, folder := range calls {
		if folder != out.Folder {
			t.Errorf("upload %s folder = %q, want %q", path, folder, out.Folder)
		}
	}

	summary, err := st.Sessions().UploadStatus(out.ID)
	if err != nil {
		t.Fatalf("UploadStatus() error = %v", err)
	}
	if summary.Uploaded != 9 || summary.Pending != 0 || summary.Failed != 0 {
		t.Errorf("UploadStatus() = %+v, want all uploaded", summary)
	}

	m, err := ReadManifest(filepath.Join(out.Dir, ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.SessionID != out.ID || m.Folder != out.Folder || len(m.Cameras) != 2 {
		t.Errorf("manifest = %+v", m)
	}
	if !m.CapturedAt.Equal(at) {
		t.Errorf("manifest CapturedAt = %v, want %v", m.CapturedAt, at)
	}
	if m.Cameras[1].Measurement == nil {
		t.Error("camera 2 shows a disk and should carry a measurement")
	}

	if last := f.capturer.Last(); last == nil || last.ID != out.ID {
		t.Errorf("Last() = %+v", last)
	}
	if f.capturer.State() != StateRunning {
		t.Errorf("State() after capture = %v, want running", f.capturer.State())
	}
}

func TestCapture_OriginalRoundTrip(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{}, true)
	f.start(t)
	f.firstCycle(t)

	out, err := f.capturer.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	for i, frame := range f.frames {
		path := filepath.Join(out.Dir, ArtifactName(i+1, store.KindOriginal, out.ID))
		got := gocv.IMRead(path, gocv.IMReadUnchanged)
		if got.Empty() {
			t.Fatalf("camera %d: could not read %s", i+1, path)
		}
		if !bytes.Equal(got.ToBytes(), frame.ToBytes()) {
			t.Errorf("camera %d: re-read original differs from the captured frame", i+1)
		}
		got.Close()
	}
}

func TestCapture_SameSecondGetsSuffix(t *testing.T) {
	skipShort(t)

	at := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	f := newFixture(t, Config{Clock: func() time.Time { return at }}, true)
	f.start(t)
	f.firstCycle(t)

	first, err := f.capturer.Capture(context.Background())
	if err != nil {
		t.Fatalf("first Capture() error = %v", err)
	}
	second, err := f.capturer.Capture(context.Background())
	if err != nil {
		t.Fatalf("second Capture() error = %v", err)
	}

	if first.Folder == second.Folder {
		t.Fatalf("both captures share folder %s", first.Folder)
	}
	if second.ID != "20240301-093015-2" {
		t.Errorf("second ID = %q, want 20240301-093015-2", second.ID)
	}
	if _, err := os.Stat(filepath.Join(first.Dir, ArtifactName(1, store.KindMask, first.ID))); err != nil {
		t.Errorf("first session was disturbed: %v", err)
	}
}

func TestCapture_UploadFailureIsRecorded(t *testing.T) {
	skipShort(t)

	st, err := store.New(filepath.Join(t.TempDir(), "podoscan.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	up := upload.NewRetrying(&recorder{fail: true}, 2, 0, nil)
	f := newFixture(t, Config{Uploader: up, Store: st}, true)
	f.start(t)
	f.firstCycle(t)

	out, err := f.capturer.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	f.capturer.WaitUploads()

	if f.capturer.State() != StateRunning {
		t.Errorf("State() = %v, upload failures must not stop the loop", f.capturer.State())
	}

	arts, err := st.Artifacts().ListBySession(out.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range arts {
		if a.UploadStatus != store.UploadFailed || a.Attempts != 2 {
			t.Errorf("artifact %s = %s after %d attempts, want failed after 2", a.Path, a.UploadStatus, a.Attempts)
		}
	}
}

func TestViews_DropOldest(t *testing.T) {
	skipShort(t)

	f := newFixture(t, Config{ViewBuffer: 2}, true)
	f.start(t)

	waitFor(t, func() bool {
		_, _, reads := f.sources[0].Calls()
		return reads >= 5
	})
	f.capturer.Quit()
	<-f.capturer.Done()

	var views []View
	for len(f.capturer.Views()) > 0 {
		views = append(views, <-f.capturer.Views())
	}
	if len(views) != 2 {
		t.Fatalf("queued views = %d, want 2", len(views))
	}
	if views[0].CycleSeq < 2 {
		t.Errorf("oldest queued view is from cycle %d; stale views should be dropped", views[0].CycleSeq)
	}
}

func TestArtifactName(t *testing.T) {
	got := ArtifactName(2, store.KindPressure, "20240301-093015")
	if got != "foot_cam2_pressure_20240301-093015.png" {
		t.Errorf("ArtifactName() = %q", got)
	}
}

func TestClaimFolder(t *testing.T) {
	root := filepath.Join(t.TempDir(), "captures")

	for i, want := range []string{"20240301-093015", "20240301-093015-2", "20240301-093015-3"} {
		id, dir, err := claimFolder(root, "patient", "20240301-093015")
		if err != nil {
			t.Fatalf("claimFolder() #%d error = %v", i, err)
		}
		if id != want {
			t.Errorf("claimFolder() #%d id = %q, want %q", i, id, want)
		}
		if filepath.Base(dir) != "patient_"+want {
			t.Errorf("claimFolder() #%d dir = %q", i, dir)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCapturing: "capturing",
		StateStopped:   "stopped",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
