package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seqsense/pcgol/mat"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/seqsense/splatview/cloud"
	"github.com/seqsense/splatview/frame"
)

type fakeScene struct {
	points   int
	draws    int
	released int
}

func (s *fakeScene) Draw(view, projection mat.Mat4, pointSize float32) {
	s.draws++
}

func (s *fakeScene) Release() error {
	s.released++
	return nil
}

type fakeRenderer struct {
	uploadErr  error
	releaseErr error

	uploaded []*cloud.Cloud
	scenes   []*fakeScene
	clears   int
	released int
	width    int
	height   int
}

func (r *fakeRenderer) Upload(c *cloud.Cloud) (scene, error) {
	if r.uploadErr != nil {
		return nil, r.uploadErr
	}
	r.uploaded = append(r.uploaded, c)
	s := &fakeScene{points: c.Len()}
	r.scenes = append(r.scenes, s)
	return s, nil
}

func (r *fakeRenderer) Resize(width, height int) {
	r.width, r.height = width, height
}

func (r *fakeRenderer) Clear() {
	r.clears++
}

func (r *fakeRenderer) Release() error {
	r.released++
	return r.releaseErr
}

type stateLog struct {
	mu     sync.Mutex
	states []state
	ch     chan state
}

func (l *stateLog) record(s state, msg string) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
	if l.ch != nil {
		l.ch <- s
	}
}

func (l *stateLog) get() []state {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]state(nil), l.states...)
}

func testCloud() *cloud.Cloud {
	return &cloud.Cloud{
		Positions: []mat.Vec3{{10, 10, 10}, {14, 12, 11}},
		Format:    cloud.FormatPLY,
	}
}

func newTestViewer(t *testing.T, r *fakeRenderer, load loader) (*viewer, *stateLog) {
	t.Helper()
	log := &stateLog{}
	if load == nil {
		load = func(ctx context.Context, src source) (*cloud.Cloud, error) {
			return testCloud(), nil
		}
	}
	v := newViewer(r, load, frame.DefaultOptions(), zap.NewNop(), log.record)
	return v, log
}

func equalStates(a, b []state) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestViewer_Load(t *testing.T) {
	r := &fakeRenderer{}
	v, log := newTestViewer(t, r, nil)

	s, _, err := v.begin(source{URL: "https://example.com/a.ply"})
	if err != nil {
		t.Fatal(err)
	}
	if st, _ := v.State(); st != stateLoading {
		t.Errorf("Expected state: %s, got: %s", stateLoading, st)
	}
	if !v.complete(s, testCloud(), nil) {
		t.Fatal("Result of the live session must be applied")
	}
	if st, err := v.State(); st != stateReady || err != nil {
		t.Errorf("Expected state: %s, got: %s (%v)", stateReady, st, err)
	}
	if expected := []state{stateLoading, stateReady}; !equalStates(expected, log.get()) {
		t.Errorf("Expected states: %v, got: %v", expected, log.get())
	}

	if len(r.uploaded) != 1 {
		t.Fatalf("Expected 1 upload, got: %d", len(r.uploaded))
	}
	b, _ := frame.Bounds(r.uploaded[0].Positions)
	if e := b.MaxExtent(); e < 1.999 || e > 2.001 {
		t.Errorf("Uploaded cloud must be normalized to extent 2, got: %f", e)
	}
	if c := b.Center(); c.Norm() > 1e-5 {
		t.Errorf("Uploaded cloud must be centered, got: %v", c)
	}

	home := frame.Home(1, frame.DefaultOptions())
	if d := v.Camera().Position.Sub(home.Position).Norm(); d > 1e-4 {
		t.Errorf("Camera must start at home %v, got: %v", home.Position, v.Camera().Position)
	}
}

func TestViewer_LoadError(t *testing.T) {
	errFetch := errors.New("fetch failed")
	testCases := map[string]struct {
		cloud     *cloud.Cloud
		err       error
		uploadErr error
		expected  error
	}{
		"FetchError":  {err: errFetch, expected: errFetch},
		"EmptyCloud":  {cloud: &cloud.Cloud{}, expected: errEmptyCloud},
		"UploadError": {cloud: testCloud(), uploadErr: errFetch, expected: errFetch},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			r := &fakeRenderer{uploadErr: tt.uploadErr}
			log := &stateLog{}
			core, logs := observer.New(zap.WarnLevel)
			v := newViewer(r, nil, frame.DefaultOptions(), zap.New(core), log.record)

			s, ctx, err := v.begin(source{URL: "a.ply"})
			if err != nil {
				t.Fatal(err)
			}
			v.complete(s, tt.cloud, tt.err)

			if ctx.Err() == nil {
				t.Error("Load context must be cancelled on failure")
			}
			if n := logs.Len(); n != 1 {
				t.Errorf("Expected 1 warning, got: %d", n)
			}

			st, err := v.State()
			if st != stateLoadError {
				t.Errorf("Expected state: %s, got: %s", stateLoadError, st)
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected error: %v, got: %v", tt.expected, err)
			}
			if expected := []state{stateLoading, stateLoadError}; !equalStates(expected, log.get()) {
				t.Errorf("Expected states: %v, got: %v", expected, log.get())
			}
			if v.Frame() {
				t.Error("Errored session must not request frames")
			}
		})
	}
}

func TestViewer_StaleResult(t *testing.T) {
	r := &fakeRenderer{}
	v, _ := newTestViewer(t, r, nil)

	s1, ctx1, err := v.begin(source{URL: "a.ply"})
	if err != nil {
		t.Fatal(err)
	}
	s2, _, err := v.begin(source{URL: "b.ply"})
	if err != nil {
		t.Fatal(err)
	}
	if ctx1.Err() == nil {
		t.Error("Load of the replaced session must be canceled")
	}
	if v.complete(s1, testCloud(), nil) {
		t.Error("Result of a replaced session must be dropped")
	}
	if len(r.uploaded) != 0 {
		t.Errorf("Stale result must not be uploaded, got %d uploads", len(r.uploaded))
	}
	if !v.complete(s2, testCloud(), nil) {
		t.Error("Result of the live session must be applied")
	}
	if v.complete(s2, testCloud(), nil) {
		t.Error("Result must be applied only once")
	}
	if len(r.uploaded) != 1 {
		t.Errorf("Expected 1 upload, got: %d", len(r.uploaded))
	}
}

func TestViewer_SwitchReleasesPrevious(t *testing.T) {
	r := &fakeRenderer{}
	v, _ := newTestViewer(t, r, nil)

	revoked := 0
	s1, _, _ := v.begin(source{URL: "blob:a", Name: "a.ply"}, func() error {
		revoked++
		return nil
	})
	v.complete(s1, testCloud(), nil)

	s2, _, _ := v.begin(source{URL: "b.ply"})
	if r.scenes[0].released != 1 {
		t.Errorf("Previous scene must be released once, got: %d", r.scenes[0].released)
	}
	if revoked != 1 {
		t.Errorf("Previous object URL must be revoked once, got: %d", revoked)
	}
	v.complete(s2, testCloud(), nil)

	if err := v.Dispose(); err != nil {
		t.Fatal(err)
	}
	if r.scenes[0].released != 1 || r.scenes[1].released != 1 {
		t.Errorf("Each scene must be released exactly once, got: %d, %d", r.scenes[0].released, r.scenes[1].released)
	}
	if revoked != 1 {
		t.Errorf("Cleanup must run exactly once, got: %d", revoked)
	}
}

func TestViewer_Dispose(t *testing.T) {
	r := &fakeRenderer{}
	v, log := newTestViewer(t, r, nil)

	cleaned := 0
	cleanup := func() error {
		cleaned++
		return nil
	}
	s, _, _ := v.begin(source{URL: "a.ply"}, cleanup)
	v.complete(s, testCloud(), nil)

	if err := v.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := v.Dispose(); err != nil {
		t.Errorf("Second dispose must be a no-op, got: %v", err)
	}
	if r.released != 1 {
		t.Errorf("Renderer must be released once, got: %d", r.released)
	}
	if r.scenes[0].released != 1 {
		t.Errorf("Scene must be released once, got: %d", r.scenes[0].released)
	}
	if cleaned != 1 {
		t.Errorf("Cleanup must run once, got: %d", cleaned)
	}
	if st, _ := v.State(); st != stateDisposed {
		t.Errorf("Expected state: %s, got: %s", stateDisposed, st)
	}
	if expected := []state{stateLoading, stateReady, stateDisposed}; !equalStates(expected, log.get()) {
		t.Errorf("Expected states: %v, got: %v", expected, log.get())
	}

	if v.complete(s, testCloud(), nil) {
		t.Error("Result after dispose must be dropped")
	}
	if err := v.Open(source{URL: "b.ply"}, cleanup); !errors.Is(err, errViewerDisposed) {
		t.Errorf("Expected error: %v, got: %v", errViewerDisposed, err)
	}
	if cleaned != 2 {
		t.Error("Cleanup passed to a disposed viewer must run immediately")
	}
	if v.Frame() || v.NeedsFrame() {
		t.Error("Disposed viewer must not request frames")
	}
}

func TestViewer_DisposeError(t *testing.T) {
	errRelease := errors.New("context lost")
	r := &fakeRenderer{releaseErr: errRelease}
	v, _ := newTestViewer(t, r, nil)

	s, _, _ := v.begin(source{URL: "a.ply"}, func() error { return errors.New("revoke failed") })
	v.complete(s, testCloud(), nil)

	err := v.Dispose()
	if !errors.Is(err, errRelease) {
		t.Errorf("Expected error: %v, got: %v", errRelease, err)
	}
	if r.scenes[0].released != 1 {
		t.Error("Scene must be released even if other releases fail")
	}
}

func TestViewer_Open(t *testing.T) {
	started := make(chan context.Context, 2)
	load := func(ctx context.Context, src source) (*cloud.Cloud, error) {
		started <- ctx
		if src.URL == "slow.ply" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return testCloud(), nil
	}
	r := &fakeRenderer{}
	v, log := newTestViewer(t, r, load)
	log.ch = make(chan state, 8)

	if err := v.Open(source{URL: "slow.ply"}); err != nil {
		t.Fatal(err)
	}
	slow := <-started
	if err := v.Open(source{URL: "fast.ply"}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("Replaced load must be canceled")
	}
	<-started

	timeout := time.After(time.Second)
	for {
		select {
		case s := <-log.ch:
			if s == stateLoadError {
				t.Fatal("Canceled load must not surface as an error")
			}
			if s != stateReady {
				continue
			}
		case <-timeout:
			t.Fatal("Timeout")
		}
		break
	}
	if len(r.uploaded) != 1 {
		t.Errorf("Expected 1 upload, got: %d", len(r.uploaded))
	}
}

func TestViewer_Frame(t *testing.T) {
	r := &fakeRenderer{}
	v, _ := newTestViewer(t, r, nil)

	if v.NeedsFrame() {
		t.Error("Idle viewer must not request frames")
	}
	v.Resize(800, 600)
	if r.width != 800 || r.height != 600 {
		t.Errorf("Renderer must be resized, got: %dx%d", r.width, r.height)
	}

	s, _, _ := v.begin(source{URL: "a.ply"})
	v.complete(s, testCloud(), nil)
	if !v.NeedsFrame() {
		t.Error("Loaded cloud must request a frame")
	}
	if v.Frame() {
		t.Error("Still camera must not request another frame")
	}
	if r.scenes[0].draws != 1 {
		t.Errorf("Expected 1 draw, got: %d", r.scenes[0].draws)
	}
	if v.NeedsFrame() {
		t.Error("Frame must not be requested without change")
	}

	before := v.Camera()
	if !v.KeyDown("KeyW") {
		t.Fatal("KeyW must be a fly key")
	}
	if !v.NeedsFrame() || !v.Frame() {
		t.Error("Held fly key must keep requesting frames")
	}
	v.KeyUp("KeyW")
	if v.Frame() {
		t.Error("Frame must stop after the fly key is released")
	}
	after := v.Camera()
	if after.Position.Sub(before.Position).Norm() == 0 {
		t.Error("Fly key must move the camera")
	}

	v.DragStart(100, 100, dragRotate)
	v.Drag(150, 100)
	v.DragEnd()
	if !v.NeedsFrame() {
		t.Error("Drag must request a frame")
	}
	n := 0
	for v.Frame() {
		n++
		if n > 10000 {
			t.Fatal("Damping must settle")
		}
	}
	if n == 0 {
		t.Error("Damped rotation must span several frames")
	}

	if !v.KeyDown("Home") {
		t.Error("Home key must be handled")
	}
	home := frame.Home(1, frame.DefaultOptions())
	if d := v.Camera().Position.Sub(home.Position).Norm(); d > 1e-4 {
		t.Errorf("Home key must reset the camera, got: %v", v.Camera().Position)
	}
	if v.KeyDown("KeyZ") {
		t.Error("KeyZ must not be handled")
	}
}

func TestViewer_Fail(t *testing.T) {
	errLost := errors.New("context lost")
	r := &fakeRenderer{}
	v, log := newTestViewer(t, r, nil)

	v.Fail(errLost)
	if len(log.get()) != 0 {
		t.Error("Fail without a session must be ignored")
	}

	revoked := 0
	s, _, _ := v.begin(source{URL: "a.ply"}, func() error {
		revoked++
		return nil
	})
	v.complete(s, testCloud(), nil)
	v.Fail(errLost)

	st, err := v.State()
	if st != stateLoadError || !errors.Is(err, errLost) {
		t.Errorf("Expected state: %s (%v), got: %s (%v)", stateLoadError, errLost, st, err)
	}
	v.Frame()
	if r.scenes[0].draws != 0 {
		t.Error("Failed session must not draw")
	}
	if err := v.Dispose(); err != nil {
		t.Fatal(err)
	}
	if r.scenes[0].released != 0 {
		t.Error("Scene of a lost context must not be released")
	}
	if revoked != 1 {
		t.Errorf("Cleanup must still run on dispose, got: %d", revoked)
	}
	if expected := []state{stateLoading, stateReady, stateLoadError, stateDisposed}; !equalStates(expected, log.get()) {
		t.Errorf("Expected states: %v, got: %v", expected, log.get())
	}
}
