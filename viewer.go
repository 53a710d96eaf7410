package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/seqsense/pcgol/mat"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seqsense/splatview/cloud"
	"github.com/seqsense/splatview/frame"
)

type state int

const (
	stateIdle state = iota
	stateLoading
	stateReady
	stateLoadError
	stateDisposed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateLoading:
		return "loading"
	case stateReady:
		return "ready"
	case stateLoadError:
		return "error"
	case stateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

var (
	errViewerDisposed = errors.New("viewer is disposed")
	errEmptyCloud     = errors.New("cloud has no points")
)

// renderer owns the drawing context. The WebGL implementation is in
// renderer_js.go.
type renderer interface {
	Upload(c *cloud.Cloud) (scene, error)
	Resize(width, height int)
	Clear()
	Release() error
}

// scene is a cloud uploaded to the renderer.
type scene interface {
	Draw(view, projection mat.Mat4, pointSize float32)
	Release() error
}

// source locates a cloud. Name is used to guess the format when URL does
// not carry an extension, as with object URLs.
type source struct {
	URL  string
	Name string
}

type loader func(ctx context.Context, src source) (*cloud.Cloud, error)

type session struct {
	id     uint64
	src    source
	state  state
	err    error
	cancel context.CancelFunc

	points int
	norm   frame.Normalization
	home   frame.Camera
	scene  scene
	// cleanup runs on teardown, e.g. to revoke object URLs.
	cleanup []func() error
}

// viewer drives one session at a time on a shared renderer. All methods are
// safe to call from event callbacks and load goroutines.
type viewer struct {
	r       renderer
	load    loader
	opts    frame.Options
	logger  *zap.Logger
	onState func(state, string)

	mu        sync.Mutex
	cur       *session
	nextID    uint64
	disposed  bool
	view      *view
	keys      flyKeys
	width     int
	height    int
	pointSize float32
	flySpeed  float32
	dirty     bool
}

const (
	defaultPointSize = 1
	defaultFlySpeed  = 0.02
)

func newViewer(r renderer, load loader, opts frame.Options, logger *zap.Logger, onState func(state, string)) *viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onState == nil {
		onState = func(state, string) {}
	}
	return &viewer{
		r:         r,
		load:      load,
		opts:      opts,
		logger:    logger.With(zap.String("component", "viewer")),
		onState:   onState,
		view:      newView(frame.Home(0, opts)),
		keys:      flyKeys{},
		pointSize: defaultPointSize,
		flySpeed:  defaultFlySpeed,
	}
}

// Open tears down the current session and starts loading src. cleanup
// functions are run when the new session is torn down, even if loading
// fails.
func (v *viewer) Open(src source, cleanup ...func() error) error {
	s, ctx, err := v.begin(src, cleanup...)
	if err != nil {
		return err
	}
	go func() {
		c, err := v.load(ctx, src)
		v.complete(s, c, err)
	}()
	return nil
}

func (v *viewer) begin(src source, cleanup ...func() error) (*session, context.Context, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.disposed {
		return nil, nil, multierr.Append(errViewerDisposed, runCleanup(cleanup))
	}
	if v.cur != nil {
		if err := v.teardown(v.cur); err != nil {
			v.logger.Warn("failed to release previous session", zap.Error(err))
		}
	}

	v.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      v.nextID,
		src:     src,
		state:   stateLoading,
		cancel:  cancel,
		cleanup: cleanup,
	}
	v.cur = s
	v.logger.Info("loading cloud", zap.Uint64("session", s.id), zap.String("url", src.URL))
	v.notify(stateLoading, src.URL)
	return s, ctx, nil
}

// complete applies a finished load. It returns false when the result was
// dropped because s is no longer the live session.
func (v *viewer) complete(s *session, c *cloud.Cloud, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cur != s || s.state != stateLoading {
		v.logger.Debug("dropping stale load result", zap.Uint64("session", s.id))
		return false
	}
	if err == nil && c.Len() == 0 {
		err = errEmptyCloud
	}
	if err != nil {
		s.cancel()
		s.state = stateLoadError
		s.err = err
		v.logger.Warn("failed to load cloud", zap.Uint64("session", s.id), zap.Error(err))
		v.notify(stateLoadError, err.Error())
		return true
	}

	s.norm = frame.Normalize(c, v.opts)
	s.home = frame.Home(s.norm.Radius, v.opts)
	sc, err := v.r.Upload(c)
	if err != nil {
		s.cancel()
		s.state = stateLoadError
		s.err = fmt.Errorf("failed to upload cloud: %w", err)
		v.logger.Warn("failed to upload cloud", zap.Uint64("session", s.id), zap.Error(err))
		v.notify(stateLoadError, s.err.Error())
		return true
	}
	s.scene = sc
	s.points = c.Len()
	s.state = stateReady
	v.view.setHome(s.home)
	v.dirty = true

	v.logger.Info("cloud ready",
		zap.Uint64("session", s.id),
		zap.Int("points", c.Len()),
		zap.Bool("splat", c.IsSplat()),
		zap.Float32("extent", s.norm.Extent),
		zap.Float32("radius", s.norm.Radius),
	)
	v.notify(stateReady, fmt.Sprintf("%d points", c.Len()))
	return true
}

// teardown releases everything s holds. It can be called any number of
// times. v.mu must be held.
func (v *viewer) teardown(s *session) error {
	if s.state == stateDisposed {
		return nil
	}
	s.cancel()
	var err error
	if s.scene != nil {
		err = multierr.Append(err, s.scene.Release())
		s.scene = nil
	}
	err = multierr.Append(err, runCleanup(s.cleanup))
	s.cleanup = nil
	s.state = stateDisposed
	v.notify(stateDisposed, "")
	return err
}

// Fail moves the live session into the error state, e.g. after the drawing
// context was lost. The uploaded scene is dropped without release since it
// belongs to the lost context.
func (v *viewer) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.cur
	if v.disposed || s == nil || s.state == stateDisposed || s.state == stateLoadError {
		return
	}
	s.cancel()
	s.scene = nil
	s.state = stateLoadError
	s.err = err
	v.logger.Warn("session failed", zap.Uint64("session", s.id), zap.Error(err))
	v.notify(stateLoadError, err.Error())
}

func runCleanup(fns []func() error) error {
	var err error
	for _, fn := range fns {
		if fn != nil {
			err = multierr.Append(err, fn())
		}
	}
	return err
}

// Dispose stops the viewer and releases the session and the renderer.
// Subsequent calls return nil.
func (v *viewer) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.disposed {
		return nil
	}
	v.disposed = true
	var err error
	if v.cur != nil {
		err = multierr.Append(err, v.teardown(v.cur))
	}
	err = multierr.Append(err, v.r.Release())
	v.keys.releaseAll()
	return err
}

func (v *viewer) notify(s state, msg string) {
	v.onState(s, msg)
}

// State returns the state of the current session.
func (v *viewer) State() (state, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return stateDisposed, nil
	}
	if v.cur == nil {
		return stateIdle, nil
	}
	return v.cur.state, v.cur.err
}

// Reset moves the camera back to the home position of the loaded cloud.
func (v *viewer) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.reset()
	v.dirty = true
}

func (v *viewer) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if width == v.width && height == v.height {
		return
	}
	v.width, v.height = width, height
	if !v.disposed {
		v.r.Resize(width, height)
	}
	v.dirty = true
}

func (v *viewer) aspect() float32 {
	if v.width <= 0 || v.height <= 0 {
		return 1
	}
	return float32(v.width) / float32(v.height)
}

// Camera returns the current camera.
func (v *viewer) Camera() frame.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view.camera()
}

// Frame advances the controls by one tick and draws. It returns true while
// another frame is needed: damping still moving, a fly key held or a redraw
// requested.
func (v *viewer) Frame() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.disposed {
		return false
	}
	if v.keys.active() {
		f, r, u := v.keys.direction()
		v.view.fly(f, r, u, v.flySpeed)
	}
	moving := v.view.update()

	v.r.Clear()
	if s := v.cur; s != nil && s.state == stateReady && s.scene != nil {
		cam := v.view.camera()
		s.scene.Draw(cam.ViewMatrix(), cam.Projection(v.aspect()), v.pointSize)
	}
	v.dirty = false
	return moving || v.keys.active()
}

// NeedsFrame reports whether a frame should be scheduled.
func (v *viewer) NeedsFrame() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.disposed && (v.dirty || v.keys.active() || v.view.moving())
}

func (v *viewer) KeyDown(code string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if code == "Home" {
		v.view.reset()
		v.dirty = true
		return true
	}
	return v.keys.press(code)
}

func (v *viewer) KeyUp(code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys.release(code)
}

func (v *viewer) DragStart(x, y int, b dragButton) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.dragStart(x, y, b)
}

func (v *viewer) Drag(x, y int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.view.drag(x, y, v.height) {
		v.dirty = true
	}
}

func (v *viewer) DragEnd() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.dragEnd()
}

// Zoom applies normalized wheel steps. Positive zooms out.
func (v *viewer) Zoom(steps float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.zoom(steps)
	v.dirty = true
}
