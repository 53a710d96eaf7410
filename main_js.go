package main

import (
	"errors"
	"syscall/js"

	webgl "github.com/seqsense/webgl-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seqsense/splatview/blob"
	"github.com/seqsense/splatview/frame"
)

const stateQueueSize = 16

type loadRequest struct {
	src     source
	cleanup []func() error
}

type consoleRequest struct {
	line            string
	resolve, reject js.Value
}

type stateEvent struct {
	state state
	msg   string
}

// pageConfig is read from window.splatviewConfig.
type pageConfig struct {
	canvas   string
	url      string
	logLevel string
}

func readPageConfig() pageConfig {
	c := pageConfig{canvas: "splatview", logLevel: "info"}
	cfg := js.Global().Get("splatviewConfig")
	if cfg.Type() != js.TypeObject {
		return c
	}
	if v := cfg.Get("canvas"); v.Type() == js.TypeString {
		c.canvas = v.String()
	}
	if v := cfg.Get("url"); v.Type() == js.TypeString {
		c.url = v.String()
	}
	if v := cfg.Get("logLevel"); v.Type() == js.TypeString {
		c.logLevel = v.String()
	}
	return c
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stdout"}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(l)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	pc := readPageConfig()
	logger := newLogger(pc.logLevel)
	defer func() { _ = logger.Sync() }()

	// State changes are delivered from their own goroutine so page handlers
	// may call back into the API.
	chState := make(chan stateEvent, stateQueueSize)
	go func() {
		for e := range chState {
			cb := js.Global().Get("onSplatviewState")
			if cb.Type() == js.TypeFunction {
				cb.Invoke(e.state.String(), e.msg)
			}
		}
	}()
	onState := func(s state, msg string) {
		chState <- stateEvent{state: s, msg: msg}
	}

	canvas := js.Global().Get("document").Call("getElementById", pc.canvas)
	if !canvas.Truthy() {
		logger.Error("canvas not found", zap.String("id", pc.canvas))
		onState(stateLoadError, "canvas not found")
		select {}
	}
	gl, err := webgl.New(canvas)
	if err != nil {
		logger.Error("failed to initialize WebGL", zap.Error(err))
		onState(stateLoadError, err.Error())
		select {}
	}
	logRendererInfo(gl, logger)

	r, err := newRenderer(gl)
	if err != nil {
		logger.Error("failed to initialize renderer", zap.Error(err))
		onState(stateLoadError, err.Error())
		select {}
	}

	v := newViewer(r, fetchCloud, frame.DefaultOptions(), logger, onState)
	con := &console{v: v}
	g := newGesture(v)
	cg := &clickGuard{}
	wz := &wheelZoom{}

	chLoad := make(chan loadRequest)
	chReset := make(chan struct{})
	chDispose := make(chan struct{})
	chConsole := make(chan consoleRequest)

	api := map[string]interface{}{
		"load": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			if len(args) < 1 || args[0].Type() != js.TypeString {
				return errorToJS(errors.New("load requires a URL"))
			}
			req := loadRequest{src: source{URL: args[0].String()}}
			go func() { chLoad <- req }()
			return nil
		}),
		"loadFile": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			if len(args) < 1 {
				return errorToJS(errors.New("loadFile requires a File"))
			}
			b, err := blob.JS(args[0])
			if err != nil {
				return errorToJS(err)
			}
			url, revoke := b.ObjectURL()
			req := loadRequest{
				src:     source{URL: url, Name: b.Name()},
				cleanup: []func() error{revoke},
			}
			go func() { chLoad <- req }()
			return nil
		}),
		"reset": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			go func() { chReset <- struct{}{} }()
			return nil
		}),
		"dispose": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			go func() { chDispose <- struct{}{} }()
			return nil
		}),
		"state": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			s, _ := v.State()
			return s.String()
		}),
		"console": js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			line := ""
			if len(args) > 0 {
				line = args[0].String()
			}
			var exec js.Func
			exec = js.FuncOf(func(this js.Value, pargs []js.Value) interface{} {
				exec.Release()
				req := consoleRequest{line: line, resolve: pargs[0], reject: pargs[1]}
				go func() { chConsole <- req }()
				return nil
			})
			return js.Global().Get("Promise").New(exec)
		}),
	}
	js.Global().Set("splatview", js.ValueOf(api))

	// webgl-go cannot remove canvas listeners, so they stay registered and
	// drop events once detached.
	var ls listeners

	chWheel := make(chan webgl.WheelEvent)
	gl.Canvas.OnWheel(func(e webgl.WheelEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
		chWheel <- e
	})
	chClick := make(chan webgl.MouseEvent)
	gl.Canvas.OnClick(func(e webgl.MouseEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
		chClick <- e
	})
	gl.Canvas.OnContextMenu(func(e webgl.MouseEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
	})
	chPointerDown := make(chan pointer)
	gl.Canvas.OnPointerDown(func(e webgl.PointerEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
		chPointerDown <- toPointer(e)
	})
	chPointerMove := make(chan pointer)
	gl.Canvas.OnPointerMove(func(e webgl.PointerEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
		chPointerMove <- toPointer(e)
	})
	chPointerUp := make(chan pointer)
	gl.Canvas.OnPointerUp(func(e webgl.PointerEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		e.StopPropagation()
		chPointerUp <- toPointer(e)
	})
	gl.Canvas.OnPointerOut(func(e webgl.PointerEvent) {
		if !ls.attached() {
			return
		}
		chPointerUp <- toPointer(e)
	})
	chKeyDown := make(chan string)
	gl.Canvas.OnKeyDown(func(e webgl.KeyboardEvent) {
		if !ls.attached() {
			return
		}
		if _, ok := flyKeyAxes[e.Code]; ok || e.Code == "Home" {
			e.PreventDefault()
			e.StopPropagation()
			chKeyDown <- e.Code
		}
	})
	chKeyUp := make(chan string)
	gl.Canvas.OnKeyUp(func(e webgl.KeyboardEvent) {
		if !ls.attached() {
			return
		}
		chKeyUp <- e.Code
	})
	chContextLost := make(chan struct{})
	gl.Canvas.OnWebGLContextLost(func(e webgl.WebGLContextEvent) {
		if !ls.attached() {
			return
		}
		e.PreventDefault()
		chContextLost <- struct{}{}
	})
	chResize := make(chan struct{})
	onResize := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		go func() { chResize <- struct{}{} }()
		return nil
	})
	js.Global().Call("addEventListener", "resize", onResize)
	ls.add(func() {
		js.Global().Call("removeEventListener", "resize", onResize)
		onResize.Release()
	})

	chFrame := make(chan struct{})
	frameCallback := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		chFrame <- struct{}{}
		return nil
	})
	var framePending bool
	requestFrame := func() {
		if framePending {
			return
		}
		framePending = true
		js.Global().Call("requestAnimationFrame", frameCallback)
	}
	resize := func() {
		v.Resize(gl.Canvas.ClientWidth(), gl.Canvas.ClientHeight())
	}

	resize()
	if pc.url != "" {
		if err := v.Open(source{URL: pc.url}); err != nil {
			logger.Warn("failed to open initial cloud", zap.Error(err))
		}
	}

	for {
		select {
		case req := <-chLoad:
			if err := v.Open(req.src, req.cleanup...); err != nil {
				logger.Warn("failed to open cloud", zap.Error(err))
			}
		case <-chReset:
			v.Reset()
		case req := <-chConsole:
			res, err := con.Run(req.line)
			if err != nil {
				req.reject.Invoke(errorToJS(err))
			} else {
				req.resolve.Invoke(res)
			}
		case <-chDispose:
			ls.detach()
			if err := v.Dispose(); err != nil {
				logger.Warn("failed to release viewer", zap.Error(err))
			}
			logger.Info("viewer disposed")
		case e := <-chWheel:
			if !ls.attached() {
				break
			}
			v.Zoom(wz.Steps(e.DeltaY, int(e.DeltaMode)))
		case p := <-chPointerDown:
			if !ls.attached() {
				break
			}
			gl.Canvas.Focus()
			if !g.active() {
				cg.DragStart()
			}
			g.pointerDown(p)
		case p := <-chPointerMove:
			if !ls.attached() {
				break
			}
			if g.active() {
				cg.Move()
			}
			g.pointerMove(p)
		case p := <-chPointerUp:
			if !ls.attached() {
				break
			}
			wasActive := g.active()
			g.pointerUp(p)
			if wasActive && !g.active() {
				cg.DragEnd()
			}
		case <-chClick:
			if !ls.attached() {
				break
			}
			if cg.DoubleClick() {
				v.Reset()
			}
		case code := <-chKeyDown:
			if !ls.attached() {
				break
			}
			v.KeyDown(code)
		case code := <-chKeyUp:
			if !ls.attached() {
				break
			}
			v.KeyUp(code)
		case <-chContextLost:
			v.Fail(errContextLostEvent)
		case <-chResize:
			if !ls.attached() {
				break
			}
			resize()
		case <-chFrame:
			framePending = false
			resize()
			if v.Frame() {
				requestFrame()
			}
		}

		st, _ := v.State()
		if st == stateDisposed {
			continue
		}
		setCursor(canvas, cursorFor(st, g.mode))
		if v.NeedsFrame() {
			requestFrame()
		}
	}
}

func toPointer(e webgl.PointerEvent) pointer {
	return pointer{
		id:     e.PointerId,
		x:      e.OffsetX,
		y:      e.OffsetY,
		button: int(e.Button),
		shift:  e.ShiftKey,
	}
}
