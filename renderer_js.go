package main

import (
	"syscall/js"

	"github.com/seqsense/pcgol/mat"
	webgl "github.com/seqsense/webgl-go"
	"go.uber.org/multierr"

	"github.com/seqsense/splatview/cloud"
)

const (
	aPosition = 0
	aColor    = 1
	aSize     = 2
)

type glRenderer struct {
	gl      *webgl.WebGL
	program webgl.Program
	shaders []webgl.Shader

	uModelView      webgl.Location
	uProjection     webgl.Location
	uPointSize      webgl.Location
	uViewportHeight webgl.Location

	height   int
	released bool
}

func newRenderer(gl *webgl.WebGL) (*glRenderer, error) {
	vs, err := initShader(gl, gl.VERTEX_SHADER, "VERTEX_SHADER", vsSource)
	if err != nil {
		return nil, err
	}
	fs, err := initShader(gl, gl.FRAGMENT_SHADER, "FRAGMENT_SHADER", fsSource)
	if err != nil {
		return nil, err
	}
	program, err := linkShaders(gl, vs, fs)
	if err != nil {
		return nil, err
	}

	r := &glRenderer{
		gl:              gl,
		program:         program,
		shaders:         []webgl.Shader{vs, fs},
		uModelView:      gl.GetUniformLocation(program, "uModelViewMatrix"),
		uProjection:     gl.GetUniformLocation(program, "uProjectionMatrix"),
		uPointSize:      gl.GetUniformLocation(program, "uPointSize"),
		uViewportHeight: gl.GetUniformLocation(program, "uViewportHeight"),
	}

	gl.ClearColor(0.0, 0.0, 0.0, 1.0)
	gl.ClearDepth(1.0)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	gl.UseProgram(program)
	gl.EnableVertexAttribArray(aPosition)
	gl.EnableVertexAttribArray(aColor)
	gl.EnableVertexAttribArray(aSize)
	return r, nil
}

func (r *glRenderer) Upload(c *cloud.Cloud) (scene, error) {
	if r.gl.IsContextLost() {
		return nil, errContextLost
	}
	buf := r.gl.CreateBuffer()
	r.gl.BindBuffer(r.gl.ARRAY_BUFFER, buf)
	r.gl.BufferData(r.gl.ARRAY_BUFFER, webgl.ByteArrayBuffer(packVertices(c)), r.gl.STATIC_DRAW)
	return &glScene{r: r, buf: buf, n: c.Len()}, nil
}

func (r *glRenderer) Resize(width, height int) {
	r.gl.Canvas.SetWidth(width)
	r.gl.Canvas.SetHeight(height)
	r.gl.Viewport(0, 0, width, height)
	r.height = height
}

func (r *glRenderer) Clear() {
	r.gl.Clear(r.gl.COLOR_BUFFER_BIT | r.gl.DEPTH_BUFFER_BIT)
}

// Release deletes the program and asks the browser to drop the context.
func (r *glRenderer) Release() (err error) {
	if r.released {
		return nil
	}
	r.released = true
	defer func() {
		if rec := recover(); rec != nil {
			err = multierr.Append(err, jsPanicError(rec))
		}
	}()
	gl := r.gl.JS()
	for _, s := range r.shaders {
		gl.Call("detachShader", js.Value(r.program), js.Value(s))
		gl.Call("deleteShader", js.Value(s))
	}
	gl.Call("deleteProgram", js.Value(r.program))
	if ext, ok := r.gl.GetExtension("WEBGL_lose_context"); ok {
		ext.Call("loseContext")
	}
	return nil
}

type glScene struct {
	r   *glRenderer
	buf webgl.Buffer
	n   int
}

func (s *glScene) Draw(view, projection mat.Mat4, pointSize float32) {
	gl := s.r.gl
	gl.UseProgram(s.r.program)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.buf)
	gl.VertexAttribPointer(aPosition, 3, gl.FLOAT, false, vertexStride, 0)
	gl.VertexAttribPointer(aColor, 4, gl.UNSIGNED_BYTE, true, vertexStride, vertexColorOffset)
	gl.VertexAttribPointer(aSize, 1, gl.FLOAT, false, vertexStride, vertexSizeOffset)

	gl.UniformMatrix4fv(s.r.uModelView, false, view)
	gl.UniformMatrix4fv(s.r.uProjection, false, projection)
	gl.Uniform1f(s.r.uPointSize, pointSize)
	gl.Uniform1f(s.r.uViewportHeight, float32(s.r.height))
	gl.DrawArrays(gl.POINTS, 0, s.n)
}

func (s *glScene) Release() (err error) {
	if s.n < 0 {
		return nil
	}
	s.n = -1
	defer func() {
		if rec := recover(); rec != nil {
			err = jsPanicError(rec)
		}
	}()
	s.r.gl.JS().Call("deleteBuffer", js.Value(s.buf))
	return nil
}
