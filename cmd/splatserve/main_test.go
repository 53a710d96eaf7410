package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/seqsense/pcgol/mat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/seqsense/splatview/cloud"
	"github.com/seqsense/splatview/server"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), append([]string{"splatserve"}, args...))
	return out.String(), err
}

func TestShareCommands(t *testing.T) {
	const u = "https://cdn.example.com/out/scene.ply"
	out, err := run(t, "share", "encode", u)
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.NotEmpty(t, token)

	out, err = run(t, "share", "decode", token)
	require.NoError(t, err)
	assert.Equal(t, u, strings.TrimSpace(out))

	_, err = run(t, "share", "decode", "AAAA")
	assert.Error(t, err)

	_, err = run(t, "share", "encode", "http://cdn.example.com/a.ply")
	assert.Error(t, err)
}

func writeASCIIPLY(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(`ply
format ascii 1.0
element vertex 2
property float x
property float y
property float z
end_header
0 0 0
4 2 2
`), 0o644))
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.ply")
	writeASCIIPLY(t, path)

	out, err := run(t, "inspect", path)
	require.NoError(t, err)

	var got server.Inspection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Points)
	assert.Equal(t, "ply", got.Format)
	assert.Equal(t, mat.Vec3{2, 1, 1}, got.Center)
	assert.Equal(t, float32(4), got.Extent)
	assert.Equal(t, float32(1), got.Radius)

	_, err = run(t, "inspect")
	assert.Error(t, err)
	_, err = run(t, "inspect", filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.ply")
	out := filepath.Join(dir, "scene.splat")
	writeASCIIPLY(t, in)

	msg, err := run(t, "convert", "--normalize", in, out)
	require.NoError(t, err)
	assert.Contains(t, msg, "wrote 2 splats")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	c, err := cloud.DecodeFormat(f, cloud.FormatSplat)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, mat.Vec3{-1, -0.5, -0.5}, c.Positions[0])
	assert.Equal(t, mat.Vec3{1, 0.5, 0.5}, c.Positions[1])
}

func TestUsageCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("splatview:usage", "7"))
	t.Setenv("SPLATVIEW_USAGE_BACKEND", "redis")
	t.Setenv("SPLATVIEW_USAGE_REDIS_ADDR", mr.Addr())

	out, err := run(t, "usage", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "used=7 limit=50 remaining=43")

	_, err = run(t, "usage", "reset")
	require.NoError(t, err)
	assert.False(t, mr.Exists("splatview:usage"))
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splatview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("share:\n  schemes: [http]\n"), 0o644))

	_, err := run(t, "--config", path, "share", "encode", "http://cdn.example.com/a.ply")
	assert.NoError(t, err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "share", "encode", "https://a.example.com/a.ply")
	assert.Error(t, err)
}
