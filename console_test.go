package main

import (
	"errors"
	"testing"
)

func TestConsole(t *testing.T) {
	testCases := map[string]struct {
		line     string
		expected string
		err      error
	}{
		"Empty":          {line: "  ", expected: ""},
		"GetPointSize":   {line: "point_size", expected: "1.000"},
		"SetPointSize":   {line: "point_size 2.5", expected: "2.500"},
		"PointSizeRange": {line: "point_size 100", err: errArgumentRange},
		"SetFlySpeed":    {line: "fly_speed 0.1", expected: "0.100"},
		"FlySpeedArgs":   {line: "fly_speed 0.1 0.2", err: errArgumentNumber},
		"SetFOV":         {line: "fov 45", expected: "45.000"},
		"FOVRange":       {line: "fov 170", err: errArgumentRange},
		"Camera":         {line: "camera", expected: "3.000 1.500 3.000\n0.000 0.000 0.000"},
		"Reset":          {line: "reset", expected: ""},
		"ResetArgs":      {line: "reset 1", err: errArgumentNumber},
		"Invalid":        {line: "select_range 1", err: errInvalidCommand},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			v, _ := newTestViewer(t, &fakeRenderer{}, nil)
			c := &console{v: v}
			res, err := c.Run(tt.line)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Expected error: %v, got: %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if res != tt.expected {
				t.Errorf("Expected: %q, got: %q", tt.expected, res)
			}
		})
	}
}

func TestConsole_ParseError(t *testing.T) {
	v, _ := newTestViewer(t, &fakeRenderer{}, nil)
	c := &console{v: v}
	if _, err := c.Run("point_size abc"); err == nil {
		t.Error("Non-numeric argument must be an error")
	}
}

func TestConsole_Info(t *testing.T) {
	v, _ := newTestViewer(t, &fakeRenderer{}, nil)
	c := &console{v: v}
	if _, err := c.Run("info"); err == nil {
		t.Error("info without a cloud must be an error")
	}

	s, _, _ := v.begin(source{URL: "a.ply"})
	v.complete(s, testCloud(), nil)
	res, err := c.Run("info")
	if err != nil {
		t.Fatal(err)
	}
	if expected := "2.000 4.000 0.500 1.000"; res != expected {
		t.Errorf("Expected: %q, got: %q", expected, res)
	}
}
