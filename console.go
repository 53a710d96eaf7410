package main

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// console runs the text commands exposed to the page as splatview.console.
type console struct {
	v *viewer
}

var (
	errArgumentNumber = errors.New("invalid number of arguments")
	errInvalidCommand = errors.New("invalid command")
	errArgumentRange  = errors.New("argument out of range")
)

var consoleCommands = map[string]func(v *viewer, args []float32) ([][]float32, error){
	"reset": func(v *viewer, args []float32) ([][]float32, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		v.Reset()
		return nil, nil
	},
	"point_size": func(v *viewer, args []float32) ([][]float32, error) {
		return v.setting(&v.pointSize, 0.1, 20, args)
	},
	"fly_speed": func(v *viewer, args []float32) ([][]float32, error) {
		return v.setting(&v.flySpeed, 0.001, 1, args)
	},
	"fov": func(v *viewer, args []float32) ([][]float32, error) {
		v.mu.Lock()
		defer v.mu.Unlock()
		switch len(args) {
		case 0:
		case 1:
			if args[0] < 10 || args[0] > 120 {
				return nil, errArgumentRange
			}
			v.view.home.FOV = args[0] * math.Pi / 180
			v.dirty = true
		default:
			return nil, errArgumentNumber
		}
		return [][]float32{{v.view.home.FOV * 180 / math.Pi}}, nil
	},
	"camera": func(v *viewer, args []float32) ([][]float32, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		c := v.Camera()
		return [][]float32{
			{c.Position[0], c.Position[1], c.Position[2]},
			{c.Target[0], c.Target[1], c.Target[2]},
		}, nil
	},
	"info": func(v *viewer, args []float32) ([][]float32, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		s := v.cur
		if s == nil || s.state != stateReady {
			return nil, errors.New("no cloud loaded")
		}
		return [][]float32{{float32(s.points), s.norm.Extent, s.norm.Scale, s.norm.Radius}}, nil
	},
}

// setting reads or writes a float parameter within [min, max].
func (v *viewer) setting(p *float32, min, max float32, args []float32) ([][]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch len(args) {
	case 0:
	case 1:
		if args[0] < min || args[0] > max {
			return nil, errArgumentRange
		}
		*p = args[0]
		v.dirty = true
	default:
		return nil, errArgumentNumber
	}
	return [][]float32{{*p}}, nil
}

func (c *console) Run(line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	fn, ok := consoleCommands[args[0]]
	if !ok {
		return "", errInvalidCommand
	}
	var argsFloat []float32
	for i := 1; i < len(args); i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return "", err
		}
		argsFloat = append(argsFloat, float32(f))
	}
	res, err := fn(c.v, argsFloat)
	if err != nil {
		return "", err
	}
	var resStr []string
	for _, vv := range res {
		var resLine []string
		for _, v := range vv {
			resLine = append(resLine, strconv.FormatFloat(float64(v), 'f', 3, 32))
		}
		resStr = append(resStr, strings.Join(resLine, " "))
	}
	return strings.Join(resStr, "\n"), nil
}
