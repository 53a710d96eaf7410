package main

// flyKeys tracks held movement keys by KeyboardEvent.code.
type flyKeys map[string]bool

var flyKeyAxes = map[string][3]float32{
	"KeyW":       {1, 0, 0},
	"ArrowUp":    {1, 0, 0},
	"KeyS":       {-1, 0, 0},
	"ArrowDown":  {-1, 0, 0},
	"KeyD":       {0, 1, 0},
	"ArrowRight": {0, 1, 0},
	"KeyA":       {0, -1, 0},
	"ArrowLeft":  {0, -1, 0},
	"KeyE":       {0, 0, 1},
	"KeyQ":       {0, 0, -1},
}

// press returns false for keys that do not move the camera.
func (k flyKeys) press(code string) bool {
	if _, ok := flyKeyAxes[code]; !ok {
		return false
	}
	k[code] = true
	return true
}

func (k flyKeys) release(code string) {
	delete(k, code)
}

func (k flyKeys) releaseAll() {
	for code := range k {
		delete(k, code)
	}
}

func (k flyKeys) active() bool {
	return len(k) > 0
}

// direction sums the held keys. Opposite keys cancel.
func (k flyKeys) direction() (forward, right, up float32) {
	for code := range k {
		a := flyKeyAxes[code]
		forward += a[0]
		right += a[1]
		up += a[2]
	}
	return clampUnit(forward), clampUnit(right), clampUnit(up)
}

func clampUnit(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
