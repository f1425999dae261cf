package vm

import "fmt"

const (
	ScreenWidth  = 512
	ScreenHeight = 256
)

// Pixel reports whether the pixel at (x, y) is set.
func (m *Machine) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	w := m.RAM[ScreenBase+y*(ScreenWidth/16)+x/16]
	return w&(1<<(x%16)) != 0
}

func (m *Machine) setPixel(x, y int) {
	addr := ScreenBase + y*(ScreenWidth/16) + x/16
	bit := int16(1) << (x % 16)
	if m.color {
		m.RAM[addr] |= bit
	} else {
		m.RAM[addr] &^= bit
	}
}

// ScreenRGBA renders the screen memory as RGBA pixels, black on white.
func (m *Machine) ScreenRGBA() []byte {
	pix := make([]byte, ScreenWidth*ScreenHeight*4)
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			i := (y*ScreenWidth + x) * 4
			var c byte = 0xff
			if m.Pixel(x, y) {
				c = 0
			}
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c, c, c, 0xff
		}
	}
	return pix
}

func onScreen(x, y int16) error {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return fmt.Errorf("coordinates (%d,%d) off screen", x, y)
	}
	return nil
}

func screenClear(m *Machine, _ []int16) (int16, error) {
	for i := 0; i < ScreenWords; i++ {
		m.RAM[ScreenBase+i] = 0
	}
	return 0, nil
}

func screenDrawPixel(m *Machine, a []int16) (int16, error) {
	if err := onScreen(a[0], a[1]); err != nil {
		return 0, err
	}
	m.setPixel(int(a[0]), int(a[1]))
	return 0, nil
}

func screenDrawLine(m *Machine, a []int16) (int16, error) {
	for i := 0; i < 4; i += 2 {
		if err := onScreen(a[i], a[i+1]); err != nil {
			return 0, err
		}
	}
	x0, y0, x1, y1 := int(a[0]), int(a[1]), int(a[2]), int(a[3])
	dx, sx := x1-x0, 1
	if dx < 0 {
		dx, sx = -dx, -1
	}
	dy, sy := -(y1 - y0), 1
	if y1 < y0 {
		dy, sy = y1-y0, -1
	}
	e := dx + dy
	for {
		m.setPixel(x0, y0)
		if x0 == x1 && y0 == y1 {
			return 0, nil
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func screenDrawRectangle(m *Machine, a []int16) (int16, error) {
	for i := 0; i < 4; i += 2 {
		if err := onScreen(a[i], a[i+1]); err != nil {
			return 0, err
		}
	}
	if a[0] > a[2] || a[1] > a[3] {
		return 0, fmt.Errorf("illegal rectangle (%d,%d)-(%d,%d)", a[0], a[1], a[2], a[3])
	}
	for y := int(a[1]); y <= int(a[3]); y++ {
		for x := int(a[0]); x <= int(a[2]); x++ {
			m.setPixel(x, y)
		}
	}
	return 0, nil
}

func screenDrawCircle(m *Machine, a []int16) (int16, error) {
	cx, cy, r := int(a[0]), int(a[1]), int(a[2])
	if r < 0 || r > 181 {
		return 0, fmt.Errorf("illegal radius %d", r)
	}
	if cx-r < 0 || cx+r >= ScreenWidth || cy-r < 0 || cy+r >= ScreenHeight {
		return 0, fmt.Errorf("circle at (%d,%d) radius %d leaves the screen", cx, cy, r)
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				m.setPixel(cx+dx, cy+dy)
			}
		}
	}
	return 0, nil
}
