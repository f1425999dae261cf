package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"gojack/pkg/compiler"
	"gojack/pkg/grid"
	"gojack/pkg/utils"
	"gojack/pkg/vm"
)

const (
	scale = 2

	// Output text grid: 64 columns by 23 rows over the 512x256 screen.
	textCols   = 64
	textRows   = 23
	cellWidth  = vm.ScreenWidth / textCols * scale
	cellHeight = vm.ScreenHeight / textRows * scale

	stepsPerFrame = 20000
	statusHeight  = 16
)

// Key codes the keyboard register reports for non-printing keys.
var specialKeys = map[ebiten.Key]int16{
	ebiten.KeyEnter:     vm.CharNewLine,
	ebiten.KeyBackspace: vm.CharBackSpace,
	ebiten.KeyLeft:      130,
	ebiten.KeyUp:        131,
	ebiten.KeyRight:     132,
	ebiten.KeyDown:      133,
	ebiten.KeyHome:      134,
	ebiten.KeyEnd:       135,
	ebiten.KeyPageUp:    136,
	ebiten.KeyPageDown:  137,
	ebiten.KeyInsert:    138,
	ebiten.KeyDelete:    139,
	ebiten.KeyEscape:    140,
}

type Game struct {
	vm        *vm.Machine
	text      *grid.Text
	screenImg *ebiten.Image // reused 512×256 bitmap canvas
	held      int16         // last printable key still down
	err       error
}

// keyCode picks the keyboard register value from what is held this frame.
// Special keys win over printable ones.
func keyCode(pressed []ebiten.Key, typed []rune, held int16) (code, nextHeld int16) {
	for _, k := range pressed {
		if c, ok := specialKeys[k]; ok {
			return c, held
		}
	}
	if len(pressed) == 0 {
		return 0, 0
	}
	if len(typed) > 0 {
		held = int16(typed[len(typed)-1])
	}
	return held, held
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		return ebiten.Termination
	}

	pressed := inpututil.AppendPressedKeys(nil)
	typed := ebiten.AppendInputChars(nil)
	var code int16
	code, g.held = keyCode(pressed, typed, g.held)
	g.vm.SetKey(code)

	for i := 0; i < stepsPerFrame; i++ {
		// Break early if the program finishes or fails.
		if g.vm.Halted || g.err != nil {
			break
		}
		g.err = g.vm.Step()
	}
	return nil
}

func (g *Game) drawScreen(screen *ebiten.Image) {
	if g.screenImg == nil {
		g.screenImg = ebiten.NewImage(vm.ScreenWidth, vm.ScreenHeight)
	}
	g.screenImg.WritePixels(g.vm.ScreenRGBA())

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(g.screenImg, op)
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawScreen(screen)

	// Text layer
	for i, ch := range g.text.Cells() {
		if ch == 0 {
			continue
		}
		x, y := grid.GetGridCoords(i, g.text.Cols)
		ebitenutil.DebugPrintAt(screen, string(ch), x*cellWidth, y*cellHeight)
	}

	ebitenutil.DebugPrintAt(screen, g.status(), 0, vm.ScreenHeight*scale)
}

func (g *Game) status() string {
	switch {
	case g.err != nil:
		return fmt.Sprintf("error after %d steps: %v", g.vm.Steps, g.err)
	case g.vm.Halted:
		return fmt.Sprintf("halted after %d steps, returned %d", g.vm.Steps, g.vm.Result())
	}
	return fmt.Sprintf("running: %d steps", g.vm.Steps)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return vm.ScreenWidth * scale, vm.ScreenHeight*scale + statusHeight
}

// loadProgram compiles every unit under path and loads it into a fresh
// machine whose printed output goes to out.
func loadProgram(path string, out io.Writer) (*vm.Machine, error) {
	files, err := utils.FindSources(path)
	if err != nil {
		return nil, err
	}

	m := vm.NewMachine()
	m.Output = out
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		class, code, err := compiler.CompileClass(string(src), nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if err := m.LoadSource(class, code); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <file.jack|dir> [entry]", os.Args[0])
	}

	text := grid.NewText(textCols, textRows)
	m, err := loadProgram(os.Args[1], text)
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	entry := m.DefaultEntry()
	if len(os.Args) > 2 {
		entry = os.Args[2]
	}
	if err := m.Start(entry); err != nil {
		log.Fatalf("Failed to start %s: %v", entry, err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(vm.ScreenWidth*scale, vm.ScreenHeight*scale+statusHeight)
	ebiten.SetWindowTitle("Jack VM Desktop")

	game := &Game{vm: m, text: text}
	if err := ebiten.RunGame(game); err != nil && err != ebiten.Termination {
		log.Fatal(err)
	}
}
