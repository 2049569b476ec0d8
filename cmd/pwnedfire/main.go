// cmd/pwnedfire/main.go
//
// Terminal viewer for the animation variants.
//
// Keys:
//   1-6      switch variant (full reset)
//   + / -    raise / lower the score, retuning the running animation
//   space    pause / resume
//   q, Esc   quit

package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/higherpwned/server/internal/rng"
	"github.com/higherpwned/server/internal/sim"
	"github.com/higherpwned/server/internal/timing"
)

func main() {
	variant := flag.String("variant", string(sim.VariantFire), "animation variant")
	score := flag.Int("score", 0, "starting score")
	seed := flag.Uint64("seed", 0, "random seed (0 = random)")
	flag.Parse()

	// The screen owns stdout; only report problems after it is gone.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	v, err := sim.ParseVariant(*variant)
	if err != nil {
		log.Fatal().Err(err).Msg("bad variant")
	}
	src := rng.NewRandom()
	if *seed != 0 {
		src = rng.New(*seed)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal().Err(err).Msg("open terminal")
	}
	if err := screen.Init(); err != nil {
		log.Fatal().Err(err).Msg("init terminal")
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	vw := &viewer{screen: screen, rng: src, variant: v, score: *score, colors: map[string]tcell.Color{}}
	vw.rebuild()

	vw.loop = timing.NewLoop(vw.cfg.FPS, nil, func(time.Time) { vw.frame() })
	vw.loop.Start()
	defer vw.loop.Stop()

	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventResize:
			screen.Sync()
			vw.mu.Lock()
			vw.rebuild()
			vw.mu.Unlock()
		case *tcell.EventKey:
			if !vw.key(ev) {
				return
			}
		case nil:
			return
		}
	}
}

// viewer is shared between the frame loop goroutine and the event loop.
type viewer struct {
	screen tcell.Screen
	loop   *timing.Loop
	rng    rng.Source

	mu      sync.Mutex
	variant sim.Variant
	score   int
	paused  bool
	cfg     sim.Config
	sim     *sim.Simulation
	colors  map[string]tcell.Color
}

// rebuild starts the current variant from scratch at the screen size. The
// bottom row is kept for the status line. Callers hold mu, except at startup.
func (v *viewer) rebuild() {
	w, h := v.screen.Size()
	cfg, err := sim.ForScore(v.variant, v.score, max(w, 1), max(h-1, 1))
	if err != nil {
		return
	}
	v.cfg = cfg
	v.sim = cfg.Build(v.rng)
}

// key handles one key press and reports false on quit.
func (v *viewer) key(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	r := ev.Rune()
	switch {
	case r == 'q':
		return false
	case r >= '1' && r <= '9':
		i := int(r - '1')
		if i >= len(sim.Variants) {
			return true
		}
		v.mu.Lock()
		v.variant = sim.Variants[i]
		v.rebuild()
		fps := v.cfg.FPS
		v.mu.Unlock()
		v.follow(fps)
	case r == '+' || r == '=' || r == '-':
		v.mu.Lock()
		if r == '-' {
			v.score = max(v.score-1, 0)
		} else {
			v.score++
		}
		if cfg, err := sim.ForScore(v.variant, v.score, v.cfg.Width, v.cfg.Height); err == nil {
			if !cfg.Retune(v.sim.Rule()) {
				v.sim = cfg.Build(v.rng)
			}
			v.cfg = cfg
		}
		fps := v.cfg.FPS
		v.mu.Unlock()
		v.follow(fps)
	case r == ' ':
		v.mu.Lock()
		v.paused = !v.paused
		paused, fps := v.paused, v.cfg.FPS
		v.mu.Unlock()
		if paused {
			v.loop.SetFPS(0)
		} else {
			v.loop.SetFPS(fps)
			v.loop.Start()
		}
		v.status()
		v.screen.Show()
	}
	return true
}

// follow moves the loop to fps unless paused.
func (v *viewer) follow(fps int) {
	v.mu.Lock()
	paused := v.paused
	v.mu.Unlock()
	if !paused {
		v.loop.SetFPS(fps)
	}
}

func (v *viewer) color(hex string) tcell.Color {
	if c, ok := v.colors[hex]; ok {
		return c
	}
	c := tcell.GetColor(hex)
	v.colors[hex] = c
	return c
}

// frame steps the simulation and draws it.
func (v *viewer) frame() {
	v.mu.Lock()
	v.sim.Step()
	cells := v.sim.Cells()
	base := tcell.StyleDefault.Background(tcell.ColorBlack)
	for y, row := range cells {
		for x, c := range row {
			st := base.Foreground(tcell.ColorWhite)
			if c.Color != "" {
				st = base.Foreground(v.color(c.Color))
			}
			v.screen.SetContent(x, y, c.Ch, nil, st)
		}
	}
	v.mu.Unlock()
	v.status()
	v.screen.Show()
}

func (v *viewer) status() {
	v.mu.Lock()
	line := fmt.Sprintf(" %s  score %d  %dfps", v.variant, v.score, v.cfg.FPS)
	if v.paused {
		line += "  [paused]"
	}
	line += "  1-6 variant  +/- score  space pause  q quit "
	y := v.cfg.Height
	width := v.cfg.Width
	v.mu.Unlock()

	st := tcell.StyleDefault.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
	x := 0
	for _, r := range line {
		if x >= width {
			break
		}
		v.screen.SetContent(x, y, r, nil, st)
		x++
	}
	for ; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, st)
	}
}
