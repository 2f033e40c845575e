package main

import (
	"time"

	"github.com/cityroam/cityroam/internal/engine"
	"github.com/cityroam/cityroam/internal/player"
)

// demoInput scripts a headless walkthrough: walk forward, sweep the view
// around, occasionally climb and descend. Enough to exercise collision,
// terrain follow and tile streaming without a frontend.
type demoInput struct {
	started time.Time
}

func newDemoInput() *demoInput {
	return &demoInput{started: time.Now()}
}

// Poll implements engine.InputSource.
func (d *demoInput) Poll() engine.Input {
	elapsed := time.Since(d.started).Seconds()
	phase := int(elapsed/10) % 4

	in := engine.Input{
		Keyboard: player.Keyboard{Forward: true},
		// A slow constant pan keeps the walk from running straight out of
		// the loaded area.
		Mouse: player.MouseDelta{X: 0.4},
	}

	switch phase {
	case 1:
		in.Keyboard.Run = true
	case 2:
		in.Keyboard.Up = true
	case 3:
		in.Keyboard.Down = true
	}
	return in
}
