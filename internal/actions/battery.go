// File: internal/actions/battery.go
package actions

import (
	"context"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// BatteryStep is one exploratory input: a named gesture the runner can
// dispatch and capture individually.
type BatteryStep struct {
	Name string
	Run  func(context.Context) error
}

// Battery returns the fixed exploratory gesture sequence: hover, spread-out
// clicks, drags along each axis, arrow keys, WASD, and space. The order goes
// from gentlest to most disruptive so early captures show the game's
// baseline reaction.
func (e *Executor) Battery() []BatteryStep {
	c := e.center()
	w, h := e.viewportW, e.viewportH

	return []BatteryStep{
		{"hover-center", func(ctx context.Context) error {
			return e.driver.Hover(ctx, c.X, c.Y)
		}},
		{"click-center", func(ctx context.Context) error {
			return e.driver.Click(ctx, c.X, c.Y)
		}},
		{"click-upper-left", func(ctx context.Context) error {
			return e.driver.Click(ctx, w/4, h/4)
		}},
		{"click-lower-right", func(ctx context.Context) error {
			return e.driver.Click(ctx, 3*w/4, 3*h/4)
		}},
		{"drag-horizontal", func(ctx context.Context) error {
			return e.driver.Drag(ctx, c.X-w/8, c.Y, c.X+w/8, c.Y)
		}},
		{"drag-vertical", func(ctx context.Context) error {
			return e.driver.Drag(ctx, c.X, c.Y-h/8, c.X, c.Y+h/8)
		}},
		{"drag-diagonal", func(ctx context.Context) error {
			return e.driver.Drag(ctx, c.X-w/8, c.Y-h/8, c.X+w/8, c.Y+h/8)
		}},
		{"arrow-keys", func(ctx context.Context) error {
			for _, k := range []string{kb.ArrowUp, kb.ArrowDown, kb.ArrowLeft, kb.ArrowRight} {
				if err := e.driver.PressKey(ctx, k); err != nil {
					return err
				}
			}
			return nil
		}},
		{"wasd", func(ctx context.Context) error {
			for _, k := range []string{"w", "a", "s", "d"} {
				if err := e.driver.PressKey(ctx, k); err != nil {
					return err
				}
			}
			return nil
		}},
		{"space", func(ctx context.Context) error {
			return e.driver.PressKey(ctx, " ")
		}},
	}
}

// Exploratory fires the whole battery at the page in one shot. It is the
// recovery move when the oracle's suggestions stop changing the game state;
// something in the battery usually lands. Individual failures are logged
// and skipped, the battery always runs to the end. The returned count is
// how many interactions dispatched cleanly.
func (e *Executor) Exploratory(ctx context.Context) int {
	performed := 0
	steps := e.Battery()

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		if err := step.Run(ctx); err != nil {
			e.logger.Debug("Exploratory step failed.",
				zap.String("step", step.Name), zap.Error(err))
			continue
		}
		performed++
	}

	e.logger.Info("Exploratory battery finished.",
		zap.Int("performed", performed), zap.Int("total", len(steps)))
	return performed
}
