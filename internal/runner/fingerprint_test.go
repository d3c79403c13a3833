// File: internal/runner/fingerprint_test.go
package runner

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/mocks"
)

func TestHashString(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := hashString(`{"text":"Tic Tac Toe","squares":"X_O______"}`)
		b := hashString(`{"text":"Tic Tac Toe","squares":"X_O______"}`)
		assert.Equal(t, a, b)
	})

	t.Run("sensitive to any change", func(t *testing.T) {
		a := hashString(`{"squares":"X_O______"}`)
		b := hashString(`{"squares":"X_OX_____"}`)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty input hashes to zero", func(t *testing.T) {
		assert.Equal(t, "0", hashString(""))
	})

	t.Run("handles overflow without panicking", func(t *testing.T) {
		long := strings.Repeat("abcdefghij", 200)
		assert.NotEmpty(t, hashString(long))
	})

	t.Run("single-cell edits almost always change the digest", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		marks := []byte{'X', 'O', '_'}

		distinct := 0
		for i := 0; i < 100; i++ {
			board := make([]byte, 9)
			for j := range board {
				board[j] = marks[rng.Intn(len(marks))]
			}
			mutated := append([]byte(nil), board...)
			pos := rng.Intn(len(mutated))
			for mutated[pos] == board[pos] {
				mutated[pos] = marks[rng.Intn(len(marks))]
			}

			a := hashString(`{"squares":"` + string(board) + `"}`)
			b := hashString(`{"squares":"` + string(mutated) + `"}`)
			if a != b {
				distinct++
			}
		}
		assert.GreaterOrEqual(t, distinct, 99,
			"distinct states must fingerprint distinctly near-always")
	})
}

func newFingerprintRunner(driver *mocks.MockPageDriver) *Runner {
	return New(driver, &mocks.MockOracle{}, nil, config.RunnerConfig{}, zap.NewNop())
}

func TestFingerprintFallbackChain(t *testing.T) {
	t.Run("uses game state when available", func(t *testing.T) {
		driver := &mocks.MockPageDriver{}
		driver.On("Evaluate", mock.Anything, stateExpr, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = `{"squares":"X________"}`
			}).Return(nil)

		r := newFingerprintRunner(driver)
		fp := r.fingerprint(context.Background())
		assert.Equal(t, hashString(`{"squares":"X________"}`), fp)
	})

	t.Run("falls back to document text hash", func(t *testing.T) {
		driver := &mocks.MockPageDriver{}
		driver.On("Evaluate", mock.Anything, stateExpr, mock.Anything).
			Return(errors.New("script blocked"))
		driver.On("Evaluate", mock.Anything, `document.documentElement.outerHTML`, mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = "<html><body>your move</body></html>"
			}).Return(nil)

		r := newFingerprintRunner(driver)
		fp := r.fingerprint(context.Background())
		assert.Equal(t, hashString("your move "), fp)
	})

	t.Run("degrades to timestamp when everything fails", func(t *testing.T) {
		driver := &mocks.MockPageDriver{}
		driver.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("target gone"))

		r := newFingerprintRunner(driver)
		a := r.fingerprint(context.Background())
		b := r.fingerprint(context.Background())
		assert.True(t, strings.HasPrefix(a, "ts-"))
		assert.NotEqual(t, a, b, "timestamp fallback always reads as changed")
	})
}

func TestDocumentText(t *testing.T) {
	t.Run("ignores attribute churn", func(t *testing.T) {
		a := documentText(`<div class="cell pulse-3">X</div>`)
		b := documentText(`<div class="cell pulse-7">X</div>`)
		assert.Equal(t, a, b)
	})

	t.Run("sees content changes", func(t *testing.T) {
		a := documentText(`<div class="cell">X</div>`)
		b := documentText(`<div class="cell">O</div>`)
		assert.NotEqual(t, a, b)
	})

	t.Run("skips script and style bodies", func(t *testing.T) {
		out := documentText(`<style>.a{color:red}</style><script>tick()</script><p>board</p>`)
		assert.Equal(t, "board ", out)
	})

	t.Run("textless markup falls back to raw input", func(t *testing.T) {
		raw := `<canvas id="game"></canvas>`
		assert.Equal(t, raw, documentText(raw))
	})
}

func TestReadBoardSwallowsErrors(t *testing.T) {
	driver := &mocks.MockPageDriver{}
	driver.On("Evaluate", mock.Anything, boardExpr, mock.Anything).
		Return(errors.New("no board"))

	r := newFingerprintRunner(driver)
	board := r.readBoard(context.Background())
	assert.Zero(t, board.TotalCells)
	assert.False(t, board.Complete())
}
