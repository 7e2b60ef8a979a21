package game

import "pong/internal/models"

// StepResult reports what happened during one simulation step.
type StepResult struct {
	Paddle bool
	Wall   bool
	Scorer models.Slot
}

// Step advances the ball by one tick. Player 2 defends the left edge and player 1 the
// right edge; a miss on either side awards the point to the other player and re-centers
// the ball. Nothing happens once a side has reached the winning score.
func Step(g *models.GameState) StepResult {
	var res StepResult
	if g.Decided() {
		return res
	}
	b := &g.Ball

	switch {
	case b.VelocityX < 0 && b.X-b.Radius <= models.PaddleMargin:
		if covers(g.Player2Position, b.Y) {
			b.VelocityX = -b.VelocityX
			res.Paddle = true
		} else {
			recenter(b)
			g.Player1Score++
			res.Scorer = models.SlotPlayer1
		}
	case b.VelocityX > 0 && b.X+b.Radius >= 1-models.PaddleMargin:
		if covers(g.Player1Position, b.Y) {
			b.VelocityX = -b.VelocityX
			res.Paddle = true
		} else {
			recenter(b)
			g.Player2Score++
			res.Scorer = models.SlotPlayer2
		}
	}

	// one reflection per tick: a paddle return defers the wall to the next step
	if res.Scorer == models.SlotNone && !res.Paddle {
		if (b.VelocityY < 0 && b.Y-b.Radius < 0) || (b.VelocityY > 0 && b.Y+b.Radius >= 1) {
			b.VelocityY = -b.VelocityY
			res.Wall = true
		}
	}

	b.X = clampUnit(b.X + b.VelocityX*b.Speed)
	b.Y = clampUnit(b.Y + b.VelocityY*b.Speed)
	return res
}

// ClampPaddle bounds a client-reported paddle position to the court.
func ClampPaddle(pos float64) float64 {
	if pos < models.PaddleMin {
		return models.PaddleMin
	}
	if pos > models.PaddleMax {
		return models.PaddleMax
	}
	return pos
}

func covers(paddle, y float64) bool {
	return y >= paddle && y <= paddle+models.PaddleSpan
}

func recenter(b *models.Ball) {
	b.X = models.BallStartX
	b.Y = models.BallStartY
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
