package game

import (
	"testing"
)

// прогоняет симуляцию до конца матча или до лимита тиков
func runUntilWinner(t *testing.T, e *Engine, maxTicks int) int {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		e.Tick()
		if w := e.Winner(); w != 0 {
			return w
		}
	}
	return 0
}

func TestServeTowardPlayerOne(t *testing.T) {
	e := NewEngine()
	ball, _, _ := e.Snapshot()

	if ball.X != FieldWidth/2 || ball.Y != FieldHeight/2 {
		t.Fatalf("подача не из центра: x=%v y=%v", ball.X, ball.Y)
	}
	if ball.VX >= 0 {
		t.Fatalf("первая подача должна идти в сторону первого игрока, vx=%v", ball.VX)
	}
	if ball.VY == 0 {
		t.Fatal("вертикальная составляющая подачи не должна быть нулевой")
	}
}

func TestSetIntentValidation(t *testing.T) {
	e := NewEngine()

	if err := e.SetIntent(3, ActionUp); err != ErrBadPlayer {
		t.Fatalf("ожидали ErrBadPlayer, получили %v", err)
	}
	if err := e.SetIntent(1, Action("left")); err != ErrBadAction {
		t.Fatalf("ожидали ErrBadAction, получили %v", err)
	}
	if err := e.SetIntent(1, ActionUp); err != nil {
		t.Fatalf("валидное намерение вернуло ошибку: %v", err)
	}
}

func TestPaddleMovesAndClamps(t *testing.T) {
	e := NewEngine()
	_, before, _ := e.Snapshot()

	if err := e.SetIntent(1, ActionUp); err != nil {
		t.Fatal(err)
	}
	e.Tick()
	_, after, _ := e.Snapshot()
	if after.Y >= before.Y {
		t.Fatalf("ракетка не пошла вверх: было %v, стало %v", before.Y, after.Y)
	}

	// долго держим вверх - ракетка упирается в стену, не выходит за поле
	for i := 0; i < TickRate*5; i++ {
		e.Tick()
	}
	_, p1, _ := e.Snapshot()
	if p1.Y != 0 {
		t.Fatalf("ракетка должна упереться в верхнюю границу, y=%v", p1.Y)
	}

	if err := e.SetIntent(1, ActionStop); err != nil {
		t.Fatal(err)
	}
	e.Tick()
	_, stopped, _ := e.Snapshot()
	if stopped.Y != 0 {
		t.Fatalf("после stop ракетка не должна двигаться, y=%v", stopped.Y)
	}
}

func TestIdleMatchEndsAtWinScore(t *testing.T) {
	// обе ракетки стоят в центре: подача всегда уходит мимо первого
	// игрока, второй набирает очки до победного счета
	e := NewEngine()

	w := runUntilWinner(t, e, TickRate*120)
	if w != 2 {
		t.Fatalf("ожидали победу второго игрока, winner=%d", w)
	}
	s1, s2 := e.Scores()
	if s2 != WinScore {
		t.Fatalf("счет победителя должен быть %d, получили %d", WinScore, s2)
	}
	if s1 != 0 {
		t.Fatalf("первый игрок не должен был набрать очков, счет %d", s1)
	}
}

func TestTickIsNoopAfterWinner(t *testing.T) {
	e := NewEngine()
	e.ForceWin(1)

	if e.Winner() != 1 {
		t.Fatalf("форфейт не зафиксирован, winner=%d", e.Winner())
	}
	ballBefore, _, _ := e.Snapshot()
	e.Tick()
	ballAfter, _, _ := e.Snapshot()
	if ballBefore != ballAfter {
		t.Fatal("после завершения матча симуляция не должна продвигаться")
	}

	// второй ForceWin не перезаписывает результат
	e.ForceWin(2)
	if e.Winner() != 1 {
		t.Fatalf("победитель не должен меняться, winner=%d", e.Winner())
	}
}

func TestFastBallDoesNotSkipPaddle(t *testing.T) {
	// на предельной скорости мяч проходит больше глубины ракетки за
	// один тик; удар засчитывается по пересечению рабочей грани
	e := NewEngine()
	e.ball.X = e.p1.X + PaddleWidth + BallRadius + 1
	e.ball.Y = e.p1.Y + PaddleHeight/2
	e.ball.VX = -maxBallSpeed
	e.ball.VY = 0

	e.Tick()

	ball, _, _ := e.Snapshot()
	if ball.VX <= 0 {
		t.Fatalf("быстрый мяч прошел сквозь ракетку: vx=%v x=%v", ball.VX, ball.X)
	}
	if ball.X != e.p1.X+PaddleWidth+BallRadius {
		t.Fatalf("после отбития мяч должен стоять на рабочей грани, x=%v", ball.X)
	}
	s1, s2 := e.Scores()
	if s1 != 0 || s2 != 0 {
		t.Fatalf("отбитый мяч не должен менять счет: %d:%d", s1, s2)
	}
}

func TestServeDirectionAlternatesVertically(t *testing.T) {
	e := NewEngine()
	ball1, _, _ := e.Snapshot()

	// гол второму игроку за счет прямого прогона
	for i := 0; i < TickRate*20; i++ {
		e.Tick()
		_, _, p2 := e.Snapshot()
		if p2.Score > 0 {
			break
		}
	}
	ball2, _, _ := e.Snapshot()
	if ball1.VY == ball2.VY {
		t.Fatalf("вертикальная составляющая подачи должна чередоваться: %v и %v", ball1.VY, ball2.VY)
	}
}
