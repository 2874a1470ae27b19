package game

import (
	"errors"

	"pong_arena/internal/domain"
)

// Геометрия поля и константы симуляции.
const (
	FieldWidth   = 800.0
	FieldHeight  = 600.0
	PaddleWidth  = 10.0
	PaddleHeight = 75.0
	BallRadius   = 10.0
	paddleInset  = 10.0

	// фиксированный серверный тик, независимый от частоты кадров клиента
	TickRate = 60
	dt       = 1.0 / float64(TickRate)

	// матч заканчивается при достижении этого счета
	WinScore = 5

	paddleSpeed   = 420.0 // px/s
	baseBallSpeed = 320.0 // px/s по x при подаче
	serveBallVY   = 110.0 // px/s по y при подаче
	// спин пропорционален смещению от центра ракетки и зажат в этот диапазон
	maxSpin      = 260.0
	speedup      = 1.04 // небольшое ускорение при каждом отбитии
	maxBallSpeed = 960.0
)

type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
	ActionStop Action = "stop"
)

var ErrBadPlayer = errors.New("номер игрока должен быть 1 или 2")
var ErrBadAction = errors.New("неизвестное действие")

// Engine - авторитетная симуляция одного матча с фиксированным шагом.
// Движком монопольно владеет тикающая горутина комнаты: внутренних
// блокировок нет, входные намерения ставятся в очередь комнаты и
// применяются между тиками.
type Engine struct {
	ball   domain.Ball
	p1, p2 domain.Paddle

	// текущее намерение скорости каждой ракетки (px/s по y)
	p1Vel, p2Vel float64

	score1, score2 int
	winner         int // 0 - игра идет, 1|2 - победитель
	serves         int // счетчик подач, задает детерминированное направление
}

func NewEngine() *Engine {
	e := &Engine{
		p1: domain.Paddle{X: paddleInset, W: PaddleWidth, H: PaddleHeight},
		p2: domain.Paddle{X: FieldWidth - paddleInset - PaddleWidth, W: PaddleWidth, H: PaddleHeight},
	}
	e.p1.Y = (FieldHeight - PaddleHeight) / 2
	e.p2.Y = (FieldHeight - PaddleHeight) / 2
	e.serve(1)
	return e
}

// serve ставит мяч в центр и направляет его в сторону игрока toward.
// Вертикальная составляющая чередуется по счетчику подач - никакой
// скрытой случайности, прогон воспроизводим.
func (e *Engine) serve(toward int) {
	e.serves++
	vx := baseBallSpeed
	if toward == 1 {
		vx = -baseBallSpeed
	}
	vy := serveBallVY
	if e.serves%2 == 0 {
		vy = -serveBallVY
	}
	e.ball = domain.Ball{
		X:      FieldWidth / 2,
		Y:      FieldHeight / 2,
		VX:     vx,
		VY:     vy,
		Radius: BallRadius,
	}
}

// SetIntent выставляет намерение скорости ракетки игрока.
// Каждое входное сообщение управляет только ракеткой отправителя.
func (e *Engine) SetIntent(player int, a Action) error {
	var vel float64
	switch a {
	case ActionUp:
		vel = -paddleSpeed
	case ActionDown:
		vel = paddleSpeed
	case ActionStop:
		vel = 0
	default:
		return ErrBadAction
	}

	switch player {
	case 1:
		e.p1Vel = vel
	case 2:
		e.p2Vel = vel
	default:
		return ErrBadPlayer
	}
	return nil
}

// Tick продвигает симуляцию на один фиксированный шаг.
func (e *Engine) Tick() {
	if e.winner != 0 {
		return
	}

	// ракетки
	e.p1.Y = clamp(e.p1.Y+e.p1Vel*dt, 0, FieldHeight-PaddleHeight)
	e.p2.Y = clamp(e.p2.Y+e.p2Vel*dt, 0, FieldHeight-PaddleHeight)

	// мяч
	oldX, oldY := e.ball.X, e.ball.Y
	e.ball.X += e.ball.VX * dt
	e.ball.Y += e.ball.VY * dt

	// отскок от горизонтальных стен
	if e.ball.Y-BallRadius < 0 {
		e.ball.Y = BallRadius
		e.ball.VY = -e.ball.VY
	} else if e.ball.Y+BallRadius > FieldHeight {
		e.ball.Y = FieldHeight - BallRadius
		e.ball.VY = -e.ball.VY
	}

	// столкновения с ракетками: проверяется пересечение отрезка
	// oldX -> X с плоскостью рабочей грани, иначе быстрый мяч
	// перешагивает ракетку за один тик
	if e.ball.VX < 0 {
		face := e.p1.X + PaddleWidth + BallRadius
		if oldX >= face && e.ball.X <= face && e.overlapsAt(e.p1, crossY(oldX, oldY, e.ball.X, e.ball.Y, face)) {
			e.bounceOff(e.p1)
			e.ball.X = face
		}
	} else if e.ball.VX > 0 {
		face := e.p2.X - BallRadius
		if oldX <= face && e.ball.X >= face && e.overlapsAt(e.p2, crossY(oldX, oldY, e.ball.X, e.ball.Y, face)) {
			e.bounceOff(e.p2)
			e.ball.X = face
		}
	}

	// голы
	if e.ball.X+BallRadius < 0 {
		e.score2++
		e.p2.Score = e.score2
		e.afterGoal(1)
	} else if e.ball.X-BallRadius > FieldWidth {
		e.score1++
		e.p1.Score = e.score1
		e.afterGoal(2)
	}
}

func (e *Engine) overlapsAt(p domain.Paddle, y float64) bool {
	return y+BallRadius >= p.Y && y-BallRadius <= p.Y+PaddleHeight
}

// crossY возвращает y мяча в момент пересечения вертикали face отрезком
// (x0,y0)-(x1,y1) этого тика.
func crossY(x0, y0, x1, y1, face float64) float64 {
	if x0 == x1 {
		return y1
	}
	t := (face - x0) / (x1 - x0)
	return y0 + (y1-y0)*clamp(t, 0, 1)
}

// bounceOff отражает vx и применяет спин, пропорциональный смещению
// точки удара от центра ракетки. Без этого обмены вырождаются в
// фиксированный угол.
func (e *Engine) bounceOff(p domain.Paddle) {
	e.ball.VX = -e.ball.VX * speedup
	e.ball.VX = clamp(e.ball.VX, -maxBallSpeed, maxBallSpeed)

	center := p.Y + PaddleHeight/2
	offset := (e.ball.Y - center) / (PaddleHeight / 2)
	e.ball.VY = clamp(offset*maxSpin, -maxSpin, maxSpin)
}

func (e *Engine) afterGoal(concededBy int) {
	if e.score1 >= WinScore {
		e.winner = 1
		return
	}
	if e.score2 >= WinScore {
		e.winner = 2
		return
	}
	// подача в сторону пропустившего
	e.serve(concededBy)
}

// Winner возвращает 0 пока матч идет, иначе номер победителя.
func (e *Engine) Winner() int {
	return e.winner
}

func (e *Engine) Scores() (int, int) {
	return e.score1, e.score2
}

// ForceWin завершает матч в пользу игрока (форфейт противника).
func (e *Engine) ForceWin(player int) {
	if e.winner == 0 && (player == 1 || player == 2) {
		e.winner = player
	}
}

// Snapshot возвращает копию состояния для сериализации клиентам.
func (e *Engine) Snapshot() (domain.Ball, domain.Paddle, domain.Paddle) {
	return e.ball, e.p1, e.p2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
