package ws

import (
	"log"
	"sync/atomic"
	"time"

	"pong_arena/internal/domain"
	"pong_arena/internal/game"
)

const (
	// сколько ждем, пока оба участника пришлют game:join
	joinDeadline = 30 * time.Second
	// грейс до форфейта при обрыве соединения участника
	matchGrace = 10 * time.Second
)

type inputEvent struct {
	userID int64
	action string
}

// Room - актор одного матча. Вся мутация симуляции происходит в
// горутине Run: вход, регистрации и дисконнекты поступают по каналам,
// движок никогда не трогается из чужого потока. Жизненный цикл
// waiting -> playing -> finished, обратных переходов нет; сетевого
// состояния "пауза" не существует - симуляция не останавливается
// из-за отключившегося игрока.
type Room struct {
	ID  string
	Ctx *domain.TournamentContext
	P1  int64
	P2  int64

	Register   chan *Client
	Disconnect chan *Client
	Input      chan inputEvent
	Leave      chan int64

	engine  *game.Engine
	status  domain.MatchStatus
	seq     uint64
	clients map[int64]*Client

	// грейс-таймеры по отключившимся участникам (только горутина Run)
	grace        map[int64]*time.Timer
	graceExpired chan int64

	hub       *Hub
	CreatedAt time.Time
	finished  atomic.Bool
}

func NewRoom(id string, p1, p2 int64, tc *domain.TournamentContext, hub *Hub) *Room {
	return &Room{
		ID:           id,
		Ctx:          tc,
		P1:           p1,
		P2:           p2,
		Register:     make(chan *Client, 2),
		Disconnect:   make(chan *Client, 2),
		Input:        make(chan inputEvent, 64),
		Leave:        make(chan int64, 2),
		engine:       game.NewEngine(),
		status:       domain.MatchWaiting,
		clients:      make(map[int64]*Client),
		grace:        make(map[int64]*time.Timer),
		graceExpired: make(chan int64, 2),
		hub:          hub,
		CreatedAt:    time.Now(),
	}
}

func (r *Room) HasPlayer(userID int64) bool {
	return userID == r.P1 || userID == r.P2
}

func (r *Room) Finished() bool {
	return r.finished.Load()
}

func (r *Room) playerNumber(userID int64) int {
	switch userID {
	case r.P1:
		return 1
	case r.P2:
		return 2
	}
	return 0
}

func (r *Room) Run() {
	log.Printf("Room.Run: матч=%s p1=%d p2=%d ожидание игроков", r.ID, r.P1, r.P2)

	if !r.waitForPlayers() {
		return
	}

	r.status = domain.MatchPlaying
	log.Printf("Room.Run: матч=%s оба игрока на месте, симуляция запущена", r.ID)

	ticker := time.NewTicker(time.Second / game.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.engine.Tick()
			r.broadcastState()
			if w := r.engine.Winner(); w != 0 {
				r.finish(w, domain.FinishReasonScore)
				return
			}

		case ev := <-r.Input:
			r.applyInput(ev)

		case c := <-r.Register:
			// реконнект участника: отменяем его грейс и досылаем снимок
			r.attach(c)

		case c := <-r.Disconnect:
			r.onDisconnect(c)

		case uid := <-r.graceExpired:
			if _, present := r.clients[uid]; present {
				continue // успел вернуться
			}
			if r.Ctx == nil {
				// вне турнира дисконнект разрешается отменой матча,
				// форфейт - турнирная санкция
				log.Printf("Room.Run: матч=%s игрок=%d не вернулся, матч отменен", r.ID, uid)
				r.cancel("opponent_disconnected")
				return
			}
			log.Printf("Room.Run: матч=%s игрок=%d не вернулся, форфейт", r.ID, uid)
			r.finish(r.playerNumber(r.opponentOf(uid)), domain.FinishReasonDisconnect)
			return

		case uid := <-r.Leave:
			// добровольный выход из живого матча = форфейт, молча
			// исчезнуть нельзя
			log.Printf("Room.Run: матч=%s игрок=%d покинул матч", r.ID, uid)
			r.finish(r.playerNumber(r.opponentOf(uid)), domain.FinishReasonForfeit)
			return
		}
	}
}

// waitForPlayers собирает обоих участников; возвращает false, если
// матч разрешился (форфейтом или отменой) не начавшись.
func (r *Room) waitForPlayers() bool {
	deadline := time.NewTimer(joinDeadline)
	defer deadline.Stop()

	for {
		select {
		case c := <-r.Register:
			r.attach(c)
			if len(r.clients) == 2 {
				return true
			}

		case c := <-r.Disconnect:
			delete(r.clients, c.UserID)

		case uid := <-r.Leave:
			r.resolveNoShow(r.opponentOf(uid))
			return false

		case <-deadline.C:
			// никто или не все присоединились к дедлайну
			var joined int64
			for uid := range r.clients {
				joined = uid
			}
			r.resolveNoShow(joined)
			return false
		}
	}
}

// resolveNoShow: матч не стартовал. В турнирном контексте единственный
// явившийся побеждает форфейтом; вне турнира и при пустой комнате
// матч отменяется.
func (r *Room) resolveNoShow(joined int64) {
	if r.Ctx != nil && joined != 0 {
		r.finish(r.playerNumber(joined), domain.FinishReasonForfeit)
		return
	}
	log.Printf("Room.Run: матч=%s отменен, игроки не присоединились", r.ID)
	r.cancel("no_show")
}

// cancel закрывает матч без победителя и проигравшего.
func (r *Room) cancel(reason string) {
	r.status = domain.MatchFinished
	r.broadcast(Message{Type: MsgCancelled, Data: map[string]any{"reason": reason}})
	r.finished.Store(true)
	r.hub.onRoomCancelled(r)
}

func (r *Room) attach(c *Client) {
	r.clients[c.UserID] = c
	if t, ok := r.grace[c.UserID]; ok {
		t.Stop()
		delete(r.grace, c.UserID)
		log.Printf("Room.attach: матч=%s игрок=%d вернулся в течение грейса", r.ID, c.UserID)
	}
	// немедленный снимок, чтобы вернувшийся клиент ре-синхронизировался
	c.Enqueue(Message{Type: MsgStateUpdate, Data: map[string]any{"gameState": r.state()}})
}

func (r *Room) onDisconnect(c *Client) {
	if cur, ok := r.clients[c.UserID]; !ok || cur != c {
		return
	}
	delete(r.clients, c.UserID)

	if r.status != domain.MatchPlaying {
		return
	}

	// симуляция продолжается; отдельный грейс-таймер решит форфейт
	uid := c.UserID
	r.grace[uid] = time.AfterFunc(matchGrace, func() {
		select {
		case r.graceExpired <- uid:
		default:
		}
	})

	r.broadcast(Message{Type: MsgPlayerDisconnected, Data: map[string]any{
		"userId": uid,
		"grace":  matchGrace.Seconds(),
	}})
	log.Printf("Room.onDisconnect: матч=%s игрок=%d отключился, грейс %v", r.ID, uid, matchGrace)
}

// applyInput применяет намерение к ракетке отправителя. Вход за чужую
// ракетку отклоняется структурированной ошибкой, а не ставится в
// очередь.
func (r *Room) applyInput(ev inputEvent) {
	num := r.playerNumber(ev.userID)
	if num == 0 {
		return
	}
	if err := r.engine.SetIntent(num, game.Action(ev.action)); err != nil {
		if c, ok := r.clients[ev.userID]; ok {
			c.Enqueue(Message{Type: MsgError, Data: errorData("bad_input", err.Error())})
		}
	}
}

func (r *Room) opponentOf(userID int64) int64 {
	if userID == r.P1 {
		return r.P2
	}
	return r.P1
}

// state собирает снимок в порядке поколений: клиент обязан игнорировать
// снимок старше последнего примененного.
func (r *Room) state() domain.MatchState {
	ball, p1, p2 := r.engine.Snapshot()
	return domain.MatchState{
		ID:        r.ID,
		Player1ID: r.P1,
		Player2ID: r.P2,
		Status:    r.status,
		Ball:      ball,
		Paddle1:   p1,
		Paddle2:   p2,
		Seq:       r.seq,
		Context:   r.Ctx,
	}
}

func (r *Room) broadcastState() {
	r.seq++
	r.broadcast(Message{Type: MsgStateUpdate, Data: map[string]any{"gameState": r.state()}})
}

func (r *Room) broadcast(msg Message) {
	for _, c := range r.clients {
		c.Enqueue(msg)
	}
}

// finish замораживает состояние, рассылает итог и отдает результат
// хабу. Любой путь отказа заканчивается здесь детерминированной
// развязкой - матч не может остаться ни форфейтнутым, ни идущим.
func (r *Room) finish(winnerNum int, reason string) {
	if winnerNum == 0 {
		winnerNum = 1
	}
	r.engine.ForceWin(winnerNum)
	r.status = domain.MatchFinished
	r.finished.Store(true)

	winnerID, loserID := r.P1, r.P2
	if winnerNum == 2 {
		winnerID, loserID = r.P2, r.P1
	}
	s1, s2 := r.engine.Scores()

	summary := domain.MatchSummary{WinnerID: winnerID, Score1: s1, Score2: s2, Reason: reason}
	r.seq++
	r.broadcast(Message{Type: MsgFinished, Data: map[string]any{
		"gameState": r.state(),
		"summary":   summary,
	}})

	log.Printf("Room.finish: матч=%s победитель=%d счет=%d:%d причина=%s", r.ID, winnerID, s1, s2, reason)
	r.hub.onRoomFinished(r, winnerID, loserID, s1, s2, reason)
}
