package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pong_arena/internal/domain"
	"pong_arena/internal/metrics"
	"pong_arena/internal/repository"

	"github.com/google/uuid"
)

// грейс-период: столько ждем переподключения, прежде чем дисконнект
// превратится в форфейт
const disconnectGrace = 10 * time.Second

// ChallengeHandler - брокер приглашений 1v1 (реализуется в service).
type ChallengeHandler interface {
	Challenge(challengerID, challengedID int64) (string, error)
	Accept(challengeID string, userID int64) error
	Decline(challengeID string, userID int64) error
	Cancel(challengeID string, userID int64) error
	DropFor(userID int64)
}

// TournamentHooks - обратные вызовы оркестратора турниров.
type TournamentHooks interface {
	// вызывается после истечения грейс-периода отключившегося игрока
	HandlePlayerDropped(userID int64)
	// вызывается при завершении турнирного матча
	HandleMatchFinished(tc domain.TournamentContext, winnerID, loserID int64, score1, score2 int)
	// вызывается, когда турнирный матч закрылся без итога
	// (ни один участник не присоединился)
	HandleMatchAbandoned(tc domain.TournamentContext)
	// авторитетный снимок турнира для ре-синхронизации клиента
	SnapshotFor(userID int64) *domain.Tournament
}

// Hub - реестр сессий и владелец всех живых матчей. Одно соединение
// на идентичность: новое соединение того же пользователя вытесняет
// старое. Инвариант "не более одного незавершенного матча на игрока"
// охраняется мьютексом хаба.
type Hub struct {
	mu       sync.RWMutex
	clients  map[int64]*Client
	rooms    map[string]*Room
	userRoom map[int64]string

	// таймеры грейс-периода по отключившимся пользователям
	graceTimers map[int64]*time.Timer

	challenges  ChallengeHandler
	tournaments TournamentHooks

	MatchRepo *repository.MatchRepository
	UserRepo  *repository.UserRepository
}

func NewHub(matchRepo *repository.MatchRepository, userRepo *repository.UserRepository) *Hub {
	return &Hub{
		clients:     make(map[int64]*Client),
		rooms:       make(map[string]*Room),
		userRoom:    make(map[int64]string),
		graceTimers: make(map[int64]*time.Timer),
		MatchRepo:   matchRepo,
		UserRepo:    userRepo,
	}
}

// SetChallengeHandler и SetTournamentHooks вызываются при сборке в main -
// компоненты получают коллабораторов явно, без глобальных синглтонов.
func (h *Hub) SetChallengeHandler(ch ChallengeHandler) { h.challenges = ch }
func (h *Hub) SetTournamentHooks(th TournamentHooks)   { h.tournaments = th }

// Register привязывает соединение к идентичности, шлет presence-дельту
// и проигрывает клиенту минимальный контекст для ре-синхронизации.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if old, ok := h.clients[c.UserID]; ok && old != c {
		// новое соединение вытесняет старое
		log.Printf("Hub.Register: пользователь=%d уже подключен, закрываем старое соединение", c.UserID)
		_ = old.Conn.Close()
	}
	h.clients[c.UserID] = c

	// переподключение внутри грейс-периода отменяет форфейт
	if t, ok := h.graceTimers[c.UserID]; ok {
		t.Stop()
		delete(h.graceTimers, c.UserID)
		log.Printf("Hub.Register: пользователь=%d вернулся в течение грейс-периода", c.UserID)
	}
	roomID, hasRoom := h.userRoom[c.UserID]
	room := h.rooms[roomID]
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.broadcastPresence(c.UserID, c.Username, true)

	// Реконсиляция: сервер - источник истины, клиентский кеш лишь
	// подсказка. Сначала живой матч, затем турнирный контекст.
	if hasRoom && room != nil {
		c.Enqueue(Message{Type: MsgStarted, Data: startedData(room, true)})
	}
	if h.tournaments != nil {
		if t := h.tournaments.SnapshotFor(c.UserID); t != nil {
			c.Enqueue(Message{Type: domain.EventTournamentUpdate, Data: map[string]any{"tournament": t}})
		}
	}
}

// OnDisconnect убирает соединение из реестра и запускает грейс-таймер,
// по истечении которого дисконнект разрешается в форфейт.
func (h *Hub) OnDisconnect(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.UserID]; !ok || cur != c {
		// уже вытеснен новым соединением - ничего не делаем
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.UserID)

	roomID, hasRoom := h.userRoom[c.UserID]
	room := h.rooms[roomID]

	userID := c.UserID
	timer := time.AfterFunc(disconnectGrace, func() {
		h.onGraceExpired(userID)
	})
	h.graceTimers[userID] = timer
	h.mu.Unlock()

	metrics.WSConnections.Dec()
	h.broadcastPresence(c.UserID, c.Username, false)

	if h.challenges != nil {
		h.challenges.DropFor(c.UserID)
	}

	// комната матча ведет собственный грейс по своим участникам
	if hasRoom && room != nil {
		select {
		case room.Disconnect <- c:
		default:
			log.Printf("Hub.OnDisconnect: комната=%s канал Disconnect заполнен", roomID)
		}
	}
}

// onGraceExpired: игрок так и не вернулся - сообщаем оркестратору
// турниров (исключение из сетки / форфейт на ready-check).
func (h *Hub) onGraceExpired(userID int64) {
	h.mu.Lock()
	delete(h.graceTimers, userID)
	if _, reconnected := h.clients[userID]; reconnected {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	log.Printf("Hub.onGraceExpired: пользователь=%d не вернулся за %v", userID, disconnectGrace)
	if h.tournaments != nil {
		h.tournaments.HandlePlayerDropped(userID)
	}
}

// CreateMatch создает комнату матча для двух привязанных идентичностей.
// Проверка занятости и бронирование слотов происходят под одним
// мьютексом: гонка двух одновременных принятий вызова разрешается
// ровно в один созданный матч.
func (h *Hub) CreateMatch(p1, p2 int64, tc *domain.TournamentContext) (string, error) {
	h.mu.Lock()
	if rid, busy := h.userRoom[p1]; busy {
		h.mu.Unlock()
		return "", domain.Errf(domain.CodeAlreadyBusy, "игрок %d уже в матче %s", p1, rid)
	}
	if rid, busy := h.userRoom[p2]; busy {
		h.mu.Unlock()
		return "", domain.Errf(domain.CodeAlreadyBusy, "игрок %d уже в матче %s", p2, rid)
	}

	id := uuid.New().String()[:8]
	room := NewRoom(id, p1, p2, tc, h)
	h.rooms[id] = room
	h.userRoom[p1] = id
	h.userRoom[p2] = id
	c1 := h.clients[p1]
	c2 := h.clients[p2]
	h.mu.Unlock()

	metrics.LiveMatches.Inc()
	log.Printf("Hub.CreateMatch: матч=%s p1=%d p2=%d турнирный=%v", id, p1, p2, tc != nil)
	go room.Run()

	started := Message{Type: MsgStarted, Data: startedData(room, false)}
	if c1 != nil {
		c1.Enqueue(started)
	}
	if c2 != nil {
		c2.Enqueue(started)
	}
	return id, nil
}

func startedData(room *Room, resumed bool) map[string]any {
	data := map[string]any{
		"gameId":            room.ID,
		"isTournamentMatch": room.Ctx != nil,
		"resumed":           resumed,
	}
	if room.Ctx != nil {
		data["tournamentId"] = room.Ctx.TournamentID
		data["matchId"] = room.Ctx.MatchID
	}
	return data
}

// HasLiveMatch сообщает, числится ли за игроком незавершенный матч.
func (h *Hub) HasLiveMatch(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userRoom[userID]
	return ok
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Send - адаптер для сервисного слоя: заворачивает событие в конверт
// канала. Хаб реализует интерфейсы service.EventSender/MatchStarter.
func (h *Hub) Send(userID int64, eventType string, data map[string]any) bool {
	return h.SendToUser(userID, Message{Type: eventType, Data: data})
}

// SendToUser доставляет сообщение, если пользователь подключен.
func (h *Hub) SendToUser(userID int64, msg Message) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Enqueue(msg)
}

// broadcastPresence рассылает presence-дельту всем подключенным.
// Presence перезаписывается по ключу и не требует согласованности
// между полями - достаточно атомарности на ключ.
func (h *Hub) broadcastPresence(userID int64, username string, online bool) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	msg := Message{Type: MsgPresenceUpdate, Data: domain.Presence{
		UserID: userID, Username: username, IsOnline: online,
	}}
	for _, c := range targets {
		c.Enqueue(msg)
	}
}

// HandleMessage разбирает входящий конверт и маршрутизирует его.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Hub.HandleMessage: пользователь=%d неразборчивое сообщение: %v", c.UserID, err)
		return
	}

	switch msg.Type {
	case MsgChallenge:
		var req challengeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.Enqueue(Message{Type: MsgChallengeError, Data: errorData("BadRequest", "неверная полезная нагрузка")})
			return
		}
		h.handleChallengeErr(c, func() error {
			_, err := h.challenges.Challenge(c.UserID, req.ChallengedUserID)
			return err
		})

	case MsgChallengeAccept, MsgChallengeDecline, MsgChallengeCancel:
		var ref challengeRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			c.Enqueue(Message{Type: MsgChallengeError, Data: errorData("BadRequest", "неверная полезная нагрузка")})
			return
		}
		h.handleChallengeErr(c, func() error {
			switch msg.Type {
			case MsgChallengeAccept:
				return h.challenges.Accept(ref.ChallengeID, c.UserID)
			case MsgChallengeDecline:
				return h.challenges.Decline(ref.ChallengeID, c.UserID)
			default:
				return h.challenges.Cancel(ref.ChallengeID, c.UserID)
			}
		})

	case MsgJoin, MsgInput, MsgLeave:
		var ref gameRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			c.Enqueue(Message{Type: MsgError, Data: errorData("BadRequest", "неверная полезная нагрузка")})
			return
		}
		h.routeToRoom(c, msg.Type, ref)

	default:
		log.Printf("Hub.HandleMessage: пользователь=%d неизвестный тип=%s", c.UserID, msg.Type)
	}
}

func (h *Hub) handleChallengeErr(c *Client, fn func() error) {
	if h.challenges == nil {
		c.Enqueue(Message{Type: MsgChallengeError, Data: errorData("Unavailable", "брокер вызовов не настроен")})
		return
	}
	if err := fn(); err != nil {
		if ce, ok := domain.AsCoded(err); ok {
			c.Enqueue(Message{Type: MsgChallengeError, Data: errorData(ce.Code, ce.Message)})
			return
		}
		c.Enqueue(Message{Type: MsgChallengeError, Data: errorData("Internal", err.Error())})
	}
}

// routeToRoom проверяет принадлежность клиента матчу и передает событие
// в акторную горутину комнаты. Протухший идентификатор матча из кеша
// клиента никогда не приводит к присоединению - только к сбросу.
func (h *Hub) routeToRoom(c *Client, msgType string, ref gameRef) {
	h.mu.RLock()
	room, ok := h.rooms[ref.GameID]
	h.mu.RUnlock()

	if !ok || !room.HasPlayer(c.UserID) {
		c.Enqueue(Message{Type: MsgError, Data: errorData("match_not_found",
			"матч не найден или вы не являетесь его участником")})
		return
	}

	switch msgType {
	case MsgJoin:
		select {
		case room.Register <- c:
		case <-time.After(2 * time.Second):
			log.Printf("Hub.routeToRoom: таймаут регистрации пользователя=%d в матч=%s", c.UserID, ref.GameID)
		}
	case MsgInput:
		ev := inputEvent{userID: c.UserID, action: ref.Action}
		// неблокирующая постановка: при заполненной очереди вытесняем
		// самое старое намерение - актуально только последнее
		select {
		case room.Input <- ev:
		default:
			select {
			case <-room.Input:
			default:
			}
			select {
			case room.Input <- ev:
			default:
			}
		}
	case MsgLeave:
		select {
		case room.Leave <- c.UserID:
		default:
		}
	}
}

// onRoomFinished вызывается акторной горутиной комнаты после финального
// снимка: чистим реестры, пишем историю, двигаем сетку турнира.
func (h *Hub) onRoomFinished(room *Room, winnerID, loserID int64, s1, s2 int, reason string) {
	h.detachRoom(room)
	metrics.LiveMatches.Dec()
	metrics.MatchesFinished.Inc()
	if reason != domain.FinishReasonScore {
		metrics.Forfeits.Inc()
	}

	h.persistResult(room, winnerID, loserID, s1, s2, reason)

	if room.Ctx != nil && h.tournaments != nil {
		h.tournaments.HandleMatchFinished(*room.Ctx, winnerID, loserID, s1, s2)
	}
}

// onRoomCancelled - матч не состоялся (никто не присоединился и т.п.).
func (h *Hub) onRoomCancelled(room *Room) {
	h.detachRoom(room)
	metrics.LiveMatches.Dec()
	if room.Ctx != nil && h.tournaments != nil {
		h.tournaments.HandleMatchAbandoned(*room.Ctx)
	}
}

func (h *Hub) detachRoom(room *Room) {
	h.mu.Lock()
	delete(h.rooms, room.ID)
	if h.userRoom[room.P1] == room.ID {
		delete(h.userRoom, room.P1)
	}
	if h.userRoom[room.P2] == room.ID {
		delete(h.userRoom, room.P2)
	}
	h.mu.Unlock()
	log.Printf("Hub.detachRoom: матч=%s убран из реестра", room.ID)
}

// persistResult пишет историю и статистику в фоне, чтобы не задерживать
// актор комнаты. Репозитории nil-безопасны: без базы сервер играет.
func (h *Hub) persistResult(room *Room, winnerID, loserID int64, s1, s2 int, reason string) {
	if h.MatchRepo == nil && h.UserRepo == nil {
		return
	}
	rows := matchHistoryRows(room, winnerID, loserID, s1, s2, reason)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if h.MatchRepo != nil {
			for _, row := range rows {
				if err := h.MatchRepo.Create(ctx, row); err != nil {
					log.Printf("Hub.persistResult: запись истории не удалась: %v", err)
				}
			}
		}
		if h.UserRepo != nil {
			if err := h.UserRepo.RecordResult(ctx, winnerID, loserID); err != nil {
				log.Printf("Hub.persistResult: обновление статистики не удалось: %v", err)
			}
		}
	}()
}

func matchHistoryRows(room *Room, winnerID, loserID int64, s1, s2 int, reason string) []*domain.MatchHistory {
	scoreFor := func(uid int64) (int, int) {
		if uid == room.P1 {
			return s1, s2
		}
		return s2, s1
	}
	wf, wa := scoreFor(winnerID)
	lf, la := scoreFor(loserID)
	return []*domain.MatchHistory{
		{UserID: winnerID, OpponentID: loserID, MatchID: room.ID, Result: domain.MatchResultWin,
			ScoreFor: wf, ScoreAgainst: wa, Reason: reason, Context: room.Ctx},
		{UserID: loserID, OpponentID: winnerID, MatchID: room.ID, Result: domain.MatchResultLose,
			ScoreFor: lf, ScoreAgainst: la, Reason: reason, Context: room.Ctx},
	}
}

// StateFor - авторитетный контекст для pull-реконсиляции (REST /state).
func (h *Hub) StateFor(userID int64) map[string]any {
	h.mu.RLock()
	roomID, hasRoom := h.userRoom[userID]
	room := h.rooms[roomID]
	h.mu.RUnlock()

	state := map[string]any{}
	if hasRoom && room != nil {
		state["match"] = startedData(room, true)
	}
	if h.tournaments != nil {
		if t := h.tournaments.SnapshotFor(userID); t != nil {
			state["tournament"] = t
		}
	}
	return state
}

// StartCleanup запускает фоновую уборку осиротевших комнат -
// страховка на случай, если актор комнаты не дошел до detachRoom.
func (h *Hub) StartCleanup() {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			h.cleanupStaleRooms()
		}
	}()
}

func (h *Hub) cleanupStaleRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for id, room := range h.rooms {
		if room.Finished() && now.Sub(room.CreatedAt) > time.Hour {
			delete(h.rooms, id)
			for uid, rid := range h.userRoom {
				if rid == id {
					delete(h.userRoom, uid)
				}
			}
			log.Printf("Hub.cleanupStaleRooms: убрана устаревшая комната=%s", id)
		}
	}
}
