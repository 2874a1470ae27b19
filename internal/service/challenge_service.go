package service

import (
	"sync"
	"time"

	"pong_arena/internal/domain"
	"pong_arena/internal/logger"
	"pong_arena/internal/metrics"

	"github.com/google/uuid"
)

// неотвеченное приглашение истекает само
const challengeTimeout = 30 * time.Second

// EventSender доставляет событие подключенному пользователю.
// Реализуется хабом; сервисы получают его при сборке, а не через
// глобальное состояние.
type EventSender interface {
	Send(userID int64, eventType string, data map[string]any) bool
	IsOnline(userID int64) bool
}

// MatchStarter создает матчи и отвечает за инвариант
// "не более одного живого матча на игрока".
type MatchStarter interface {
	CreateMatch(p1, p2 int64, tc *domain.TournamentContext) (string, error)
	HasLiveMatch(userID int64) bool
}

// ChallengeService - брокер приглашений 1v1. Пересекающиеся
// приглашения - запрещенное состояние, а не задача очереди: новое
// приглашение занятой стороне отклоняется сразу.
type ChallengeService struct {
	mu         sync.Mutex
	challenges map[string]*domain.Challenge
	byUser     map[int64]string // открытое приглашение пользователя (в любую сторону)
	timers     map[string]*time.Timer

	sender  EventSender
	matches MatchStarter
	timeout time.Duration
}

func NewChallengeService(sender EventSender, matches MatchStarter) *ChallengeService {
	return &ChallengeService{
		challenges: make(map[string]*domain.Challenge),
		byUser:     make(map[int64]string),
		timers:     make(map[string]*time.Timer),
		sender:     sender,
		matches:    matches,
		timeout:    challengeTimeout,
	}
}

// Challenge открывает приглашение challenger -> challenged.
func (s *ChallengeService) Challenge(challengerID, challengedID int64) (string, error) {
	if challengerID == challengedID {
		return "", domain.Errf(domain.CodeAlreadyBusy, "нельзя вызвать самого себя")
	}
	if !s.sender.IsOnline(challengedID) {
		return "", domain.Errf(domain.CodeTargetOffline, "игрок %d не в сети", challengedID)
	}

	s.mu.Lock()
	if s.matches.HasLiveMatch(challengerID) || s.matches.HasLiveMatch(challengedID) {
		s.mu.Unlock()
		return "", domain.Errf(domain.CodeAlreadyBusy, "одна из сторон уже играет матч")
	}
	// занятая приглашением сторона = авто-отклонение нового, старое
	// приглашение остается открытым
	if _, busy := s.byUser[challengerID]; busy {
		s.mu.Unlock()
		return "", domain.Errf(domain.CodeAlreadyBusy, "у вас уже есть открытое приглашение")
	}
	if _, busy := s.byUser[challengedID]; busy {
		s.mu.Unlock()
		return "", domain.Errf(domain.CodeAlreadyBusy, "у игрока %d уже есть открытое приглашение", challengedID)
	}

	ch := &domain.Challenge{
		ID:           uuid.New().String()[:8],
		ChallengerID: challengerID,
		ChallengedID: challengedID,
		Status:       domain.ChallengeSent,
		CreatedAt:    time.Now(),
	}
	s.challenges[ch.ID] = ch
	s.byUser[challengerID] = ch.ID
	s.byUser[challengedID] = ch.ID
	s.timers[ch.ID] = time.AfterFunc(s.timeout, func() { s.expire(ch.ID) })
	s.mu.Unlock()

	metrics.ChallengesSent.Inc()
	logger.Info("приглашение отправлено", "challenge", ch.ID, "from", challengerID, "to", challengedID)

	s.sender.Send(challengedID, domain.EventChallengeReceived, map[string]any{
		"challengeId":  ch.ID,
		"challengerId": challengerID,
	})
	s.sender.Send(challengerID, domain.EventChallengeSent, map[string]any{
		"challengeId":      ch.ID,
		"challengedUserId": challengedID,
	})
	return ch.ID, nil
}

// Accept принимает приглашение и создает матч. Принятие уже
// разрешенного приглашения падает чисто, осиротевший матч не
// создается.
func (s *ChallengeService) Accept(challengeID string, userID int64) error {
	s.mu.Lock()
	ch, ok := s.challenges[challengeID]
	if !ok || !ch.Open() {
		s.mu.Unlock()
		return domain.Errf(domain.CodeChallengeResolved, "приглашение %s уже разрешено", challengeID)
	}
	if ch.ChallengedID != userID {
		s.mu.Unlock()
		return domain.Errf(domain.CodeNotParticipant, "приглашение %s адресовано не вам", challengeID)
	}
	ch.Status = domain.ChallengeAccepted
	s.resolveLocked(ch)
	s.mu.Unlock()

	_, err := s.matches.CreateMatch(ch.ChallengerID, ch.ChallengedID, nil)
	if err != nil {
		// гонка: одна из сторон успела оказаться в матче
		logger.Warn("не удалось создать матч по приглашению", "challenge", challengeID, "error", err)
		s.sender.Send(ch.ChallengerID, domain.EventChallengeCancelled, map[string]any{
			"challengeId": challengeID, "reason": "busy",
		})
		return err
	}
	return nil
}

// Decline отклоняет входящее приглашение.
func (s *ChallengeService) Decline(challengeID string, userID int64) error {
	s.mu.Lock()
	ch, ok := s.challenges[challengeID]
	if !ok || !ch.Open() {
		s.mu.Unlock()
		return domain.Errf(domain.CodeChallengeResolved, "приглашение %s уже разрешено", challengeID)
	}
	if ch.ChallengedID != userID {
		s.mu.Unlock()
		return domain.Errf(domain.CodeNotParticipant, "приглашение %s адресовано не вам", challengeID)
	}
	ch.Status = domain.ChallengeDeclined
	s.resolveLocked(ch)
	s.mu.Unlock()

	s.sender.Send(ch.ChallengerID, domain.EventChallengeDeclined, map[string]any{
		"challengeId": challengeID,
	})
	return nil
}

// Cancel отзывает собственное исходящее приглашение.
func (s *ChallengeService) Cancel(challengeID string, userID int64) error {
	s.mu.Lock()
	ch, ok := s.challenges[challengeID]
	if !ok || !ch.Open() {
		s.mu.Unlock()
		return domain.Errf(domain.CodeChallengeResolved, "приглашение %s уже разрешено", challengeID)
	}
	if ch.ChallengerID != userID {
		s.mu.Unlock()
		return domain.Errf(domain.CodeNotParticipant, "отозвать может только отправитель")
	}
	ch.Status = domain.ChallengeCancelled
	s.resolveLocked(ch)
	s.mu.Unlock()

	s.sender.Send(ch.ChallengedID, domain.EventChallengeCancelled, map[string]any{
		"challengeId": challengeID, "reason": "cancelled",
	})
	return nil
}

// DropFor закрывает открытые приглашения отключившегося пользователя.
func (s *ChallengeService) DropFor(userID int64) {
	s.mu.Lock()
	id, ok := s.byUser[userID]
	if !ok {
		s.mu.Unlock()
		return
	}
	ch := s.challenges[id]
	if ch == nil || !ch.Open() {
		s.mu.Unlock()
		return
	}
	ch.Status = domain.ChallengeCancelled
	s.resolveLocked(ch)
	s.mu.Unlock()

	other := ch.ChallengerID
	if other == userID {
		other = ch.ChallengedID
	}
	s.sender.Send(other, domain.EventChallengeCancelled, map[string]any{
		"challengeId": ch.ID, "reason": "offline",
	})
}

// expire: временная ошибка разрешается самим брокером, клиенту она
// не ретраибельна.
func (s *ChallengeService) expire(challengeID string) {
	s.mu.Lock()
	ch, ok := s.challenges[challengeID]
	if !ok || !ch.Open() {
		s.mu.Unlock()
		return
	}
	ch.Status = domain.ChallengeExpired
	s.resolveLocked(ch)
	s.mu.Unlock()

	logger.Info("приглашение истекло", "challenge", challengeID)
	data := map[string]any{"challengeId": challengeID, "reason": "timeout"}
	s.sender.Send(ch.ChallengerID, domain.EventChallengeCancelled, data)
	s.sender.Send(ch.ChallengedID, domain.EventChallengeCancelled, data)
}

// resolveLocked снимает бронь слотов и таймер и убирает приглашение из
// реестра; вызывающий держит mu (и свою копию указателя, если данные
// нужны после).
func (s *ChallengeService) resolveLocked(ch *domain.Challenge) {
	if s.byUser[ch.ChallengerID] == ch.ID {
		delete(s.byUser, ch.ChallengerID)
	}
	if s.byUser[ch.ChallengedID] == ch.ID {
		delete(s.byUser, ch.ChallengedID)
	}
	if t, ok := s.timers[ch.ID]; ok {
		t.Stop()
		delete(s.timers, ch.ID)
	}
	delete(s.challenges, ch.ID)
}

// OpenFor возвращает id открытого приглашения пользователя, если есть.
func (s *ChallengeService) OpenFor(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	return id, ok
}
