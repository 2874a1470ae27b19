package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"pong_arena/internal/domain"
	"pong_arena/internal/logger"
	"pong_arena/internal/metrics"
	"pong_arena/internal/repository"

	"github.com/google/uuid"
)

const (
	// окно ready-check: столько у пары есть на подтверждение готовности
	defaultReadyTimeout = 10 * time.Second
	// коалесцирование всплесков событий сетки в один консистентный снимок
	defaultDebounce = 150 * time.Millisecond
	// сколько терминальный турнир остается доступным по id после финала
	defaultRetain = time.Hour

	finalRound = 2
)

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,16}$`)

// TournamentConfig выносит тайминги наружу, чтобы тесты не ждали
// настоящие секунды.
type TournamentConfig struct {
	ReadyTimeout time.Duration
	Debounce     time.Duration
	Retain       time.Duration
}

func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{ReadyTimeout: defaultReadyTimeout, Debounce: defaultDebounce, Retain: defaultRetain}
}

// tournamentState - один турнир со своим мьютексом: все мутации пар и
// флагов готовности сериализуются, одновременные "ready" обоих игроков
// не теряют обновлений.
type tournamentState struct {
	mu          sync.Mutex
	t           *domain.Tournament
	readyTimers map[string]*time.Timer // matchID -> дедлайн ready-check
	debounce    *time.Timer
}

// TournamentService - оркестратор сеток: состав, ready-check,
// форфейты, продвижение раундов и объявление чемпиона.
type TournamentService struct {
	mu          sync.RWMutex
	tournaments map[string]*tournamentState
	memberOf    map[int64]string // пользователь -> нетерминальный турнир

	sender  EventSender
	matches MatchStarter
	repo    *repository.TournamentRepository
	cfg     TournamentConfig
}

func NewTournamentService(sender EventSender, matches MatchStarter, repo *repository.TournamentRepository, cfg TournamentConfig) *TournamentService {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetain
	}
	return &TournamentService{
		tournaments: make(map[string]*tournamentState),
		memberOf:    make(map[int64]string),
		sender:      sender,
		matches:     matches,
		repo:        repo,
		cfg:         cfg,
	}
}

// ValidAlias проверяет формат алиаса участника.
func ValidAlias(alias string) bool {
	return aliasRe.MatchString(alias)
}

// ValidTournamentName проверяет формат имени турнира.
func ValidTournamentName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 32 {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// Create создает турнир в состоянии waiting с создателем в первом слоте.
func (s *TournamentService) Create(ownerID int64, ownerAlias, name string) (*domain.Tournament, error) {
	if !ValidTournamentName(name) {
		return nil, domain.Errf(domain.CodeInvalidName, "имя турнира: 3-32 печатных символа")
	}
	if !ValidAlias(ownerAlias) {
		return nil, domain.Errf(domain.CodeInvalidAlias, "алиас: 3-16 символов [A-Za-z0-9_-]")
	}

	s.mu.Lock()
	if tid, ok := s.memberOf[ownerID]; ok {
		s.mu.Unlock()
		return nil, domain.Errf(domain.CodeAlreadyInTournament, "вы уже участвуете в турнире %s", tid)
	}

	uid := ownerID
	t := &domain.Tournament{
		ID:         uuid.New().String()[:8],
		Name:       strings.TrimSpace(name),
		Status:     domain.TournamentWaiting,
		OwnerID:    ownerID,
		OwnerAlias: ownerAlias,
		Players:    []domain.TournamentPlayer{{Alias: ownerAlias, UserID: &uid}},
		CreatedAt:  time.Now(),
	}
	st := &tournamentState{t: t, readyTimers: make(map[string]*time.Timer)}
	s.tournaments[t.ID] = st
	s.memberOf[ownerID] = t.ID
	s.mu.Unlock()

	metrics.ActiveTournaments.Inc()
	logger.Info("турнир создан", "tournament", t.ID, "name", t.Name, "owner", ownerID)
	return s.snapshot(st), nil
}

// Join добавляет участника в ожидающий турнир.
func (s *TournamentService) Join(tournamentID string, userID int64, alias string) (*domain.Tournament, error) {
	if !ValidAlias(alias) {
		return nil, domain.Errf(domain.CodeInvalidAlias, "алиас: 3-16 символов [A-Za-z0-9_-]")
	}

	s.mu.Lock()
	if tid, ok := s.memberOf[userID]; ok && tid != tournamentID {
		s.mu.Unlock()
		return nil, domain.Errf(domain.CodeAlreadyInTournament, "вы уже участвуете в турнире %s", tid)
	}
	st, ok := s.tournaments[tournamentID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.Errf(domain.CodeNotFound, "турнир %s не найден", tournamentID)
	}
	s.mu.Unlock()

	st.mu.Lock()
	if st.t.Status != domain.TournamentWaiting {
		st.mu.Unlock()
		return nil, domain.Errf(domain.CodeTournamentNotJoinable, "турнир %s уже не набирает игроков", tournamentID)
	}
	for _, p := range st.t.Players {
		if p.UserID != nil && *p.UserID == userID {
			// повторный join того же пользователя - идемпотентный успех
			st.mu.Unlock()
			return s.snapshot(st), nil
		}
		if p.Alias == alias {
			st.mu.Unlock()
			return nil, domain.Errf(domain.CodeInvalidAlias, "алиас %s уже занят", alias)
		}
	}
	if len(st.t.Players) >= domain.TournamentSize {
		st.mu.Unlock()
		return nil, domain.Errf(domain.CodeTournamentFull, "турнир %s заполнен", tournamentID)
	}
	uid := userID
	st.t.Players = append(st.t.Players, domain.TournamentPlayer{Alias: alias, UserID: &uid})
	st.mu.Unlock()

	s.mu.Lock()
	s.memberOf[userID] = tournamentID
	s.mu.Unlock()

	logger.Info("игрок вошел в турнир", "tournament", tournamentID, "user", userID, "alias", alias)
	s.notifyChanged(st)
	return s.snapshot(st), nil
}

// Start запускает сетку: только владелец, ровно 4 участника.
// Посев раунда 1 детерминирован порядком входа: первый против
// четвертого, второй против третьего - прогон воспроизводим.
func (s *TournamentService) Start(tournamentID string, userID int64) (*domain.Tournament, error) {
	st, err := s.state(tournamentID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	t := st.t
	if t.Status != domain.TournamentWaiting {
		st.mu.Unlock()
		return nil, domain.Errf(domain.CodeTournamentNotJoinable, "турнир %s уже запущен или завершен", tournamentID)
	}
	if t.OwnerID != userID {
		st.mu.Unlock()
		return nil, domain.Errf(domain.CodeNotOwner, "запустить турнир может только владелец")
	}
	if len(t.Players) != domain.TournamentSize {
		st.mu.Unlock()
		return nil, domain.Errf(domain.CodeWrongPlayerCount, "нужно ровно %d игрока, сейчас %d", domain.TournamentSize, len(t.Players))
	}

	t.Status = domain.TournamentActive
	t.CurrentRound = 1
	s.seedPairingsLocked(st, 1, [][2]domain.TournamentPlayer{
		{t.Players[0], t.Players[3]},
		{t.Players[1], t.Players[2]},
	})
	members := s.memberIDsLocked(t)
	st.mu.Unlock()

	logger.Info("турнир запущен", "tournament", tournamentID)
	s.broadcast(members, domain.EventTournamentStarted, map[string]any{
		"tournamentId": tournamentID,
		"round":        1,
	})
	s.notifyChanged(st)
	return s.snapshot(st), nil
}

// seedPairingsLocked создает пары раунда и взводит их ready-дедлайны.
func (s *TournamentService) seedPairingsLocked(st *tournamentState, round int, pairs [][2]domain.TournamentPlayer) {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for _, pair := range pairs {
		p := &domain.Pairing{
			MatchID:       uuid.New().String()[:8],
			Round:         round,
			Player1Alias:  pair[0].Alias,
			Player2Alias:  pair[1].Alias,
			Player1UserID: pair[0].UserID,
			Player2UserID: pair[1].UserID,
			Status:        domain.PairingPending,
			ReadyDeadline: &deadline,
		}
		st.t.Pairings = append(st.t.Pairings, p)

		matchID := p.MatchID
		st.readyTimers[matchID] = time.AfterFunc(s.cfg.ReadyTimeout, func() {
			s.onReadyDeadline(st, matchID)
		})
	}
}

// Ready отмечает готовность игрока в его текущей паре. Повторный вызов -
// no-op, не ошибка; сам по себе вызов матч не запускает.
func (s *TournamentService) Ready(tournamentID string, userID int64) error {
	st, err := s.state(tournamentID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.t.Status != domain.TournamentActive {
		st.mu.Unlock()
		return domain.Errf(domain.CodeTournamentNotJoinable, "турнир %s не активен", tournamentID)
	}
	p := s.pendingPairingOfLocked(st, userID)
	if p == nil {
		st.mu.Unlock()
		return domain.Errf(domain.CodeNotParticipant, "у вас нет ожидающей пары в турнире %s", tournamentID)
	}

	if p.Player1UserID != nil && *p.Player1UserID == userID {
		p.P1Ready = true
	} else {
		p.P2Ready = true
	}
	bothReady := p.P1Ready && p.P2Ready
	st.mu.Unlock()

	s.notifyChanged(st)
	if !bothReady {
		return nil
	}
	return s.startPairing(st, p.MatchID)
}

// startPairing переводит пару pending -> active и создает матч под
// турнирным контекстом. Флаги готовности сбрасываются для следующих
// раундов.
func (s *TournamentService) startPairing(st *tournamentState, matchID string) error {
	st.mu.Lock()
	p := s.pairingLocked(st, matchID)
	if p == nil || p.Status != domain.PairingPending || !p.P1Ready || !p.P2Ready {
		st.mu.Unlock()
		return nil
	}
	if t, ok := st.readyTimers[matchID]; ok {
		t.Stop()
		delete(st.readyTimers, matchID)
	}
	p.Status = domain.PairingActive
	p.ReadyDeadline = nil
	p.P1Ready = false
	p.P2Ready = false
	p1, p2 := *p.Player1UserID, *p.Player2UserID
	tid := st.t.ID
	members := s.memberIDsLocked(st.t)
	st.mu.Unlock()

	_, err := s.matches.CreateMatch(p1, p2, &domain.TournamentContext{TournamentID: tid, MatchID: matchID})
	if err != nil {
		// гонка с вне-турнирным матчем: возвращаем пару в ожидание,
		// дедлайн разрешит ее детерминированно
		logger.Warn("не удалось создать турнирный матч", "tournament", tid, "match", matchID, "error", err)
		st.mu.Lock()
		p.Status = domain.PairingPending
		deadline := time.Now().Add(s.cfg.ReadyTimeout)
		p.ReadyDeadline = &deadline
		st.readyTimers[matchID] = time.AfterFunc(s.cfg.ReadyTimeout, func() {
			s.onReadyDeadline(st, matchID)
		})
		st.mu.Unlock()
		return err
	}

	logger.Info("турнирный матч запущен", "tournament", tid, "match", matchID)
	s.broadcast(members, domain.EventTournamentMatchStarted, map[string]any{
		"tournamentId": tid,
		"matchId":      matchID,
	})
	s.notifyChanged(st)
	return nil
}

// onReadyDeadline разрешает пару, не собравшую обе готовности:
// единственная готовая сторона проходит дальше форфейтом; если не
// готова ни одна - турнир отменяется (минимальное условие
// жизнеспособности не выполнено).
func (s *TournamentService) onReadyDeadline(st *tournamentState, matchID string) {
	st.mu.Lock()
	delete(st.readyTimers, matchID)
	p := s.pairingLocked(st, matchID)
	if p == nil || p.Status != domain.PairingPending || st.t.Status != domain.TournamentActive {
		st.mu.Unlock()
		return
	}

	if p.P1Ready && p.P2Ready {
		// гонка со второй готовностью: запуск пары уже в полете,
		// дожимаем его вместо отмены
		st.mu.Unlock()
		if err := s.startPairing(st, matchID); err != nil {
			logger.Error("запуск пары после дедлайна не удался", "tournament", st.t.ID, "match", matchID, "error", err)
		}
		return
	}
	if !p.P1Ready && !p.P2Ready {
		// ни одной готовности к дедлайну
		st.mu.Unlock()
		logger.Warn("ready-check провален обеими сторонами", "tournament", st.t.ID, "match", matchID)
		s.cancelTournament(st, "ready_check_failed")
		return
	}

	winner, loser := p.Player1Alias, p.Player2Alias
	if p.P2Ready {
		winner, loser = p.Player2Alias, p.Player1Alias
	}
	st.mu.Unlock()

	logger.Info("форфейт по дедлайну ready-check", "tournament", st.t.ID, "match", matchID, "winner", winner)
	s.forfeitPairing(st, matchID, winner, loser, "ready_timeout")
}

// forfeitPairing закрывает пару форфейтом без матча.
func (s *TournamentService) forfeitPairing(st *tournamentState, matchID, winnerAlias, loserAlias, reason string) {
	st.mu.Lock()
	p := s.pairingLocked(st, matchID)
	if p == nil || p.Status == domain.PairingFinished {
		st.mu.Unlock()
		return
	}
	if t, ok := st.readyTimers[matchID]; ok {
		t.Stop()
		delete(st.readyTimers, matchID)
	}
	p.Status = domain.PairingFinished
	p.ReadyDeadline = nil
	p.WinnerAlias = winnerAlias
	tid := st.t.ID
	members := s.memberIDsLocked(st.t)
	st.mu.Unlock()

	metrics.Forfeits.Inc()
	s.broadcast(members, domain.EventTournamentEliminated, map[string]any{
		"tournamentId": tid,
		"matchId":      matchID,
		"eliminated":   loserAlias,
		"winner":       winnerAlias,
		"reason":       reason,
	})
	s.advanceIfRoundComplete(st)
	s.notifyChanged(st)
}

// HandleMatchFinished вызывается хабом по завершении турнирного матча.
func (s *TournamentService) HandleMatchFinished(tc domain.TournamentContext, winnerID, loserID int64, score1, score2 int) {
	st, err := s.state(tc.TournamentID)
	if err != nil {
		logger.Warn("завершение матча неизвестного турнира", "tournament", tc.TournamentID)
		return
	}

	st.mu.Lock()
	p := s.pairingLocked(st, tc.MatchID)
	if p == nil || p.Status == domain.PairingFinished {
		st.mu.Unlock()
		return
	}
	p.Status = domain.PairingFinished
	winnerAlias := p.Player1Alias
	if p.Player2UserID != nil && *p.Player2UserID == winnerID {
		winnerAlias = p.Player2Alias
	}
	p.WinnerAlias = winnerAlias
	tid := st.t.ID
	members := s.memberIDsLocked(st.t)
	st.mu.Unlock()

	logger.Info("турнирный матч завершен", "tournament", tid, "match", tc.MatchID, "winner", winnerAlias)
	s.broadcast(members, domain.EventTournamentMatchFinished, map[string]any{
		"tournamentId": tid,
		"matchId":      tc.MatchID,
		"winner":       winnerAlias,
		"score1":       score1,
		"score2":       score2,
	})
	s.advanceIfRoundComplete(st)
	s.notifyChanged(st)
}

// HandleMatchAbandoned вызывается хабом, когда турнирный матч закрылся
// без итога: ни один участник так и не присоединился. Пара не может
// дать победителя, сетка нежизнеспособна - турнир отменяется.
func (s *TournamentService) HandleMatchAbandoned(tc domain.TournamentContext) {
	st, err := s.state(tc.TournamentID)
	if err != nil {
		return
	}

	st.mu.Lock()
	p := s.pairingLocked(st, tc.MatchID)
	if p == nil || p.Status == domain.PairingFinished || st.t.Status != domain.TournamentActive {
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()

	logger.Warn("турнирный матч брошен обеими сторонами", "tournament", tc.TournamentID, "match", tc.MatchID)
	s.cancelTournament(st, "match_abandoned")
}

// advanceIfRoundComplete сеет раунд N+1 тогда и только тогда, когда все
// пары раунда N завершены; победитель финала становится чемпионом.
func (s *TournamentService) advanceIfRoundComplete(st *tournamentState) {
	st.mu.Lock()
	t := st.t
	if t.Status != domain.TournamentActive {
		st.mu.Unlock()
		return
	}

	var current []*domain.Pairing
	for _, p := range t.Pairings {
		if p.Round == t.CurrentRound {
			current = append(current, p)
		}
	}
	for _, p := range current {
		if p.Status != domain.PairingFinished {
			st.mu.Unlock()
			return
		}
	}

	if t.CurrentRound >= finalRound {
		final := current[0]
		champion := s.playerByAliasLocked(t, final.WinnerAlias)
		t.Champion = champion
		t.Status = domain.TournamentFinished
		members := s.memberIDsLocked(t)
		st.mu.Unlock()

		logger.Info("турнир завершен", "tournament", t.ID, "champion", final.WinnerAlias)
		metrics.ActiveTournaments.Dec()
		s.broadcast(members, domain.EventTournamentFinished, map[string]any{
			"tournamentId": t.ID,
			"champion":     champion,
		})
		s.releaseMembers(t)
		s.persist(st)
		s.scheduleEviction(t.ID)
		return
	}

	// победители в порядке пар текущего раунда
	var winners []domain.TournamentPlayer
	for _, p := range current {
		if w := s.playerByAliasLocked(t, p.WinnerAlias); w != nil {
			winners = append(winners, *w)
		}
	}
	if len(winners) < 2 {
		st.mu.Unlock()
		s.cancelTournament(st, "not_enough_players")
		return
	}

	t.CurrentRound++
	round := t.CurrentRound
	s.seedPairingsLocked(st, round, [][2]domain.TournamentPlayer{{winners[0], winners[1]}})
	members := s.memberIDsLocked(t)
	st.mu.Unlock()

	logger.Info("раунд завершен, посеян следующий", "tournament", t.ID, "round", round)
	s.broadcast(members, domain.EventTournamentRoundComplete, map[string]any{
		"tournamentId": t.ID,
		"round":        round - 1,
		"nextRound":    round,
	})
}

// HandlePlayerDropped: участник не вернулся за грейс-период.
// Ожидающий турнир просто теряет игрока; в активном игрок
// форфейтится из своей нерешенной пары. Активный матч пара решает
// сама через грейс комнаты.
func (s *TournamentService) HandlePlayerDropped(userID int64) {
	s.mu.RLock()
	tid, ok := s.memberOf[userID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	st, err := s.state(tid)
	if err != nil {
		return
	}

	st.mu.Lock()
	t := st.t
	switch t.Status {
	case domain.TournamentWaiting:
		for i, p := range t.Players {
			if p.UserID != nil && *p.UserID == userID {
				t.Players = append(t.Players[:i], t.Players[i+1:]...)
				break
			}
		}
		ownerLeft := t.OwnerID == userID
		st.mu.Unlock()

		s.mu.Lock()
		delete(s.memberOf, userID)
		s.mu.Unlock()

		if ownerLeft {
			s.cancelTournament(st, "owner_left")
			return
		}
		s.notifyChanged(st)
		return

	case domain.TournamentActive:
		alias := ""
		if p := s.playerByIDLocked(t, userID); p != nil {
			alias = p.Alias
		}
		var pending *domain.Pairing
		for _, p := range t.Pairings {
			if p.Status == domain.PairingPending && p.HasPlayer(alias) {
				pending = p
				break
			}
		}
		st.mu.Unlock()

		if pending == nil {
			// либо уже выбыл, либо играет матч - комната решит сама
			return
		}
		winner := pending.Player1Alias
		if winner == alias {
			winner = pending.Player2Alias
		}
		logger.Info("форфейт по дисконнекту", "tournament", tid, "user", userID, "alias", alias)
		s.forfeitPairing(st, pending.MatchID, winner, alias, "disconnect")
		return

	default:
		st.mu.Unlock()
		return
	}
}

// Leave: выход из идущего турнира маршрутизируется через тот же
// форфейтный путь - молча исчезнуть нельзя.
func (s *TournamentService) Leave(tournamentID string, userID int64) error {
	st, err := s.state(tournamentID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if s.playerByIDLocked(st.t, userID) == nil {
		st.mu.Unlock()
		return domain.Errf(domain.CodeNotParticipant, "вы не участник турнира %s", tournamentID)
	}
	st.mu.Unlock()

	s.HandlePlayerDropped(userID)
	return nil
}

// Quit освобождает бухгалтерию слота и разрешен только в терминальном
// состоянии турнира.
func (s *TournamentService) Quit(tournamentID string, userID int64) error {
	st, err := s.state(tournamentID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	terminal := st.t.Status.IsTerminal()
	st.mu.Unlock()
	if !terminal {
		return domain.Errf(domain.CodeTournamentNotJoinable, "выйти можно только из завершенного турнира, используйте forfeit")
	}

	s.mu.Lock()
	if s.memberOf[userID] == tournamentID {
		delete(s.memberOf, userID)
	}
	s.mu.Unlock()
	return nil
}

// cancelTournament переводит турнир в cancelled и останавливает все
// дедлайны.
func (s *TournamentService) cancelTournament(st *tournamentState, reason string) {
	st.mu.Lock()
	t := st.t
	if t.Status.IsTerminal() {
		st.mu.Unlock()
		return
	}
	t.Status = domain.TournamentCancelled
	for id, timer := range st.readyTimers {
		timer.Stop()
		delete(st.readyTimers, id)
	}
	members := s.memberIDsLocked(t)
	st.mu.Unlock()

	logger.Warn("турнир отменен", "tournament", t.ID, "reason", reason)
	metrics.ActiveTournaments.Dec()
	s.broadcast(members, domain.EventTournamentCancelled, map[string]any{
		"tournamentId": t.ID,
		"reason":       reason,
	})
	s.releaseMembers(t)
	s.persist(st)
	s.scheduleEviction(t.ID)
}

// scheduleEviction убирает терминальный турнир из реестра спустя период
// удержания: снимок еще какое-то время доступен по id, но память не
// копится бесконечно.
func (s *TournamentService) scheduleEviction(tournamentID string) {
	time.AfterFunc(s.cfg.Retain, func() {
		s.mu.Lock()
		delete(s.tournaments, tournamentID)
		s.mu.Unlock()
	})
}

// releaseMembers снимает серверный индекс членства: после терминального
// состояния игроки свободны для новых турниров, Quit остается чисто
// клиентской бухгалтерией.
func (s *TournamentService) releaseMembers(t *domain.Tournament) {
	s.mu.Lock()
	for uid, tid := range s.memberOf {
		if tid == t.ID {
			delete(s.memberOf, uid)
		}
	}
	s.mu.Unlock()
}

// SnapshotFor - авторитетный снимок турнира пользователя для
// реконсиляции после реконнекта.
func (s *TournamentService) SnapshotFor(userID int64) *domain.Tournament {
	s.mu.RLock()
	tid, ok := s.memberOf[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	st, err := s.state(tid)
	if err != nil {
		return nil
	}
	return s.snapshot(st)
}

// Get возвращает снимок по id для REST-слоя.
func (s *TournamentService) Get(tournamentID string) (*domain.Tournament, error) {
	st, err := s.state(tournamentID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(st), nil
}

// notifyChanged коалесцирует всплески изменений в один tournament:update
// на окно дебаунса - клиенты не наблюдают промежуточных состояний.
func (s *TournamentService) notifyChanged(st *tournamentState) {
	st.mu.Lock()
	if st.debounce != nil {
		st.mu.Unlock()
		return
	}
	st.debounce = time.AfterFunc(s.cfg.Debounce, func() {
		st.mu.Lock()
		st.debounce = nil
		members := s.memberIDsLocked(st.t)
		st.mu.Unlock()

		snap := s.snapshot(st)
		s.broadcast(members, domain.EventTournamentUpdate, map[string]any{"tournament": snap})
	})
	st.mu.Unlock()
}

func (s *TournamentService) broadcast(members []int64, eventType string, data map[string]any) {
	for _, uid := range members {
		s.sender.Send(uid, eventType, data)
	}
}

func (s *TournamentService) persist(st *tournamentState) {
	if s.repo == nil {
		return
	}
	snap := s.snapshot(st)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		row := &domain.TournamentHistory{
			TournamentID: snap.ID,
			Name:         snap.Name,
			Status:       string(snap.Status),
			Rounds:       snap.CurrentRound,
		}
		if snap.Champion != nil {
			row.ChampionAlias = &snap.Champion.Alias
			row.ChampionID = snap.Champion.UserID
		}
		if err := s.repo.Create(ctx, row); err != nil {
			logger.Error("запись истории турнира не удалась", "tournament", snap.ID, "error", err)
		}
	}()
}

// --- вспомогательные выборки ---

func (s *TournamentService) state(tournamentID string) (*tournamentState, error) {
	s.mu.RLock()
	st, ok := s.tournaments[tournamentID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.Errf(domain.CodeNotFound, "турнир %s не найден", tournamentID)
	}
	return st, nil
}

func (s *TournamentService) pairingLocked(st *tournamentState, matchID string) *domain.Pairing {
	for _, p := range st.t.Pairings {
		if p.MatchID == matchID {
			return p
		}
	}
	return nil
}

func (s *TournamentService) pendingPairingOfLocked(st *tournamentState, userID int64) *domain.Pairing {
	for _, p := range st.t.Pairings {
		if p.Status != domain.PairingPending || p.Round != st.t.CurrentRound {
			continue
		}
		if (p.Player1UserID != nil && *p.Player1UserID == userID) ||
			(p.Player2UserID != nil && *p.Player2UserID == userID) {
			return p
		}
	}
	return nil
}

func (s *TournamentService) playerByAliasLocked(t *domain.Tournament, alias string) *domain.TournamentPlayer {
	for i := range t.Players {
		if t.Players[i].Alias == alias {
			cp := t.Players[i]
			return &cp
		}
	}
	return nil
}

func (s *TournamentService) playerByIDLocked(t *domain.Tournament, userID int64) *domain.TournamentPlayer {
	for i := range t.Players {
		if t.Players[i].UserID != nil && *t.Players[i].UserID == userID {
			cp := t.Players[i]
			return &cp
		}
	}
	return nil
}

func (s *TournamentService) memberIDsLocked(t *domain.Tournament) []int64 {
	ids := make([]int64, 0, len(t.Players))
	for _, p := range t.Players {
		if p.UserID != nil {
			ids = append(ids, *p.UserID)
		}
	}
	return ids
}

// snapshot - глубокая копия турнира для сериализации без гонок.
func (s *TournamentService) snapshot(st *tournamentState) *domain.Tournament {
	st.mu.Lock()
	defer st.mu.Unlock()

	t := st.t
	cp := *t
	cp.Players = append([]domain.TournamentPlayer(nil), t.Players...)
	cp.Pairings = make([]*domain.Pairing, len(t.Pairings))
	for i, p := range t.Pairings {
		pc := *p
		if p.ReadyDeadline != nil {
			d := *p.ReadyDeadline
			pc.ReadyDeadline = &d
		}
		cp.Pairings[i] = &pc
	}
	if t.Champion != nil {
		ch := *t.Champion
		cp.Champion = &ch
	}
	return &cp
}
