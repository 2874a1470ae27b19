package service

import (
	"sync"
	"testing"

	"pong_arena/internal/domain"
)

// fakeSender собирает отправленные события по пользователям
type fakeSender struct {
	mu      sync.Mutex
	online  map[int64]bool
	events  map[int64][]string
	payload map[string]map[string]any // последний payload по типу события
}

func newFakeSender(online ...int64) *fakeSender {
	s := &fakeSender{
		online:  make(map[int64]bool),
		events:  make(map[int64][]string),
		payload: make(map[string]map[string]any),
	}
	for _, id := range online {
		s.online[id] = true
	}
	return s
}

func (s *fakeSender) Send(userID int64, eventType string, data map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[userID] = append(s.events[userID], eventType)
	s.payload[eventType] = data
	return s.online[userID]
}

func (s *fakeSender) IsOnline(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *fakeSender) got(userID int64, eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events[userID] {
		if e == eventType {
			return true
		}
	}
	return false
}

// fakeMatches фиксирует созданные матчи
type fakeMatches struct {
	mu      sync.Mutex
	busy    map[int64]bool
	created []*domain.TournamentContext
	pairs   [][2]int64
	fail    error
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{busy: make(map[int64]bool)}
}

func (m *fakeMatches) CreateMatch(p1, p2 int64, tc *domain.TournamentContext) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	m.created = append(m.created, tc)
	m.pairs = append(m.pairs, [2]int64{p1, p2})
	return "match-1", nil
}

func (m *fakeMatches) HasLiveMatch(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[userID]
}

func (m *fakeMatches) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	coded, ok := domain.AsCoded(err)
	if !ok {
		t.Fatalf("ожидали доменную ошибку %s, получили %v", code, err)
	}
	if coded.Code != code {
		t.Fatalf("ожидали код %s, получили %s (%s)", code, coded.Code, coded.Message)
	}
}

func TestChallengeTargetOffline(t *testing.T) {
	sender := newFakeSender(1) // второй игрок не в сети
	svc := NewChallengeService(sender, newFakeMatches())

	_, err := svc.Challenge(1, 2)
	expectCode(t, err, domain.CodeTargetOffline)
}

func TestChallengeSelf(t *testing.T) {
	sender := newFakeSender(1)
	svc := NewChallengeService(sender, newFakeMatches())

	_, err := svc.Challenge(1, 1)
	expectCode(t, err, domain.CodeAlreadyBusy)
}

func TestChallengeBusyInMatch(t *testing.T) {
	sender := newFakeSender(1, 2)
	matches := newFakeMatches()
	matches.busy[2] = true
	svc := NewChallengeService(sender, matches)

	_, err := svc.Challenge(1, 2)
	expectCode(t, err, domain.CodeAlreadyBusy)
}

func TestChallengeOverlapAutoDeclined(t *testing.T) {
	sender := newFakeSender(1, 2, 3)
	svc := NewChallengeService(sender, newFakeMatches())

	first, err := svc.Challenge(1, 2)
	if err != nil {
		t.Fatalf("первое приглашение: %v", err)
	}

	// пересекающееся приглашение отклоняется, исходное остается открытым
	_, err = svc.Challenge(3, 2)
	expectCode(t, err, domain.CodeAlreadyBusy)

	if id, ok := svc.OpenFor(2); !ok || id != first {
		t.Fatalf("исходное приглашение должно остаться открытым, got %q ok=%v", id, ok)
	}
}

func TestChallengeAcceptCreatesMatch(t *testing.T) {
	sender := newFakeSender(1, 2)
	matches := newFakeMatches()
	svc := NewChallengeService(sender, matches)

	id, err := svc.Challenge(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !sender.got(2, "game:challenge_received") || !sender.got(1, "game:challenge_sent") {
		t.Fatal("стороны не уведомлены об открытом приглашении")
	}

	if err := svc.Accept(id, 2); err != nil {
		t.Fatalf("принятие: %v", err)
	}
	if matches.count() != 1 {
		t.Fatalf("ожидали один матч, создано %d", matches.count())
	}
	if matches.created[0] != nil {
		t.Fatal("вне турнира контекст должен быть nil")
	}
	if matches.pairs[0] != [2]int64{1, 2} {
		t.Fatalf("матч не между сторонами приглашения: %v", matches.pairs[0])
	}

	// слоты освобождены
	if _, open := svc.OpenFor(1); open {
		t.Fatal("бронь челленджера не снята")
	}
}

func TestChallengeAcceptWrongUser(t *testing.T) {
	sender := newFakeSender(1, 2, 3)
	svc := NewChallengeService(sender, newFakeMatches())

	id, _ := svc.Challenge(1, 2)
	expectCode(t, svc.Accept(id, 3), domain.CodeNotParticipant)
	// сам челленджер принять не может
	expectCode(t, svc.Accept(id, 1), domain.CodeNotParticipant)
}

func TestChallengeDoubleResolve(t *testing.T) {
	sender := newFakeSender(1, 2)
	svc := NewChallengeService(sender, newFakeMatches())

	id, _ := svc.Challenge(1, 2)
	if err := svc.Decline(id, 2); err != nil {
		t.Fatal(err)
	}
	if !sender.got(1, "game:challenge_declined") {
		t.Fatal("челленджер не уведомлен об отклонении")
	}

	// повторное разрешение падает чисто, матч не создается
	expectCode(t, svc.Accept(id, 2), domain.CodeChallengeResolved)
}

func TestChallengeCancelOnlyBySender(t *testing.T) {
	sender := newFakeSender(1, 2)
	svc := NewChallengeService(sender, newFakeMatches())

	id, _ := svc.Challenge(1, 2)
	expectCode(t, svc.Cancel(id, 2), domain.CodeNotParticipant)

	if err := svc.Cancel(id, 1); err != nil {
		t.Fatal(err)
	}
	if !sender.got(2, "game:challenge_cancelled") {
		t.Fatal("адресат не уведомлен об отзыве")
	}
}

func TestChallengeDropForClosesInvite(t *testing.T) {
	sender := newFakeSender(1, 2)
	svc := NewChallengeService(sender, newFakeMatches())

	id, _ := svc.Challenge(1, 2)
	svc.DropFor(2)

	if !sender.got(1, "game:challenge_cancelled") {
		t.Fatal("челленджер не уведомлен о дисконнекте адресата")
	}
	expectCode(t, svc.Accept(id, 2), domain.CodeChallengeResolved)
}

func TestResolvedChallengeLeavesRegistry(t *testing.T) {
	sender := newFakeSender(1, 2)
	svc := NewChallengeService(sender, newFakeMatches())

	// каждый разрешенный вызов должен уходить из реестра целиком,
	// иначе память копится с каждым приглашением
	id, _ := svc.Challenge(1, 2)
	if err := svc.Decline(id, 2); err != nil {
		t.Fatal(err)
	}

	id2, _ := svc.Challenge(1, 2)
	if err := svc.Accept(id2, 2); err != nil {
		t.Fatal(err)
	}

	svc.mu.Lock()
	nCh, nTimers, nSlots := len(svc.challenges), len(svc.timers), len(svc.byUser)
	svc.mu.Unlock()
	if nCh != 0 || nTimers != 0 || nSlots != 0 {
		t.Fatalf("реестр не очищен: challenges=%d timers=%d slots=%d", nCh, nTimers, nSlots)
	}
}

func TestChallengeAcceptRace(t *testing.T) {
	sender := newFakeSender(1, 2)
	matches := newFakeMatches()
	svc := NewChallengeService(sender, matches)

	id, _ := svc.Challenge(1, 2)
	matches.fail = domain.Errf(domain.CodeAlreadyBusy, "занят")

	if err := svc.Accept(id, 2); err == nil {
		t.Fatal("гонка с живым матчем должна вернуть ошибку")
	}
	if !sender.got(1, "game:challenge_cancelled") {
		t.Fatal("челленджер не уведомлен о срыве матча")
	}
}
