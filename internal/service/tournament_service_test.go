package service

import (
	"testing"
	"time"

	"pong_arena/internal/domain"
)

// короткие тайминги, чтобы тесты не ждали настоящие секунды
func testTournamentConfig() TournamentConfig {
	return TournamentConfig{
		ReadyTimeout: 50 * time.Millisecond,
		Debounce:     5 * time.Millisecond,
		Retain:       time.Second,
	}
}

func newTournamentFixture() (*TournamentService, *fakeSender, *fakeMatches) {
	sender := newFakeSender(1, 2, 3, 4)
	matches := newFakeMatches()
	svc := NewTournamentService(sender, matches, nil, testTournamentConfig())
	return svc, sender, matches
}

// создает турнир с владельцем 1 и добирает игроков 2, 3, 4
func fullTournament(t *testing.T, svc *TournamentService) string {
	t.Helper()
	tn, err := svc.Create(1, "alpha", "вечерний кубок")
	if err != nil {
		t.Fatalf("создание турнира: %v", err)
	}
	for i, alias := range []string{"bravo", "charlie", "delta"} {
		if _, err := svc.Join(tn.ID, int64(i+2), alias); err != nil {
			t.Fatalf("вход игрока %s: %v", alias, err)
		}
	}
	return tn.ID
}

func pairingByAliases(t *testing.T, tn *domain.Tournament, a1, a2 string) *domain.Pairing {
	t.Helper()
	for _, p := range tn.Pairings {
		if (p.Player1Alias == a1 && p.Player2Alias == a2) ||
			(p.Player1Alias == a2 && p.Player2Alias == a1) {
			return p
		}
	}
	t.Fatalf("пара %s/%s не найдена в сетке", a1, a2)
	return nil
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTournamentFixture()

	_, err := svc.Create(1, "alpha", "ab")
	expectCode(t, err, domain.CodeInvalidName)

	_, err = svc.Create(1, "a", "вечерний кубок")
	expectCode(t, err, domain.CodeInvalidAlias)

	_, err = svc.Create(1, "бука", "вечерний кубок")
	expectCode(t, err, domain.CodeInvalidAlias)
}

func TestSingleTournamentMembership(t *testing.T) {
	svc, _, _ := newTournamentFixture()

	tn, err := svc.Create(1, "alpha", "первый кубок")
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Create(1, "alpha", "второй кубок")
	expectCode(t, err, domain.CodeAlreadyInTournament)

	tn2, err := svc.Create(2, "bravo", "второй кубок")
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Join(tn.ID, 2, "bravo2")
	expectCode(t, err, domain.CodeAlreadyInTournament)

	// повторный join своего турнира - идемпотентный успех
	if _, err := svc.Join(tn2.ID, 2, "bravo"); err != nil {
		t.Fatalf("повторный join: %v", err)
	}
}

func TestJoinFullAndDuplicateAlias(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)

	_, err := svc.Join(id, 5, "alpha")
	expectCode(t, err, domain.CodeInvalidAlias) // алиас занят

	_, err = svc.Join(id, 5, "echo")
	expectCode(t, err, domain.CodeTournamentFull)

	_, err = svc.Join("nope", 5, "echo")
	expectCode(t, err, domain.CodeNotFound)
}

func TestStartRequiresOwnerAndFourPlayers(t *testing.T) {
	svc, _, _ := newTournamentFixture()

	tn, _ := svc.Create(1, "alpha", "вечерний кубок")
	_, err := svc.Start(tn.ID, 1)
	expectCode(t, err, domain.CodeWrongPlayerCount)

	svc2, _, _ := newTournamentFixture()
	id2 := fullTournament(t, svc2)
	_, err = svc2.Start(id2, 2)
	expectCode(t, err, domain.CodeNotOwner)
}

func TestStartSeedsByJoinOrder(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)

	tn, err := svc.Start(id, 1)
	if err != nil {
		t.Fatalf("запуск: %v", err)
	}
	if tn.Status != domain.TournamentActive || tn.CurrentRound != 1 {
		t.Fatalf("турнир не активен: %+v", tn)
	}
	if len(tn.Pairings) != 2 {
		t.Fatalf("в первом раунде должно быть 2 пары, получили %d", len(tn.Pairings))
	}

	// первый против четвертого, второй против третьего
	p1 := tn.Pairings[0]
	if p1.Player1Alias != "alpha" || p1.Player2Alias != "delta" {
		t.Fatalf("первая пара посеяна неверно: %s vs %s", p1.Player1Alias, p1.Player2Alias)
	}
	p2 := tn.Pairings[1]
	if p2.Player1Alias != "bravo" || p2.Player2Alias != "charlie" {
		t.Fatalf("вторая пара посеяна неверно: %s vs %s", p2.Player1Alias, p2.Player2Alias)
	}
	for _, p := range tn.Pairings {
		if p.Status != domain.PairingPending || p.ReadyDeadline == nil {
			t.Fatalf("пара должна ждать готовности с дедлайном: %+v", p)
		}
	}

	// повторный запуск невозможен
	_, err = svc.Start(id, 1)
	expectCode(t, err, domain.CodeTournamentNotJoinable)
}

func TestReadyBothStartsMatchUnderContext(t *testing.T) {
	svc, _, matches := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)
	pairing := pairingByAliases(t, tn, "alpha", "delta")

	if err := svc.Ready(id, 1); err != nil {
		t.Fatal(err)
	}
	// одна готовность матч не запускает, повтор - no-op
	if err := svc.Ready(id, 1); err != nil {
		t.Fatal(err)
	}
	if matches.count() != 0 {
		t.Fatal("матч создан до второй готовности")
	}

	if err := svc.Ready(id, 4); err != nil {
		t.Fatal(err)
	}
	if matches.count() != 1 {
		t.Fatalf("ожидали один матч, создано %d", matches.count())
	}
	tc := matches.created[0]
	if tc == nil || tc.TournamentID != id || tc.MatchID != pairing.MatchID {
		t.Fatalf("матч создан не под контекстом пары: %+v", tc)
	}

	snap, _ := svc.Get(id)
	if pairingByAliases(t, snap, "alpha", "delta").Status != domain.PairingActive {
		t.Fatal("пара не перешла в active")
	}
}

func TestReadyNonParticipant(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	svc.Start(id, 1)

	expectCode(t, svc.Ready(id, 5), domain.CodeNotParticipant)
}

func TestReadyDeadlineForfeitsSilentSide(t *testing.T) {
	svc, sender, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	svc.Start(id, 1)

	// вторая пара стартует штатно, чтобы ее дедлайн не вмешивался
	svc.Ready(id, 2)
	svc.Ready(id, 3)

	// готов только alpha, delta молчит до дедлайна
	if err := svc.Ready(id, 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	snap, _ := svc.Get(id)
	p := pairingByAliases(t, snap, "alpha", "delta")
	if p.Status != domain.PairingFinished || p.WinnerAlias != "alpha" {
		t.Fatalf("готовая сторона должна пройти форфейтом: %+v", p)
	}
	if !sender.got(4, "tournament:player_eliminated") {
		t.Fatal("участники не уведомлены о вылете")
	}
	if snap.Status != domain.TournamentActive {
		t.Fatalf("турнир должен продолжаться: %s", snap.Status)
	}
}

func TestReadyDeadlineNobodyCancelsTournament(t *testing.T) {
	svc, sender, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	svc.Start(id, 1)

	time.Sleep(150 * time.Millisecond)

	snap, _ := svc.Get(id)
	if snap.Status != domain.TournamentCancelled {
		t.Fatalf("без единой готовности турнир отменяется, статус %s", snap.Status)
	}
	if !sender.got(1, "tournament:cancelled") {
		t.Fatal("участники не уведомлены об отмене")
	}

	// членство освобождено: игроки могут создавать новые турниры
	if _, err := svc.Create(1, "alpha", "новый кубок"); err != nil {
		t.Fatalf("после отмены игрок должен быть свободен: %v", err)
	}
}

func TestFullBracketToChampion(t *testing.T) {
	svc, sender, matches := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)

	sf1 := pairingByAliases(t, tn, "alpha", "delta")
	sf2 := pairingByAliases(t, tn, "bravo", "charlie")

	// оба полуфинала собирают готовности
	for _, uid := range []int64{1, 4, 2, 3} {
		if err := svc.Ready(id, uid); err != nil {
			t.Fatalf("готовность %d: %v", uid, err)
		}
	}
	if matches.count() != 2 {
		t.Fatalf("ожидали два полуфинала, создано %d", matches.count())
	}

	// alpha и bravo выигрывают свои матчи
	svc.HandleMatchFinished(domain.TournamentContext{TournamentID: id, MatchID: sf1.MatchID}, 1, 4, 5, 2)
	svc.HandleMatchFinished(domain.TournamentContext{TournamentID: id, MatchID: sf2.MatchID}, 2, 3, 5, 3)

	snap, _ := svc.Get(id)
	if snap.CurrentRound != 2 {
		t.Fatalf("после обоих полуфиналов сеется финал, раунд %d", snap.CurrentRound)
	}
	final := pairingByAliases(t, snap, "alpha", "bravo")
	if final.Status != domain.PairingPending || final.Round != 2 {
		t.Fatalf("финал посеян неверно: %+v", final)
	}

	if err := svc.Ready(id, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.Ready(id, 2); err != nil {
		t.Fatal(err)
	}
	if matches.count() != 3 {
		t.Fatalf("финальный матч не создан, всего %d", matches.count())
	}

	svc.HandleMatchFinished(domain.TournamentContext{TournamentID: id, MatchID: final.MatchID}, 2, 1, 5, 4)

	snap, _ = svc.Get(id)
	if snap.Status != domain.TournamentFinished {
		t.Fatalf("турнир должен завершиться, статус %s", snap.Status)
	}
	if snap.Champion == nil || snap.Champion.Alias != "bravo" {
		t.Fatalf("чемпион определен неверно: %+v", snap.Champion)
	}
	if !sender.got(3, "tournament:finished") {
		t.Fatal("участники не уведомлены о чемпионе")
	}

	// членство снято в терминальном состоянии
	if svc.SnapshotFor(1) != nil {
		t.Fatal("после завершения снимок по членству должен быть пуст")
	}
}

func TestHandleMatchFinishedIdempotent(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)
	sf1 := pairingByAliases(t, tn, "alpha", "delta")

	svc.Ready(id, 1)
	svc.Ready(id, 4)

	tc := domain.TournamentContext{TournamentID: id, MatchID: sf1.MatchID}
	svc.HandleMatchFinished(tc, 1, 4, 5, 0)
	// повторное завершение того же матча (гонка грейсов) - no-op
	svc.HandleMatchFinished(tc, 4, 1, 5, 0)

	snap, _ := svc.Get(id)
	if pairingByAliases(t, snap, "alpha", "delta").WinnerAlias != "alpha" {
		t.Fatal("повторное завершение перезаписало победителя")
	}
}

func TestPlayerDroppedWhileWaiting(t *testing.T) {
	svc, _, _ := newTournamentFixture()

	tn, _ := svc.Create(1, "alpha", "вечерний кубок")
	svc.Join(tn.ID, 2, "bravo")

	svc.HandlePlayerDropped(2)

	snap, _ := svc.Get(tn.ID)
	if len(snap.Players) != 1 {
		t.Fatalf("слот не освободился: %+v", snap.Players)
	}
	// освободившийся игрок может войти снова
	if _, err := svc.Join(tn.ID, 2, "bravo"); err != nil {
		t.Fatalf("повторный вход: %v", err)
	}
}

func TestOwnerDropCancelsWaitingTournament(t *testing.T) {
	svc, _, _ := newTournamentFixture()

	tn, _ := svc.Create(1, "alpha", "вечерний кубок")
	svc.Join(tn.ID, 2, "bravo")

	svc.HandlePlayerDropped(1)

	snap, _ := svc.Get(tn.ID)
	if snap.Status != domain.TournamentCancelled {
		t.Fatalf("без владельца набор отменяется, статус %s", snap.Status)
	}
}

func TestPlayerDroppedWithPendingPairing(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	svc.Start(id, 1)

	svc.HandlePlayerDropped(4)

	snap, _ := svc.Get(id)
	p := pairingByAliases(t, snap, "alpha", "delta")
	if p.Status != domain.PairingFinished || p.WinnerAlias != "alpha" {
		t.Fatalf("оппонент отключившегося проходит форфейтом: %+v", p)
	}
}

func TestLeaveAndQuit(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	svc.Start(id, 1)

	expectCode(t, svc.Leave(id, 9), domain.CodeNotParticipant)
	expectCode(t, svc.Quit(id, 2), domain.CodeTournamentNotJoinable)

	// добровольный выход = форфейт текущей пары
	if err := svc.Leave(id, 3); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Get(id)
	p := pairingByAliases(t, snap, "bravo", "charlie")
	if p.WinnerAlias != "bravo" {
		t.Fatalf("выход не засчитан как форфейт: %+v", p)
	}
}

func TestDebouncedUpdateBroadcast(t *testing.T) {
	svc, sender, _ := newTournamentFixture()
	tn, _ := svc.Create(1, "alpha", "вечерний кубок")
	svc.Join(tn.ID, 2, "bravo")

	time.Sleep(30 * time.Millisecond)
	if !sender.got(1, "tournament:update") {
		t.Fatal("снимок сетки не разослан после изменения")
	}
}

func TestReadyDeadlineWithBothReadyStartsMatch(t *testing.T) {
	svc, _, matches := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)
	sf := pairingByAliases(t, tn, "alpha", "delta")

	// окно гонки: обе готовности выставлены, но запуск пары еще не
	// перевел ее в active к моменту дедлайна
	st, err := svc.state(id)
	if err != nil {
		t.Fatal(err)
	}
	st.mu.Lock()
	p := svc.pairingLocked(st, sf.MatchID)
	p.P1Ready, p.P2Ready = true, true
	st.mu.Unlock()

	svc.onReadyDeadline(st, sf.MatchID)

	snap, _ := svc.Get(id)
	if snap.Status != domain.TournamentActive {
		t.Fatalf("две готовности - не провал ready-check, статус %s", snap.Status)
	}
	if matches.count() != 1 {
		t.Fatalf("пара с двумя готовностями должна запуститься, создано матчей: %d", matches.count())
	}
	if pairingByAliases(t, snap, "alpha", "delta").Status != domain.PairingActive {
		t.Fatal("пара не перешла в active")
	}
}

func TestAbandonedMatchCancelsTournament(t *testing.T) {
	svc, sender, matches := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)
	sf := pairingByAliases(t, tn, "alpha", "delta")

	svc.Ready(id, 1)
	svc.Ready(id, 4)
	if matches.count() != 1 {
		t.Fatalf("пара не запустилась, создано матчей: %d", matches.count())
	}

	// комната закрылась без итога: ни один из пары так и не присоединился
	svc.HandleMatchAbandoned(domain.TournamentContext{TournamentID: id, MatchID: sf.MatchID})

	snap, _ := svc.Get(id)
	if snap.Status != domain.TournamentCancelled {
		t.Fatalf("пара без итога должна отменять турнир, статус %s", snap.Status)
	}
	if !sender.got(2, "tournament:cancelled") {
		t.Fatal("участники не уведомлены об отмене")
	}

	// членство освобождено
	if _, err := svc.Create(1, "alpha", "новый кубок"); err != nil {
		t.Fatalf("после отмены игрок должен быть свободен: %v", err)
	}
}

func TestAbandonedAfterFinishedIsNoop(t *testing.T) {
	svc, _, _ := newTournamentFixture()
	id := fullTournament(t, svc)
	tn, _ := svc.Start(id, 1)
	sf := pairingByAliases(t, tn, "alpha", "delta")

	svc.Ready(id, 1)
	svc.Ready(id, 4)
	tc := domain.TournamentContext{TournamentID: id, MatchID: sf.MatchID}
	svc.HandleMatchFinished(tc, 1, 4, 5, 2)
	svc.HandleMatchAbandoned(tc)

	snap, _ := svc.Get(id)
	if snap.Status != domain.TournamentActive {
		t.Fatalf("завершенная пара не может быть брошенной, статус %s", snap.Status)
	}
	if pairingByAliases(t, snap, "alpha", "delta").WinnerAlias != "alpha" {
		t.Fatal("итог пары потерян")
	}
}

func TestTerminalTournamentEvicted(t *testing.T) {
	cfg := testTournamentConfig()
	cfg.Retain = 20 * time.Millisecond
	svc := NewTournamentService(newFakeSender(1, 2), newFakeMatches(), nil, cfg)

	tn, err := svc.Create(1, "alpha", "вечерний кубок")
	if err != nil {
		t.Fatal(err)
	}
	svc.HandlePlayerDropped(1) // владелец ушел из ожидающего турнира

	if _, err := svc.Get(tn.ID); err != nil {
		t.Fatalf("сразу после отмены снимок еще доступен: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	_, err = svc.Get(tn.ID)
	expectCode(t, err, domain.CodeNotFound)
}
