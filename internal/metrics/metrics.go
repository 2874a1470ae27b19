package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счетчики и датчики ядра. Регистрируются в глобальном реестре,
// который main отдает на /metrics.
var (
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_ws_connections",
		Help: "Текущее число открытых websocket-соединений.",
	})

	LiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_live_matches",
		Help: "Текущее число незавершенных матчей.",
	})

	MatchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_finished_total",
		Help: "Сколько матчей завершилось с начала процесса.",
	})

	ActiveTournaments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_active_tournaments",
		Help: "Текущее число турниров в нетерминальном состоянии.",
	})

	ChallengesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_challenges_sent_total",
		Help: "Сколько приглашений 1v1 было отправлено.",
	})

	Forfeits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_forfeits_total",
		Help: "Сколько форфейтов назначено (ready-check и дисконнекты).",
	})
)
