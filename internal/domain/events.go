package domain

// Типы событий, которые сервисный слой шлет клиентам. Конверт {type, data}
// собирает транспортный слой; здесь только имена типов, общие для обоих.
const (
	EventChallengeReceived  = "game:challenge_received"
	EventChallengeSent      = "game:challenge_sent"
	EventChallengeDeclined  = "game:challenge_declined"
	EventChallengeCancelled = "game:challenge_cancelled"

	EventTournamentStarted       = "tournament:started"
	EventTournamentMatchStarted  = "tournament:match_started"
	EventTournamentMatchFinished = "tournament:match_finished"
	EventTournamentRoundComplete = "tournament:round_complete"
	EventTournamentEliminated    = "tournament:player_eliminated"
	EventTournamentCancelled     = "tournament:cancelled"
	EventTournamentFinished      = "tournament:finished"
	EventTournamentUpdate        = "tournament:update"
)
