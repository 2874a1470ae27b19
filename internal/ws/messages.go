package ws

import "encoding/json"

// Message - конверт всех сообщений дуплексного канала: {type, data}.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Типы сообщений клиент -> сервер.
const (
	MsgChallenge        = "game:challenge"
	MsgChallengeAccept  = "game:challenge_accept"
	MsgChallengeDecline = "game:challenge_decline"
	MsgChallengeCancel  = "game:challenge_cancel"
	MsgJoin             = "game:join"
	MsgInput            = "game:input"
	MsgLeave            = "game:leave"
)

// Типы сообщений сервер -> клиент, рождающиеся в самом транспорте.
// События брокера вызовов и турнирного оркестратора объявлены в domain
// и проходят сюда уже готовым типом через EventSender.
const (
	MsgChallengeError = "game:challenge_error"

	MsgStarted            = "game:started"
	MsgStateUpdate        = "game:state_update"
	MsgFinished           = "game:finished"
	MsgPlayerDisconnected = "game:player_disconnected"
	MsgCancelled          = "game:cancelled"
	MsgError              = "game:error"

	MsgPresenceUpdate = "presence:update"
)

// challengeRequest - полезная нагрузка game:challenge.
type challengeRequest struct {
	ChallengedUserID int64 `json:"challengedUserId"`
}

// challengeRef - полезная нагрузка accept/decline/cancel.
type challengeRef struct {
	ChallengeID string `json:"challengeId"`
}

// gameRef - полезная нагрузка game:join / game:input / game:leave.
type gameRef struct {
	GameID string `json:"gameId"`
	Action string `json:"action,omitempty"`
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func errorData(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}
