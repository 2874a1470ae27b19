package domain

import "fmt"

// Коды ошибок, видимые на границе системы. Ошибки валидации и
// конфликтов локальны и терминальны - клиент не должен их ретраить.
const (
	CodeTargetOffline         = "TargetOffline"
	CodeAlreadyBusy           = "AlreadyBusy"
	CodeAlreadyInTournament   = "AlreadyInAnotherTournament"
	CodeTournamentFull        = "TournamentFull"
	CodeTournamentNotJoinable = "TournamentNotJoinable"
	CodeInvalidAlias          = "InvalidAlias"
	CodeInvalidName           = "InvalidName"
	CodeNotOwner              = "NotOwner"
	CodeWrongPlayerCount      = "WrongPlayerCount"
	CodeRateLimited           = "RateLimited"
	CodeNotFound              = "NotFound"
	CodeNotParticipant        = "NotParticipant"
	CodeChallengeResolved     = "ChallengeResolved"
)

// CodedError несет машинный код для клиента и человекочитаемую причину.
// Причина различает "вы это вызвали" (валидация/конфликт) и
// "это случилось с вами" (форфейт/дисконнект противника).
type CodedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errf(code, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsCoded возвращает *CodedError, если err им является.
func AsCoded(err error) (*CodedError, bool) {
	ce, ok := err.(*CodedError)
	return ce, ok
}
