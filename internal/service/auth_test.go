package service

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthService("test-secret")

	token, err := a.IssueToken(42, "alice")
	if err != nil {
		t.Fatalf("выпуск токена: %v", err)
	}

	identity, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("разбор токена: %v", err)
	}
	if identity.UserID != 42 || identity.Username != "alice" || identity.Guest {
		t.Fatalf("идентичность не совпала: %+v", identity)
	}
}

func TestGuestTokenNegativeID(t *testing.T) {
	a := NewAuthService("test-secret")

	token, issued, err := a.IssueGuestToken("visitor")
	if err != nil {
		t.Fatalf("выпуск гостевого токена: %v", err)
	}
	if issued.UserID >= 0 {
		t.Fatalf("гостевой id должен быть отрицательным, получили %d", issued.UserID)
	}
	if !issued.Guest {
		t.Fatal("флаг гостя не выставлен")
	}

	identity, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("разбор гостевого токена: %v", err)
	}
	if identity != issued {
		t.Fatalf("идентичность разошлась: выдали %+v, разобрали %+v", issued, identity)
	}
}

func TestGuestTokenDefaultUsername(t *testing.T) {
	a := NewAuthService("test-secret")

	_, issued, err := a.IssueGuestToken("")
	if err != nil {
		t.Fatal(err)
	}
	if issued.Username == "" {
		t.Fatal("пустое имя гостя должно заменяться сгенерированным")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	a := NewAuthService("secret-one")
	b := NewAuthService("secret-two")

	token, err := a.IssueToken(7, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ParseToken(token); err != ErrInvalidToken {
		t.Fatalf("токен с чужой подписью должен отклоняться, err=%v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	a := NewAuthService("test-secret")
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := a.ParseToken(token); err != ErrInvalidToken {
			t.Fatalf("мусорный токен %q должен отклоняться, err=%v", token, err)
		}
	}
}
