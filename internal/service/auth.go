package service

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	userTokenTTL  = 7 * 24 * time.Hour
	guestTokenTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("неверный или просроченный токен")

// Identity - опаковая аутентифицированная идентичность, единственное,
// что ядро знает о пользователе. Гости получают синтетический
// отрицательный id.
type Identity struct {
	UserID   int64
	Username string
	Guest    bool
}

type AuthService struct {
	secret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

type arenaClaims struct {
	Username string `json:"username"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken подписывает токен для зарегистрированного пользователя.
func (a *AuthService) IssueToken(userID int64, username string) (string, error) {
	return a.sign(userID, username, false, userTokenTTL)
}

// IssueGuestToken создает короткоживущую гостевую идентичность:
// отрицательный id выводится из случайного токена и уникален на
// время его жизни.
func (a *AuthService) IssueGuestToken(username string) (string, Identity, error) {
	id := -guestID()
	if username == "" {
		username = fmt.Sprintf("guest_%d", -id%100000)
	}
	token, err := a.sign(id, username, true, guestTokenTTL)
	if err != nil {
		return "", Identity{}, err
	}
	return token, Identity{UserID: id, Username: username, Guest: true}, nil
}

func (a *AuthService) sign(userID int64, username string, guest bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := arenaClaims{
		Username: username,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken проверяет подпись и срок и возвращает идентичность.
func (a *AuthService) ParseToken(token string) (Identity, error) {
	var claims arenaClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, ErrInvalidToken
	}
	if claims.Guest && userID > 0 {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: userID, Username: claims.Username, Guest: claims.Guest}, nil
}

// guestID выводит положительное 63-битное число из случайного uuid;
// вызывающий добавляет знак минус.
func guestID() int64 {
	u := uuid.New()
	v := int64(binary.BigEndian.Uint64(u[:8]) >> 1)
	if v == 0 {
		v = 1
	}
	return v
}
