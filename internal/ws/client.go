package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client - одно аутентифицированное соединение. Идентичность неизменна
// на все время жизни соединения.
type Client struct {
	UserID   int64
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	Hub *Hub
}

func NewClient(userID int64, username string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Hub:      hub,
	}
}

func (c *Client) Run() {
	// writer запускаем первым, чтобы регистрация могла сразу слать
	go c.writePump()

	// регистрация: presence, ре-синхронизация живого матча/турнира
	c.Hub.Register(c)

	c.readPump()
}

// Enqueue - неблокирующая отправка; при переполненном буфере сообщение
// отбрасывается, клиент догонит по следующему снимку состояния.
func (c *Client) Enqueue(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Client.Enqueue: ошибка сериализации: %v", err)
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		log.Printf("Client.Enqueue: буфер пользователя=%d заполнен, тип=%s отброшен", c.UserID, msg.Type)
		return false
	}
}

// read
func (c *Client) readPump() {
	defer func() {
		c.Hub.OnDisconnect(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			log.Printf("Client.readPump: пользователь=%d ошибка чтения: %v", c.UserID, err)
			break
		}
		c.Hub.HandleMessage(c, msg)
	}
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Client.writePump: пользователь=%d ошибка записи: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			// heartbeat транспорта, держит соединение живым через прокси
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
