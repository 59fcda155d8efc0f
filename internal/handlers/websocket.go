package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 32
	broadcastSize  = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes account events to every open connection of that
// account. It implements services.Broadcaster.
type WebSocketHandler struct {
	wallet *services.WalletService
	hub    *WebSocketHub
	logger *zap.Logger
}

type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       <-chan struct{}
	logger     *zap.Logger
}

type Client struct {
	AccountID string
	Conn      *websocket.Conn
	send      chan *Message
}

type Message struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id,omitempty"`
	Data      any    `json:"data"`

	// target restricts delivery to one connection.
	target *Client
}

func NewWebSocketHandler(ctx context.Context, wallet *services.WalletService, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, broadcastSize),
		done:       ctx.Done(),
		logger:     logger,
	}

	go hub.run(ctx)

	return &WebSocketHandler{
		wallet: wallet,
		hub:    hub,
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	accountID := c.GetString("account_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		AccountID: accountID,
		Conn:      conn,
		send:      make(chan *Message, clientSendSize),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	go client.writePump(h.logger)

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
	}()

	h.sendBalance(c.Request.Context(), client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.String("account_id", accountID), zap.Error(err))
			}
			break
		}

		h.handleMessage(c.Request.Context(), client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.enqueue(&Message{
			Type:   "PONG",
			Data:   gin.H{"timestamp": time.Now().Unix()},
			target: client,
		})
	case "BALANCE":
		h.sendBalance(ctx, client)
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	balance, err := h.wallet.Balance(ctx, client.AccountID)
	if err != nil {
		h.logger.Warn("failed to load balance for websocket", zap.String("account_id", client.AccountID), zap.Error(err))
		return
	}
	h.enqueue(&Message{
		Type:      "BALANCE_UPDATE",
		AccountID: client.AccountID,
		Data:      balance,
		target:    client,
	})
}

func (c *Client) writePump(logger *zap.Logger) {
	for msg := range c.send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", zap.String("account_id", c.AccountID), zap.Error(err))
			c.Conn.Close()
			// Drain so the hub never blocks on a dead client.
			for range c.send {
			}
			return
		}
	}
	_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (hub *WebSocketHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range hub.clients {
				for client := range conns {
					close(client.send)
				}
			}
			hub.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-hub.register:
			conns, ok := hub.clients[client.AccountID]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.AccountID] = conns
			}
			conns[client] = struct{}{}
			hub.logger.Debug("websocket client registered", zap.String("account_id", client.AccountID))

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			hub.deliver(message)
		}
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	conns, ok := hub.clients[client.AccountID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(hub.clients, client.AccountID)
	}
	hub.logger.Debug("websocket client unregistered", zap.String("account_id", client.AccountID))
}

func (hub *WebSocketHub) deliver(message *Message) {
	if message.target != nil {
		hub.push(message.target, message)
		return
	}
	for client := range hub.clients[message.AccountID] {
		hub.push(client, message)
	}
}

func (hub *WebSocketHub) push(client *Client, message *Message) {
	if _, ok := hub.clients[client.AccountID][client]; !ok {
		return
	}
	select {
	case client.send <- message:
	default:
		hub.logger.Warn("dropping slow websocket client", zap.String("account_id", client.AccountID))
		hub.remove(client)
	}
}

func (h *WebSocketHandler) enqueue(msg *Message) {
	select {
	case h.hub.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full", zap.String("type", msg.Type))
	}
}

func (h *WebSocketHandler) BroadcastPlayResult(accountID string, result *models.PlayResult) {
	h.enqueue(&Message{Type: "PLAY_RESULT", AccountID: accountID, Data: result})
}

func (h *WebSocketHandler) BroadcastRoundUpdate(accountID string, round *models.RoundState) {
	h.enqueue(&Message{Type: "ROUND_UPDATE", AccountID: accountID, Data: round})
}

func (h *WebSocketHandler) BroadcastBalance(accountID string, account *models.Account) {
	h.enqueue(&Message{
		Type:      "BALANCE_UPDATE",
		AccountID: accountID,
		Data: gin.H{
			"balance":       account.Balance,
			"total_wagered": account.TotalWagered,
			"nonce":         account.Nonce,
		},
	})
}

var _ services.Broadcaster = (*WebSocketHandler)(nil)
