package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 讀取超時：60 秒內沒有任何訊息（含 Pong）就視為死連接
	pongWait = 60 * time.Second

	// Ping 間隔：避開常見的 60 秒代理超時，留 6 秒余量
	pingPeriod = 54 * time.Second

	// 單次寫入超時
	writeWait = 10 * time.Second

	// 入站訊息大小上限（扁平 JSON 狀態訊息遠小於此）
	maxMessageSize = 4096
)

// Hub WebSocket 接入層
//
// 每個瀏覽器分頁一條持久的雙向連接。Hub 負責升級連接、
// 啟動讀寫泵；房間成員關係由 Registry / Room 持有，
// Hub 本身不維護第二份連接映射。
type Hub struct {
	registry   *Registry
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewHub 創建 WebSocket 接入層
func NewHub(registry *Registry, sendBuffer int, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sendBuffer: sendBuffer,
	}
}

// ServeWS 處理 WebSocket 連接
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	conn := &Conn{
		hub:  h,
		ws:   ws,
		Send: make(chan []byte, h.sendBuffer),
	}

	go conn.writePump()
	go conn.readPump()

	h.logger.Info("WebSocket 連接建立", "remote", ws.RemoteAddr().String())
}

// Conn 一條客戶端連接
//
// 連接本身由傳輸層擁有；房間只持有非擁有性的成員引用。
// PlayerID / RoomName 是路由層維護的連接關聯記錄：
// 在 join 時寫入，之後每條入站訊息都據此查找，
// 而不是把元數據掛在底層 socket 上。
type Conn struct {
	PlayerID string
	RoomName string
	Send     chan []byte

	hub *Hub
	ws  *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// enqueue 非阻塞投遞一條已序列化的訊息
//
// 已關閉或緩衝已滿的連接直接跳過：廣播對任何單一
// 接收者都是盡力而為，絕不反向阻塞房間。
func (c *Conn) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.Send <- data:
	default:
		// 緩衝滿了，丟棄這條訊息
	}
}

// unicast 序列化事件並只發給這條連接（init 回覆用）
func (c *Conn) unicast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		if c.hub != nil {
			c.hub.logger.Error("序列化事件失敗", "error", err)
		}
		return
	}
	c.enqueue(data)
}

// closeSend 關閉發送通道（保證只關一次）
func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.Send != nil {
		close(c.Send)
	}
}

// readPump 讀取客戶端訊息
//
// 斷線是唯一的清理點：讀循環退出時移除玩家、通知同房成員，
// 房間空了就連帶銷毀（包括取消所有金幣重生定時器）。
func (c *Conn) readPump() {
	defer func() {
		c.disconnect()
		c.closeSend()
		if err := c.ws.Close(); err != nil {
			c.hub.logger.Debug("關閉連接失敗", "error", err)
		}
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"room", c.RoomName,
					"player", c.PlayerID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入訊息到客戶端
//
// 所有寫入集中在這個 goroutine，配合 54 秒 Ping 心跳。
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// 發送通道已關閉，送出關閉幀後退出
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量送出隊列中剩餘的訊息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.ws.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
