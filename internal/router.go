package internal

import (
	"encoding/json"

	"github.com/google/uuid"
)

// 預設房間名稱：join / state / collect 未指定房間時使用
const defaultRoomName = "default"

// handleMessage 解碼一條入站訊息並分發
//
// 兩階段解碼：先取 type，再按類型解析各自的欄位。
// 無法解析或缺 type 的訊息直接丟棄，不回覆發送者；
// 未識別的 type 也是空操作（向前兼容策略）。
func (c *Conn) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.hub.logger.Debug("丟棄無法解析的訊息", "error", err)
		return
	}

	switch env.Type {
	case MsgJoin:
		c.handleJoin(data)
	case MsgRequestInit:
		c.handleRequestInit(data)
	case MsgState:
		c.handleState(data)
	case MsgCollect:
		c.handleCollect(data)
	default:
		c.hub.logger.Debug("忽略未知訊息類型",
			"type", env.Type,
			"room", c.RoomName,
			"player", c.PlayerID)
	}
}

// handleJoin 登記連接與玩家到指定房間
//
// 客戶端沒帶 id 時由服務器生成隨機令牌；
// 唯一性只在房間內有意義，不做全局保證。
func (c *Conn) handleJoin(data []byte) {
	var msg joinPayload
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("丟棄無法解析的 join", "error", err)
		return
	}

	roomName := msg.Room
	if roomName == "" {
		roomName = defaultRoomName
	}
	playerID := msg.ID
	if playerID == "" {
		playerID = uuid.NewString()
	}

	c.PlayerID = playerID
	c.RoomName = roomName

	// EnsureRoom 與 Attach 之間，最後一個成員的斷線可能剛好銷毀了
	// 這個房間。撞上已關閉的房間就重取：註冊表在關閉的同時已刪除
	// 該條目，下一次 EnsureRoom 必然給出活房間。
	for {
		room := c.hub.registry.EnsureRoom(roomName)
		if !room.Attach(c) {
			continue
		}
		room.JoinPlayer(playerID, msg.ColorHex, c)
		break
	}

	c.hub.logger.Info("玩家加入房間",
		"room", roomName,
		"player", playerID)
}

// handleRequestInit 單播房間完整快照給請求者
func (c *Conn) handleRequestInit(data []byte) {
	var msg requestInitPayload
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("丟棄無法解析的 requestInit", "error", err)
		return
	}

	roomName := msg.Room
	if roomName == "" {
		roomName = defaultRoomName
	}

	room := c.hub.registry.EnsureRoom(roomName)
	c.unicast(room.Snapshot())
}

// handleState 覆蓋玩家狀態並轉發給其他成員
//
// 前提：連接已經 join 過；否則忽略。
func (c *Conn) handleState(data []byte) {
	if c.PlayerID == "" {
		return
	}

	var msg statePayload
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("丟棄無法解析的 state", "error", err)
		return
	}

	room := c.hub.registry.EnsureRoom(c.resolveRoom(msg.Room))
	room.ApplyState(PlayerState{
		ID:       c.PlayerID,
		X:        msg.X,
		Y:        msg.Y,
		Z:        msg.Z,
		ColorHex: msg.ColorHex,
		Coins:    msg.Coins,
	}, c)
}

// handleCollect 轉交金幣撿取請求給房間
//
// 未知金幣編號由 Room.Collect 作為空操作吸收。
func (c *Conn) handleCollect(data []byte) {
	if c.PlayerID == "" {
		return
	}

	var msg collectPayload
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("丟棄無法解析的 collect", "error", err)
		return
	}

	room := c.hub.registry.EnsureRoom(c.resolveRoom(msg.Room))
	room.Collect(msg.ID, msg.Player)
}

// resolveRoom 解析訊息指向的房間：訊息欄位優先，其次連接關聯，最後預設
func (c *Conn) resolveRoom(name string) string {
	if name != "" {
		return name
	}
	if c.RoomName != "" {
		return c.RoomName
	}
	return defaultRoomName
}

// disconnect 斷線清理
//
// 移除連接與玩家、向同房成員廣播 playerLeft；
// 若房間因此變空，連同所有待觸發的重生定時器一起銷毀。
// 從未 join 過的連接沒有任何要清理的狀態。
func (c *Conn) disconnect() {
	if c.RoomName == "" {
		return
	}

	room, exists := c.hub.registry.Get(c.RoomName)
	if !exists {
		return
	}

	room.Detach(c)
	room.RemovePlayer(c.PlayerID)
	c.hub.registry.RemoveRoomIfEmpty(c.RoomName)

	c.hub.logger.Info("玩家離開房間",
		"room", c.RoomName,
		"player", c.PlayerID)
}
