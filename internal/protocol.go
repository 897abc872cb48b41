package internal

// 訊息協議：
//   每條訊息是一個扁平的 JSON 物件，必帶 "type" 欄位，
//   其餘欄位依類型而定。未知類型一律忽略（向前兼容）。
//
// 客戶端 → 服務器：join, requestInit, state, collect
// 服務器 → 客戶端：init, state, coinUpdate, playerJoined, playerLeft

// 客戶端訊息類型
const (
	MsgJoin        = "join"
	MsgRequestInit = "requestInit"
	MsgState       = "state"
	MsgCollect     = "collect"
)

// 服務器事件類型
const (
	EventInit         = "init"
	EventState        = "state"
	EventCoinUpdate   = "coinUpdate"
	EventPlayerJoined = "playerJoined"
	EventPlayerLeft   = "playerLeft"
)

// envelope 僅用於第一階段解碼，取出訊息類型
type envelope struct {
	Type string `json:"type"`
}

// joinPayload 進入房間
type joinPayload struct {
	Room     string `json:"room"`
	ID       string `json:"id"`
	ColorHex string `json:"colorHex"`
}

// requestInitPayload 請求房間完整快照
type requestInitPayload struct {
	Room string `json:"room"`
}

// statePayload 玩家位置 / 分數推送
type statePayload struct {
	Room     string  `json:"room"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	ColorHex string  `json:"colorHex"`
	Coins    int     `json:"coins"`
}

// collectPayload 撿取金幣請求（id 為金幣編號，player 為撿取者）
type collectPayload struct {
	Room   string `json:"room"`
	ID     int    `json:"id"`
	Player string `json:"player"`
}

// PlayerState 玩家的完整狀態，同時是存儲形式與傳輸形式
type PlayerState struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	ColorHex string  `json:"colorHex"`
	Coins    int     `json:"coins"`
}

// CoinState 金幣的傳輸形式（快照用）
type CoinState struct {
	ID     int  `json:"id"`
	X      int  `json:"x"`
	Z      int  `json:"z"`
	Active bool `json:"active"`
}

// InitEvent 一次性房間快照，只單播給請求者
type InitEvent struct {
	Type    string        `json:"type"`
	Coins   []CoinState   `json:"coins"`
	Players []PlayerState `json:"players"`
}

// StateEvent 轉發某玩家的狀態給房間其他成員
type StateEvent struct {
	Type string `json:"type"`
	PlayerState
}

// CoinUpdateEvent 金幣停用或重生
//
// 停用時不帶座標；重生時帶新的 x, z。
type CoinUpdateEvent struct {
	Type   string `json:"type"`
	ID     int    `json:"id"`
	Active bool   `json:"active"`
	X      *int   `json:"x,omitempty"`
	Z      *int   `json:"z,omitempty"`
}

// PlayerJoinedEvent 通知同房玩家有新成員加入
type PlayerJoinedEvent struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	ColorHex string  `json:"colorHex"`
}

// PlayerLeftEvent 通知同房玩家有成員離開
type PlayerLeftEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
