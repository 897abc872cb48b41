package internal

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// 系統設計問題：
//   如何讓同一房間的多個瀏覽器客戶端即時看到彼此的位置與共享金幣狀態？
//
// 核心挑戰：
//   1. 狀態共享：玩家位置、金幣狀態都屬於房間，必須有唯一的擁有者
//   2. 併發控制：訊息處理與金幣重生定時器會交錯執行
//   3. 生命週期：房間隨第一個連接建立，隨最後一個連接銷毀
//   4. 廣播效率：事件只序列化一次，再扇出給所有連接
//
// 設計方案：
//   ✅ 每房間一把互斥鎖 - 房間之間完全獨立，不需要跨房間協調
//   ✅ 世代編號（generation）- 重生定時器重排時舊回調自動失效
//   ✅ closed 旗標 - 房間銷毀後殘留的定時器回調不再觸碰狀態
//   ✅ 非阻塞發送 - 慢消費者被跳過，不拖累整個房間

// Coin 房間內的一枚金幣
//
// 狀態機：Active → Collected →（延遲後）→ Active
// 金幣編號在房間創建時一次分配（0..N-1），之後不增不減。
type Coin struct {
	ID     int
	X      int
	Z      int
	Active bool

	// 待觸發的重生定時器；只在 Active=false 且重生已排程時存在
	respawn *time.Timer

	// 每次排程遞增；回調攜帶排程當下的世代，
	// 不相符代表定時器已被取代，回調直接放棄
	respawnGen uint64
}

// Room 一個獨立的模擬分片
//
// 併發模型：
//   來源系統是單線程事件循環，訊息回調與定時器回調天然互斥。
//   Go 的對應做法是每房間一把鎖：所有玩家 / 金幣 / 連接的變更
//   都在 mu 之下進行，定時器回調也先取鎖再動手。
//   房間之間沒有任何共享實體，鎖粒度到房間為止。
type Room struct {
	Name string

	mu      sync.Mutex
	conns   map[*Conn]struct{}
	players map[string]*PlayerState
	coins   map[int]*Coin
	closed  bool

	cfg    GameConfig
	logger *slog.Logger
}

// newRoom 創建房間並一次性鋪滿金幣
//
// 房間只能經由 Registry.EnsureRoom 創建。
func newRoom(name string, cfg GameConfig, logger *slog.Logger) *Room {
	r := &Room{
		Name:    name,
		conns:   make(map[*Conn]struct{}),
		players: make(map[string]*PlayerState),
		coins:   make(map[int]*Coin, cfg.CoinCount),
		cfg:     cfg,
		logger:  logger,
	}

	for i := 0; i < cfg.CoinCount; i++ {
		r.coins[i] = &Coin{
			ID:     i,
			X:      randomCoord(cfg.WorldBound),
			Z:      randomCoord(cfg.WorldBound),
			Active: true,
		}
	}

	return r
}

// randomCoord 在 [-bound, bound) 內均勻取整數座標
//
// 純裝飾性擺放，不做與坡道 / 建築 / 其他金幣的空間排除。
func randomCoord(bound int) int {
	return rand.Intn(bound*2) - bound
}

// Attach 登記一個連接為房間成員
//
// 房間已關閉時返回 false：EnsureRoom 與 Attach 之間房間可能剛被
// 最後一個離開者銷毀，調用者要重新向註冊表取房間，
// 不能留在一個永遠收不到廣播的殼上。
func (r *Room) Attach(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// Detach 移除連接（只在斷線路徑調用）
func (r *Room) Detach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c)
}

// JoinPlayer 在原點插入玩家，並向其他成員廣播 playerJoined
//
// 加入者本身透過另外的 requestInit 拉取現有成員，不靠這次廣播。
// 相同 ID 再次加入會整個覆蓋舊記錄（last-write-wins）。
func (r *Room) JoinPlayer(id, colorHex string, except *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.players[id] = &PlayerState{ID: id, ColorHex: colorHex}

	r.broadcastLocked(PlayerJoinedEvent{
		Type:     EventPlayerJoined,
		ID:       id,
		ColorHex: colorHex,
	}, except)
}

// ApplyState 整體覆蓋玩家狀態並轉發給其他成員
//
// 不做物理合理性驗證（瞬移距離、速度）—— 這是刻意保留的信任邊界。
// 未知玩家（state 先於 join 到達）靜默忽略，屬於正常的暫態競態。
func (r *Room) ApplyState(state PlayerState, except *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if _, exists := r.players[state.ID]; !exists {
		return
	}

	s := state
	r.players[state.ID] = &s

	r.broadcastLocked(StateEvent{Type: EventState, PlayerState: s}, except)
}

// RemovePlayer 刪除玩家並廣播 playerLeft
func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[id]; !exists {
		return
	}

	delete(r.players, id)

	r.broadcastLocked(PlayerLeftEvent{Type: EventPlayerLeft, ID: id}, nil)
}

// Collect 嘗試撿取金幣
//
// 只有 Active 的金幣可被撿取。對已停用金幣的重複撿取是空操作：
// 不廣播、不加分、不重排定時器 —— 即使多個客戶端在停用廣播
// 到達前搶同一枚金幣，每個重生週期也至多記一次分。
func (r *Room) Collect(coinID int, collectorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	coin, exists := r.coins[coinID]
	if !exists || !coin.Active {
		return
	}

	coin.Active = false

	// 防禦性清除殘留定時器（正常流程不應存在）
	if coin.respawn != nil {
		coin.respawn.Stop()
		coin.respawn = nil
	}

	r.broadcastLocked(CoinUpdateEvent{
		Type:   EventCoinUpdate,
		ID:     coin.ID,
		Active: false,
	}, nil)

	r.scheduleRespawnLocked(coin)

	// 撿取者已知時記分並廣播其最新狀態
	if player, exists := r.players[collectorID]; exists {
		player.Coins++
		r.broadcastLocked(StateEvent{Type: EventState, PlayerState: *player}, nil)
	}
}

// scheduleRespawnLocked 排程金幣重生（調用者須持有 r.mu）
//
// 重複排程會取代（取消 + 重排）先前的定時器，而不是疊加兩個。
func (r *Room) scheduleRespawnLocked(coin *Coin) {
	if coin.respawn != nil {
		coin.respawn.Stop()
	}

	coin.respawnGen++
	gen := coin.respawnGen

	coin.respawn = time.AfterFunc(r.cfg.RespawnDelay, func() {
		r.respawnCoin(coin.ID, gen)
	})
}

// respawnCoin 重生定時器回調
//
// 與任何入站訊息交錯執行，因此進來先取鎖，
// 再依序檢查：房間還活著、金幣還在、世代沒被取代。
func (r *Room) respawnCoin(coinID int, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	coin, exists := r.coins[coinID]
	if !exists || gen != coin.respawnGen {
		return
	}

	coin.X = randomCoord(r.cfg.WorldBound)
	coin.Z = randomCoord(r.cfg.WorldBound)
	coin.Active = true
	coin.respawn = nil

	x, z := coin.X, coin.Z
	r.broadcastLocked(CoinUpdateEvent{
		Type:   EventCoinUpdate,
		ID:     coin.ID,
		Active: true,
		X:      &x,
		Z:      &z,
	}, nil)
}

// Snapshot 產生房間完整快照（init 單播用）
func (r *Room) Snapshot() InitEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	coins := make([]CoinState, 0, len(r.coins))
	for i := 0; i < r.cfg.CoinCount; i++ {
		if coin, exists := r.coins[i]; exists {
			coins = append(coins, CoinState{ID: coin.ID, X: coin.X, Z: coin.Z, Active: coin.Active})
		}
	}

	players := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}

	return InitEvent{Type: EventInit, Coins: coins, Players: players}
}

// Broadcast 序列化一次事件並扇出給所有連接（except 除外）
func (r *Room) Broadcast(event any, except *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(event, except)
}

// broadcastLocked 廣播實現（調用者須持有 r.mu）
//
// 發送是非阻塞的：未開啟或緩衝已滿的連接被跳過而非移除，
// 移除只發生在明確的斷線路徑。
func (r *Room) broadcastLocked(event any, except *Conn) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("序列化事件失敗", "room", r.Name, "error", err)
		return
	}

	for c := range r.conns {
		if c == except {
			continue
		}
		c.enqueue(data)
	}
}

// close 關閉房間：取消所有重生定時器並標記 closed
//
// closed 一旦設置，殘留的定時器回調與晚到的訊息都成為空操作，
// 不會再觸碰一個已從註冊表移除的房間。
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// closeIfEmpty 在同一次持鎖內檢查空房間並關閉
//
// 檢查與關閉之間不能讓出鎖：分開取鎖的話，
// 新連接可能剛好在中間 Attach 進來又被關閉踢掉。
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) > 0 {
		return false
	}
	r.closeLocked()
	return true
}

// closeLocked 關閉實現（調用者須持有 r.mu）
func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true

	for _, coin := range r.coins {
		if coin.respawn != nil {
			coin.respawn.Stop()
			coin.respawn = nil
		}
	}

	for c := range r.conns {
		c.closeSend()
	}
	r.conns = make(map[*Conn]struct{})
}

// ConnCount 獲取連接數量
func (r *Room) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// PlayerCount 獲取玩家數量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// ActiveCoinCount 獲取仍可撿取的金幣數量
func (r *Room) ActiveCoinCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, coin := range r.coins {
		if coin.Active {
			count++
		}
	}
	return count
}
