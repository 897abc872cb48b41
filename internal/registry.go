package internal

import (
	"log/slog"
	"sync"
)

// Registry 房間註冊表
//
// 唯一擁有所有 Room 物件；房間按名稱惰性創建，
// 在最後一個連接離開時銷毀。沒有環境全局變量，
// 所有變更都經由註冊表與房間的操作進行。
type Registry struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	cfg    GameConfig
	logger *slog.Logger
}

// NewRegistry 創建房間註冊表
func NewRegistry(cfg GameConfig, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		logger: logger,
	}
}

// EnsureRoom 返回既有房間，不存在則創建
//
// 按名稱冪等：同名多次調用返回同一個房間。
// 新房間帶一組鋪滿的金幣（隨機位置，全部 Active）。
// 房間名稱永遠按需實體化，沒有錯誤情況。
func (g *Registry) EnsureRoom(name string) *Room {
	g.mu.RLock()
	room, exists := g.rooms[name]
	g.mu.RUnlock()

	if exists {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// 再檢查一次，兩個連接可能同時搶創建
	if room, exists := g.rooms[name]; exists {
		return room
	}

	room = newRoom(name, g.cfg, g.logger)
	g.rooms[name] = room

	g.logger.Info("房間已創建",
		"room", name,
		"coins", g.cfg.CoinCount)

	return room
}

// Get 獲取房間，不創建
func (g *Registry) Get(name string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, exists := g.rooms[name]
	return room, exists
}

// RemoveRoomIfEmpty 在每次斷線後調用
//
// 連接集合為空時刪除房間，並取消所有待觸發的金幣重生
// 定時器，避免殘留回調去變更一個已不存在的房間。
func (g *Registry) RemoveRoomIfEmpty(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, exists := g.rooms[name]
	if !exists {
		return
	}

	// 空檢查與關閉必須是同一個臨界區（closeIfEmpty 持房間鎖一次做完），
	// 且關閉與移出註冊表在同一把註冊表鎖之下：
	// 之後任何人從 EnsureRoom 拿到已關閉房間時，該條目必定已被刪除，
	// 重取一次就能得到新房間。
	if !room.closeIfEmpty() {
		return
	}
	delete(g.rooms, name)

	g.logger.Info("空房間已銷毀", "room", name)
}

// Stats 獲取統計資訊
func (g *Registry) Stats() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	totalConns := 0
	totalPlayers := 0
	activeCoins := 0

	for _, room := range g.rooms {
		totalConns += room.ConnCount()
		totalPlayers += room.PlayerCount()
		activeCoins += room.ActiveCoinCount()
	}

	return map[string]any{
		"total_rooms":   len(g.rooms),
		"total_conns":   totalConns,
		"total_players": totalPlayers,
		"active_coins":  activeCoins,
	}
}

// Stop 關閉所有房間（服務器優雅關閉用）
func (g *Registry) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, room := range g.rooms {
		room.close()
		delete(g.rooms, name)
	}

	g.logger.Info("房間註冊表已停止")
}
