package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/world-sync/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoom_Collect 測試撿取金幣：停用、計分、廣播
func TestRoom_Collect(t *testing.T) {
	cfg := testGameConfig()
	cfg.RespawnDelay = time.Minute // 測試期間不重生
	registry := internal.NewRegistry(cfg, testLogger())
	room := registry.EnsureRoom("r1")
	room.JoinPlayer("A", "#ff0000", nil)

	observer := attachConn(room)

	room.Collect(3, "A")

	t.Run("coinUpdate without coordinates", func(t *testing.T) {
		event := recvEvent(t, observer)
		assert.Equal(t, "coinUpdate", event["type"])
		assert.Equal(t, float64(3), event["id"])
		assert.Equal(t, false, event["active"])

		// 停用事件不帶座標
		_, hasX := event["x"]
		_, hasZ := event["z"]
		assert.False(t, hasX)
		assert.False(t, hasZ)
	})

	t.Run("collector is credited and state broadcast", func(t *testing.T) {
		event := recvEvent(t, observer)
		assert.Equal(t, "state", event["type"])
		assert.Equal(t, "A", event["id"])
		assert.Equal(t, float64(1), event["coins"])
	})

	t.Run("coin is inactive in the snapshot", func(t *testing.T) {
		for _, coin := range room.Snapshot().Coins {
			if coin.ID == 3 {
				assert.False(t, coin.Active)
				return
			}
		}
		t.Fatal("快照中找不到金幣 3")
	})
}

// TestRoom_Collect_SecondIsNoOp 測試重複撿取同一枚金幣（每週期至多一次計分）
func TestRoom_Collect_SecondIsNoOp(t *testing.T) {
	cfg := testGameConfig()
	cfg.RespawnDelay = time.Minute // 測試期間不重生
	registry := internal.NewRegistry(cfg, testLogger())
	room := registry.EnsureRoom("r1")
	room.JoinPlayer("A", "#ff0000", nil)
	room.JoinPlayer("B", "#0000ff", nil)

	observer := attachConn(room)

	room.Collect(3, "A")
	recvEvent(t, observer) // coinUpdate
	recvEvent(t, observer) // A 的 state

	// B 在停用廣播到達前搶同一枚金幣
	room.Collect(3, "B")

	assertNoEvent(t, observer, 150*time.Millisecond)

	for _, player := range room.Snapshot().Players {
		switch player.ID {
		case "A":
			assert.Equal(t, 1, player.Coins)
		case "B":
			assert.Equal(t, 0, player.Coins, "重複撿取不應計分")
		}
	}
}

// TestRoom_Collect_UnknownCoin 測試未知金幣編號（良性空操作）
func TestRoom_Collect_UnknownCoin(t *testing.T) {
	registry := internal.NewRegistry(testGameConfig(), testLogger())
	room := registry.EnsureRoom("r1")
	room.JoinPlayer("A", "#ff0000", nil)

	observer := attachConn(room)

	require.NotPanics(t, func() {
		room.Collect(99, "A")
	})

	assertNoEvent(t, observer, 150*time.Millisecond)
}

// TestRoom_Collect_UnknownCollector 測試撿取者不存在時只停用金幣
func TestRoom_Collect_UnknownCollector(t *testing.T) {
	cfg := testGameConfig()
	cfg.RespawnDelay = time.Minute // 測試期間不重生
	registry := internal.NewRegistry(cfg, testLogger())
	room := registry.EnsureRoom("r1")

	observer := attachConn(room)

	room.Collect(2, "ghost")

	event := recvEvent(t, observer)
	assert.Equal(t, "coinUpdate", event["type"])
	assert.Equal(t, float64(2), event["id"])
	assert.Equal(t, false, event["active"])

	// 沒有玩家可計分，不該有 state 廣播
	assertNoEvent(t, observer, 150*time.Millisecond)
}

// TestRoom_Respawn 測試金幣延遲重生
func TestRoom_Respawn(t *testing.T) {
	registry := internal.NewRegistry(testGameConfig(), testLogger())
	room := registry.EnsureRoom("r1")
	room.JoinPlayer("A", "#ff0000", nil)

	observer := attachConn(room)

	room.Collect(0, "A")
	recvEvent(t, observer) // coinUpdate（停用）
	recvEvent(t, observer) // A 的 state

	t.Run("coinUpdate with fresh coordinates after the delay", func(t *testing.T) {
		event := recvEvent(t, observer)
		assert.Equal(t, "coinUpdate", event["type"])
		assert.Equal(t, float64(0), event["id"])
		assert.Equal(t, true, event["active"])

		x, hasX := event["x"].(float64)
		z, hasZ := event["z"].(float64)
		require.True(t, hasX)
		require.True(t, hasZ)
		assert.GreaterOrEqual(t, x, float64(-140))
		assert.LessOrEqual(t, x, float64(140))
		assert.GreaterOrEqual(t, z, float64(-140))
		assert.LessOrEqual(t, z, float64(140))
	})

	t.Run("coin is collectible again", func(t *testing.T) {
		for _, coin := range room.Snapshot().Coins {
			if coin.ID == 0 {
				assert.True(t, coin.Active)
				return
			}
		}
		t.Fatal("快照中找不到金幣 0")
	})

	t.Run("exactly one respawn is scheduled per collect", func(t *testing.T) {
		// 若撿取排了兩個定時器，這裡會再冒出一條 coinUpdate
		assertNoEvent(t, observer, 3*testGameConfig().RespawnDelay)
	})
}

// TestRoom_Respawn_FullCycle 測試 Active → Collected → Active 可重複循環
func TestRoom_Respawn_FullCycle(t *testing.T) {
	registry := internal.NewRegistry(testGameConfig(), testLogger())
	room := registry.EnsureRoom("r1")
	room.JoinPlayer("A", "#ff0000", nil)

	observer := attachConn(room)

	for cycle := 0; cycle < 3; cycle++ {
		room.Collect(1, "A")

		event := recvEvent(t, observer)
		assert.Equal(t, "coinUpdate", event["type"])
		assert.Equal(t, false, event["active"], "循環 %d：撿取後應停用", cycle)

		recvEvent(t, observer) // A 的 state

		event = recvEvent(t, observer)
		assert.Equal(t, "coinUpdate", event["type"])
		assert.Equal(t, true, event["active"], "循環 %d：延遲後應重生", cycle)
	}

	for _, player := range room.Snapshot().Players {
		if player.ID == "A" {
			assert.Equal(t, 3, player.Coins)
		}
	}
}
