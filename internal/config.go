package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 同步服務配置
//
// 所有配置在啟動時固定，運行期間不可變。
type Config struct {
	Server ServerConfig
	Game   GameConfig
	Log    LogConfig
}

// ServerConfig HTTP / WebSocket 服務配置
type ServerConfig struct {
	// 監聽端口
	Port int

	// HTTP 超時設置
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// 每個連接的發送緩衝大小（訊息數）
	SendBuffer int
}

// GameConfig 遊戲世界配置
type GameConfig struct {
	// 每個房間的金幣數量
	CoinCount int

	// 金幣被撿取後重生的延遲
	RespawnDelay time.Duration

	// 金幣位置的世界半徑（x, z 取樣範圍 [-bound, bound)）
	WorldBound int
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			SendBuffer:   256,
		},
		Game: GameConfig{
			CoinCount:    32,               // 每房間 32 枚金幣
			RespawnDelay: 45 * time.Second, // 撿取後 45 秒重生
			WorldBound:   140,              // x, z ∈ [-140, 140)
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// fileConfig YAML 檔案格式
//
// 指針欄位用來區分「檔案沒寫」和「寫了零值」；
// 延遲以毫秒整數表示（yaml 不認得 time.Duration）。
type fileConfig struct {
	Server struct {
		Port       *int `yaml:"port"`
		SendBuffer *int `yaml:"send_buffer"`
	} `yaml:"server"`
	Game struct {
		CoinCount      *int `yaml:"coin_count"`
		RespawnDelayMS *int `yaml:"respawn_delay_ms"`
		WorldBound     *int `yaml:"world_bound"`
	} `yaml:"game"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig 從 YAML 檔案載入配置
//
// 檔案中未指定的欄位保留預設值。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("讀取配置檔案失敗: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("解析配置檔案失敗: %w", err)
	}

	cfg := DefaultConfig()

	if fc.Server.Port != nil {
		cfg.Server.Port = *fc.Server.Port
	}
	if fc.Server.SendBuffer != nil {
		cfg.Server.SendBuffer = *fc.Server.SendBuffer
	}
	if fc.Game.CoinCount != nil {
		cfg.Game.CoinCount = *fc.Game.CoinCount
	}
	if fc.Game.RespawnDelayMS != nil {
		cfg.Game.RespawnDelay = time.Duration(*fc.Game.RespawnDelayMS) * time.Millisecond
	}
	if fc.Game.WorldBound != nil {
		cfg.Game.WorldBound = *fc.Game.WorldBound
	}
	if fc.Log.Level != nil {
		cfg.Log.Level = *fc.Log.Level
	}
	if fc.Log.Format != nil {
		cfg.Log.Format = *fc.Log.Format
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 拒絕會讓服務在運行期炸掉的配置
//
// world_bound 必須為正：座標取樣是 [-bound, bound)，
// 非正的半徑在第一個房間創建時就會 panic。
func (c *Config) validate() error {
	if c.Game.WorldBound <= 0 {
		return fmt.Errorf("world_bound 必須為正數，得到 %d", c.Game.WorldBound)
	}
	if c.Game.CoinCount < 0 {
		return fmt.Errorf("coin_count 不可為負數，得到 %d", c.Game.CoinCount)
	}
	if c.Game.RespawnDelay < 0 {
		return fmt.Errorf("respawn_delay_ms 不可為負數，得到 %s", c.Game.RespawnDelay)
	}
	return nil
}
