package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server  ServerConfig  `toml:"server"`
	Data    DataConfig    `toml:"data"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Catalog CatalogConfig `toml:"catalog"`
	Resolve ResolveConfig `toml:"resolve"`
	Split   SplitConfig   `toml:"split"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port    int    `toml:"port"`
	DevMode bool   `toml:"dev_mode"`
	APIKey  string `toml:"api_key"`
}

// DataConfig 数据目录配置：缓存文件、运行历史、日志都放在这里
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// LedgerConfig 台账工作簿配置
type LedgerConfig struct {
	Path          string `toml:"path"`
	Sheet         string `toml:"sheet"`
	SourceTag     string `toml:"source_tag"`
	CapacityBlock int    `toml:"capacity_block"`
}

// CatalogConfig 商品目录配置（默认与台账同一工作簿的目录表）
type CatalogConfig struct {
	Path  string `toml:"path"`
	Sheet string `toml:"sheet"`
}

// ResolveConfig 身份解析配置
type ResolveConfig struct {
	DefaultCategory      string `toml:"default_category"`
	PromptTimeoutSeconds int    `toml:"prompt_timeout_seconds"`
	AutoMode             bool   `toml:"auto_mode"`
}

// SplitConfig 等额拆分的允许范围
type SplitConfig struct {
	MinUnits int `toml:"min_units"`
	MaxUnits int `toml:"max_units"`
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20372,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Ledger: LedgerConfig{
			Path:          "ledger.xlsx",
			Sheet:         "订单台账",
			SourceTag:     "市场",
			CapacityBlock: 1000,
		},
		Catalog: CatalogConfig{
			Sheet: "设置",
		},
		Resolve: ResolveConfig{
			DefaultCategory:      "耗材",
			PromptTimeoutSeconds: 300,
		},
		Split: SplitConfig{
			MinUnits: 2,
			MaxUnits: 20,
		},
	}
}

// LoadConfig 加载配置文件；文件不存在时返回默认配置
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// 配置文件缺失时用默认值
	default:
		return nil, err
	}

	// 环境变量覆盖（用于 E2E / 本地运行）
	if v := os.Getenv("ORDERSYNC_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("ORDERSYNC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = cfg.Ledger.Path
	}
	return cfg, nil
}

// EnsureDataDir 确保数据目录存在并返回绝对路径
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dir := cfg.Data.DataDir
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err == nil {
			dir = abs
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// MappingsPath 映射缓存文件路径
func (c *AppConfig) MappingsPath(dataDir string) string {
	return filepath.Join(dataDir, "product_mappings.json")
}

// BundlesPath 组合包登记表文件路径
func (c *AppConfig) BundlesPath(dataDir string) string {
	return filepath.Join(dataDir, "product_bundles.json")
}

// ColorsPath 颜色判定缓存文件路径
func (c *AppConfig) ColorsPath(dataDir string) string {
	return filepath.Join(dataDir, "color_hints.json")
}

// ExcludedPath 排除清单文件路径
func (c *AppConfig) ExcludedPath(dataDir string) string {
	return filepath.Join(dataDir, "excluded_orders.json")
}

// RunLogPath 运行历史数据库路径
func (c *AppConfig) RunLogPath(dataDir string) string {
	return filepath.Join(dataDir, "ordersync.db")
}
