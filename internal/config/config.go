package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/aoscxcliconf/aoscxcliconf/pkg/cache"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig              `mapstructure:"server"`
	SSH      SSHConfig                 `mapstructure:"ssh"`
	Log      LogConfig                 `mapstructure:"log"`
	Database DatabaseConfig            `mapstructure:"database"`
	Storage  StorageConfig             `mapstructure:"storage"`
	Redis    cache.Config              `mapstructure:"redis"`
	Cliconf  CliconfConfig             `mapstructure:"cliconf"`
	Devices  map[string]PlatformConfig `mapstructure:"device_defaults"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	MaxActive      int           `mapstructure:"max_active"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 配置快照存储配置
type StorageConfig struct {
	Backend string       `mapstructure:"backend"` // local|minio
	Local   LocalConfig  `mapstructure:"local"`
	Minio   MinioConfig  `mapstructure:"minio"`
	Prefix  string       `mapstructure:"prefix"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig MinIO对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// CliconfConfig 连接插件层配置
type CliconfConfig struct {
	// DefaultPlatform 未指定平台时使用的插件名称
	DefaultPlatform string `mapstructure:"default_platform"`
	// DeviceInfoTTL 设备识别字段缓存时长
	DeviceInfoTTL time.Duration `mapstructure:"device_info_ttl"`
}

// PlatformConfig 平台交互参数（提示符、分页、配置态模式）
type PlatformConfig struct {
	PromptSuffixes      []string `mapstructure:"prompt_suffixes"`
	DisablePagingCmds   []string `mapstructure:"disable_paging_cmds"`
	ConfigPromptPattern string   `mapstructure:"config_prompt_pattern"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load 从文件加载配置，环境变量以 AOSCX_ 前缀覆盖
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AOSCX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mu.Lock()
	current = &cfg
	mu.Unlock()
	return &cfg, nil
}

// Get 获取当前配置（未加载时返回 nil）
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Platform 获取平台交互参数，未配置时回退到 aoscx 的内置默认
func (c *Config) Platform(name string) PlatformConfig {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = c.Cliconf.DefaultPlatform
	}
	if pc, ok := c.Devices[key]; ok {
		return pc
	}
	return PlatformConfig{
		PromptSuffixes:      []string{"#", ">"},
		DisablePagingCmds:   []string{"no page"},
		ConfigPromptPattern: `\(\S+\)#`,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("ssh.timeout", "30s")
	v.SetDefault("ssh.command_timeout", "30s")
	v.SetDefault("ssh.keep_alive", "30s")
	v.SetDefault("ssh.max_active", 32)
	v.SetDefault("ssh.idle_timeout", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/server.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("database.sqlite.path", "data/aoscxcliconf.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", "1h")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.base_dir", "data/backups")
	v.SetDefault("storage.local.mkdir_if_missing", true)

	v.SetDefault("cliconf.default_platform", "aoscx")
	v.SetDefault("cliconf.device_info_ttl", "10m")
}
