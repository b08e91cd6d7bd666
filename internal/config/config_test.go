package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults 测试配置文件缺省值填充
func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port, "显式值优先于默认值")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "缺省host应该为0.0.0.0")
	assert.Equal(t, 30*time.Second, cfg.SSH.Timeout, "缺省SSH超时应该为30秒")
	assert.Equal(t, "aoscx", cfg.Cliconf.DefaultPlatform, "缺省平台应该为aoscx")
	assert.Equal(t, 10*time.Minute, cfg.Cliconf.DeviceInfoTTL)
	assert.Equal(t, "local", cfg.Storage.Backend, "缺省存储后端应该为本地")
}

// TestPlatformFallback 测试平台交互参数回退逻辑
func TestPlatformFallback(t *testing.T) {
	cfg := &Config{
		Cliconf: CliconfConfig{DefaultPlatform: "aoscx"},
		Devices: map[string]PlatformConfig{
			"aoscx": {
				PromptSuffixes:      []string{"#"},
				DisablePagingCmds:   []string{"no page"},
				ConfigPromptPattern: `\(\S+\)#`,
			},
		},
	}

	pc := cfg.Platform("aoscx")
	assert.Equal(t, []string{"#"}, pc.PromptSuffixes, "已配置平台应该返回配置值")

	// 空平台名回退到默认平台
	pc = cfg.Platform("")
	assert.Equal(t, []string{"#"}, pc.PromptSuffixes, "空平台名应该使用默认平台")

	// 未配置平台回退到内置默认
	pc = cfg.Platform("unknown")
	assert.Equal(t, []string{"#", ">"}, pc.PromptSuffixes, "未知平台应该使用内置默认")
	assert.Equal(t, []string{"no page"}, pc.DisablePagingCmds)
	assert.Equal(t, `\(\S+\)#`, pc.ConfigPromptPattern)

	// 平台名大小写与空白不敏感
	pc = cfg.Platform("  AOSCX ")
	assert.Equal(t, []string{"#"}, pc.PromptSuffixes, "平台名应该忽略大小写与空白")
}

// TestLoadMissingFile 测试配置文件不存在时报错
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "配置文件不存在应该返回错误")
}
