package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
	_ "github.com/aoscxcliconf/aoscxcliconf/addone/cliconf/platforms/aoscx"
	"github.com/aoscxcliconf/aoscxcliconf/internal/config"
	"github.com/aoscxcliconf/aoscxcliconf/internal/database"
	"github.com/aoscxcliconf/aoscxcliconf/internal/model"
)

func newTestService(t *testing.T) (*CliconfService, *model.Device) {
	t.Helper()
	require.NoError(t, database.InitSQLite(config.SQLiteConfig{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		ConnMaxLifetime: time.Hour,
	}))

	cfg := &config.Config{}
	cfg.Cliconf.DefaultPlatform = "aoscx"
	cfg.SSH.Timeout = 2 * time.Second
	cfg.SSH.CommandTimeout = 2 * time.Second
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = t.TempDir()
	cfg.Storage.Local.MkdirIfMissing = true

	svc := NewCliconfService(cfg)
	t.Cleanup(svc.Stop)

	// 指向不可达端口，任何连接尝试都会以连接错误收场
	device := &model.Device{
		ID:       "dev-1",
		Name:     "sw1",
		IP:       "127.0.0.1",
		Port:     1,
		Platform: "aoscx",
		Username: "admin",
		Password: "secret",
	}
	require.NoError(t, database.GetDB().Create(device).Error)
	return svc, device
}

// TestGetConfigInvalidSourceNoSession 非法来源在建立会话之前被拒绝
func TestGetConfigInvalidSourceNoSession(t *testing.T) {
	svc, device := newTestService(t)

	_, _, err := svc.GetConfig(context.Background(), device.ID, "candidate")
	require.Error(t, err)

	var ipe *cliconf.InvalidParamsError
	assert.ErrorAs(t, err, &ipe, "应该返回无效参数错误而非连接错误")
	assert.Contains(t, err.Error(), "fetching configuration from candidate is not supported")
}

// TestGetConfigUnknownDevice 设备不存在时直接报错
func TestGetConfigUnknownDevice(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.GetConfig(context.Background(), "no-such-id", "running")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device not found")
}
