package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoscxcliconf/aoscxcliconf/internal/config"
)

// TestObjectParts 测试快照目录层级
func TestObjectParts(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Prefix = "config-backups"

	ts := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	parts := objectParts(cfg, StorageMeta{DeviceName: "Core SW1", Timestamp: ts})
	require.Len(t, parts, 3)
	assert.Equal(t, "config-backups", parts[0])
	assert.Equal(t, "core_sw1", parts[1], "设备名应该规范化为小写下划线")
	assert.Equal(t, "20260830_103000", parts[2])

	// 设备名为空时使用IP
	parts = objectParts(cfg, StorageMeta{DeviceIP: "192.168.1.10", Timestamp: ts})
	assert.Equal(t, "192.168.1.10", parts[1])

	// 无prefix时不含前缀层
	parts = objectParts(&config.Config{}, StorageMeta{DeviceName: "sw1", Timestamp: ts})
	require.Len(t, parts, 2)
	assert.Equal(t, "sw1", parts[0])
}

// TestObjectFilename 测试快照文件名
func TestObjectFilename(t *testing.T) {
	assert.Equal(t, "running_abc123.txt", objectFilename(StorageMeta{Source: "running", TaskID: "abc123"}))
	assert.Equal(t, "startup.txt", objectFilename(StorageMeta{Source: "startup"}))
	assert.Equal(t, "running.txt", objectFilename(StorageMeta{}), "来源为空时默认running")
}

// TestSlug 测试名称规范化
func TestSlug(t *testing.T) {
	assert.Equal(t, "core_sw1", slug("Core SW1"))
	assert.Equal(t, "a_b", slug("a/b"))
	assert.Equal(t, "sw-01.lab", slug("SW-01.LAB"))
	assert.Equal(t, "unnamed", slug("###"), "全部非法字符时应该返回unnamed")
}

// TestChecksum 测试校验和格式
func TestChecksum(t *testing.T) {
	sum := checksum([]byte("hostname sw1"))
	assert.True(t, strings.HasPrefix(sum, "sha256:"))
	assert.Len(t, sum, len("sha256:")+64)
	assert.Equal(t, sum, checksum([]byte("hostname sw1")), "相同内容应该得到相同校验和")
}

// TestLocalStorageWriter 测试本地快照写入
func TestLocalStorageWriter(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = dir
	cfg.Storage.Local.MkdirIfMissing = true
	cfg.Storage.Prefix = "backups"

	w := NewStorageWriter(cfg)
	meta := StorageMeta{
		DeviceName: "sw1",
		DeviceIP:   "192.168.1.10",
		Source:     "running",
		TaskID:     "t1",
		Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	obj, err := w.Write(context.Background(), meta, "hostname sw1\nvlan 1\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URI, "file://"))
	assert.True(t, strings.HasSuffix(obj.URI, "running_t1.txt"))
	assert.Equal(t, int64(len("hostname sw1\nvlan 1\n")), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))

	// 文件内容落盘验证
	bs, err := os.ReadFile(strings.TrimPrefix(obj.URI, "file://"))
	require.NoError(t, err)
	assert.Equal(t, "hostname sw1\nvlan 1\n", string(bs))
}
