package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
	"github.com/aoscxcliconf/aoscxcliconf/internal/config"
	"github.com/aoscxcliconf/aoscxcliconf/internal/database"
	"github.com/aoscxcliconf/aoscxcliconf/internal/model"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/cache"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
)

// CliconfService 连接插件编排服务
// 按设备建立会话、调用平台插件并持久化执行结果
type CliconfService struct {
	cfg      *config.Config
	sessions *SessionManager
	storage  StorageWriter
}

// NewCliconfService 创建编排服务
func NewCliconfService(cfg *config.Config) *CliconfService {
	return &CliconfService{
		cfg:      cfg,
		sessions: NewSessionManager(cfg),
		storage:  NewStorageWriter(cfg),
	}
}

// Start 启动服务
func (s *CliconfService) Start(ctx context.Context) error {
	logger.Info("Cliconf service started", "platforms", strings.Join(cliconf.Platforms(), ", "))
	return nil
}

// Stop 停止服务并关闭会话池
func (s *CliconfService) Stop() {
	s.sessions.Close()
}

// Device 按ID加载设备
func (s *CliconfService) Device(id string) (*model.Device, error) {
	var device model.Device
	if err := database.GetDB().First(&device, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("device not found: %s", id)
		}
		return nil, err
	}
	return &device, nil
}

func (s *CliconfService) pluginFor(device *model.Device) cliconf.Plugin {
	platform := device.Platform
	if strings.TrimSpace(platform) == "" {
		platform = s.cfg.Cliconf.DefaultPlatform
	}
	return cliconf.Get(platform)
}

// GetConfig 获取设备配置并持久化快照
func (s *CliconfService) GetConfig(ctx context.Context, deviceID, source string) (string, *model.ConfigBackup, error) {
	device, err := s.Device(deviceID)
	if err != nil {
		return "", nil, err
	}
	// 来源非法时不建立会话，也不下发任何命令
	if !cliconf.ValidConfigSource(source) {
		return "", nil, cliconf.InvalidParams("fetching configuration from %s is not supported", source)
	}
	task := s.beginTask(device.ID, model.OpGetConfig, source)

	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.finishTask(task, "", err)
		return "", nil, err
	}
	defer s.sessions.Release(device)

	if err := plugin.SetCLIPromptContext(sess); err != nil {
		s.finishTask(task, "", err)
		return "", nil, err
	}

	text, err := plugin.GetConfig(sess, source, nil, "text")
	if err != nil {
		s.finishTask(task, "", err)
		return "", nil, err
	}

	obj, werr := s.storage.Write(ctx, StorageMeta{
		DeviceName: device.Name,
		DeviceIP:   device.IP,
		Source:     source,
		TaskID:     task.ID,
		Timestamp:  task.StartTime,
	}, text)
	if werr != nil {
		// 快照写入失败不阻断配置返回，仅记录
		logger.Warn("Failed to persist config snapshot", "device", device.IP, "error", werr)
		s.finishTask(task, text, nil)
		return text, nil, nil
	}

	backup := &model.ConfigBackup{
		ID:       uuid.NewString(),
		DeviceID: device.ID,
		Source:   source,
		URI:      obj.URI,
		Size:     obj.Size,
		Checksum: obj.Checksum,
	}
	s.persist(func(db *gorm.DB) error { return db.Create(backup).Error })
	s.finishTask(task, text, nil)
	return text, backup, nil
}

// EditConfig 下发配置行
func (s *CliconfService) EditConfig(ctx context.Context, deviceID string, lines []string) error {
	device, err := s.Device(deviceID)
	if err != nil {
		return err
	}
	task := s.beginTask(device.ID, model.OpEditConfig, strings.Join(lines, "\n"))

	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.finishTask(task, "", err)
		return err
	}
	defer s.sessions.Release(device)

	if err := plugin.SetCLIPromptContext(sess); err != nil {
		s.finishTask(task, "", err)
		return err
	}
	if err := plugin.EditConfig(sess, lines); err != nil {
		s.finishTask(task, "", err)
		return err
	}
	s.finishTask(task, "", nil)
	return nil
}

// Get 下发任意命令并返回原始应答
func (s *CliconfService) Get(ctx context.Context, deviceID, command string, opts *cliconf.SendOptions) (string, error) {
	device, err := s.Device(deviceID)
	if err != nil {
		return "", err
	}
	task := s.beginTask(device.ID, model.OpGet, command)

	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.finishTask(task, "", err)
		return "", err
	}
	defer s.sessions.Release(device)

	out, err := plugin.Get(sess, command, opts)
	s.finishTask(task, out, err)
	return out, err
}

// RunCommands 批量执行命令
func (s *CliconfService) RunCommands(ctx context.Context, deviceID string, commands []cliconf.Command, checkRC bool) ([]string, error) {
	device, err := s.Device(deviceID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Command)
	}
	task := s.beginTask(device.ID, model.OpRunCommands, strings.Join(names, "\n"))

	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.finishTask(task, "", err)
		return nil, err
	}
	defer s.sessions.Release(device)

	responses, err := plugin.RunCommands(sess, commands, checkRC)
	if err != nil {
		s.finishTask(task, "", err)
		return nil, err
	}
	encoded, _ := json.Marshal(responses)
	s.finishTask(task, string(encoded), nil)
	return responses, nil
}

// DeviceInfo 获取设备识别字段，优先读缓存，命中后回写设备表
func (s *CliconfService) DeviceInfo(ctx context.Context, deviceID string, refresh bool) (cliconf.DeviceInfo, error) {
	device, err := s.Device(deviceID)
	if err != nil {
		return nil, err
	}
	cacheKey := "device_info:" + device.ID

	if !refresh {
		var cached cliconf.DeviceInfo
		if err := cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	task := s.beginTask(device.ID, model.OpGetDeviceInfo, "")
	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.finishTask(task, "", err)
		s.markStatus(device, model.DeviceStatusUnreachable)
		return nil, err
	}
	defer s.sessions.Release(device)

	info, err := plugin.GetDeviceInfo(sess)
	if err != nil {
		s.finishTask(task, "", err)
		s.markStatus(device, model.DeviceStatusUnreachable)
		return nil, err
	}

	// 回写识别结果
	device.Vendor = info[cliconf.KeyNetworkOS]
	device.Model = info[cliconf.KeyNetworkOSModel]
	device.Version = info[cliconf.KeyNetworkOSVersion]
	device.Hostname = info[cliconf.KeyNetworkOSHostname]
	device.Status = model.DeviceStatusReachable
	device.LastCheck = time.Now()
	s.persist(func(db *gorm.DB) error { return db.Save(device).Error })

	if err := cache.Set(ctx, cacheKey, info, s.cfg.Cliconf.DeviceInfoTTL); err != nil {
		logger.Warn("Failed to cache device info", "device", device.IP, "error", err)
	}

	encoded, _ := json.Marshal(info)
	s.finishTask(task, string(encoded), nil)
	return info, nil
}

// Capabilities 能力协商
// deviceID 为空时返回离线能力描述（不嵌入 device_info）
func (s *CliconfService) Capabilities(ctx context.Context, platform, deviceID string) (string, error) {
	if deviceID == "" {
		if strings.TrimSpace(platform) == "" {
			platform = s.cfg.Cliconf.DefaultPlatform
		}
		return cliconf.Get(platform).GetCapabilities(nil)
	}

	device, err := s.Device(deviceID)
	if err != nil {
		return "", err
	}
	plugin := s.pluginFor(device)
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		return "", err
	}
	defer s.sessions.Release(device)
	return plugin.GetCapabilities(sess)
}

// TestConnection 建立一次会话验证设备可达性
func (s *CliconfService) TestConnection(ctx context.Context, device *model.Device) error {
	sess, err := s.sessions.Acquire(ctx, device)
	if err != nil {
		s.markStatus(device, model.DeviceStatusUnreachable)
		return err
	}
	defer s.sessions.Release(device)

	if !sess.Connected() {
		s.markStatus(device, model.DeviceStatusUnreachable)
		return fmt.Errorf("session established but not responding")
	}
	s.markStatus(device, model.DeviceStatusReachable)
	return nil
}

// PoolStats 会话池统计
func (s *CliconfService) PoolStats() map[string]interface{} {
	stats := make(map[string]interface{})
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()
	for platform, pool := range s.sessions.pools {
		stats[platform] = pool.Stats()
	}
	return stats
}

// beginTask 创建执行记录
func (s *CliconfService) beginTask(deviceID, operation, commands string) *model.Task {
	task := &model.Task{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Operation: operation,
		Commands:  commands,
		Status:    model.TaskStatusRunning,
		StartTime: time.Now(),
	}
	s.persist(func(db *gorm.DB) error { return db.Create(task).Error })
	return task
}

// finishTask 写入执行结果
func (s *CliconfService) finishTask(task *model.Task, result string, err error) {
	task.EndTime = time.Now()
	task.Duration = task.EndTime.Sub(task.StartTime).Milliseconds()
	if err != nil {
		task.Status = model.TaskStatusFailed
		task.ErrorMsg = err.Error()
	} else {
		task.Status = model.TaskStatusSuccess
		task.Result = result
	}
	s.persist(func(db *gorm.DB) error { return db.Save(task).Error })
}

func (s *CliconfService) markStatus(device *model.Device, status string) {
	device.Status = status
	device.LastCheck = time.Now()
	s.persist(func(db *gorm.DB) error { return db.Save(device).Error })
}

// persist 数据库可用时落库（单测环境可不初始化数据库）
func (s *CliconfService) persist(fn func(*gorm.DB) error) {
	if database.GetDB() == nil {
		return
	}
	if err := database.WithRetry(fn, 3, 50*time.Millisecond); err != nil {
		logger.Warn("Failed to persist record", "error", err)
	}
}
