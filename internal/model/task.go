package model

import "time"

// Task 一次插件操作的执行记录
type Task struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DeviceID  string    `json:"device_id" gorm:"type:varchar(64);not null;index"`
	Operation string    `json:"operation" gorm:"type:varchar(32);not null"`
	Commands  string    `json:"commands" gorm:"type:text"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	Result    string    `json:"result" gorm:"type:text"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Task) TableName() string {
	return "tasks"
}

// 任务状态枚举
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
)

// 操作类型枚举（与插件操作一一对应）
const (
	OpGetConfig       = "get_config"
	OpEditConfig      = "edit_config"
	OpGet             = "get"
	OpGetDeviceInfo   = "get_device_info"
	OpGetCapabilities = "get_capabilities"
	OpRunCommands     = "run_commands"
)
