package model

import "time"

// ConfigBackup 配置快照记录
type ConfigBackup struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DeviceID  string    `json:"device_id" gorm:"type:varchar(64);not null;index"`
	Source    string    `json:"source" gorm:"type:varchar(16);not null"` // running|startup
	URI       string    `json:"uri" gorm:"type:varchar(512);not null"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum" gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (ConfigBackup) TableName() string {
	return "config_backups"
}
