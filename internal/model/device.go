package model

import "time"

// Device 受管设备
type Device struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name      string    `json:"name" gorm:"type:varchar(128)"`
	IP        string    `json:"ip" gorm:"type:varchar(64);not null;uniqueIndex:uix_devices_addr"`
	Port      int       `json:"port" gorm:"not null;default:22;uniqueIndex:uix_devices_addr"`
	Platform  string    `json:"platform" gorm:"type:varchar(32);default:'aoscx'"`
	Username  string    `json:"username" gorm:"type:varchar(64);uniqueIndex:uix_devices_addr"`
	Password  string    `json:"password" gorm:"type:varchar(256)"`
	Vendor    string    `json:"vendor" gorm:"type:varchar(64)"`
	Model     string    `json:"model" gorm:"type:varchar(64)"`
	Version   string    `json:"version" gorm:"type:varchar(64)"`
	Hostname  string    `json:"hostname" gorm:"type:varchar(128)"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'unknown'"`
	LastCheck time.Time `json:"last_check"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Device) TableName() string {
	return "devices"
}

// 设备状态枚举
const (
	DeviceStatusUnknown     = "unknown"
	DeviceStatusReachable   = "reachable"
	DeviceStatusUnreachable = "unreachable"
)
