package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aoscxcliconf/aoscxcliconf/internal/database"
	"github.com/aoscxcliconf/aoscxcliconf/internal/model"
	"github.com/aoscxcliconf/aoscxcliconf/internal/service"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	svc *service.CliconfService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(svc *service.CliconfService) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

// CreateDevice 创建设备
// @Summary 添加受管设备
// @Tags device
// @Router /api/v1/devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var device model.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		logger.Error("Invalid device parameters", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "设备参数无效: " + err.Error(),
		})
		return
	}

	if device.IP == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "MISSING_IP",
			Message: "设备IP不能为空",
		})
		return
	}
	if device.Port == 0 {
		device.Port = 22
	}
	if device.Port < 0 || device.Port > 65535 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PORT",
			Message: "端口号必须在1-65535之间",
		})
		return
	}
	if device.Platform == "" {
		device.Platform = "aoscx"
	}
	if device.Status == "" {
		device.Status = model.DeviceStatusUnknown
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}

	db := database.GetDB()
	var existing model.Device
	if err := db.Where("ip = ? AND port = ? AND username = ?", device.IP, device.Port, device.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "DEVICE_EXISTS",
			Message: "设备已存在（IP/端口/用户名相同）",
		})
		return
	}

	if err := db.Create(&device).Error; err != nil {
		logger.Error("Failed to create device", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "CREATE_FAILED",
			Message: "创建设备失败: " + err.Error(),
		})
		return
	}

	logger.Info("Device created successfully", "device_id", device.ID, "ip", device.IP)
	c.JSON(http.StatusCreated, SuccessResponse{
		Code:    "SUCCESS",
		Message: "设备创建成功",
		Data:    device,
	})
}

// ListDevices 设备列表
// @Summary 分页获取设备列表
// @Tags device
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	var devices []model.Device
	if err := database.GetDB().Order("created_at desc").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "LIST_FAILED",
			Message: "获取设备列表失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: devices,
	})
}

// GetDevice 获取设备详情
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.svc.Device(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: device,
	})
}

// UpdateDevice 更新设备
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	device, err := h.svc.Device(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: err.Error(),
		})
		return
	}

	var patch model.Device
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "设备参数无效: " + err.Error(),
		})
		return
	}

	// 仅覆盖允许修改的字段
	if patch.Name != "" {
		device.Name = patch.Name
	}
	if patch.IP != "" {
		device.IP = patch.IP
	}
	if patch.Port > 0 && patch.Port <= 65535 {
		device.Port = patch.Port
	}
	if patch.Platform != "" {
		device.Platform = patch.Platform
	}
	if patch.Username != "" {
		device.Username = patch.Username
	}
	if patch.Password != "" {
		device.Password = patch.Password
	}

	if err := database.GetDB().Save(device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "UPDATE_FAILED",
			Message: "更新设备失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "设备更新成功",
		Data:    device,
	})
}

// DeleteDevice 删除设备
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	id := c.Param("id")
	if err := database.GetDB().Delete(&model.Device{}, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DELETE_FAILED",
			Message: "删除设备失败: " + err.Error(),
		})
		return
	}
	logger.Info("Device deleted", "device_id", id)
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "设备删除成功",
	})
}

// TestConnection 测试设备连通性
func (h *DeviceHandler) TestConnection(c *gin.Context) {
	device, err := h.svc.Device(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: err.Error(),
		})
		return
	}

	if err := h.svc.TestConnection(c.Request.Context(), device); err != nil {
		c.JSON(http.StatusOK, SuccessResponse{
			Code:    "UNREACHABLE",
			Message: "设备连接失败: " + err.Error(),
			Data:    gin.H{"status": device.Status},
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "设备连接成功",
		Data:    gin.H{"status": device.Status},
	})
}
