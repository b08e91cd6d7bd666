package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
	"github.com/aoscxcliconf/aoscxcliconf/internal/database"
	"github.com/aoscxcliconf/aoscxcliconf/internal/service"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
)

// CliconfHandler 连接插件操作处理器
type CliconfHandler struct {
	svc *service.CliconfService
}

// NewCliconfHandler 创建处理器
func NewCliconfHandler(svc *service.CliconfService) *CliconfHandler {
	return &CliconfHandler{svc: svc}
}

// GetConfig 获取设备配置
// source 仅接受 running/startup，缺省 running
func (h *CliconfHandler) GetConfig(c *gin.Context) {
	deviceID := c.Param("id")
	source := c.DefaultQuery("source", "running")

	text, backup, err := h.svc.GetConfig(c.Request.Context(), deviceID, source)
	if err != nil {
		var ipe *cliconf.InvalidParamsError
		if errors.As(err, &ipe) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_PARAMS",
				Message: ipe.Error(),
			})
			return
		}
		logger.Error("Failed to fetch config", "device_id", deviceID, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "FETCH_FAILED",
			Message: "获取配置失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: gin.H{
			"source": source,
			"config": text,
			"backup": backup,
		},
	})
}

// editConfigRequest edit_config 请求体
type editConfigRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

// EditConfig 下发配置行
func (h *CliconfHandler) EditConfig(c *gin.Context) {
	deviceID := c.Param("id")

	var req editConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "配置参数无效: " + err.Error(),
		})
		return
	}

	if err := h.svc.EditConfig(c.Request.Context(), deviceID, req.Lines); err != nil {
		logger.Error("Failed to edit config", "device_id", deviceID, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "EDIT_FAILED",
			Message: "下发配置失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "配置下发成功",
	})
}

// runCommandsRequest run_commands 请求体
// commands 支持裸字符串与对象两种形式
type runCommandsRequest struct {
	Commands []cliconf.Command `json:"commands" binding:"required"`
	CheckRC  bool              `json:"check_rc"`
}

// RunCommands 批量执行命令
func (h *CliconfHandler) RunCommands(c *gin.Context) {
	deviceID := c.Param("id")

	var req runCommandsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "命令参数无效: " + err.Error(),
		})
		return
	}

	responses, err := h.svc.RunCommands(c.Request.Context(), deviceID, req.Commands, req.CheckRC)
	if err != nil {
		logger.Error("Failed to run commands", "device_id", deviceID, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "RUN_FAILED",
			Message: "命令执行失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: gin.H{"responses": responses},
	})
}

// getRequest get 请求体
type getRequest struct {
	Command  string   `json:"command" binding:"required"`
	Prompt   []string `json:"prompt"`
	Answer   []string `json:"answer"`
	Sendonly bool     `json:"sendonly"`
	// Newline 缺省时按默认追加换行，显式false才关闭
	Newline  *bool `json:"newline"`
	CheckAll bool  `json:"check_all"`
}

func (r getRequest) options() *cliconf.SendOptions {
	opts := cliconf.DefaultSendOptions()
	opts.Prompt = r.Prompt
	opts.Answer = r.Answer
	opts.Sendonly = r.Sendonly
	opts.CheckAll = r.CheckAll
	if r.Newline != nil {
		opts.Newline = *r.Newline
	}
	return opts
}

// Get 下发任意命令
func (h *CliconfHandler) Get(c *gin.Context) {
	deviceID := c.Param("id")

	var req getRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "命令参数无效: " + err.Error(),
		})
		return
	}

	out, err := h.svc.Get(c.Request.Context(), deviceID, req.Command, req.options())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "GET_FAILED",
			Message: "命令执行失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: gin.H{"output": out},
	})
}

// DeviceFacts 设备识别字段
func (h *CliconfHandler) DeviceFacts(c *gin.Context) {
	deviceID := c.Param("id")
	refresh := c.Query("refresh") == "true"

	info, err := h.svc.DeviceInfo(c.Request.Context(), deviceID, refresh)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "FACTS_FAILED",
			Message: "获取设备信息失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "SUCCESS",
		Data: info,
	})
}

// Capabilities 能力协商
// 携带 device_id 时嵌入在线识别结果，否则返回离线能力
func (h *CliconfHandler) Capabilities(c *gin.Context) {
	platform := c.DefaultQuery("platform", "")
	deviceID := c.Query("device_id")

	caps, err := h.svc.Capabilities(c.Request.Context(), platform, deviceID)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "CAPABILITIES_FAILED",
			Message: "能力协商失败: " + err.Error(),
		})
		return
	}
	// 能力描述本身是序列化后的 JSON 文本，原样透出
	c.Data(http.StatusOK, "application/json", []byte(caps))
}

// Health 健康检查
func (h *CliconfHandler) Health(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	if err := database.Health(); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbStatus,
		"pools":    h.svc.PoolStats(),
	})
}
