package cliconf

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Capabilities 能力协商描述
// rpc 列表与插件对外操作一一对应，device_info 在会话可用时嵌入
type Capabilities struct {
	RPC              []string        `json:"rpc"`
	DeviceInfo       DeviceInfo      `json:"device_info,omitempty"`
	NetworkAPI       string          `json:"network_api"`
	DeviceOperations map[string]bool `json:"device_operations"`
	Format           []string        `json:"format"`
}

// BaseCapabilities 构造基础能力描述
// 设备识别失败不阻断协商，仅省略 device_info 字段
func BaseCapabilities(p Plugin, s Sender) Capabilities {
	caps := Capabilities{
		RPC: []string{
			"get_config",
			"edit_config",
			"get",
			"get_capabilities",
			"get_device_info",
			"run_commands",
		},
		NetworkAPI: "cliconf",
		DeviceOperations: map[string]bool{
			"supports_commit":              false,
			"supports_rollback":            false,
			"supports_defaults":            true,
			"supports_multiline_delimiter": false,
			"supports_diff_replace":        false,
			"supports_diff_match":          false,
			"supports_diff_ignore_lines":   false,
			"supports_replace":             false,
		},
		Format: []string{"text"},
	}
	if s != nil && s.Connected() {
		if info, err := p.GetDeviceInfo(s); err == nil {
			caps.DeviceInfo = info
		}
	}
	return caps
}

// MarshalCapabilities 序列化能力描述为文本
func MarshalCapabilities(caps Capabilities) (string, error) {
	b, err := json.Marshal(caps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal capabilities: %w", err)
	}
	return string(b), nil
}

// DefaultPlugin 系统默认连接插件
// 仅提供能力协商与命令直通，平台相关操作需由具体平台插件覆盖
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

func (p *DefaultPlugin) GetConfig(s Sender, source string, flags []string, format string) (string, error) {
	return "", InvalidParams("get_config is not supported by platform %s", p.Name())
}

func (p *DefaultPlugin) EditConfig(s Sender, commands []string) error {
	return InvalidParams("edit_config is not supported by platform %s", p.Name())
}

func (p *DefaultPlugin) Get(s Sender, command string, opts *SendOptions) (string, error) {
	if opts == nil {
		opts = DefaultSendOptions()
	}
	return s.SendCommand(command, opts)
}

func (p *DefaultPlugin) GetDeviceInfo(s Sender) (DeviceInfo, error) {
	// 默认插件无法识别平台，仅返回空映射
	return DeviceInfo{}, nil
}

func (p *DefaultPlugin) GetCapabilities(s Sender) (string, error) {
	return MarshalCapabilities(BaseCapabilities(p, s))
}

func (p *DefaultPlugin) RunCommands(s Sender, commands []Command, checkRC bool) ([]string, error) {
	return RunCommandsWith(s, commands, checkRC)
}

func (p *DefaultPlugin) SetCLIPromptContext(s Sender) error {
	return nil
}

// RunCommandsWith 批量执行命令的公共实现
// checkRC 为 false 时，传输层失败文本替代该条命令的应答；为 true 时直接上抛
func RunCommandsWith(s Sender, commands []Command, checkRC bool) ([]string, error) {
	if commands == nil {
		return nil, fmt.Errorf("'commands' value is required")
	}
	responses := make([]string, 0, len(commands))
	for _, cmd := range commands {
		out, err := s.SendCommand(cmd.Command, cmd.Options())
		if err != nil {
			var connErr *ConnectionError
			if !errors.As(err, &connErr) || checkRC {
				return nil, err
			}
			out = connErr.Error()
		}
		responses = append(responses, out)
	}
	return responses, nil
}
