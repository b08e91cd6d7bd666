package aoscx

import (
	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
)

// Plugin 为 AOS-CX 平台连接插件
// 提供对 ArubaOS-CX 交换机的 CLI 操作
type Plugin struct {
	cliconf.DefaultPlugin
}

func (p *Plugin) Name() string { return "aoscx" }

// GetConfig 获取交换机配置
// 仅接受 running/startup 两种来源，其余返回无效参数错误且不下发任何命令
func (p *Plugin) GetConfig(s cliconf.Sender, source string, flags []string, format string) (string, error) {
	if !cliconf.ValidConfigSource(source) {
		return "", cliconf.InvalidParams("fetching configuration from %s is not supported", source)
	}
	cmd := "show configuration"
	if source == "running" {
		cmd = "show running-config all"
	}
	return s.SendCommand(cmd, cliconf.DefaultSendOptions())
}

// EditConfig 下发配置行，以 configure terminal / end 包裹
func (p *Plugin) EditConfig(s cliconf.Sender, commands []string) error {
	batch := make([]string, 0, len(commands)+2)
	batch = append(batch, "configure terminal")
	batch = append(batch, commands...)
	batch = append(batch, "end")
	for _, cmd := range batch {
		if _, err := s.SendCommand(cmd, cliconf.DefaultSendOptions()); err != nil {
			return err
		}
	}
	return nil
}

// Get 获取任意命令的原始输出
func (p *Plugin) Get(s cliconf.Sender, command string, opts *cliconf.SendOptions) (string, error) {
	if opts == nil {
		opts = cliconf.DefaultSendOptions()
	}
	return s.SendCommand(command, opts)
}

// GetCapabilities 序列化能力协商描述
func (p *Plugin) GetCapabilities(s cliconf.Sender) (string, error) {
	return cliconf.MarshalCapabilities(cliconf.BaseCapabilities(p, s))
}

// RunCommands 批量执行命令
func (p *Plugin) RunCommands(s cliconf.Sender, commands []cliconf.Command, checkRC bool) ([]string, error) {
	return cliconf.RunCommandsWith(s, commands, checkRC)
}

// SetCLIPromptContext 确保会话处于操作态
// 配置态提示符形如 hostname(config)#
func (p *Plugin) SetCLIPromptContext(s cliconf.Sender) error {
	if !s.Connected() {
		return nil
	}
	return s.UpdatePromptContext(`\(\S+\)#`)
}

func init() {
	// 注册到连接插件中心
	cliconf.Register("aoscx", &Plugin{})
}
