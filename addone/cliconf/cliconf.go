package cliconf

import (
	"encoding/json"
	"fmt"
)

// SendOptions send_command 原语的可选参数
// Prompt/Answer 成对出现，用于交互式确认（如保存配置时的 y/n 提示）
type SendOptions struct {
	Prompt   []string `json:"prompt,omitempty"`
	Answer   []string `json:"answer,omitempty"`
	Sendonly bool     `json:"sendonly,omitempty"`
	Newline  bool     `json:"newline"`
	CheckAll bool     `json:"check_all,omitempty"`
}

// DefaultSendOptions 默认发送参数（追加换行）
func DefaultSendOptions() *SendOptions {
	return &SendOptions{Newline: true}
}

// Sender 宿主会话提供的协作能力
// 插件的全部操作最终都委托给 SendCommand 这一个原语
type Sender interface {
	// SendCommand 下发命令并返回设备的文本应答
	SendCommand(command string, opts *SendOptions) (string, error)
	// Connected 当前会话是否仍然建立
	Connected() bool
	// UpdatePromptContext 按配置态提示符模式复位到操作态
	UpdatePromptContext(configContext string) error
}

// Command run_commands 的单条命令描述
// 允许以裸字符串或对象两种形式给出（对象形式可携带交互参数）
type Command struct {
	Command  string   `json:"command"`
	Prompt   []string `json:"prompt,omitempty"`
	Answer   []string `json:"answer,omitempty"`
	Sendonly bool     `json:"sendonly,omitempty"`
	Newline  bool     `json:"newline"`
	CheckAll bool     `json:"check_all,omitempty"`
}

// NewCommand 由裸字符串构造命令（默认追加换行）
func NewCommand(cmd string) Command {
	return Command{Command: cmd, Newline: true}
}

// Options 转换为发送参数
func (c Command) Options() *SendOptions {
	return &SendOptions{
		Prompt:   c.Prompt,
		Answer:   c.Answer,
		Sendonly: c.Sendonly,
		Newline:  c.Newline,
		CheckAll: c.CheckAll,
	}
}

// UnmarshalJSON 兼容两种形式："show version" 或 {"command":"show version",...}
// 对象形式缺省 newline 为 true，与裸字符串一致
func (c *Command) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = NewCommand(s)
		return nil
	}
	type alias Command
	a := alias(NewCommand(""))
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Command(a)
	return nil
}

// DeviceInfo 设备识别字段映射
// 仅当对应正则匹配成功时字段才存在
type DeviceInfo map[string]string

// 设备识别字段键名
const (
	KeyNetworkOS         = "network_os"
	KeyNetworkOSVersion  = "network_os_version"
	KeyNetworkOSModel    = "network_os_model"
	KeyNetworkOSHostname = "network_os_hostname"
)

// Plugin 连接插件接口
// 六个操作均由宿主框架调用，语义固定
type Plugin interface {
	// Name 平台名称（如：default、aoscx）
	Name() string
	// GetConfig 获取指定来源的配置文本（running/startup）
	GetConfig(s Sender, source string, flags []string, format string) (string, error)
	// EditConfig 以进入/退出配置态包裹下发一批配置行
	EditConfig(s Sender, commands []string) error
	// Get 下发任意命令并返回原始应答
	Get(s Sender, command string, opts *SendOptions) (string, error)
	// GetDeviceInfo 从固定 show 命令派生设备识别字段
	GetDeviceInfo(s Sender) (DeviceInfo, error)
	// GetCapabilities 序列化能力协商描述
	GetCapabilities(s Sender) (string, error)
	// RunCommands 批量执行命令，每条命令一个文本应答
	RunCommands(s Sender, commands []Command, checkRC bool) ([]string, error)
	// SetCLIPromptContext 确保会话处于操作态提示符
	SetCLIPromptContext(s Sender) error
}

// InvalidParamsError 调用方传入了不被支持的参数
type InvalidParamsError struct {
	Msg string
}

func (e *InvalidParamsError) Error() string {
	return e.Msg
}

// InvalidParams 构造无效参数错误
func InvalidParams(format string, args ...interface{}) *InvalidParamsError {
	return &InvalidParamsError{Msg: fmt.Sprintf(format, args...)}
}

// ValidConfigSource 配置来源是否受支持（running/startup）
func ValidConfigSource(source string) bool {
	return source == "running" || source == "startup"
}

// ConnectionError 底层传输层失败
// Msg 为设备侧/传输侧的失败文本，run_commands 容错模式下以其替代应答
type ConnectionError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "connection failure"
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
