package aoscx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
)

// mockSender 记录下发命令并按预设应答的会话桩
type mockSender struct {
	sent      []string
	replies   map[string]string
	errs      map[string]error
	connected bool
}

func newMockSender() *mockSender {
	return &mockSender{
		replies:   make(map[string]string),
		errs:      make(map[string]error),
		connected: true,
	}
}

func (m *mockSender) SendCommand(command string, opts *cliconf.SendOptions) (string, error) {
	m.sent = append(m.sent, command)
	if err, ok := m.errs[command]; ok {
		return "", err
	}
	return m.replies[command], nil
}

func (m *mockSender) Connected() bool { return m.connected }

func (m *mockSender) UpdatePromptContext(configContext string) error { return nil }

// TestGetConfigSources get_config 来源校验与命令选择
func TestGetConfigSources(t *testing.T) {
	p := &Plugin{}

	// 非法来源：返回无效参数错误且不下发任何命令
	s := newMockSender()
	_, err := p.GetConfig(s, "candidate", nil, "text")
	require.Error(t, err)
	var ipe *cliconf.InvalidParamsError
	assert.ErrorAs(t, err, &ipe, "非法来源应返回 InvalidParamsError")
	assert.Contains(t, err.Error(), "fetching configuration from candidate is not supported")
	assert.Empty(t, s.sent, "非法来源不应下发设备命令")

	// running 来源
	s = newMockSender()
	s.replies["show running-config all"] = "!\nhostname sw1\n"
	out, err := p.GetConfig(s, "running", nil, "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"show running-config all"}, s.sent)
	assert.Equal(t, "!\nhostname sw1\n", out)

	// startup 来源
	s = newMockSender()
	out, err = p.GetConfig(s, "startup", nil, "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"show configuration"}, s.sent)
	assert.Equal(t, "", out)
}

// TestEditConfigFraming edit_config 以 configure terminal/end 包裹
func TestEditConfigFraming(t *testing.T) {
	p := &Plugin{}
	s := newMockSender()

	err := p.EditConfig(s, []string{"vlan 10", "name users"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"configure terminal",
		"vlan 10",
		"name users",
		"end",
	}, s.sent)
}

// TestGetDeviceInfo 设备识别字段提取
func TestGetDeviceInfo(t *testing.T) {
	p := &Plugin{}
	s := newMockSender()
	s.replies["show version"] = "ArubaOS-CX\n(c) Copyright ...\nVersion 10.09\nBuild Date ...\nMODEL: JL675A),\n"
	s.replies["show hostname"] = "Hostname is sw1\n"

	info, err := p.GetDeviceInfo(s)
	require.NoError(t, err)
	assert.Equal(t, "aruba", info[cliconf.KeyNetworkOS])
	assert.Equal(t, "10.09", info[cliconf.KeyNetworkOSVersion])
	assert.Equal(t, "JL675A", info[cliconf.KeyNetworkOSModel])
	assert.Equal(t, "sw1", info[cliconf.KeyNetworkOSHostname])
	assert.Equal(t, []string{"show version", "show hostname"}, s.sent)
}

// TestGetDeviceInfoNoMatch 无匹配时字段缺省而非置空
func TestGetDeviceInfoNoMatch(t *testing.T) {
	p := &Plugin{}
	s := newMockSender()
	s.replies["show version"] = "unexpected banner\n"
	s.replies["show hostname"] = "unexpected banner\n"

	info, err := p.GetDeviceInfo(s)
	require.NoError(t, err)
	assert.Equal(t, "aruba", info[cliconf.KeyNetworkOS])
	_, ok := info[cliconf.KeyNetworkOSVersion]
	assert.False(t, ok, "未匹配的版本字段不应存在")
	_, ok = info[cliconf.KeyNetworkOSModel]
	assert.False(t, ok, "未匹配的型号字段不应存在")
	_, ok = info[cliconf.KeyNetworkOSHostname]
	assert.False(t, ok, "未匹配的主机名字段不应存在")
}

// TestRunCommandsCheckRC 传输失败在容错/严格模式下的行为
func TestRunCommandsCheckRC(t *testing.T) {
	p := &Plugin{}
	cmds := []cliconf.Command{
		cliconf.NewCommand("show version"),
		cliconf.NewCommand("show interface brief"),
	}

	// 容错模式：失败文本替代该条应答
	s := newMockSender()
	s.replies["show version"] = "Version 10.09"
	s.errs["show interface brief"] = &cliconf.ConnectionError{Msg: "timeout waiting for prompt"}
	responses, err := p.RunCommands(s, cmds, false)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "Version 10.09", responses[0])
	assert.Equal(t, "timeout waiting for prompt", responses[1])

	// 严格模式：直接上抛
	s = newMockSender()
	s.replies["show version"] = "Version 10.09"
	s.errs["show interface brief"] = &cliconf.ConnectionError{Msg: "timeout waiting for prompt"}
	_, err = p.RunCommands(s, cmds, true)
	require.Error(t, err)
	var connErr *cliconf.ConnectionError
	assert.ErrorAs(t, err, &connErr)

	// commands 缺失
	_, err = p.RunCommands(newMockSender(), nil, false)
	assert.Error(t, err)
}

// TestRunCommandsInteractive 对象形式命令携带交互参数
func TestRunCommandsInteractive(t *testing.T) {
	p := &Plugin{}
	s := newMockSender()
	s.replies["copy running-config startup-config"] = "Configuration saved."

	var cmd cliconf.Command
	raw := []byte(`{"command":"copy running-config startup-config","prompt":["\\(y/n\\)"],"answer":["y"]}`)
	require.NoError(t, json.Unmarshal(raw, &cmd))
	assert.True(t, cmd.Newline, "对象形式缺省应追加换行")
	assert.Equal(t, []string{`\(y/n\)`}, cmd.Prompt)

	responses, err := p.RunCommands(s, []cliconf.Command{cmd}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Configuration saved."}, responses)
}

// TestGetCapabilities 能力协商序列化
func TestGetCapabilities(t *testing.T) {
	p := &Plugin{}
	s := newMockSender()
	s.replies["show version"] = "Version 10.09\nMODEL: JL675A),\n"
	s.replies["show hostname"] = "Hostname is sw1"

	out, err := p.GetCapabilities(s)
	require.NoError(t, err)

	var caps cliconf.Capabilities
	require.NoError(t, json.Unmarshal([]byte(out), &caps))
	assert.Equal(t, "cliconf", caps.NetworkAPI)
	assert.Contains(t, caps.RPC, "get_config")
	assert.Contains(t, caps.RPC, "run_commands")
	assert.Equal(t, "10.09", caps.DeviceInfo[cliconf.KeyNetworkOSVersion])

	// 会话断开时省略 device_info
	s2 := newMockSender()
	s2.connected = false
	out, err = p.GetCapabilities(s2)
	require.NoError(t, err)
	var caps2 cliconf.Capabilities
	require.NoError(t, json.Unmarshal([]byte(out), &caps2))
	assert.Nil(t, caps2.DeviceInfo)
	assert.Empty(t, s2.sent, "断开状态不应下发识别命令")
}

// TestRegistryFallback 注册中心按平台取插件，未知平台回退 default
func TestRegistryFallback(t *testing.T) {
	p := cliconf.Get("aoscx")
	assert.Equal(t, "aoscx", p.Name())

	fallback := cliconf.Get("unknown_platform")
	assert.Equal(t, "default", fallback.Name())
}
