package simulate

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChannel 以内存管道模拟SSH会话通道
type stubChannel struct {
	mu   sync.Mutex
	out  bytes.Buffer
	inCh chan []byte
	done chan struct{}
	once sync.Once
}

func newStubChannel() *stubChannel {
	return &stubChannel{inCh: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *stubChannel) Read(p []byte) (int, error) {
	select {
	case b, ok := <-c.inCh:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, b), nil
	case <-c.done:
		return 0, io.EOF
	}
}

func (c *stubChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *stubChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *stubChannel) CloseWrite() error { return nil }

func (c *stubChannel) SendRequest(name string, wantReply bool, payload []byte) (bool, error) {
	return false, nil
}

func (c *stubChannel) Stderr() io.ReadWriter { return &bytes.Buffer{} }

func (c *stubChannel) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// TestLoadConfigWritesDefault 测试缺失配置时写出默认文件
func TestLoadConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulate.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, "aoscx", cfg.Password)
	require.Contains(t, cfg.Devices, "sw1")
	assert.Equal(t, "JL675A", cfg.Devices["sw1"].Model)

	// 二次加载读取已写出的文件
	cfg2, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Port, cfg2.Port)
}

// TestResolveDevice 测试用户名到设备档案的匹配
func TestResolveDevice(t *testing.T) {
	m := &Manager{cfg: &Config{
		Devices: map[string]DeviceConfig{
			"sw1":  {Hostname: "core-sw1", Version: "GL.10.13.0005", Model: "JL679A"},
			"bare": {},
		},
	}}

	dc := m.resolveDevice("sw1")
	assert.Equal(t, "core-sw1", dc.Hostname)
	assert.Equal(t, "JL679A", dc.Model)

	// 档案未填hostname时使用用户名
	dc = m.resolveDevice("bare")
	assert.Equal(t, "bare", dc.Hostname)

	// 未知用户名返回同名默认档案
	dc = m.resolveDevice("ghost")
	assert.Equal(t, "ghost", dc.Hostname)
	assert.NotEmpty(t, dc.Version)
}

// TestCommandOutput 测试内置命令回显
func TestCommandOutput(t *testing.T) {
	m := &Manager{cfg: &Config{}}
	dev := DeviceConfig{Hostname: "sw1", Version: "GL.10.09.1010", Model: "JL675A"}

	out := m.commandOutput(dev, "show version", false)
	assert.Contains(t, out, "Version GL.10.09.1010")
	assert.Contains(t, out, "MODEL: JL675A),")

	out = m.commandOutput(dev, "show hostname", false)
	assert.Contains(t, out, "Hostname is sw1")

	out = m.commandOutput(dev, "show running-config all", false)
	assert.Contains(t, out, "hostname sw1")

	out = m.commandOutput(dev, "show configuration", false)
	assert.Contains(t, out, "Startup configuration")

	// 未知命令提示非法输入
	out = m.commandOutput(dev, "show bogus", false)
	assert.Contains(t, out, "Invalid input")

	// 配置态下配置行静默接受
	out = m.commandOutput(dev, "vlan 100", true)
	assert.Equal(t, "", out)
}

// TestEnsureCRLF 测试换行规范化
func TestEnsureCRLF(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", ensureCRLF("a\nb"))
	assert.Equal(t, "a\r\n", ensureCRLF("a\r\n"))
	assert.Equal(t, "", ensureCRLF(""))
	assert.False(t, strings.Contains(ensureCRLF("x\ny\n"), "\n\n"))
}

// TestEqualAny 测试命令别名匹配
func TestEqualAny(t *testing.T) {
	assert.True(t, equalAny("EXIT", "exit", "quit"))
	assert.True(t, equalAny(" quit ", "exit", "quit"))
	assert.False(t, equalAny("end", "exit", "quit"))
}

func TestRunShellIdleTimeout(t *testing.T) {
	m := &Manager{cfg: &Config{IdleSeconds: 1}}
	ch := newStubChannel()
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		m.runShell(ch, DeviceConfig{Hostname: "sw1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("空闲超时未触发，会话一直阻塞在读输入上")
	}
	assert.Contains(t, ch.output(), "idle timeout", "空闲超时应该给客户端提示后关闭会话")
}

func TestRunShellExitAndConfigMode(t *testing.T) {
	m := &Manager{cfg: &Config{}}
	ch := newStubChannel()
	defer ch.Close()
	ch.inCh <- []byte("configure terminal\n")
	ch.inCh <- []byte("end\n")
	ch.inCh <- []byte("show hostname\n")
	ch.inCh <- []byte("exit\n")

	done := make(chan struct{})
	go func() {
		m.runShell(ch, DeviceConfig{Hostname: "sw1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("exit命令后会话未退出")
	}
	out := ch.output()
	assert.Contains(t, out, "sw1(config)# ", "进入配置模式后提示符应该变化")
	assert.Contains(t, out, "Hostname is sw1")
}
