package ssh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalize 测试输出清洗
func TestNormalize(t *testing.T) {
	// ANSI转义序列剥离
	assert.Equal(t, "sw1# ", normalize("\x1b[0msw1# \x1b[K"))

	// CRLF折叠，孤立CR去除
	assert.Equal(t, "line1\nline2", normalize("line1\r\nline2"))
	assert.Equal(t, "overwritten", normalize("over\rwritten"))
	assert.Equal(t, "a\nb\n", normalize("a\r\nb\r\n"))
}

// TestLastLine 测试末行提取
func TestLastLine(t *testing.T) {
	assert.Equal(t, "sw1#", lastLine("show version\noutput\nsw1#"))
	assert.Equal(t, "sw1#", lastLine("sw1#"))
	assert.Equal(t, "", lastLine("output\n"))
}

// TestStripEcho 测试命令回显与提示符剥离
func TestStripEcho(t *testing.T) {
	out := "show version\nVersion      : GL.10.09.1010\nsw1# "
	assert.Equal(t, "Version      : GL.10.09.1010", stripEcho(out, "show version"))

	// 回显前带提示符前缀
	out = "sw1# show hostname\nHostname is sw1\nsw1# "
	assert.Equal(t, "Hostname is sw1", stripEcho(out, "show hostname"))

	// 无回显时输出原样保留
	out = "data line\nsw1# "
	assert.Equal(t, "data line", stripEcho(out, "show x"))
}

// TestCompilePrompts 测试交互提示正则编译
func TestCompilePrompts(t *testing.T) {
	prompts, err := compilePrompts([]string{`[yY]/[nN]`, ""})
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.True(t, prompts[0].MatchString("Continue (y/n)?"))
	assert.Nil(t, prompts[1], "空模式应该编译为nil占位")

	_, err = compilePrompts([]string{`[`})
	assert.Error(t, err, "非法正则应该返回错误")

	prompts, err = compilePrompts(nil)
	require.NoError(t, err)
	assert.Nil(t, prompts)
}

// TestIsPrompt 测试提示符行判定
func TestIsPrompt(t *testing.T) {
	c := NewClient(&Config{PromptSuffixes: []string{"#", ">"}})

	assert.True(t, c.isPrompt("sw1#"))
	assert.True(t, c.isPrompt("sw1(config)# "))
	assert.True(t, c.isPrompt("switch>"))
	assert.False(t, c.isPrompt("Version      : GL.10.09.1010"))
	assert.False(t, c.isPrompt(""))
	assert.False(t, c.isPrompt("   "))
}

// TestKeepAliveLifetime 保活随连接生命周期存续，关闭时退出
func TestKeepAliveLifetime(t *testing.T) {
	c := NewClient(&Config{KeepAlive: time.Hour})
	c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.keepAlive(c.lifeCtx)
		close(done)
	}()

	// 连接关闭撤销生命周期上下文，保活协程必须随之退出
	require.NoError(t, c.Close())
	assert.Error(t, c.lifeCtx.Err(), "Close应该撤销连接级上下文")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("保活协程在连接关闭后未退出")
	}
}

// TestNewClientDefaults 测试客户端缺省参数
func TestNewClientDefaults(t *testing.T) {
	c := NewClient(&Config{})
	assert.Equal(t, []string{"#", ">"}, c.config.PromptSuffixes)
	assert.Greater(t, int64(c.config.Timeout), int64(0))
	assert.Greater(t, int64(c.config.CommandTimeout), int64(0))
	assert.False(t, c.IsConnected(), "未连接时应该返回false")
}
