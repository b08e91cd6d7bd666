package cliconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommandUnmarshal 测试命令的两种JSON形式
func TestCommandUnmarshal(t *testing.T) {
	// 裸字符串形式
	var c Command
	require.NoError(t, json.Unmarshal([]byte(`"show version"`), &c))
	assert.Equal(t, "show version", c.Command)
	assert.True(t, c.Newline, "裸字符串形式默认追加换行")

	// 对象形式携带交互参数
	raw := `{"command":"copy running-config startup-config","prompt":["\\?"],"answer":["y"],"check_all":true}`
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, "copy running-config startup-config", c.Command)
	assert.Equal(t, []string{`\?`}, c.Prompt)
	assert.Equal(t, []string{"y"}, c.Answer)
	assert.True(t, c.CheckAll)
	assert.True(t, c.Newline, "对象形式缺省newline也为true")

	// 对象形式显式关闭换行
	require.NoError(t, json.Unmarshal([]byte(`{"command":"q","newline":false}`), &c))
	assert.False(t, c.Newline)

	// 数组混合形式
	var cmds []Command
	require.NoError(t, json.Unmarshal([]byte(`["show version",{"command":"show vlan","sendonly":true}]`), &cmds))
	require.Len(t, cmds, 2)
	assert.Equal(t, "show version", cmds[0].Command)
	assert.True(t, cmds[1].Sendonly)
}

// TestCommandOptions 测试命令到发送参数的转换
func TestCommandOptions(t *testing.T) {
	c := Command{Command: "enable", Prompt: []string{"Password:"}, Answer: []string{"secret"}, Newline: true}
	opts := c.Options()
	assert.Equal(t, []string{"Password:"}, opts.Prompt)
	assert.Equal(t, []string{"secret"}, opts.Answer)
	assert.True(t, opts.Newline)
}

// TestErrorTypes 测试错误类型的语义
func TestErrorTypes(t *testing.T) {
	ipe := InvalidParams("fetching configuration from %s is not supported", "candidate")
	assert.Equal(t, "fetching configuration from candidate is not supported", ipe.Error())

	var target *InvalidParamsError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", ipe), &target))

	ce := &ConnectionError{Msg: "timeout waiting for command prompt"}
	assert.Equal(t, "timeout waiting for command prompt", ce.Error())

	inner := fmt.Errorf("broken pipe")
	ce = &ConnectionError{Err: inner}
	assert.Equal(t, "broken pipe", ce.Error())
	assert.Equal(t, inner, errors.Unwrap(ce))

	ce = &ConnectionError{}
	assert.Equal(t, "connection failure", ce.Error())
}
