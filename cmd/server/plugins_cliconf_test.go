package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
)

// TestPlatformPluginsRegistered 服务进程的导入图必须触发平台插件注册
func TestPlatformPluginsRegistered(t *testing.T) {
	p := cliconf.Get("aoscx")
	assert.Equal(t, "aoscx", p.Name(), "aoscx插件应该在服务启动前完成注册")
	assert.Contains(t, cliconf.Platforms(), "aoscx")
}
