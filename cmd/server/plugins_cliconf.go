package main

// 引入平台连接插件，触发各平台的 init() 完成注册
import (
	_ "github.com/aoscxcliconf/aoscxcliconf/addone/cliconf/platforms/aoscx"
)
