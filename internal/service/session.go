package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
	"github.com/aoscxcliconf/aoscxcliconf/internal/config"
	"github.com/aoscxcliconf/aoscxcliconf/internal/model"
	"github.com/aoscxcliconf/aoscxcliconf/internal/util"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/ssh"
)

// Session 将交互式SSH会话适配为插件的 send_command 原语
type Session struct {
	client *ssh.Client
	ctx    context.Context
}

// NewSession 包装一条已建立的交互会话
func NewSession(ctx context.Context, client *ssh.Client) *Session {
	return &Session{client: client, ctx: ctx}
}

// SendCommand 下发命令并返回规范化后的文本应答
// 传输层失败统一包装为 ConnectionError，供 run_commands 容错逻辑识别
func (s *Session) SendCommand(command string, opts *cliconf.SendOptions) (string, error) {
	if opts == nil {
		opts = cliconf.DefaultSendOptions()
	}
	out, err := s.client.SendCommand(s.ctx, command, &ssh.SendOptions{
		Prompt:   opts.Prompt,
		Answer:   opts.Answer,
		Sendonly: opts.Sendonly,
		Newline:  opts.Newline,
		CheckAll: opts.CheckAll,
	})
	if err != nil {
		return "", &cliconf.ConnectionError{Msg: err.Error(), Err: err}
	}
	return util.EnsureUTF8(out), nil
}

// Connected 会话是否仍然建立
func (s *Session) Connected() bool {
	return s.client.IsConnected()
}

// UpdatePromptContext 按配置态提示符模式复位到操作态
// 提示符仍匹配配置态时逐层发送 end 退出，最多退出 8 层
func (s *Session) UpdatePromptContext(configContext string) error {
	re, err := regexp.Compile(configContext)
	if err != nil {
		return fmt.Errorf("invalid config context pattern %q: %w", configContext, err)
	}
	prompt, err := s.client.RefreshPrompt(s.ctx)
	if err != nil {
		return &cliconf.ConnectionError{Msg: err.Error(), Err: err}
	}
	for i := 0; i < 8 && re.MatchString(prompt); i++ {
		if _, err := s.SendCommand("end", cliconf.DefaultSendOptions()); err != nil {
			return err
		}
		prompt, err = s.client.RefreshPrompt(s.ctx)
		if err != nil {
			return &cliconf.ConnectionError{Msg: err.Error(), Err: err}
		}
	}
	if re.MatchString(prompt) {
		return fmt.Errorf("failed to leave configuration context, prompt: %s", prompt)
	}
	return nil
}

// SessionManager 按平台维护会话池并产出 Session
type SessionManager struct {
	cfg   *config.Config
	pools map[string]*ssh.Pool
	mu    sync.Mutex
}

// NewSessionManager 创建会话管理器
func NewSessionManager(cfg *config.Config) *SessionManager {
	return &SessionManager{
		cfg:   cfg,
		pools: make(map[string]*ssh.Pool),
	}
}

// poolFor 取得平台对应的会话池，按平台交互参数初始化
func (m *SessionManager) poolFor(platform string) *ssh.Pool {
	key := strings.ToLower(strings.TrimSpace(platform))
	if key == "" {
		key = m.cfg.Cliconf.DefaultPlatform
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[key]; ok {
		return p
	}
	pc := m.cfg.Platform(key)
	pool := ssh.NewPool(&ssh.PoolConfig{
		MaxActive:   m.cfg.SSH.MaxActive,
		IdleTimeout: m.cfg.SSH.IdleTimeout,
		SSHConfig: &ssh.Config{
			Timeout:        m.cfg.SSH.Timeout,
			CommandTimeout: m.cfg.SSH.CommandTimeout,
			KeepAlive:      m.cfg.SSH.KeepAlive,
			PromptSuffixes: pc.PromptSuffixes,
			TerminalSetup:  pc.DisablePagingCmds,
		},
	})
	m.pools[key] = pool
	return pool
}

// Acquire 为设备建立（或复用）一条交互会话
func (m *SessionManager) Acquire(ctx context.Context, device *model.Device) (*Session, error) {
	port := device.Port
	if port < 1 || port > 65535 {
		port = 22
	}
	info := &ssh.ConnectionInfo{
		Host:     device.IP,
		Port:     port,
		Username: device.Username,
		Password: device.Password,
	}
	client, err := m.poolFor(device.Platform).GetConnection(ctx, info)
	if err != nil {
		logger.Warn("Failed to acquire device session", "device", device.IP, "error", err)
		return nil, err
	}
	return NewSession(ctx, client), nil
}

// Release 归还设备会话
func (m *SessionManager) Release(device *model.Device) {
	port := device.Port
	if port < 1 || port > 65535 {
		port = 22
	}
	m.poolFor(device.Platform).ReleaseConnection(&ssh.ConnectionInfo{
		Host:     device.IP,
		Port:     port,
		Username: device.Username,
		Password: device.Password,
	})
}

// Close 关闭全部会话池
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		_ = p.Close()
	}
}
