package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config SSH配置
type Config struct {
	Timeout        time.Duration `yaml:"timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	// PromptSuffixes 提示符后缀集合，用于行级提示符检测
	PromptSuffixes []string `yaml:"prompt_suffixes"`
	// TerminalSetup 会话建立后立即下发的终端准备命令（如关闭分页）
	TerminalSetup []string `yaml:"terminal_setup"`
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	KeyFile  string `json:"key_file,omitempty"`
}

// SendOptions 单条命令的发送参数
// Prompt/Answer 成对出现；CheckAll 要求按序匹配全部提示
type SendOptions struct {
	Prompt   []string
	Answer   []string
	Sendonly bool
	Newline  bool
	CheckAll bool
}

// Client 交互式SSH会话客户端
// 维持单一 PTY Shell，所有命令经同一会话串行下发
type Client struct {
	config  *Config
	conn    *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	chunkCh chan string
	doneCh  chan struct{}
	mutex   sync.Mutex
	info    *ConnectionInfo
	// prompt 最近捕获的提示符行（已清洗）
	prompt string
	// lifeCtx 连接级生命周期，保活随连接存续而非随单次请求
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	c := *config
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if len(c.PromptSuffixes) == 0 {
		c.PromptSuffixes = []string{"#", ">"}
	}
	return &Client{config: &c}
}

// Connect 建立连接并打开交互式Shell
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.info = info

	sshConfig := &ssh.ClientConfig{
		User:            info.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			// 兼容旧版本网络设备的密钥交换算法
			KeyExchanges: []string{
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"curve25519-sha256",
			},
			// 兼容旧版本的加密算法
			Ciphers: []string{
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-cbc",
				"aes256-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-rsa",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-ed25519",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
		},
	}

	if info.Password != "" {
		// 同时尝试 password 与 keyboard-interactive，提高与网络设备的兼容性
		sshConfig.Auth = []ssh.AuthMethod{
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		}
	}

	address := fmt.Sprintf("%s:%d", info.Host, info.Port)
	dialer := &net.Dialer{Timeout: c.config.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}
	c.conn = ssh.NewClient(sshConn, chans, reqs)

	if err := c.openShell(ctx); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}

	c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())
	go c.keepAlive(c.lifeCtx)

	return nil
}

// openShell 打开 PTY Shell 并等待首个提示符
func (c *Client) openShell(ctx context.Context) error {
	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	// 终端类型回退，优先 vt100
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "ansi", "dumb"} {
		if ptyErr = session.RequestPty(term, 80, 24, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		session.Close()
		return fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return fmt.Errorf("failed to get stdout: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return fmt.Errorf("failed to start shell: %w", err)
	}

	c.session = session
	c.stdin = stdin
	c.chunkCh = make(chan string, 4096)
	c.doneCh = make(chan struct{})

	// 读取协程：按块推送清洗后的输出
	go func(done chan struct{}, out chan string) {
		defer close(done)
		buf := make([]byte, 2048)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				out <- normalize(string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}(c.doneCh, c.chunkCh)

	// 发送 CRLF 促使设备输出当前提示符
	_, _ = stdin.Write([]byte("\r\n"))
	if _, err := c.readUntilPrompt(ctx, nil, nil, false); err != nil {
		session.Close()
		c.session = nil
		return fmt.Errorf("failed to detect initial prompt: %w", err)
	}

	// 终端准备命令（如 AOS-CX 的 no page）
	for _, cmd := range c.config.TerminalSetup {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		if _, err := c.sendLocked(ctx, cmd, &SendOptions{Newline: true}); err != nil {
			return fmt.Errorf("terminal setup command %q failed: %w", cmd, err)
		}
	}
	return nil
}

// SendCommand 下发单条命令并收集到下一个提示符为止的输出
// 命令回显与结尾提示符行不计入返回文本
func (c *Client) SendCommand(ctx context.Context, command string, opts *SendOptions) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil {
		return "", fmt.Errorf("SSH session not established")
	}
	if opts == nil {
		opts = &SendOptions{Newline: true}
	}
	return c.sendLocked(ctx, command, opts)
}

func (c *Client) sendLocked(ctx context.Context, command string, opts *SendOptions) (string, error) {
	// 排空残留输出，避免上一条命令的尾部串入
	c.drain()

	payload := command
	if opts.Newline {
		payload += "\r\n"
	}
	if _, err := c.stdin.Write([]byte(payload)); err != nil {
		return "", fmt.Errorf("failed to write command: %w", err)
	}
	if opts.Sendonly {
		return "", nil
	}

	prompts, err := compilePrompts(opts.Prompt)
	if err != nil {
		return "", err
	}

	out, err := c.readUntilPrompt(ctx, prompts, opts.Answer, opts.CheckAll)
	if err != nil {
		return "", err
	}
	return stripEcho(out, command), nil
}

// readUntilPrompt 读取输出直到命中设备提示符
// 交互提示命中后自动写入对应应答并继续等待
func (c *Client) readUntilPrompt(ctx context.Context, prompts []*regexp.Regexp, answers []string, checkAll bool) (string, error) {
	var buf strings.Builder
	answered := make([]bool, len(prompts))
	timeout := time.NewTimer(c.config.CommandTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		case <-c.doneCh:
			return buf.String(), fmt.Errorf("session closed by remote")
		case chunk := <-c.chunkCh:
			buf.WriteString(chunk)
			text := buf.String()
			line := lastLine(text)

			// 交互提示匹配：写入应答后继续收集
			matched := false
			for i, re := range prompts {
				if answered[i] || re == nil {
					continue
				}
				if re.MatchString(line) {
					answer := ""
					if i < len(answers) {
						answer = answers[i]
					} else if len(answers) > 0 {
						answer = answers[len(answers)-1]
					}
					if _, err := c.stdin.Write([]byte(answer + "\r\n")); err != nil {
						return buf.String(), fmt.Errorf("failed to write answer: %w", err)
					}
					answered[i] = true
					matched = true
					if !checkAll {
						// 单提示模式：命中一次即不再做交互匹配
						for j := range answered {
							answered[j] = true
						}
					}
					break
				}
			}
			if matched {
				continue
			}

			if c.isPrompt(line) {
				c.prompt = strings.TrimSpace(line)
				return text, nil
			}
		case <-timeout.C:
			return buf.String(), fmt.Errorf("timeout waiting for command prompt")
		}
	}
}

// drain 丢弃通道中的残留输出
func (c *Client) drain() {
	for {
		select {
		case <-c.chunkCh:
		default:
			return
		}
	}
}

// isPrompt 判断清洗后的行是否为设备提示符
func (c *Client) isPrompt(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, suf := range c.config.PromptSuffixes {
		if strings.HasSuffix(trimmed, suf) {
			return true
		}
	}
	return false
}

// Prompt 返回最近捕获的提示符行
func (c *Client) Prompt() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.prompt
}

// RefreshPrompt 发送空行刷新并返回当前提示符
func (c *Client) RefreshPrompt(ctx context.Context) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.session == nil {
		return "", fmt.Errorf("SSH session not established")
	}
	c.drain()
	if _, err := c.stdin.Write([]byte("\r\n")); err != nil {
		return "", fmt.Errorf("failed to write newline: %w", err)
	}
	if _, err := c.readUntilPrompt(ctx, nil, nil, false); err != nil {
		return "", err
	}
	return c.prompt, nil
}

// IsConnected 检查连接状态
// 发送 keepalive 请求而不创建会话，避免触发设备的会话数量限制
func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return false
	}
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

// Close 关闭会话与连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.lifeCancel != nil {
		c.lifeCancel()
		c.lifeCancel = nil
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// keepAlive 保持连接活跃
func (c *Client) keepAlive(ctx context.Context) {
	if c.config.KeepAlive <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mutex.Lock()
			conn := c.conn
			c.mutex.Unlock()
			if conn == nil {
				return
			}
			if _, _, err := conn.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				// 连接已断开，关闭以便池清理
				_ = c.Close()
				return
			}
		}
	}
}

// compilePrompts 编译交互提示正则
func compilePrompts(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			out = append(out, nil)
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid prompt pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// normalize 统一换行并移除 ANSI 转义序列
// 仅将 CRLF 折叠为 \n，孤立 CR 去除，避免回车被误判为换行
func normalize(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

// lastLine 取末尾未完结的行（可能是提示符）
func lastLine(s string) string {
	idx := strings.LastIndex(s, "\n")
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// stripEcho 去除命令回显首行与结尾提示符行
func stripEcho(out, command string) string {
	lines := strings.Split(out, "\n")
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	cmd := strings.TrimSpace(command)
	if len(lines) > 0 && cmd != "" {
		first := strings.TrimSpace(lines[0])
		// 设备通常在提示符后原样回显命令
		if first == cmd || strings.HasSuffix(first, cmd) {
			lines = lines[1:]
		}
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
