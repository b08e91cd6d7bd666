package simulate

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
)

// Config simulate.yaml 配置结构
// 用户名即设备名，用于选择设备档案
type Config struct {
	Port        int                     `mapstructure:"port" yaml:"port"`
	Password    string                  `mapstructure:"password" yaml:"password"`
	IdleSeconds int                     `mapstructure:"idle_seconds" yaml:"idle_seconds"`
	MaxConn     int                     `mapstructure:"max_conn" yaml:"max_conn"`
	Devices     map[string]DeviceConfig `mapstructure:"devices" yaml:"devices"`
}

// DeviceConfig 单台模拟交换机的档案
type DeviceConfig struct {
	Hostname string `mapstructure:"hostname" yaml:"hostname"`
	Version  string `mapstructure:"version" yaml:"version"`
	Model    string `mapstructure:"model" yaml:"model"`
	// OutputDir 存放覆盖输出的目录，<命令>.txt 优先于内置回显
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// Manager 管理模拟交换机的 SSH 服务
type Manager struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer
	active   int
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// LoadConfig 读取 simulate/simulate.yaml，缺失时写出默认配置
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := writeDefaultConfig(path); werr != nil {
			return nil, fmt.Errorf("failed to write default simulate config: %w", werr)
		}
		logger.Info("Simulate: default config created", "path", path)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 2222
	}
	if cfg.Password == "" {
		cfg.Password = "aoscx"
	}
	return &cfg, nil
}

// writeDefaultConfig 生成带一台示例交换机的默认配置
func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	def := Config{
		Port:        2222,
		Password:    "aoscx",
		IdleSeconds: 300,
		MaxConn:     16,
		Devices: map[string]DeviceConfig{
			"sw1": {
				Hostname: "sw1",
				Version:  "GL.10.09.1010",
				Model:    "JL675A",
			},
		},
	}
	bs, err := yaml.Marshal(&def)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0o644)
}

// Start 启动 SSH 模拟服务
func Start(cfg *Config) (*Manager, error) {
	signer, err := loadOrCreateHostKey()
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}

	m := &Manager{cfg: cfg, hostKey: signer}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}
	m.listener = ln
	logger.Info("Simulate: listener started", "port", cfg.Port)

	go m.acceptLoop()
	return m, nil
}

// Stop 停止模拟服务并等待在途会话
func (m *Manager) Stop() {
	if m.listener != nil {
		_ = m.listener.Close()
	}
	m.wg.Wait()
	logger.Info("Simulate: stopped")
}

// Reload 替换设备档案，端口变化需要重启进程
func (m *Manager) Reload(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.Port != m.cfg.Port {
		return fmt.Errorf("port change requires restart: %d -> %d", m.cfg.Port, cfg.Port)
	}
	m.cfg = cfg
	return nil
}

// loadOrCreateHostKey 加载或生成持久化 host key，避免客户端指纹频繁变化
func loadOrCreateHostKey() (ssh.Signer, error) {
	keyDir := "simulate"
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure simulate dir: %w", err)
	}
	keyPath := filepath.Join(keyDir, "_hostkey_rsa.pem")

	if bs, err := os.ReadFile(keyPath); err == nil {
		signer, perr := ssh.ParsePrivateKey(bs)
		if perr == nil {
			return signer, nil
		}
		logger.Warn("Simulate: host key parse failed, regenerating", "error", perr)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if werr := os.WriteFile(keyPath, pemBytes, 0o600); werr != nil {
		return nil, fmt.Errorf("failed to write host key: %w", werr)
	}
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated host key: %w", err)
	}
	logger.Info("Simulate: host key generated", "file", keyPath)
	return signer, nil
}

func (m *Manager) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			// listener closed
			return
		}

		m.mu.Lock()
		if m.cfg.MaxConn > 0 && m.active >= m.cfg.MaxConn {
			m.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded")
			continue
		}
		m.active++
		m.mu.Unlock()

		m.wg.Add(1)
		go func(c net.Conn) {
			defer m.wg.Done()
			m.handleConn(c)
			m.mu.Lock()
			m.active--
			m.mu.Unlock()
		}(conn)
	}
}

func (m *Manager) handleConn(nc net.Conn) {
	m.mu.Lock()
	password := m.cfg.Password
	m.mu.Unlock()

	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if strings.TrimSpace(string(pass)) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && strings.TrimSpace(answers[0]) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(m.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.Debug("Simulate: SSH handshake failed", "remote", nc.RemoteAddr().String(), "error", err)
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	device := m.resolveDevice(conn.User())
	for ch := range chans {
		if ch.ChannelType() != "session" {
			ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Error("Simulate: channel accept failed", "error", err)
			continue
		}
		go m.handleSession(channel, requests, device)
	}
}

// resolveDevice 用户名匹配设备档案，未匹配时返回同名默认档案
func (m *Manager) resolveDevice(user string) DeviceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dc, ok := m.cfg.Devices[user]; ok {
		if dc.Hostname == "" {
			dc.Hostname = user
		}
		return dc
	}
	return DeviceConfig{Hostname: user, Version: "GL.10.09.1010", Model: "JL675A"}
}

func (m *Manager) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, device DeviceConfig) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			req.Reply(true, nil)
		case "shell":
			req.Reply(true, nil)
			m.runShell(channel, device)
			return
		default:
			req.Reply(false, nil)
		}
	}
}

// runShell 交互式 shell，维护配置模式提示符
func (m *Manager) runShell(channel ssh.Channel, device DeviceConfig) {
	configMode := false
	prompt := func() string {
		if configMode {
			return fmt.Sprintf("%s(config)# ", device.Hostname)
		}
		return fmt.Sprintf("%s# ", device.Hostname)
	}
	printPrompt := func() {
		channel.Write([]byte(prompt()))
	}
	printPrompt()

	// 独立协程读取输入行，使空闲计时在等待输入期间也能触发
	lineCh := make(chan string)
	go func() {
		defer close(lineCh)
		reader := bufio.NewReader(channel)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lineCh <- line
			}
			if err != nil {
				return
			}
		}
	}()

	idle := m.cfg.IdleSeconds
	var idleTimer *time.Timer
	if idle > 0 {
		idleTimer = time.NewTimer(time.Duration(idle) * time.Second)
		defer idleTimer.Stop()
	}

	for {
		var line string
		if idleTimer != nil {
			select {
			case <-idleTimer.C:
				channel.Write([]byte("\r\nSession closed due to idle timeout.\r\n"))
				return
			case l, ok := <-lineCh:
				if !ok {
					return
				}
				line = l
			}
		} else {
			l, ok := <-lineCh
			if !ok {
				return
			}
			line = l
		}

		cmd := strings.TrimSpace(cleanNewlines(line))
		// 回显输入，模拟真实终端
		channel.Write([]byte(cmd + "\r\n"))
		if cmd == "" {
			printPrompt()
			continue
		}
		if idleTimer != nil {
			idleTimer.Reset(time.Duration(idle) * time.Second)
		}

		switch {
		case equalAny(cmd, "exit", "quit"):
			if configMode {
				configMode = false
				printPrompt()
				continue
			}
			channel.Write([]byte("\r\n"))
			return
		case strings.EqualFold(cmd, "configure terminal") || strings.EqualFold(cmd, "configure"):
			configMode = true
			printPrompt()
			continue
		case strings.EqualFold(cmd, "end"):
			configMode = false
			printPrompt()
			continue
		case strings.EqualFold(cmd, "no page"):
			// 分页关闭只需确认提示符
			printPrompt()
			continue
		}

		out := m.commandOutput(device, cmd, configMode)
		channel.Write([]byte(out))
		printPrompt()
	}
}

// commandOutput 生成命令回显，文件覆盖优先于内置回显
func (m *Manager) commandOutput(device DeviceConfig, cmd string, configMode bool) string {
	if device.OutputDir != "" {
		normalized := strings.ReplaceAll(cmd, " ", "_")
		p := filepath.Join(device.OutputDir, normalized+".txt")
		if bs, err := os.ReadFile(p); err == nil {
			return ensureCRLF(string(bs))
		}
	}

	if configMode {
		// 配置行一律静默接受
		return ""
	}

	switch strings.ToLower(cmd) {
	case "show version":
		return ensureCRLF(fmt.Sprintf(
			"ArubaOS-CX\n(c) Copyright 2017-2023 Hewlett Packard Enterprise Development LP\nVersion %s\nBuild Date   : 2023-01-15\nBuild ID     : ArubaOS-CX:%s:build\nActive Image : primary\n\nMODEL: %s), Chassis Serial Nbr: SG1ZKN0123\n",
			device.Version, device.Version, device.Model))
	case "show hostname":
		return ensureCRLF(fmt.Sprintf("Hostname is %s\n", device.Hostname))
	case "show running-config all":
		return ensureCRLF(fmt.Sprintf(
			"Current configuration:\n!\n!Version %s\nhostname %s\nuser admin group administrators password ciphertext AQBape...\n!\nvlan 1\ninterface mgmt\n    no shutdown\n    ip dhcp\n",
			device.Version, device.Hostname))
	case "show configuration":
		return ensureCRLF(fmt.Sprintf(
			"Startup configuration:\n!\n!Version %s\nhostname %s\n!\nvlan 1\ninterface mgmt\n    no shutdown\n    ip dhcp\n",
			device.Version, device.Hostname))
	default:
		return ensureCRLF(fmt.Sprintf("Invalid input: %s\n", cmd))
	}
}

func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if s != "" && !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}

func cleanNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

func equalAny(s string, opts ...string) bool {
	for _, o := range opts {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}
