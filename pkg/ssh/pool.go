package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool 交互会话池
// 每个设备（host:port@user）维持至多一条交互会话，串行复用
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.Mutex
	maxActive   int
	idleTimeout time.Duration
}

type pooledConnection struct {
	client   *Client
	info     *ConnectionInfo
	lastUsed time.Time
	inUse    bool
	created  time.Time
}

// PoolConfig 会话池配置
type PoolConfig struct {
	MaxActive   int           `yaml:"max_active"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	SSHConfig   *Config       `yaml:"ssh"`
}

// NewPool 创建会话池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
	}
	if pool.maxActive <= 0 {
		pool.maxActive = 32
	}
	if pool.idleTimeout <= 0 {
		pool.idleTimeout = 5 * time.Minute
	}

	go pool.cleanup()

	return pool
}

// GetConnection 获取设备会话，必要时新建
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		if conn.inUse {
			// 交互会话不可并行复用
			return nil, fmt.Errorf("device session busy: %s", key)
		}
		if conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			return conn.client, nil
		}
		// 会话已断开，丢弃重建
		conn.client.Close()
		delete(p.connections, key)
	}

	if p.activeCount() >= p.maxActive {
		return nil, fmt.Errorf("connection pool is full, active connections: %d", p.activeCount())
	}

	client := NewClient(p.config)
	if err := client.Connect(ctx, info); err != nil {
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}

	p.connections[key] = &pooledConnection{
		client:   client,
		info:     info,
		lastUsed: time.Now(),
		inUse:    true,
		created:  time.Now(),
	}
	return client, nil
}

// ReleaseConnection 归还设备会话
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		conn.inUse = false
		conn.lastUsed = time.Now()
	}
}

// CloseConnection 关闭指定设备会话
func (p *Pool) CloseConnection(info *ConnectionInfo) error {
	key := connectionKey(info)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if conn, exists := p.connections[key]; exists {
		err := conn.client.Close()
		delete(p.connections, key)
		return err
	}
	return nil
}

// Close 关闭全部会话
func (p *Pool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for key, conn := range p.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, key)
	}
	return lastErr
}

// Stats 会话池统计信息
func (p *Pool) Stats() map[string]interface{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return map[string]interface{}{
		"total_connections":  len(p.connections),
		"active_connections": p.activeCount(),
		"max_active":         p.maxActive,
	}
}

// Health 健康检查
func (p *Pool) Health() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.connections) == 0 {
		return nil
	}
	connected := 0
	for _, conn := range p.connections {
		if conn.client.IsConnected() {
			connected++
		}
	}
	if connected == 0 {
		return fmt.Errorf("all connections are disconnected")
	}
	return nil
}

func connectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s:%d@%s", info.Host, info.Port, info.Username)
}

func (p *Pool) activeCount() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

// cleanup 周期清理过期与断开的会话
func (p *Pool) cleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		p.mutex.Lock()
		now := time.Now()
		for key, conn := range p.connections {
			if conn.inUse {
				continue
			}
			if now.Sub(conn.lastUsed) > p.idleTimeout || !conn.client.IsConnected() {
				conn.client.Close()
				delete(p.connections, key)
			}
		}
		p.mutex.Unlock()
	}
}
