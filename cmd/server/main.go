package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aoscxcliconf/aoscxcliconf/api/router"
	"github.com/aoscxcliconf/aoscxcliconf/internal/config"
	"github.com/aoscxcliconf/aoscxcliconf/internal/database"
	"github.com/aoscxcliconf/aoscxcliconf/internal/service"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/cache"
	"github.com/aoscxcliconf/aoscxcliconf/pkg/logger"
	"github.com/aoscxcliconf/aoscxcliconf/simulate"
)

func main() {
	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting AOS-CX Cliconf Server", "version", "1.0.0")

	// 初始化数据库
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 初始化缓存（可选，host 为空时禁用）
	if err := cache.Init(cfg.Redis); err != nil {
		logger.Warn("Cache init failed, running without cache", "error", err)
	}
	defer cache.Close()

	// 创建连接插件服务
	svc := service.NewCliconfService(cfg)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		logger.Fatal("Failed to start cliconf service", "error", err)
	}
	defer svc.Stop()

	// 启动模拟交换机（可选）
	var simMgr *simulate.Manager
	if cfg.Server.SimulateEnable {
		sc, err := simulate.LoadConfig("simulate/simulate.yaml")
		if err != nil {
			logger.Warn("Simulate: failed to load simulate.yaml", "error", err)
		} else {
			mgr, err := simulate.Start(sc)
			if err != nil {
				logger.Warn("Simulate: failed to start", "error", err)
			} else {
				simMgr = mgr
				logger.Info("Simulate: started", "port", sc.Port, "devices", len(sc.Devices))
			}
		}
	}
	defer func() {
		if simMgr != nil {
			simMgr.Stop()
		}
	}()

	// 设置路由
	r := router.SetupRouter(svc)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// 配置文件监听与热更新
	go func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warn("Config watch init failed", "error", err)
			return
		}
		defer watcher.Close()
		path := "configs/config.yaml"
		if err := watcher.Add(path); err != nil {
			logger.Warn("Config watch add failed", "error", err)
			return
		}
		var debounce *time.Timer
		debounceInterval := 300 * time.Millisecond
		trigger := func() {
			newCfg, err := config.Load(path)
			if err != nil {
				logger.Warn("Config reload failed", "error", err)
				return
			}
			// 原地覆盖，保持指针不变
			*cfg = *newCfg
			// 刷新日志配置
			_ = logger.Init(logger.Config{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				Output:     cfg.Log.Output,
				FilePath:   cfg.Log.FilePath,
				MaxSize:    cfg.Log.MaxSize,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAge,
				Compress:   cfg.Log.Compress,
			})
			logger.Info("Config reloaded")
			// 模拟开关变化时动态启停
			if cfg.Server.SimulateEnable && simMgr == nil {
				sc, err := simulate.LoadConfig("simulate/simulate.yaml")
				if err != nil {
					logger.Warn("Simulate: failed to load simulate.yaml on config reload", "error", err)
				} else if mgr, err := simulate.Start(sc); err != nil {
					logger.Warn("Simulate: failed to start on config reload", "error", err)
				} else {
					simMgr = mgr
					logger.Info("Simulate: started by config reload")
				}
			} else if !cfg.Server.SimulateEnable && simMgr != nil {
				simMgr.Stop()
				simMgr = nil
				logger.Info("Simulate: stopped by config reload")
			}
		}
		for {
			select {
			case ev := <-watcher.Events:
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if debounce != nil {
						debounce.Stop()
					}
					debounce = time.AfterFunc(debounceInterval, trigger)
				}
			case err := <-watcher.Errors:
				logger.Warn("Config watch error", "error", err)
			}
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}
