package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/weibaohui/goalagent/backend/config"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/eventbus"
	"github.com/weibaohui/goalagent/backend/internal/handler"
	"github.com/weibaohui/goalagent/backend/internal/pkg/database"
	"github.com/weibaohui/goalagent/backend/internal/pkg/llm"
	"github.com/weibaohui/goalagent/backend/internal/pkg/toolclient"
	"github.com/weibaohui/goalagent/backend/internal/repository"
	"github.com/weibaohui/goalagent/backend/internal/router"
	"github.com/weibaohui/goalagent/backend/internal/service/classifier"
	"github.com/weibaohui/goalagent/backend/internal/service/orchestrator"
	"github.com/weibaohui/goalagent/backend/internal/service/planner"
	"github.com/weibaohui/goalagent/backend/internal/service/run"
	"github.com/weibaohui/goalagent/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if cfg.Database.Type != "mysql" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	runRepo := repository.NewRunRepository(db)

	// 启动时清理上次进程遗留的未结束运行
	cleanupStaleRuns(runRepo)

	// 运行事件持久化
	bus := eventbus.NewRunEventBus()
	subscriber.NewRunEventSubscriber(runRepo).Register(bus)

	client := toolclient.NewClient(cfg)

	// 未配置 API Key 时只使用本地规则分类
	var analyzer classifier.Analyzer
	if a := llm.NewGoalAnalyzer(cfg); a != nil {
		analyzer = a
	} else {
		klog.V(6).Infof("未配置目标分析模型，使用本地规则分类")
	}

	exec, err := orchestrator.NewOrchestrator(orchestrator.Options{
		MaxWorkers:   cfg.Agent.MaxWorkers,
		StepTimeout:  cfg.Agent.StepTimeout,
		MaxRetries:   cfg.Agent.MaxRetries,
		RetryBackoff: cfg.Agent.RetryBackoff,
	})
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	defer exec.Stop()

	controller := run.NewController(
		classifier.NewClassifier(analyzer, cfg.Agent.LocalFallback),
		planner.NewPlanner(cfg.Agent.SplitInstructions),
		exec,
		func(req domain.RunRequest) orchestrator.Invoker {
			return orchestrator.NewToolInvoker(client, req.Goal)
		},
		bus,
	)
	defer controller.Shutdown()

	// 初始化 Handler
	runHandler := handler.NewRunHandler(controller, runRepo, exec, cfg.Agent.HistoryLimit)
	catalogHandler := handler.NewCatalogHandler(client)

	// 设置路由
	r := router.Setup(cfg, runHandler, catalogHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	klog.V(6).Info("收到退出信号，服务关闭中...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("服务关闭失败: %v", err)
	}
}

// cleanupStaleRuns 将启动前卡在分析或执行阶段的运行标记为失败
func cleanupStaleRuns(repo repository.RunRepository) {
	affected, err := repo.CleanupStale(context.Background(), 0)
	if err != nil {
		klog.V(6).Infof("清理遗留运行失败: %v", err)
		return
	}

	if affected > 0 {
		klog.V(6).Infof("启动时清理了 %d 个遗留的运行", affected)
	}
}
