package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"PowerPulse/internal/agent"
	"PowerPulse/internal/api"
	"PowerPulse/internal/catalog"
	"PowerPulse/internal/config"
	"PowerPulse/internal/knowledge"
	"PowerPulse/internal/llm"
	"PowerPulse/internal/llm/openai"
	"PowerPulse/internal/llm/static"
	"PowerPulse/internal/observability/alerting"
	"PowerPulse/internal/storage/mysql"
	"PowerPulse/internal/supervisor"
	"PowerPulse/internal/task"
	"PowerPulse/pkg/logger"
)

// main 是 PowerPulse 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("powerpulsed 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("POWERPULSE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "powerpulse.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Output,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 初始化大模型客户端。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	var analysisRepo mysql.AnalysisRepository
	switch cfg.Storage.Repository.Driver {
	case "memory", "":
		repo, err := mysql.NewMemoryAnalysisRepository(dataDir)
		if err != nil {
			return err
		}
		analysisRepo = repo
	case "mysql":
		repo, err := mysql.NewSQLAnalysisRepository(ctx, mysql.Config{
			DSN: cfg.Storage.Repository.DSN,
		})
		if err != nil {
			return err
		}
		analysisRepo = repo
	default:
		return mysql.ErrUnsupportedDriver
	}
	if closer, ok := analysisRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	var taskStore task.Store
	switch cfg.Storage.TaskStore.Driver {
	case "memory", "":
		taskStore = task.NewMemoryStore()
	case "mysql":
		store, err := task.NewMySQLStore(cfg.Storage.TaskStore.DSN)
		if err != nil {
			return err
		}
		taskStore = store
	default:
		return mysql.ErrUnsupportedDriver
	}
	defer func() {
		if taskStore != nil {
			_ = taskStore.Close()
		}
	}()

	var taskQueue task.Queue
	switch cfg.Queue.Driver {
	case "", "memory":
		taskQueue = task.NewMemoryQueue(1024)
	case "redis":
		queue, err := task.NewRedisQueue(task.RedisQueueConfig{
			Address:  cfg.Queue.Redis.Address,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Queue:    cfg.Queue.Redis.Queue,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:      cfg.Queue.RabbitMQ.URL,
			Queue:    cfg.Queue.RabbitMQ.Queue,
			Prefetch: cfg.Queue.RabbitMQ.Prefetch,
			Durable:  cfg.Queue.RabbitMQ.Durable,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
	defer func() {
		if taskQueue != nil {
			if err := taskQueue.Close(); err != nil {
				log.Printf("关闭任务队列失败: %v", err)
			}
		}
	}()

	var knowledgeProvider knowledge.Provider
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		knowledgeProvider = provider
	}

	deviceCatalog, err := catalog.LoadDeviceDefinitions(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	opts := []agent.Option{
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithKnowledgeProvider(knowledgeProvider),
		agent.WithCatalog(deviceCatalog),
	}
	if cfg.Agent.LLMTimeoutSeconds > 0 {
		opts = append(opts, agent.WithLLMTimeout(time.Duration(cfg.Agent.LLMTimeoutSeconds)*time.Second))
	}

	ag := agent.New(llmClient, analysisRepo, opts...)
	router := supervisor.NewRouter(llmClient, ag)

	taskService := task.NewService(taskStore, taskQueue, cfg.Agent.MaxRetries)
	processor := task.NewProcessor(ag, taskStore, taskQueue, taskQueue,
		task.WithWorkerCount(cfg.Queue.Workers),
		task.WithProcessorLogger(logger.L()),
		task.WithRecoveryHandler(offlineRecovery()),
		task.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("任务处理器异常退出: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, taskService,
		api.WithQueryRouter(router),
		api.WithStaticToken(cfg.Server.AuthToken),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// offlineRecovery 在任务不可重试地失败后改用离线摘要生成降级结果。
func offlineRecovery() task.RecoveryHandler {
	fallback := agent.New(static.NewClient(), nil)
	return task.RecoveryFunc(func(ctx context.Context, t *task.Task, cause error) (*task.ExecutionResult, error) {
		result, err := fallback.Execute(ctx, agent.AnalysisRequest{
			Week1Path: t.Week1Path,
			Week2Path: t.Week2Path,
			Metadata:  t.Metadata,
		})
		if err != nil {
			return nil, err
		}
		degraded := &task.ExecutionResult{
			Narrative:    result.Narrative,
			Observations: fmt.Sprintf("降级为离线摘要: %v", cause),
		}
		if result.Report != nil {
			if rendered, renderErr := result.Report.Render(); renderErr == nil {
				degraded.Report = rendered
			}
		}
		return degraded, nil
	})
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		apiKey := ""
		if cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要通过 api_key_env 提供密钥")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
		})
	case "static":
		return static.NewClient(), nil
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
