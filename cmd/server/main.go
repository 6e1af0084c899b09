// Package main 是 HTTP 服务的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pliego-extract-go/internal/batch"
	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/handler"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/internal/repository"
	"pliego-extract-go/internal/service"
	"pliego-extract-go/pkg/database"
	"pliego-extract-go/pkg/kafka"
	"pliego-extract-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. 加载 .env 与配置
	_ = godotenv.Load()
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	var logFiles []string
	if cfg.Log.OutputPath != "" {
		logFiles = append(logFiles, filepath.Join(cfg.Log.OutputPath, "server.log"))
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, logFiles...)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	if err := cfg.Validate(); err != nil {
		log.Fatal("配置校验失败", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化可选的外部依赖
	if cfg.Cache.Enabled || cfg.Kafka.Enabled {
		if err := database.InitRedis(ctx, cfg.Database.Redis); err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
	}
	if cfg.Database.MySQL.Enabled {
		if err := database.InitMySQL(cfg.Database.MySQL); err != nil {
			log.Fatal("MySQL 初始化失败", err)
		}
	}

	var extra []pipeline.Option
	if cfg.Cache.Enabled {
		extra = append(extra, pipeline.WithAnswerCache(repository.NewAnswerCacheRepository(database.RDB, cfg.Cache.TTL)))
	}

	// 4. 组装抽取流程与 HTTP 服务
	policy, err := pipeline.ParsePolicy(cfg.Server.NormalizationPolicy)
	if err != nil {
		log.Fatal("无效的 server.normalization_policy", err)
	}
	processor, err := service.NewProcessor(cfg, policy, extra...)
	if err != nil {
		log.Fatal("抽取流程初始化失败", err)
	}
	extractionService := service.NewExtractionService(processor, cfg.Batch.DocNameMarker)

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler.NewRouter(extractionService, cfg.Server.MaxUploadMB),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// 5. 启动后台 Kafka 抽取任务消费者
	if cfg.Kafka.Enabled {
		worker, closeWorker, err := newKafkaWorker(cfg)
		if err != nil {
			log.Fatal("Kafka 消费者初始化失败", err)
		}
		defer closeWorker()
		g.Go(func() error {
			return kafka.StartConsumer(gctx, cfg.Kafka, worker, repository.NewAttemptRepository(database.RDB))
		})
	}

	if err := g.Wait(); err != nil {
		log.Errorf("服务异常退出: %v", err)
		os.Exit(1)
	}
	log.Info("服务已优雅关闭")
}

// newKafkaWorker 组装消费者使用的批处理流程：严格规范化、速率限制重试，
// 结果写入 worker 结果文件并发布到结果主题，启用 MySQL 时同时入库。
func newKafkaWorker(cfg config.Config) (*batch.Worker, func(), error) {
	policy, err := pipeline.ParsePolicy(cfg.Batch.NormalizationPolicy)
	if err != nil {
		return nil, nil, err
	}
	var extra []pipeline.Option
	if cfg.Cache.Enabled {
		extra = append(extra, pipeline.WithAnswerCache(repository.NewAnswerCacheRepository(database.RDB, cfg.Cache.TTL)))
	}
	processor, err := service.NewProcessor(cfg, policy, extra...)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Batch.OutputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	runID := uuid.NewString()
	resultFile := repository.NewResultFileRepository(filepath.Join(cfg.Batch.OutputDir,
		fmt.Sprintf("resultados_worker_%s.json", time.Now().Format("20060102_150405"))))
	publisher := kafka.NewResultPublisher(cfg.Kafka)

	var dbWriter batch.ResultWriter
	if cfg.Database.MySQL.Enabled {
		dbWriter = repository.NewRunResultWriter(repository.NewExtractionResultRepository(database.DB), runID)
	}
	writer := batch.NewMultiWriter(resultFile, publisher, dbWriter)

	runner := batch.NewRunner(processor, nil,
		batch.WithSource("kafka"),
		batch.WithRetryPolicy(batch.RetryPolicy{
			Wait:       cfg.Batch.RetryWait,
			MaxRetries: cfg.Batch.MaxRetries,
			Marker:     cfg.Batch.RateLimitMarker,
		}),
	)
	log.Infof("Kafka worker 已就绪, runID: %s, 结果文件: %s", runID, resultFile.Path())
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			log.Errorf("关闭结果发布者失败: %v", err)
		}
	}
	return batch.NewWorker(runner, writer), closeFn, nil
}
