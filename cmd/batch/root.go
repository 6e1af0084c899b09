package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"pliego-extract-go/internal/batch"
	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/model"
	"pliego-extract-go/internal/pipeline"
	"pliego-extract-go/internal/repository"
	"pliego-extract-go/internal/service"
	"pliego-extract-go/pkg/database"
	"pliego-extract-go/pkg/kafka"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/storage"
	"pliego-extract-go/pkg/table"
	"pliego-extract-go/pkg/tasks"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	enqueue    bool

	// newExtractor builds the extraction pipeline for a run.
	newExtractor = func(cfg config.Config) (batch.Extractor, error) {
		policy, err := pipeline.ParsePolicy(cfg.Batch.NormalizationPolicy)
		if err != nil {
			return nil, err
		}
		var extra []pipeline.Option
		if cfg.Cache.Enabled {
			if err := database.InitRedis(context.Background(), cfg.Database.Redis); err != nil {
				return nil, err
			}
			extra = append(extra, pipeline.WithAnswerCache(repository.NewAnswerCacheRepository(database.RDB, cfg.Cache.TTL)))
		}
		return service.NewProcessor(cfg, policy, extra...)
	}

	// now is the clock used for output file names.
	now = time.Now
)

// archiveURLExpiry is the lifetime of the download links logged after archiving.
const archiveURLExpiry = 7 * 24 * time.Hour

var rootCmd = &cobra.Command{
	Use:   "batch <start_index> <end_index>",
	Short: "Extract procurement metadata from a range of documents",
	Long: `Reads the configured parquet table, keeps the documents whose name contains
the configured marker and extracts the award criteria, solvency requirements and
special execution conditions of documents [start_index, end_index).

Each result is appended to resultados_<timestamp>_<start>_<end>.json in the
output directory as soon as it is ready. Rate limited requests are retried after
the configured wait.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "./configs/config.yaml", "path to the YAML configuration file")
	rootCmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish the selected documents to Kafka instead of processing them")
}

func parseRange(args []string) (int, int, error) {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start_index %q: %w", args[0], err)
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end_index %q: %w", args[1], err)
	}
	return start, end, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange(args)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	docs, err := table.ReadFile(cfg.Batch.InputPath)
	if err != nil {
		return err
	}
	docs = table.FilterByDocName(docs, cfg.Batch.DocNameMarker)
	selected, err := table.Slice(docs, start, end)
	if err != nil {
		cmd.Printf("No hay datos para procesar en el rango %d a %d.\n", start, end)
		return err
	}

	if !enqueue {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Batch.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	logPath := filepath.Join(cfg.Batch.OutputDir, fmt.Sprintf("metadata_extraction_%d_%d.log", start, end))
	log.Init(cfg.Log.Level, cfg.Log.Format, logPath)
	defer log.Sync()

	runID := uuid.NewString()
	log.Infow("[Batch] 开始运行",
		"runID", runID,
		"start", start,
		"end", end,
		"documents", len(selected),
		"enqueue", enqueue,
	)

	if enqueue {
		return enqueueDocuments(ctx, cfg, runID, selected)
	}

	resultPath := filepath.Join(cfg.Batch.OutputDir,
		fmt.Sprintf("resultados_%s_%d_%d.json", now().Format("20060102_150405"), start, end))
	summary, runErr := processDocuments(ctx, cfg, runID, resultPath, selected)
	cmd.Printf("Procesados %d documentos: %d correctos, %d omitidos, %d fallidos. Resultados en %s\n",
		summary.Total, summary.Succeeded, summary.Skipped, summary.Failed, resultPath)

	if cfg.MinIO.Enabled {
		archiveRun(ctx, cfg, fmt.Sprintf("%d_%d", start, end), resultPath, logPath)
	}
	return runErr
}

func processDocuments(ctx context.Context, cfg config.Config, runID, resultPath string, docs []model.Document) (batch.Summary, error) {
	extractor, err := newExtractor(cfg)
	if err != nil {
		return batch.Summary{Total: len(docs)}, err
	}

	var secondary []batch.ResultWriter
	var dbWriter *repository.RunResultWriter
	if cfg.Database.MySQL.Enabled {
		if err := database.InitMySQL(cfg.Database.MySQL); err != nil {
			log.Error("MySQL 初始化失败，结果仅写入文件", err)
		} else {
			dbWriter = repository.NewRunResultWriter(repository.NewExtractionResultRepository(database.DB), runID)
			secondary = append(secondary, dbWriter)
		}
	}
	if cfg.Kafka.Enabled {
		publisher := kafka.NewResultPublisher(cfg.Kafka)
		defer publisher.Close()
		secondary = append(secondary, publisher)
	}
	writer := batch.NewMultiWriter(repository.NewResultFileRepository(resultPath), secondary...)

	runner := batch.NewRunner(extractor, writer, batch.WithRetryPolicy(batch.RetryPolicy{
		Wait:       cfg.Batch.RetryWait,
		MaxRetries: cfg.Batch.MaxRetries,
		Marker:     cfg.Batch.RateLimitMarker,
	}))
	summary, err := runner.Run(ctx, docs)
	if dbWriter != nil {
		if n, perr := dbWriter.Persisted(context.WithoutCancel(ctx)); perr != nil {
			log.Error("查询本次运行入库记录失败", perr)
		} else {
			log.Infow("[Batch] 数据库记录", "runID", runID, "persisted", n, "succeeded", summary.Succeeded)
		}
	}
	return summary, err
}

func enqueueDocuments(ctx context.Context, cfg config.Config, runID string, docs []model.Document) error {
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()

	batchTasks := make([]tasks.ExtractionTask, 0, len(docs))
	for _, doc := range docs {
		batchTasks = append(batchTasks, tasks.NewExtractionTask(runID, doc))
	}
	if err := kafka.ProduceExtractionTasks(ctx, batchTasks...); err != nil {
		return fmt.Errorf("enqueue tasks: %w", err)
	}
	log.Infof("[Batch] 已发送 %d 个抽取任务到主题 '%s'", len(batchTasks), cfg.Kafka.TasksTopic)
	return nil
}

func archiveRun(ctx context.Context, cfg config.Config, prefix string, files ...string) {
	if err := storage.InitMinIO(ctx, cfg.MinIO); err != nil {
		log.Error("MinIO 初始化失败，跳过归档", err)
		return
	}
	log.Sync()
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	objects, err := storage.ArchiveFiles(ctx, cfg.MinIO.BucketName, prefix, existing...)
	if err != nil {
		log.Error("归档运行文件失败", err)
	}
	for _, object := range objects {
		url, err := storage.GetPresignedURL(ctx, cfg.MinIO.BucketName, object, archiveURLExpiry)
		if err != nil {
			continue
		}
		log.Infow("[Batch] 归档文件下载链接", "object", object, "url", url)
	}
}
