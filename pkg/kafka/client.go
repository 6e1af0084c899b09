// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/log"
	"pliego-extract-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// MaxAttempts is how many times a failing task is processed before its
// offset is committed anyway.
const MaxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.ExtractionTask) error
}

// AttemptCounter counts failed deliveries per task.
type AttemptCounter interface {
	Incr(ctx context.Context, taskID string) (int64, error)
	Reset(ctx context.Context, taskID string) error
}

var producer *kafka.Writer

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// InitProducer 初始化任务主题的 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg)...),
		Topic:    cfg.TasksTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭任务生产者。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// ProduceExtractionTasks 将一批抽取任务发送到 Kafka。
func ProduceExtractionTasks(ctx context.Context, batch ...tasks.ExtractionTask) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	msgs := make([]kafka.Message, 0, len(batch))
	for _, task := range batch {
		taskBytes, err := json.Marshal(task)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(task.ProcurementID), Value: taskBytes})
	}
	return producer.WriteMessages(ctx, msgs...)
}

// ResultPublisher 将抽取结果发布到结果主题。
type ResultPublisher struct {
	writer *kafka.Writer
}

// NewResultPublisher 创建结果主题的发布者。
func NewResultPublisher(cfg config.KafkaConfig) *ResultPublisher {
	return &ResultPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg)...),
		Topic:    cfg.ResultsTopic,
		Balancer: &kafka.Hash{},
	}}
}

// Append publishes one message per result, keyed by procurement id.
func (p *ResultPublisher) Append(ctx context.Context, results ...model.ExtractionResult) error {
	msgs := make([]kafka.Message, 0, len(results))
	for _, res := range results {
		value, err := json.Marshal(res)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(res.ProcurementID), Value: value})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	return nil
}

// Close 关闭发布者。
func (p *ResultPublisher) Close() error {
	return p.writer.Close()
}

// messageReader is the part of *kafka.Reader the consumer loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StartConsumer 启动消费者处理抽取任务，直到 ctx 结束。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.TasksTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.TasksTopic)
	return consume(ctx, r, processor, attempts)
}

// consume 逐条拉取消息。消息处理完（成功或重试耗尽）后才提交 offset，
// 下一条消息在此之前不会被拉取。
func consume(ctx context.Context, r messageReader, processor TaskProcessor, attempts AttemptCounter) error {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}
		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		if !handleMessage(ctx, m.Value, processor, attempts) {
			// 停机中断，offset 不提交，重启后从该消息继续
			return nil
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handleMessage processes one message, retrying a failing task in place until
// MaxAttempts deliveries are counted, and reports whether its offset should be
// committed. It returns false only when ctx ends before the task settles.
// Attempts are counted in the AttemptCounter so that a task that keeps
// crashing the worker is not retried forever across restarts.
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, attempts AttemptCounter) bool {
	var task tasks.ExtractionTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	log.Infof("开始处理抽取任务: ProcurementID=%s, DocName=%s", task.ProcurementID, task.DocName)
	var local int64
	for {
		err := processor.ProcessTask(ctx, task)
		if err == nil {
			log.Infof("抽取任务处理成功: ProcurementID=%s", task.ProcurementID)
			_ = attempts.Reset(ctx, task.ProcurementID)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		local++
		n, incErr := attempts.Incr(ctx, task.ProcurementID)
		if incErr != nil {
			log.Warnw("记录任务重试次数失败，使用本地计数",
				"procurementID", task.ProcurementID,
				"error", incErr,
			)
			n = local
		}
		log.Errorw("处理抽取任务失败",
			"procurementID", task.ProcurementID,
			"attempt", n,
			"error", err,
		)
		if n >= MaxAttempts {
			log.Errorf("抽取任务多次失败(>=%d)，提交 offset 终止重试: ProcurementID=%s", MaxAttempts, task.ProcurementID)
			_ = attempts.Reset(ctx, task.ProcurementID)
			return true
		}
	}
}
