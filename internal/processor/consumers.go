package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/storage"
)

// QueueConsumer 消费侧需要的消息队列能力，由RabbitMQ实现
type QueueConsumer interface {
	EnsureExchange(exchangeName, exchangeType string, durable bool) error
	EnsureQueue(queueName string, durable bool) error
	BindQueue(queueName, exchangeName, routingKey string) error
	StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error)
}

// Consumers 后台消费者集合：原始简历处理和岗位匹配
type Consumers struct {
	ingest  *IngestProcessor
	match   *MatchProcessor
	objects ObjectStore
	mq      QueueConsumer
	cfg     *config.RabbitMQConfig

	stopChannels []chan<- struct{}
	log          zerolog.Logger
}

// NewConsumers 创建消费者集合
func NewConsumers(ingest *IngestProcessor, match *MatchProcessor, objects ObjectStore, mq QueueConsumer, cfg *config.RabbitMQConfig) *Consumers {
	return &Consumers{
		ingest:  ingest,
		match:   match,
		objects: objects,
		mq:      mq,
		cfg:     cfg,
		log:     logger.Logger.With().Str("component", "consumers").Logger(),
	}
}

// Start 声明交换机和队列拓扑并启动全部消费者
func (c *Consumers) Start(ctx context.Context) error {
	if err := c.declareTopology(); err != nil {
		return err
	}

	prefetch := c.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 10
	}

	stopResume, err := c.mq.StartConsumer(c.cfg.RawResumeQueue, prefetch, func(body []byte) bool {
		return c.handleResumeUploaded(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("启动简历消费者失败: %w", err)
	}
	c.stopChannels = append(c.stopChannels, stopResume)

	stopMatch, err := c.mq.StartConsumer(c.cfg.JobMatchingQueue, prefetch, func(body []byte) bool {
		return c.handleMatchNeeded(ctx, body)
	})
	if err != nil {
		c.Stop()
		return fmt.Errorf("启动匹配消费者失败: %w", err)
	}
	c.stopChannels = append(c.stopChannels, stopMatch)

	return nil
}

// Stop 停止所有消费者
func (c *Consumers) Stop() {
	for _, stopCh := range c.stopChannels {
		close(stopCh)
	}
	c.stopChannels = nil
}

func (c *Consumers) declareTopology() error {
	if err := c.mq.EnsureExchange(c.cfg.ResumeEventsExchange, "direct", true); err != nil {
		return err
	}
	if err := c.mq.EnsureQueue(c.cfg.RawResumeQueue, true); err != nil {
		return err
	}
	if err := c.mq.BindQueue(c.cfg.RawResumeQueue, c.cfg.ResumeEventsExchange, c.cfg.UploadedRoutingKey); err != nil {
		return err
	}

	if err := c.mq.EnsureExchange(c.cfg.MatchEventsExchange, "direct", true); err != nil {
		return err
	}
	if err := c.mq.EnsureQueue(c.cfg.JobMatchingQueue, true); err != nil {
		return err
	}
	return c.mq.BindQueue(c.cfg.JobMatchingQueue, c.cfg.MatchEventsExchange, c.cfg.MatchNeededRoutingKey)
}

// handleResumeUploaded 处理简历上传事件：从对象存储取回文件并走完整入库流程
// 返回false表示重新入队，只用于可重试的临时故障
func (c *Consumers) handleResumeUploaded(ctx context.Context, body []byte) bool {
	var msg storage.ResumeUploadedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 格式错误的消息重试也不会成功，直接丢弃
		c.log.Error().Err(err).Str("body", string(body)).Msg("简历上传消息格式错误")
		return true
	}

	if c.objects == nil {
		c.log.Error().Str("candidate_id", msg.CandidateID).Msg("对象存储未配置，无法处理简历消息")
		return true
	}

	data, err := c.objects.GetOriginalFile(ctx, msg.OriginalFilePathOSS)
	if err != nil {
		c.log.Warn().Err(err).
			Str("candidate_id", msg.CandidateID).
			Str("path", msg.OriginalFilePathOSS).
			Msg("获取原始文件失败，消息重新入队")
		return false
	}

	result, err := c.ingest.ProcessResume(ctx, IngestInput{
		CandidateID: msg.CandidateID,
		Filename:    msg.OriginalFilename,
		Reader:      bytes.NewReader(data),
		Size:        int64(len(data)),
		TargetJobID: msg.TargetJobID,
	})
	if err != nil {
		// 处理失败已落库为FAILED状态，重试无意义
		c.log.Error().Err(err).Str("candidate_id", msg.CandidateID).Msg("简历处理失败")
		return true
	}

	c.log.Info().
		Str("candidate_id", result.CandidateID).
		Bool("duplicate", result.Duplicate).
		Int("chunks", result.ChunkCount).
		Msg("简历消息处理完成")
	return true
}

// handleMatchNeeded 处理岗位匹配事件
func (c *Consumers) handleMatchNeeded(ctx context.Context, body []byte) bool {
	var msg storage.MatchNeededMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Error().Err(err).Str("body", string(body)).Msg("匹配消息格式错误")
		return true
	}
	if msg.JobID == "" {
		c.log.Error().Msg("匹配消息缺少岗位标识")
		return true
	}

	if _, err := c.match.RunMatch(ctx, msg.JobID); err != nil {
		c.log.Warn().Err(err).Str("job_id", msg.JobID).Msg("岗位匹配失败，消息重新入队")
		return false
	}
	return true
}
