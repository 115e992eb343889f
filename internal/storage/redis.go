package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/logger"
)

// Redis 键值存储，承担去重集合和向量缓存
type Redis struct {
	Client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端并注册追踪钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis地址不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 %s: %w", cfg.Address, err)
	}

	logger.Info().Str("address", cfg.Address).Msg("Redis连接成功")
	return &Redis{Client: client, cfg: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// md5Expire 去重记录的过期时间
func (r *Redis) md5Expire() time.Duration {
	days := r.cfg.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndRecordTextMD5 将解析文本的MD5写入去重集合
// 返回true表示首次出现，false表示重复内容
func (r *Redis) CheckAndRecordTextMD5(ctx context.Context, md5Hex string) (bool, error) {
	added, err := r.Client.SAdd(ctx, constants.KeyParsedTextMD5Set, md5Hex).Result()
	if err != nil {
		return false, fmt.Errorf("写入文本MD5去重集合失败: %w", err)
	}
	// 集合整体续期，避免无限增长
	r.Client.Expire(ctx, constants.KeyParsedTextMD5Set, r.md5Expire())
	return added == 1, nil
}

// CheckAndRecordFileMD5 将原始文件的MD5写入去重集合
func (r *Redis) CheckAndRecordFileMD5(ctx context.Context, md5Hex string) (bool, error) {
	added, err := r.Client.SAdd(ctx, constants.KeyRawFileMD5Set, md5Hex).Result()
	if err != nil {
		return false, fmt.Errorf("写入文件MD5去重集合失败: %w", err)
	}
	r.Client.Expire(ctx, constants.KeyRawFileMD5Set, r.md5Expire())
	return added == 1, nil
}

// SetJobVector 缓存岗位描述的向量，避免每次排名都重新嵌入
func (r *Redis) SetJobVector(ctx context.Context, jobID string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化岗位向量失败: %w", err)
	}

	hours := r.cfg.JobVectorExpireHours
	if hours <= 0 {
		hours = 24
	}

	key := constants.KeyJobVectorPrefix + ":" + jobID
	if err := r.Client.Set(ctx, key, data, time.Duration(hours)*time.Hour).Err(); err != nil {
		return fmt.Errorf("缓存岗位向量失败: %w", err)
	}
	return nil
}

// GetJobVector 读取缓存的岗位向量；未命中返回(nil, nil)
func (r *Redis) GetJobVector(ctx context.Context, jobID string) ([]float64, error) {
	key := constants.KeyJobVectorPrefix + ":" + jobID
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取岗位向量缓存失败: %w", err)
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("解析岗位向量缓存失败: %w", err)
	}
	return vector, nil
}
