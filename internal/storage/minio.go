package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/logger"
)

// MinIO 对象存储：原始简历文件和解析文本分桶存放
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	log            zerolog.Logger
}

// NewMinIO 创建客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "resume-originals"
	}
	parsedBucket := cfg.ParsedTextBucket
	if parsedBucket == "" {
		parsedBucket = "resume-parsed-text"
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: originalBucket,
		parsedBucket:   parsedBucket,
		log:            logger.Logger.With().Str("component", "minio").Logger(),
	}

	if err := m.ensureBucketExists(originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始文件存储桶 %s 存在失败: %w", originalBucket, err)
	}
	if err := m.ensureBucketExists(parsedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保解析文本存储桶 %s 存在失败: %w", parsedBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 || cfg.ParsedTextExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			m.log.Warn().Err(err).Msg("设置对象生命周期规则失败")
		}
	}

	m.log.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO客户端初始化成功")
	return m, nil
}

// ensureBucketExists 不存在时创建存储桶
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.log.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	}
	return nil
}

// setupLifecycleRules 配置按天过期的生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.OriginalFileExpireDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:         "expire-originals",
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(m.cfg.OriginalFileExpireDays)},
		}}
		if err := m.client.SetBucketLifecycle(ctx, m.originalBucket, lc); err != nil {
			return fmt.Errorf("设置原始文件桶生命周期失败: %w", err)
		}
	}

	if m.cfg.ParsedTextExpireDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:         "expire-parsed-text",
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(m.cfg.ParsedTextExpireDays)},
		}}
		if err := m.client.SetBucketLifecycle(ctx, m.parsedBucket, lc); err != nil {
			return fmt.Errorf("设置解析文本桶生命周期失败: %w", err)
		}
	}

	return nil
}

// UploadOriginalFile 流式上传原始简历文件，同时计算MD5
// 返回对象路径和内容MD5
func (m *MinIO) UploadOriginalFile(ctx context.Context, candidateID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	if !strings.HasPrefix(fileExt, ".") {
		fileExt = "." + fileExt
	}
	objectName := fmt.Sprintf("%s/original%s", candidateID, fileExt)

	hasher := md5.New()
	teeReader := io.TeeReader(reader, hasher)

	_, err := m.client.PutObject(ctx, m.originalBucket, objectName, teeReader, fileSize, minio.PutObjectOptions{
		ContentType: contentTypeForExt(fileExt),
	})
	if err != nil {
		return "", "", fmt.Errorf("上传原始文件失败: %w", err)
	}

	md5Hex := hex.EncodeToString(hasher.Sum(nil))
	m.log.Debug().Str("object", objectName).Str("md5", md5Hex).Msg("原始文件上传完成")
	return objectName, md5Hex, nil
}

// UploadParsedText 上传解析后的纯文本
func (m *MinIO) UploadParsedText(ctx context.Context, candidateID string, text string) (string, error) {
	objectName := fmt.Sprintf("%s/parsed.txt", candidateID)

	reader := bytes.NewReader([]byte(text))
	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("上传解析文本失败: %w", err)
	}
	return objectName, nil
}

// GetOriginalFile 下载原始文件内容
func (m *MinIO) GetOriginalFile(ctx context.Context, objectName string) ([]byte, error) {
	return m.downloadObject(ctx, m.originalBucket, objectName)
}

// GetParsedText 下载解析文本
func (m *MinIO) GetParsedText(ctx context.Context, objectName string) (string, error) {
	data, err := m.downloadObject(ctx, m.parsedBucket, objectName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetPresignedURL 生成原始文件的预签名下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// DeleteOriginalFile 删除原始文件
func (m *MinIO) DeleteOriginalFile(ctx context.Context, objectName string) error {
	return m.client.RemoveObject(ctx, m.originalBucket, objectName, minio.RemoveObjectOptions{})
}

func (m *MinIO) downloadObject(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	return data, nil
}

// contentTypeForExt 按扩展名推断内容类型
func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt", ".md":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
