package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"smart-hire-go/internal/api/handler"
	"smart-hire-go/internal/api/router"
	"smart-hire-go/internal/config"
	"smart-hire-go/internal/index"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/matcher"
	"smart-hire-go/internal/parser"
	"smart-hire-go/internal/processor"
	"smart-hire-go/internal/qa"
	"smart-hire-go/internal/storage"
	"smart-hire-go/internal/tracing"
	"smart-hire-go/pkg/ratelimit"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "smart-hire" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(cfg.Logger)
	glog.SetLogger(hertzadapter.From(logger.Logger))
	logger.Info().Str("version", version).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, serviceName, version, cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化链路追踪失败，继续以无追踪模式运行")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	// 嵌入器：限流代理包装，缺少API密钥时为nil，语义分项降级为0
	var embedder embedding.Embedder
	if cfg.Embedding.APIKey != "" {
		aliyunEmbedder, err := parser.NewAliyunEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化嵌入器失败")
		}
		qpm := cfg.GetQPMForModel(cfg.Embedding.Model, cfg.Embedding.QPM)
		embedder = ratelimit.NewEmbedderProxy(aliyunEmbedder, qpm)
		logger.Info().Str("model", cfg.Embedding.Model).Int("qpm", qpm).Msg("嵌入器初始化成功")
	} else {
		logger.Warn().Msg("未配置嵌入API密钥，语义检索和语义打分不可用")
	}

	// 生成模型：问答用，缺少API密钥时问答接口返回错误
	var chatModel model.ToolCallingChatModel
	if cfg.LLM.APIKey != "" {
		aliyunChatModel, err := parser.NewAliyunChatModel(cfg.LLM.APIKey, cfg.LLM)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化生成模型失败")
		}
		chatModel = ratelimit.WrapChatModel(aliyunChatModel, cfg.LLM.Model, cfg.ModelQPMLimits,
			cfg.LLM.QPM, cfg.LLM.MaxRetries, time.Duration(cfg.LLM.RetryWaitSeconds)*time.Second)
		logger.Info().Str("model", cfg.LLM.Model).Msg("生成模型初始化成功")
	} else {
		logger.Warn().Msg("未配置生成模型API密钥，问答功能不可用")
	}

	// 文本提取：PDF走eino解析器，DOCX等走Tika（如已配置）
	pdfExtractor, err := parser.NewEinoPDFExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建PDF提取器失败")
	}
	var tikaExtractor parser.TextExtractor
	if cfg.Tika.ServerURL != "" {
		var tikaOptions []parser.TikaOption
		if cfg.Tika.Timeout > 0 {
			tikaOptions = append(tikaOptions, parser.WithTikaTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		tikaExtractor = parser.NewTikaExtractor(cfg.Tika.ServerURL, tikaOptions...)
		logger.Info().Str("server", cfg.Tika.ServerURL).Msg("Tika提取器初始化成功")
	}
	extractor := parser.NewCompositeExtractor(pdfExtractor, tikaExtractor)

	chunker := parser.NewChunker(
		parser.WithChunkSize(cfg.Chunking.Size),
		parser.WithChunkOverlap(cfg.Chunking.Overlap),
	)

	// 向量索引：启动时从磁盘恢复，退出时持久化
	flatIndex := index.NewFlatIndex(embedder, index.WithDimension(cfg.Index.Dimension))
	if err := flatIndex.Load(ctx, cfg.Index.Dir); err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("dir", cfg.Index.Dir).Msg("索引文件不存在，从空索引启动")
		} else {
			logger.Warn().Err(err).Str("dir", cfg.Index.Dir).Msg("加载索引失败，从空索引启动")
		}
	} else {
		logger.Info().Int("chunks", flatIndex.Count()).Msg("向量索引加载成功")
	}
	defer func() {
		persistCtx, cancelPersist := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelPersist()
		if err := flatIndex.Persist(persistCtx, cfg.Index.Dir); err != nil {
			logger.Error().Err(err).Msg("持久化向量索引失败")
		} else {
			logger.Info().Int("chunks", flatIndex.Count()).Msg("向量索引已持久化")
		}
	}()

	scorer, err := matcher.NewScorer(
		matcher.WithWeights(matcher.WeightsFromConfig(cfg.Matcher.Weights)),
		matcher.WithThresholds(cfg.Matcher.SkillThreshold, cfg.Matcher.ExperienceThreshold),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化打分器失败")
	}
	rankerOptions := []matcher.RankerOption{matcher.WithTopK(cfg.Matcher.TopK)}
	if storageManager.Redis != nil {
		rankerOptions = append(rankerOptions, matcher.WithVectorCache(storageManager.Redis))
	}
	ranker := matcher.NewRanker(scorer, embedder, rankerOptions...)

	ingestOptions := []processor.IngestOption{}
	if storageManager.Redis != nil {
		ingestOptions = append(ingestOptions, processor.WithDedupStore(storageManager.Redis))
	}
	if storageManager.MinIO != nil {
		ingestOptions = append(ingestOptions, processor.WithObjectStore(storageManager.MinIO))
	}
	if storageManager.MySQL != nil {
		ingestOptions = append(ingestOptions, processor.WithCandidateStore(storageManager.MySQL))
	}
	if storageManager.RabbitMQ != nil {
		ingestOptions = append(ingestOptions, processor.WithEventPublisher(storageManager.RabbitMQ, &cfg.RabbitMQ))
	}
	ingestProcessor := processor.NewIngestProcessor(extractor, chunker, flatIndex, ingestOptions...)

	var matchProcessor *processor.MatchProcessor
	if storageManager.MySQL != nil {
		matchProcessor = processor.NewMatchProcessor(storageManager.MySQL, ranker,
			processor.WithMatchTopK(cfg.Matcher.TopK))
	}

	if storageManager.RabbitMQ != nil && storageManager.MySQL != nil {
		var objectStore processor.ObjectStore
		if storageManager.MinIO != nil {
			objectStore = storageManager.MinIO
		}
		consumers := processor.NewConsumers(ingestProcessor, matchProcessor,
			objectStore, storageManager.RabbitMQ, &cfg.RabbitMQ)
		if err := consumers.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("启动消费者失败")
		}
		defer consumers.Stop()
		logger.Info().Msg("后台消费者已启动")
	}

	answerer := qa.NewAnswerer(chatModel, flatIndex, qa.WithRetrievalTopK(cfg.Index.RetrievalTopK))

	uploadHandler := handler.NewUploadHandler(cfg, storageManager, ingestProcessor)
	var scoreReader handler.MatchScoreReader
	if storageManager.MySQL != nil {
		scoreReader = storageManager.MySQL
	}
	jobHandler := handler.NewJobHandler(ingestProcessor, matchProcessor, scoreReader)
	qaHandler := handler.NewQAHandler(answerer)

	h := router.NewServer(cfg)
	router.RegisterRoutes(h, cfg, uploadHandler, jobHandler, qaHandler)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP路由注册成功")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}
