package router

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"smart-hire-go/internal/api/handler"
	"smart-hire-go/internal/config"
)

// NewServer 创建Hertz服务器，启用链路追踪时挂载otel中间件
func NewServer(cfg *config.Config) *server.Hertz {
	if cfg.Tracing.Enabled {
		tracer, tracerCfg := hertztracing.NewServerTracer()
		h := server.New(
			tracer,
			server.WithHostPorts(cfg.Server.Address),
			server.WithHandleMethodNotAllowed(true),
		)
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
		return h
	}

	return server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
}

// RegisterRoutes 注册API路由
// 配置了api_keys时，/api/v1下的所有路由都要求Bearer密钥；健康检查始终开放
func RegisterRoutes(h *server.Hertz, cfg *config.Config,
	uploadHandler *handler.UploadHandler,
	jobHandler *handler.JobHandler,
	qaHandler *handler.QAHandler) {

	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")

	if len(cfg.Server.APIKeys) > 0 {
		allowed := make(map[string]bool, len(cfg.Server.APIKeys))
		for _, key := range cfg.Server.APIKeys {
			allowed[key] = true
		}
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return allowed[key], nil
			}),
		))
	}

	api.POST("/resumes/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}

		targetJobID := ctx.PostForm("target_job_id")

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		resp, err := uploadHandler.HandleResumeUpload(c, file, fileHeader.Size, fileHeader.Filename, targetJobID)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/jobs", func(c context.Context, ctx *app.RequestContext) {
		var req handler.JobCreateRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}

		resp, err := jobHandler.HandleCreateJob(c, req)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/jobs/:job_id/rank", func(c context.Context, ctx *app.RequestContext) {
		jobID := ctx.Param("job_id")

		resp, err := jobHandler.HandleRankJob(c, jobID)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/jobs/:job_id/matches", func(c context.Context, ctx *app.RequestContext) {
		jobID := ctx.Param("job_id")
		onlyEligible, _ := strconv.ParseBool(ctx.DefaultQuery("eligible_only", "false"))

		items, err := jobHandler.HandleListMatches(c, jobID, onlyEligible)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"job_id": jobID, "matches": items})
	})

	api.POST("/qa/ask", func(c context.Context, ctx *app.RequestContext) {
		var req handler.AskRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		if req.Question == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "问题不能为空"})
			return
		}

		resp, err := qaHandler.HandleAsk(c, req)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})
}
