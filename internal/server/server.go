package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/config"
	"ordersync/internal/pipeline"
	"ordersync/internal/store"
)

// SyncFunc 触发一次完整同步；服务器保证同一时刻最多一次在跑
type SyncFunc func(ctx context.Context) (*pipeline.Result, error)

// Server 远端控制 HTTP 服务：触发同步、查询状态、代答流水线提问
type Server struct {
	router  *gin.Engine
	cfg     *config.AppConfig
	queue   *channel.Queue
	runLog  *store.RunLog
	syncFn  SyncFunc
	log     *zap.Logger
	running atomic.Bool
}

// New 创建服务器
func New(cfg *config.AppConfig, queue *channel.Queue, runLog *store.RunLog, syncFn SyncFunc, log *zap.Logger) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		router: gin.New(),
		cfg:    cfg,
		queue:  queue,
		runLog: runLog,
		syncFn: syncFn,
		log:    log,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/", s.authMiddleware())
	{
		api.GET("/status", s.handleStatus)
		api.POST("/trigger", s.handleTrigger)
		api.GET("/logs", s.handleLogs)
		api.GET("/prompts", s.handlePrompts)
		api.POST("/prompts/:id/reply", s.handleReply)
		api.GET("/notices", s.handleNotices)
	}
}

// authMiddleware Bearer 令牌鉴权；未配置 api_key 时放行
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := s.cfg.Server.APIKey
		if key == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"running": s.running.Load()}
	if s.runLog != nil {
		latest, err := s.runLog.Latest()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if latest != nil {
			resp["last_run"] = latest
		}
	}
	resp["pending_prompts"] = len(s.queue.Pending())
	c.JSON(http.StatusOK, resp)
}

// handleTrigger 异步触发一次同步；已有运行中的同步时返回 409
func (s *Server) handleTrigger(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync is already running"})
		return
	}
	go func() {
		defer s.running.Store(false)
		result, err := s.syncFn(context.Background())
		if err != nil {
			s.log.Error("同步运行失败", zap.Error(err))
			return
		}
		s.log.Info("同步运行结束",
			zap.String("run_id", result.RunID),
			zap.Int("appended", result.Summary.Appended),
			zap.Int("replaced", result.Summary.Replaced),
			zap.Int("skipped", result.Summary.Skipped))
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) handleLogs(c *gin.Context) {
	if s.runLog == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []store.RunRecord{}})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	runs, err := s.runLog.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handlePrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": s.queue.Pending()})
}

type replyRequest struct {
	Reply string `json:"reply" binding:"required"`
}

// handleReply 代答一个待答提问；提问已超时或已被回答时返回 404
func (s *Server) handleReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.queue.Reply(c.Param("id"), req.Reply) {
		c.JSON(http.StatusNotFound, gin.H{"error": "prompt not found or already answered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (s *Server) handleNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": s.queue.Notices()})
}

// Router 暴露路由（测试用）
func (s *Server) Router() http.Handler {
	return s.router
}

// Run 启动监听
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info("HTTP 服务已启动", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}
