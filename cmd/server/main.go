// Package main 是应用程序的入口点。
package main

import (
	"context"
	"doc-qa-go/internal/chunker"
	"doc-qa-go/internal/config"
	"doc-qa-go/internal/handler"
	"doc-qa-go/internal/loader"
	"doc-qa-go/internal/middleware"
	"doc-qa-go/internal/pipeline"
	"doc-qa-go/internal/service"
	"doc-qa-go/pkg/embedding"
	"doc-qa-go/pkg/es"
	"doc-qa-go/pkg/llm"
	"doc-qa-go/pkg/log"
	"doc-qa-go/pkg/tika"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. 加载并校验配置（缺失必填项时在此处失败，而不是首次调用下游时）
	configPath := os.Getenv("DOCQA_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化向量索引客户端并确保索引存在
	store, err := es.NewStore(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal("初始化 Elasticsearch 客户端失败", err)
	}
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()
	if err := store.EnsureIndex(bootCtx); err != nil {
		log.Fatal("初始化向量索引失败", err)
	}

	// 4. 初始化外部服务客户端
	tikaClient := tika.NewClient(cfg.Tika.ServerURL)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	// 5. 组装入库流水线与问答服务（依赖注入，便于测试替换）
	docLoader := loader.NewTikaLoader(tikaClient)
	splitter := chunker.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	processor := pipeline.NewProcessor(docLoader, splitter, embeddingClient, store, pipeline.Options{
		Namespace:    cfg.Elasticsearch.Namespace,
		ModelVersion: cfg.Embedding.Model,
		TempDir:      cfg.Ingest.TempDir,
	})
	retrievalService := service.NewRetrievalService(embeddingClient, store, cfg.Elasticsearch.Namespace, cfg.Query.TopK, cfg.Query.FallbackTopK)
	answerService := service.NewAnswerService(retrievalService, llmClient, cfg.LLM.Prompt)

	// 6. HTTP 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		log.Fatal("注册 HTTP 指标失败", err)
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(), metrics.Handler(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		qa := apiV1.Group("/qa")
		{
			qa.POST("/ask", handler.NewQAHandler(answerService).Ask)
			qa.POST("/upload", handler.NewUploadHandler(processor).Upload)
			qa.GET("/stats", handler.NewStatsHandler(store, cfg.Elasticsearch.Namespace).Stats)
		}
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
