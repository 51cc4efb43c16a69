package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"signsense-server-go/src/chat"
	"signsense-server-go/src/configs"
	"signsense-server-go/src/core/image"
	"signsense-server-go/src/core/metrics"
	"signsense-server-go/src/core/middleware"
	"signsense-server-go/src/core/providers/llm"
	"signsense-server-go/src/core/providers/predictor"
	"signsense-server-go/src/core/utils"
	"signsense-server-go/src/health"
	"signsense-server-go/src/letter"
	"signsense-server-go/src/sequence"

	// 导入所有providers以确保init函数被调用
	_ "signsense-server-go/src/core/providers/llm/ollama"
	_ "signsense-server-go/src/core/providers/llm/openai"
	_ "signsense-server-go/src/core/providers/predictor/ollama"
	_ "signsense-server-go/src/core/providers/predictor/openai"
	_ "signsense-server-go/src/core/providers/predictor/remote"
	_ "signsense-server-go/src/core/providers/predictor/static"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// HTTPService 所有 HTTP 服务的公共形态
type HTTPService interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 先加载 .env，配置文件中的 ${VAR} 依赖它
	envErr := godotenv.Load()

	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))
	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	return config, logger, nil
}

// buildPredictor 按 selected_module 中的名称创建预测器
func buildPredictor(config *configs.Config, module string, logger *utils.Logger) (predictor.Provider, error) {
	name := config.SelectedModule[module]
	cfg, ok := config.Predictor[name]
	if !ok {
		return nil, fmt.Errorf("%s 选择的预测器 %q 未配置", module, name)
	}
	p, err := predictor.Create(name, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("%s 预测器已就绪: %s (%s)", module, name, cfg.Type))
	return predictor.WithMetrics(name, p), nil
}

// buildServices 创建全部 HTTP 服务，未选择 LLM 时不注册 /chat
func buildServices(config *configs.Config, logger *utils.Logger) ([]HTTPService, func(), error) {
	var cleanups []func() error
	cleanup := func() {
		for _, fn := range cleanups {
			if err := fn(); err != nil {
				logger.Warn("资源清理失败", err)
			}
		}
	}

	sequencePredictor, err := buildPredictor(config, "Predictor", logger)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, sequencePredictor.Cleanup)

	letterPredictor, err := buildPredictor(config, "Letter", logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	cleanups = append(cleanups, letterPredictor.Cleanup)

	decoder := image.NewDecoder(&config.Sequence, logger)
	maxRequestSize := config.Sequence.MaxRequestSize

	services := []HTTPService{
		health.NewDefaultHealthService(logger),
		sequence.NewDefaultSequenceService(sequence.NewService(decoder, sequencePredictor, logger), maxRequestSize, logger),
		letter.NewDefaultLetterService(sequence.NewService(decoder, letterPredictor, logger), maxRequestSize, logger),
	}

	if name := config.SelectedModule["LLM"]; name != "" {
		llmConfig, ok := config.LLM[name]
		if !ok {
			cleanup()
			return nil, func() {}, fmt.Errorf("选择的LLM %q 未配置", name)
		}
		provider, err := llm.Create(llmConfig)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		cleanups = append(cleanups, provider.Cleanup)
		services = append(services, chat.NewDefaultChatService(provider, llmConfig.SystemPrompt, logger))
		logger.Info(fmt.Sprintf("LLM 已就绪: %s (%s)", name, llmConfig.Type))
	} else {
		logger.Warn("未选择LLM，/chat 接口不可用")
	}

	return services, cleanup, nil
}

// NewRouter 组装中间件与路由
func NewRouter(ctx context.Context, config *configs.Config, logger *utils.Logger, services []HTTPService) (*gin.Engine, error) {
	router := gin.New()
	router.SetTrustedProxies(nil)
	router.MaxMultipartMemory = config.Sequence.MaxRequestSize

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.CORS(config.Web.CORS))

	if config.Metrics.Enabled {
		router.GET(config.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")
	for _, service := range services {
		if err := service.Start(ctx, router, apiGroup); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, services []HTTPService, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := NewRouter(groupCtx, config, logger, services)
	if err != nil {
		logger.Error("HTTP 路由注册失败", err)
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:              config.Server.IP + ":" + strconv.Itoa(config.Web.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s:%d", displayHost(config.Server.IP), config.Web.Port))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			// 创建关闭超时上下文
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func displayHost(ip string) string {
	if ip == "" {
		return "0.0.0.0"
	}
	return ip
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	// 等待信号，或服务自行退出（例如端口被占用）
	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case err := <-done:
		if err != nil {
			logger.Error("服务异常退出", err)
			os.Exit(1)
		}
		return
	}

	// 取消上下文，通知所有服务开始关闭
	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", err)
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func main() {
	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()

	services, cleanup, err := buildServices(config, logger)
	if err != nil {
		logger.Error("初始化服务失败", err)
		os.Exit(1)
	}
	defer cleanup()

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(config, logger, services, g, groupCtx); err != nil {
		logger.Error("启动 Http 服务失败", err)
		cancel()
		os.Exit(1)
	}

	// 启动优雅关机处理
	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
