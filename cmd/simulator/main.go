package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
	"github.com/charging-platform/charge-station-simulator/internal/message"
	"github.com/charging-platform/charge-station-simulator/internal/simulator"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
)

func main() {
	// 1. 加载配置，配置错误以退出码2区别于运行期故障
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	// 2. 初始化日志
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Caller: cfg.Log.Caller,
		Async:  cfg.Log.Async,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Infof("%s %s starting: profile=%s", cfg.App.Name, cfg.App.Version, cfg.App.Profile)

	// 3. 初始化快照存储
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Infof("Storage initialized: type=%s", cfg.Storage.Type)

	// 4. 初始化 Kafka 生产者，未配置 brokers 时事件不导出
	var producer message.EventProducer
	if cfg.KafkaEnabled() {
		producer, err = message.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka producer: %v", err)
		}
		log.Infof("Kafka producer initialized: brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		log.Info("Kafka export disabled")
	}

	// 5. 装配模拟器，模板问题同属配置错误
	sim, err := simulator.New(cfg, log, store, producer)
	if err != nil {
		log.Errorf("Failed to build simulator: %v", err)
		os.Exit(2)
	}

	// 6. 启动监控服务
	go startMetricsServer(cfg.GetMetricsAddr(), log)
	go startHealthServer(cfg.GetHealthCheckAddr(), sim, log)

	// 7. 启动车队
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sim.Start(ctx); err != nil {
		log.Fatalf("Failed to start simulator: %v", err)
	}
	log.Info("Charge station simulator started successfully")

	// 8. 监听并处理优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down simulator...")

	// 9. 按顺序执行清理操作
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sim.Stop(shutdownCtx); err != nil {
		log.Errorf("Error stopping simulator: %v", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("Error closing Kafka producer: %v", err)
		}
		log.Info("Kafka producer closed")
	}

	if err := store.Close(); err != nil {
		log.Errorf("Error closing storage: %v", err)
	}
	log.Info("Storage closed")

	log.Info("Simulator gracefully stopped.")
}

// startMetricsServer 启动Prometheus指标服务
func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Metrics server failed: %v", err)
	}
}

// startHealthServer 启动健康检查服务，输出车队运行计数
func startHealthServer(addr string, sim *simulator.Simulator, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"stations": sim.StationCount(),
			"worker":   sim.Stats(),
		})
	})
	log.Infof("Health check server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Health check server failed: %v", err)
	}
}
