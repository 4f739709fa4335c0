package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
	"github.com/charging-platform/charge-station-simulator/internal/metrics"
)

// Element 宿主托管的可运行元素。Run阻塞直到元素停止运行，
// Shutdown请求停机并等待Run退出。
type Element interface {
	// ID 元素标识，日志与统计使用
	ID() string

	// Run 运行元素直到停机或上下文撤销
	Run(ctx context.Context) error

	// Shutdown 请求停机，阻塞直到Run退出或ctx超时
	Shutdown(ctx context.Context) error
}

// Host 元素宿主：按配置的进程模型调度元素运行
type Host interface {
	// Start 启动宿主，之后才能Add
	Start(ctx context.Context) error

	// Add 纳管一个元素。按element_add_delay错峰，可能短暂阻塞。
	Add(element Element) error

	// Stop 停机：并发关停全部元素，等待工作协程退出
	Stop(ctx context.Context) error

	// Stats 当前计数快照
	Stats() Stats
}

// Stats 宿主累计计数
type Stats struct {
	Added   int64 `json:"added"`
	Running int64 `json:"running"`
	Failed  int64 `json:"failed"`
	Workers int   `json:"workers"`
}

// New 按 worker.process_type 创建宿主
func New(cfg config.WorkerConfig, log *logger.Logger) Host {
	log = log.Component("worker")
	switch cfg.ProcessType {
	case "fixedPool":
		return newFixedPool(cfg, log)
	case "dynamicPool":
		return newDynamicPool(cfg, log)
	default:
		return newWorkerSet(cfg, log)
	}
}

var (
	errAlreadyStarted = errors.New("worker host already started")
	errNotRunning     = errors.New("worker host not running")
)

// core 三种宿主共享的生命周期管理、错峰准入与计数
type core struct {
	log      *logger.Logger
	addDelay time.Duration

	mu       sync.Mutex
	started  bool
	draining bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	elements []Element

	added   atomic.Int64
	running atomic.Int64
	failed  atomic.Int64
}

func newCore(cfg config.WorkerConfig, log *logger.Logger) core {
	return core{log: log, addDelay: cfg.ElementAddDelay}
}

func (c *core) begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	return nil
}

// admit 记录元素并执行错峰延迟，用于摊开连接风暴
func (c *core) admit(el Element) error {
	c.mu.Lock()
	if !c.started || c.draining {
		c.mu.Unlock()
		return errNotRunning
	}
	c.elements = append(c.elements, el)
	c.mu.Unlock()

	c.added.Add(1)
	metrics.WorkerElements.WithLabelValues("added").Inc()

	if c.addDelay > 0 {
		select {
		case <-time.After(c.addDelay):
		case <-c.ctx.Done():
		}
	}
	return nil
}

// runElement 运行单个元素：panic只打掉该元素，不拖垮宿主
func (c *core) runElement(el Element) {
	c.running.Add(1)
	metrics.WorkerElements.WithLabelValues("running").Inc()
	defer func() {
		c.running.Add(-1)
		metrics.WorkerElements.WithLabelValues("running").Dec()
		if r := recover(); r != nil {
			c.failed.Add(1)
			metrics.WorkerElements.WithLabelValues("failed").Inc()
			c.log.Errorf("Element panicked: id=%s panic=%v", el.ID(), r)
		}
	}()

	if err := el.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.failed.Add(1)
		metrics.WorkerElements.WithLabelValues("failed").Inc()
		c.log.Errorf("Element failed: id=%s err=%v", el.ID(), err)
	}
}

// drain 停机序列：先并发Shutdown所有元素让其自然退出，
// 再撤销上下文收割工作协程
func (c *core) drain(ctx context.Context) error {
	c.mu.Lock()
	if !c.started || c.draining {
		c.mu.Unlock()
		return nil
	}
	c.draining = true
	elements := make([]Element, len(c.elements))
	copy(elements, c.elements)
	c.mu.Unlock()

	var swg sync.WaitGroup
	for _, el := range elements {
		swg.Add(1)
		go func(el Element) {
			defer swg.Done()
			if err := el.Shutdown(ctx); err != nil {
				c.log.Warnf("Element shutdown incomplete: id=%s err=%v", el.ID(), err)
			}
		}(el)
	}
	swg.Wait()

	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *core) snapshot(workers int) Stats {
	return Stats{
		Added:   c.added.Load(),
		Running: c.running.Load(),
		Failed:  c.failed.Load(),
		Workers: workers,
	}
}
