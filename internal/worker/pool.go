package worker

import (
	"context"
	"sync"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
)

// poolQueueCapacity 固定池的元素队列长度，放不下时Add阻塞
const poolQueueCapacity = 1024

// fixedPool 固定数量的工作协程消费同一条元素队列。
// 池大小即同时运行元素数的上限，排队的元素等空位。
type fixedPool struct {
	core
	size  int
	queue chan Element
}

func newFixedPool(cfg config.WorkerConfig, log *logger.Logger) *fixedPool {
	size := cfg.PoolMaxSize
	if size < 1 {
		size = 1
	}
	return &fixedPool{
		core:  newCore(cfg, log),
		size:  size,
		queue: make(chan Element, poolQueueCapacity),
	}
}

func (h *fixedPool) Start(ctx context.Context) error {
	if err := h.begin(ctx); err != nil {
		return err
	}
	for i := 1; i <= h.size; i++ {
		h.wg.Add(1)
		go h.work(i)
	}
	h.log.Infof("Fixed pool host started: workers=%d addDelay=%s", h.size, h.addDelay)
	return nil
}

func (h *fixedPool) Add(el Element) error {
	if err := h.admit(el); err != nil {
		return err
	}
	select {
	case h.queue <- el:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

func (h *fixedPool) work(id int) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case el := <-h.queue:
			h.runElement(el)
		}
	}
}

func (h *fixedPool) Stop(ctx context.Context) error {
	err := h.drain(ctx)
	h.log.Infof("Fixed pool host stopped: workers=%d added=%d failed=%d",
		h.size, h.added.Load(), h.failed.Load())
	return err
}

func (h *fixedPool) Stats() Stats {
	return h.snapshot(h.size)
}

// dynamicPool 在最小与最大规模之间伸缩的池。
// 没有空闲工作协程时增挂临时协程，空闲超时后收缩回最小规模。
type dynamicPool struct {
	core
	min         int
	max         int
	idleTimeout time.Duration
	queue       chan Element

	workerMu sync.Mutex
	workers  int
}

func newDynamicPool(cfg config.WorkerConfig, log *logger.Logger) *dynamicPool {
	max := cfg.PoolMaxSize
	if max < 1 {
		max = 1
	}
	min := cfg.PoolMinSize
	if min > max {
		min = max
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = time.Minute
	}
	return &dynamicPool{
		core:        newCore(cfg, log),
		min:         min,
		max:         max,
		idleTimeout: idle,
		// 无缓冲：投放成功即有协程接手，否则触发扩容
		queue: make(chan Element),
	}
}

func (h *dynamicPool) Start(ctx context.Context) error {
	if err := h.begin(ctx); err != nil {
		return err
	}
	h.workerMu.Lock()
	for i := 0; i < h.min; i++ {
		h.workers++
		h.wg.Add(1)
		go h.work(true)
	}
	h.workerMu.Unlock()
	h.log.Infof("Dynamic pool host started: min=%d max=%d idleTimeout=%s addDelay=%s",
		h.min, h.max, h.idleTimeout, h.addDelay)
	return nil
}

func (h *dynamicPool) Add(el Element) error {
	if err := h.admit(el); err != nil {
		return err
	}

	select {
	case h.queue <- el:
		return nil
	default:
	}

	// 没有空闲协程，尚有余量则扩容后再投放
	h.grow()
	select {
	case h.queue <- el:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// grow 在上限内增挂一个会因空闲退出的临时工作协程
func (h *dynamicPool) grow() {
	h.workerMu.Lock()
	defer h.workerMu.Unlock()
	if h.workers >= h.max {
		return
	}
	h.workers++
	h.wg.Add(1)
	go h.work(false)
}

func (h *dynamicPool) work(permanent bool) {
	defer h.wg.Done()
	defer func() {
		h.workerMu.Lock()
		h.workers--
		h.workerMu.Unlock()
	}()

	if permanent {
		for {
			select {
			case <-h.ctx.Done():
				return
			case el := <-h.queue:
				h.runElement(el)
			}
		}
	}

	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case el := <-h.queue:
			h.runElement(el)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(h.idleTimeout)
		case <-idle.C:
			return
		}
	}
}

func (h *dynamicPool) Stop(ctx context.Context) error {
	err := h.drain(ctx)
	h.log.Infof("Dynamic pool host stopped: added=%d failed=%d", h.added.Load(), h.failed.Load())
	return err
}

func (h *dynamicPool) Stats() Stats {
	h.workerMu.Lock()
	n := h.workers
	h.workerMu.Unlock()
	return h.snapshot(n)
}
