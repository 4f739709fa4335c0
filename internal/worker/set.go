package worker

import (
	"context"
	"sync"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
)

// workerSet 元素按固定大小分组，每组一个监护协程。
// 组内元素各自运行在子协程中，监护协程负责收割。
type workerSet struct {
	core
	perWorker int

	setMu   sync.Mutex
	sets    int
	current chan Element
	slots   int
}

func newWorkerSet(cfg config.WorkerConfig, log *logger.Logger) *workerSet {
	perWorker := cfg.ElementsPerWorker
	if perWorker < 1 {
		perWorker = 1
	}
	return &workerSet{
		core:      newCore(cfg, log),
		perWorker: perWorker,
	}
}

func (h *workerSet) Start(ctx context.Context) error {
	if err := h.begin(ctx); err != nil {
		return err
	}
	h.log.Infof("Worker set host started: elementsPerWorker=%d addDelay=%s", h.perWorker, h.addDelay)
	return nil
}

func (h *workerSet) Add(el Element) error {
	if err := h.admit(el); err != nil {
		return err
	}

	h.setMu.Lock()
	if h.current == nil || h.slots == 0 {
		h.sets++
		h.current = make(chan Element, h.perWorker)
		h.slots = h.perWorker
		h.wg.Add(1)
		go h.supervise(h.sets, h.current)
	}
	h.current <- el
	h.slots--
	h.setMu.Unlock()
	return nil
}

// supervise 接收本组元素并为其启动运行协程，宿主停机时等全组退出
func (h *workerSet) supervise(id int, ch <-chan Element) {
	defer h.wg.Done()
	var ewg sync.WaitGroup
	defer ewg.Wait()

	h.log.Debugf("Worker set supervisor started: set=%d", id)
	for {
		select {
		case <-h.ctx.Done():
			return
		case el := <-ch:
			ewg.Add(1)
			go func(el Element) {
				defer ewg.Done()
				h.runElement(el)
			}(el)
		}
	}
}

func (h *workerSet) Stop(ctx context.Context) error {
	err := h.drain(ctx)
	h.log.Infof("Worker set host stopped: sets=%d added=%d failed=%d",
		h.workerCount(), h.added.Load(), h.failed.Load())
	return err
}

func (h *workerSet) workerCount() int {
	h.setMu.Lock()
	defer h.setMu.Unlock()
	return h.sets
}

func (h *workerSet) Stats() Stats {
	return h.snapshot(h.workerCount())
}
