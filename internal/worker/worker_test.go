package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

// fakeElement 可控的宿主元素：Run阻塞直到被释放或上下文取消
type fakeElement struct {
	id       string
	runs     atomic.Int32
	runErr   error
	panics   bool
	stopped  chan struct{}
	stopOnce sync.Once
}

func newFakeElement(id string) *fakeElement {
	return &fakeElement{id: id, stopped: make(chan struct{})}
}

func (f *fakeElement) ID() string { return f.id }

func (f *fakeElement) Run(ctx context.Context) error {
	f.runs.Add(1)
	if f.panics {
		panic("fake element exploded")
	}
	if f.runErr != nil {
		return f.runErr
	}
	select {
	case <-ctx.Done():
	case <-f.stopped:
	}
	return nil
}

func (f *fakeElement) Shutdown(ctx context.Context) error {
	f.release()
	return nil
}

func (f *fakeElement) release() {
	f.stopOnce.Do(func() { close(f.stopped) })
}

func totalRuns(elements []*fakeElement) int {
	total := 0
	for _, el := range elements {
		total += int(el.runs.Load())
	}
	return total
}

func stopHost(t *testing.T, host Host) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, host.Stop(ctx))
}

func TestNewSelectsProcessType(t *testing.T) {
	log := testLogger(t)
	cfg := config.WorkerConfig{ElementsPerWorker: 2, PoolMinSize: 1, PoolMaxSize: 4}

	tests := []struct {
		name        string
		processType string
		check       func(t *testing.T, host Host)
	}{
		{"fixedPool建固定池", "fixedPool", func(t *testing.T, host Host) {
			_, ok := host.(*fixedPool)
			assert.True(t, ok)
		}},
		{"dynamicPool建弹性池", "dynamicPool", func(t *testing.T, host Host) {
			_, ok := host.(*dynamicPool)
			assert.True(t, ok)
		}},
		{"默认workerSet", "workerSet", func(t *testing.T, host Host) {
			_, ok := host.(*workerSet)
			assert.True(t, ok)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.ProcessType = tt.processType
			tt.check(t, New(cfg, log))
		})
	}
}

func TestWorkerSetRunsAllElements(t *testing.T) {
	host := New(config.WorkerConfig{ProcessType: "workerSet", ElementsPerWorker: 2}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))

	elements := make([]*fakeElement, 5)
	for i := range elements {
		elements[i] = newFakeElement(fmt.Sprintf("CP-%03d", i+1))
		require.NoError(t, host.Add(elements[i]))
	}

	assert.Eventually(t, func() bool {
		return host.Stats().Running == 5
	}, 2*time.Second, 10*time.Millisecond)

	stats := host.Stats()
	assert.Equal(t, int64(5), stats.Added)
	// 每组容纳2个元素，5个元素需要3组监督协程
	assert.Equal(t, 3, stats.Workers)

	stopHost(t, host)

	final := host.Stats()
	assert.Equal(t, int64(0), final.Running)
	assert.Equal(t, int64(0), final.Failed)
	assert.Equal(t, 5, totalRuns(elements))
}

func TestFixedPoolQueuesBeyondCapacity(t *testing.T) {
	host := New(config.WorkerConfig{ProcessType: "fixedPool", PoolMaxSize: 2}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))

	elements := make([]*fakeElement, 4)
	for i := range elements {
		elements[i] = newFakeElement(fmt.Sprintf("CP-%03d", i+1))
		require.NoError(t, host.Add(elements[i]))
	}

	// 固定池只有2个工作协程，后到的元素在队列里等位
	assert.Eventually(t, func() bool {
		return host.Stats().Running == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, totalRuns(elements))
	assert.Equal(t, 2, host.Stats().Workers)
	assert.Equal(t, int64(4), host.Stats().Added)

	// 占位元素退出后队列中的元素补位执行
	for _, el := range elements {
		el.release()
	}
	assert.Eventually(t, func() bool {
		return totalRuns(elements) == 4
	}, 2*time.Second, 10*time.Millisecond)

	stopHost(t, host)
	assert.Equal(t, int64(0), host.Stats().Running)
}

func TestDynamicPoolGrowsAndShrinks(t *testing.T) {
	host := New(config.WorkerConfig{
		ProcessType: "dynamicPool",
		PoolMinSize: 1,
		PoolMaxSize: 3,
		IdleTimeout: 50 * time.Millisecond,
	}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))
	assert.Equal(t, 1, host.Stats().Workers)

	elements := make([]*fakeElement, 3)
	for i := range elements {
		elements[i] = newFakeElement(fmt.Sprintf("CP-%03d", i+1))
		require.NoError(t, host.Add(elements[i]))
	}

	// 常驻协程占满后继续投放会触发扩容，直到上限
	assert.Eventually(t, func() bool {
		return host.Stats().Running == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, host.Stats().Workers)

	// 元素退出后临时协程闲置超时回收，只留常驻协程
	for _, el := range elements {
		el.release()
	}
	assert.Eventually(t, func() bool {
		return host.Stats().Workers == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopHost(t, host)
}

func TestHostLifecycleGuards(t *testing.T) {
	t.Run("启动前投放被拒", func(t *testing.T) {
		host := New(config.WorkerConfig{ProcessType: "fixedPool", PoolMaxSize: 1}, testLogger(t))
		assert.ErrorIs(t, host.Add(newFakeElement("CP-001")), errNotRunning)
	})

	t.Run("重复启动被拒", func(t *testing.T) {
		host := New(config.WorkerConfig{ProcessType: "workerSet", ElementsPerWorker: 1}, testLogger(t))
		require.NoError(t, host.Start(context.Background()))
		assert.ErrorIs(t, host.Start(context.Background()), errAlreadyStarted)
		stopHost(t, host)
	})

	t.Run("停机后投放被拒", func(t *testing.T) {
		host := New(config.WorkerConfig{ProcessType: "dynamicPool", PoolMinSize: 0, PoolMaxSize: 2}, testLogger(t))
		require.NoError(t, host.Start(context.Background()))
		stopHost(t, host)
		assert.ErrorIs(t, host.Add(newFakeElement("CP-001")), errNotRunning)
	})
}

func TestElementPanicIsolation(t *testing.T) {
	host := New(config.WorkerConfig{ProcessType: "fixedPool", PoolMaxSize: 2}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))

	bomb := newFakeElement("CP-BOOM")
	bomb.panics = true
	survivor := newFakeElement("CP-OK")
	require.NoError(t, host.Add(bomb))
	require.NoError(t, host.Add(survivor))

	// 单个元素崩溃只计入失败数，不影响其他元素
	assert.Eventually(t, func() bool {
		stats := host.Stats()
		return stats.Failed == 1 && stats.Running == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), survivor.runs.Load())

	stopHost(t, host)
}

func TestElementErrorCounting(t *testing.T) {
	host := New(config.WorkerConfig{ProcessType: "workerSet", ElementsPerWorker: 4}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))

	failing := newFakeElement("CP-ERR")
	failing.runErr = errors.New("dial refused for good")
	cancelled := newFakeElement("CP-CANCEL")
	cancelled.runErr = context.Canceled
	clean := newFakeElement("CP-CLEAN")
	clean.release() // Run立即正常返回

	require.NoError(t, host.Add(failing))
	require.NoError(t, host.Add(cancelled))
	require.NoError(t, host.Add(clean))

	// 只有真实错误计入失败，context.Canceled和正常返回都不算
	assert.Eventually(t, func() bool {
		return totalRuns([]*fakeElement{failing, cancelled, clean}) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		stats := host.Stats()
		return stats.Failed == 1 && stats.Running == 0
	}, 2*time.Second, 10*time.Millisecond)

	stopHost(t, host)
}

func TestElementAddDelaySpreadsAdmission(t *testing.T) {
	host := New(config.WorkerConfig{
		ProcessType:       "workerSet",
		ElementsPerWorker: 4,
		ElementAddDelay:   30 * time.Millisecond,
	}, testLogger(t))
	require.NoError(t, host.Start(context.Background()))

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, host.Add(newFakeElement(fmt.Sprintf("CP-%03d", i+1))))
	}
	// 每次投放都要等过错峰间隔
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	stopHost(t, host)
}
