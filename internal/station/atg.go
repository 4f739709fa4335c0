package station

import (
	"context"
	"sync"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/storage"
	"github.com/charging-platform/charge-station-simulator/internal/template"
)

const (
	// atgReadyPollInterval 生成循环等待前置条件满足的轮询周期
	atgReadyPollInterval = time.Second
	// defaultQueueHighWater 出站队列积压到该帧数时暂停发起新交易
	defaultQueueHighWater = 48
	// defaultQueueLowWater 积压回落到该帧数以下时恢复
	defaultQueueLowWater = 16
)

// generator 自动交易生成器。每个连接器一条独立循环：等注册通过、
// 连接器空闲且出站队列未积压后随机空闲一段，再按概率决定本轮是否
// 开始交易，充电随机时长后停止。统计按连接器序号累计并随站点快照
// 持久化。
type generator struct {
	s         *Station
	tpl       template.ATGTemplate
	highWater int
	lowWater  int

	mu        sync.Mutex
	startedAt time.Time
	stopDate  time.Time // 零值表示不自动停止
	rrIdx     int
	stats     []*atgStats
}

// atgStats 单连接器生成器的累计计数。请求数与对应的接受/拒绝数
// 在同一临界区内登账，任意观察时刻两者之和等于请求数。
type atgStats struct {
	acceptedAuthorizeRequests int64
	rejectedAuthorizeRequests int64
	startRequests             int64
	acceptedStartRequests     int64
	rejectedStartRequests     int64
	stopRequests              int64
	acceptedStopRequests      int64
	rejectedStopRequests      int64
	skippedConsecutive        int64
	skippedTotal              int64
	energyWh                  float64
	running                   bool
	lastRunAt                 time.Time
	stoppedAt                 time.Time
}

func newGenerator(s *Station, tpl template.ATGTemplate) *generator {
	stats := make([]*atgStats, len(s.connectors))
	for i := range stats {
		stats[i] = &atgStats{}
	}
	high := s.csms.QueueHighWater
	if high <= 0 {
		high = defaultQueueHighWater
	}
	low := s.csms.QueueLowWater
	if low <= 0 {
		low = defaultQueueLowWater
	}
	if low >= high {
		low = high / 2
	}
	return &generator{s: s, tpl: tpl, highWater: high, lowWater: low, stats: stats}
}

// start 为每个连接器启动一条生成循环。未启用时不做任何事。
// wg由调用方等待，Add发生在调用方goroutine持有计数的窗口内。
func (g *generator) start(ctx context.Context, wg *sync.WaitGroup) {
	if !g.tpl.Enable {
		return
	}

	g.mu.Lock()
	if g.startedAt.IsZero() {
		g.startedAt = time.Now()
	}
	if stopAfter := g.tpl.StopAfter(); stopAfter > 0 && g.stopDate.IsZero() {
		base := time.Now()
		if g.tpl.StopAbsoluteDuration {
			base = g.startedAt
		}
		g.stopDate = base.Add(stopAfter)
	}
	stopDate := g.stopDate
	g.mu.Unlock()

	g.s.log.Infof("Transaction generator started: connectors=%d probability=%.2f stopDate=%s",
		len(g.s.connectors), g.tpl.ProbabilityOfStart, formatStopDate(stopDate))

	for i, c := range g.s.connectors {
		wg.Add(1)
		go func(ordinal int, c *Connector) {
			defer wg.Done()
			g.runConnector(ctx, ordinal, c)
		}(i+1, c)
	}
}

// runConnector 单连接器的生成循环，到达stopDate或会话结束时退出
func (g *generator) runConnector(ctx context.Context, ordinal int, c *Connector) {
	st := g.stats[ordinal-1]
	g.mu.Lock()
	st.running = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		st.running = false
		st.stoppedAt = time.Now()
		g.mu.Unlock()
	}()

	for {
		if !g.waitReady(ctx, ordinal, c) {
			return
		}
		if g.expired() {
			g.s.log.Infof("Transaction generator reached stop date: connector=%d", ordinal)
			return
		}

		idle := g.randomDuration(g.tpl.MinIdleDelay(), g.tpl.MaxIdleDelay())
		if idle <= 0 {
			// 空闲下限兜底，出错的循环也至少隔一拍再试
			idle = atgReadyPollInterval
		}
		if !g.s.sleepFor(ctx, idle) {
			return
		}

		if g.s.float64n() < g.tpl.ProbabilityOfStart {
			g.mu.Lock()
			st.skippedConsecutive = 0
			st.lastRunAt = time.Now()
			g.mu.Unlock()
			g.runCycle(ctx, ordinal, c, st)
		} else {
			g.mu.Lock()
			st.skippedConsecutive++
			st.skippedTotal++
			g.mu.Unlock()
		}
	}
}

// waitReady 等待生成前置条件：站点注册通过、连接器可运行且无在途
// 交易、出站队列未积压。水位判断带滞回，越过高水位后要回落到低水位
// 以下才恢复，心跳等其余通道不受影响。仅在会话结束时返回false。
func (g *generator) waitReady(ctx context.Context, ordinal int, c *Connector) bool {
	backlogged := false
	for {
		if ctx.Err() != nil {
			return false
		}
		_, busy := c.ActiveTransaction()
		if g.s.RegistrationStatus() == RegistrationAccepted && c.IsOperative() && !busy {
			queued := g.s.sendQueueLen()
			wasBacklogged := backlogged
			if backlogged {
				backlogged = queued > g.lowWater
			} else {
				backlogged = queued >= g.highWater
			}
			if backlogged && !wasBacklogged {
				g.s.log.Warnf("Generator paused by send queue backlog: connector=%d queued=%d highWater=%d",
					ordinal, queued, g.highWater)
			}
			if !backlogged {
				return true
			}
		}
		if !g.s.sleepFor(ctx, atgReadyPollInterval) {
			return false
		}
	}
}

// runCycle 执行一轮交易：可选的预授权、随机时长充电、停账
func (g *generator) runCycle(ctx context.Context, ordinal int, c *Connector, st *atgStats) {
	idTag := g.nextIdTag(ordinal)

	authorized := false
	if g.tpl.RequireAuthorize {
		ok, err := g.s.authorize(ctx, idTag)
		if err != nil {
			g.s.log.Warnf("Generator authorize failed: connector=%d idTag=%s err=%v", ordinal, idTag, err)
			return
		}
		g.mu.Lock()
		if ok {
			st.acceptedAuthorizeRequests++
		} else {
			st.rejectedAuthorizeRequests++
		}
		g.mu.Unlock()
		if !ok {
			// 授权被拒本轮放弃，不计入开始请求，下一轮重新取标签
			return
		}
		authorized = true
	}

	duration := g.randomDuration(g.tpl.MinChargeDuration(), g.tpl.MaxChargeDuration())
	before := c.MeterWh()
	if err := g.s.beginTransaction(ctx, c, idTag, nil, authorized); err != nil {
		g.mu.Lock()
		st.startRequests++
		st.rejectedStartRequests++
		g.mu.Unlock()
		g.s.log.Warnf("Generator transaction failed: connector=%d idTag=%s err=%v", ordinal, idTag, err)
		return
	}
	g.mu.Lock()
	st.startRequests++
	st.acceptedStartRequests++
	g.mu.Unlock()

	cause, flush := g.s.superviseTransaction(ctx, c, duration)
	if !flush {
		// 会话拆除带走交易，停账归拆除方，不计入本连接器
		return
	}
	stopErr := g.s.finishTransaction(ctx, c, cause, true)
	g.mu.Lock()
	st.stopRequests++
	if stopErr != nil {
		st.rejectedStopRequests++
	} else {
		st.acceptedStopRequests++
		st.energyWh += c.MeterWh() - before
	}
	g.mu.Unlock()
	if stopErr != nil {
		g.s.log.Warnf("Generator stop report failed: connector=%d idTag=%s err=%v", ordinal, idTag, stopErr)
	}
}

// nextIdTag 按分配策略从标签池取一个idTag
func (g *generator) nextIdTag(ordinal int) string {
	tags := g.s.idTags
	if len(tags) == 0 {
		return template.DefaultIdTag
	}
	switch g.tpl.IdTagDistribution {
	case "random":
		return tags[int(g.s.float64n()*float64(len(tags)))%len(tags)]
	case "connector-affinity":
		return tags[(ordinal-1)%len(tags)]
	default: // round-robin
		g.mu.Lock()
		idx := g.rrIdx % len(tags)
		g.rrIdx++
		g.mu.Unlock()
		return tags[idx]
	}
}

func (g *generator) randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(g.s.float64n()*float64(max-min))
}

func (g *generator) expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.stopDate.IsZero() && time.Now().After(g.stopDate)
}

// snapshot 导出落盘形态，从未启动过则无需持久化
func (g *generator) snapshot() *storage.ATGSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startedAt.IsZero() {
		return nil
	}

	snap := &storage.ATGSnapshot{
		StartedAt: g.startedAt,
		StopDate:  g.stopDate,
	}
	for i, st := range g.stats {
		snap.Connectors = append(snap.Connectors, storage.ATGConnectorSnapshot{
			ConnectorID:               i + 1,
			Running:                   st.running,
			AcceptedAuthorizeRequests: st.acceptedAuthorizeRequests,
			RejectedAuthorizeRequests: st.rejectedAuthorizeRequests,
			StartRequests:             st.startRequests,
			AcceptedStartRequests:     st.acceptedStartRequests,
			RejectedStartRequests:     st.rejectedStartRequests,
			StopRequests:              st.stopRequests,
			AcceptedStopRequests:      st.acceptedStopRequests,
			RejectedStopRequests:      st.rejectedStopRequests,
			SkippedConsecutive:        st.skippedConsecutive,
			SkippedTotal:              st.skippedTotal,
			EnergyWh:                  st.energyWh,
			LastRunAt:                 st.lastRunAt,
			StoppedAt:                 st.stoppedAt,
		})
	}
	return snap
}

// restore 从快照恢复累计统计。绝对stopDate语义依赖恢复后的startedAt。
// 运行标记是活状态，不回填。
func (g *generator) restore(snap *storage.ATGSnapshot) {
	if snap == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.startedAt = snap.StartedAt
	g.stopDate = snap.StopDate
	for _, cs := range snap.Connectors {
		if cs.ConnectorID < 1 || cs.ConnectorID > len(g.stats) {
			continue
		}
		st := g.stats[cs.ConnectorID-1]
		st.acceptedAuthorizeRequests = cs.AcceptedAuthorizeRequests
		st.rejectedAuthorizeRequests = cs.RejectedAuthorizeRequests
		st.startRequests = cs.StartRequests
		st.acceptedStartRequests = cs.AcceptedStartRequests
		st.rejectedStartRequests = cs.RejectedStartRequests
		st.stopRequests = cs.StopRequests
		st.acceptedStopRequests = cs.AcceptedStopRequests
		st.rejectedStopRequests = cs.RejectedStopRequests
		st.skippedConsecutive = cs.SkippedConsecutive
		st.skippedTotal = cs.SkippedTotal
		st.energyWh = cs.EnergyWh
		st.lastRunAt = cs.LastRunAt
		st.stoppedAt = cs.StoppedAt
	}
}

func formatStopDate(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
