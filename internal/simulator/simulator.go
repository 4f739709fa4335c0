// Package simulator 车队装配层：把配置中的站点组展开为站点实例，
// 交给工作协程宿主托管生命周期，并把全部站点事件汇聚到一条通道
// 统一导出到消息代理。
package simulator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charging-platform/charge-station-simulator/internal/config"
	"github.com/charging-platform/charge-station-simulator/internal/domain/events"
	"github.com/charging-platform/charge-station-simulator/internal/logger"
	"github.com/charging-platform/charge-station-simulator/internal/message"
	"github.com/charging-platform/charge-station-simulator/internal/metrics"
	"github.com/charging-platform/charge-station-simulator/internal/station"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
	"github.com/charging-platform/charge-station-simulator/internal/template"
	"github.com/charging-platform/charge-station-simulator/internal/worker"
)

// eventBuffer 车队事件通道缓冲，写满时站点侧丢弃事件
const eventBuffer = 1024

// Simulator 车队模拟器
type Simulator struct {
	cfg      *config.Config
	log      *logger.Logger
	producer message.EventProducer

	host     worker.Host
	stations []*station.Station
	auto     []*station.Station

	events  chan events.Event
	eventWg sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopping bool
}

// New 按配置展开站点组并装配工作协程宿主
// store 与 producer 的生命周期由调用方管理，producer 为 nil 时不导出事件
func New(cfg *config.Config, log *logger.Logger, store storage.StationStore, producer message.EventProducer) (*Simulator, error) {
	s := &Simulator{
		cfg:      cfg,
		log:      log.Component("simulator"),
		producer: producer,
		events:   make(chan events.Event, eventBuffer),
		host:     worker.New(cfg.Worker, log),
	}

	for i, grp := range cfg.Stations {
		tpl, err := template.Load(grp.Template)
		if err != nil {
			return nil, fmt.Errorf("stations[%d]: %w", i, err)
		}

		var idTags []string
		if tpl.IdTagsFile != "" {
			idTags, err = template.LoadIdTags(resolvePath(grp.Template, tpl.IdTagsFile))
			if err != nil {
				return nil, fmt.Errorf("stations[%d]: %w", i, err)
			}
		}

		for n := 1; n <= grp.Count; n++ {
			st, err := station.New(station.Options{
				Index:    n,
				Template: tpl,
				CSMS:     cfg.CSMS,
				IdTags:   idTags,
				Log:      log,
				Store:    store,
				Events:   s.events,
			})
			if err != nil {
				return nil, fmt.Errorf("stations[%d] instance %d: %w", i, n, err)
			}
			s.stations = append(s.stations, st)
			if tpl.IsAutoStart() {
				s.auto = append(s.auto, st)
			}
		}

		s.log.Infof("Station group expanded: template=%s count=%d ocppVersion=%s autoStart=%v",
			tpl.Name, grp.Count, tpl.OCPPVersion, tpl.IsAutoStart())
	}

	if len(s.stations) == 0 {
		return nil, fmt.Errorf("no stations configured")
	}
	return s, nil
}

// resolvePath 模板内引用的相对路径按模板所在目录解析
func resolvePath(templatePath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(templatePath), p)
}

// Start 启动事件导出协程与工作协程宿主，把autoStart站点交给宿主
// 逐个投放会叠加 worker.element_add_delay，借此摊开对CSMS的连接风暴
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("simulator already started")
	}
	s.started = true
	s.mu.Unlock()

	s.eventWg.Add(1)
	go s.forwardEvents()

	if err := s.host.Start(ctx); err != nil {
		return err
	}

	for _, st := range s.auto {
		if err := s.host.Add(st); err != nil {
			return fmt.Errorf("failed to add station %s: %w", st.ID(), err)
		}
	}

	s.log.Infof("Simulator started: stations=%d autoStart=%d workerType=%s",
		len(s.stations), len(s.auto), s.cfg.Worker.ProcessType)
	return nil
}

// Stop 停机：先等全部站点退出，再关事件通道让导出协程排空
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	err := s.host.Stop(ctx)
	stats := s.host.Stats()
	if err != nil {
		// 站点未全部退出时事件通道不能关闭，导出协程随进程一起结束
		s.log.Errorf("Worker host stop incomplete: %v", err)
		return err
	}

	close(s.events)
	s.eventWg.Wait()

	s.log.Infof("Simulator stopped: added=%d failed=%d", stats.Added, stats.Failed)
	return nil
}

// forwardEvents 把站点事件导出到消息代理，未配置代理时静默消费
func (s *Simulator) forwardEvents() {
	defer s.eventWg.Done()
	for event := range s.events {
		if s.producer == nil {
			continue
		}
		if err := s.producer.PublishEvent(event); err != nil {
			s.log.Warnf("Failed to publish event: type=%s station=%s error=%v",
				event.GetType(), event.GetStationID(), err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(string(event.GetType())).Inc()
	}
}

// Stats 工作协程宿主的运行计数
func (s *Simulator) Stats() worker.Stats {
	return s.host.Stats()
}

// StationCount 展开后的站点总数
func (s *Simulator) StationCount() int {
	return len(s.stations)
}

// Stations 展开后的全部站点实例，含未自动启动的
func (s *Simulator) Stations() []*station.Station {
	return s.stations
}
