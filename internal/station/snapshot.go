package station

import (
	"context"
	"time"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/storage"
)

// restoreSnapshot 启动时回填上一次运行留下的计数水位。
// 声明性配置以模板为准，快照只赢回计数器与运行时可写值。
func (s *Station) restoreSnapshot(ctx context.Context) {
	snap, err := s.store.Load(ctx, s.name)
	if err != nil {
		s.log.Warnf("Failed to load snapshot: %v", err)
		return
	}
	if snap == nil {
		return
	}

	s.txCounter.Store(snap.TxCounter)
	if s.cfg16 != nil {
		s.cfg16.Restore(snap.ConfigurationKeys)
	}
	if s.registry != nil {
		s.restoreVariables(snap.Variables)
		s.applyTemplateModel()
	}
	for _, cs := range snap.Connectors {
		if c, ok := s.Connector(cs.EvseID, cs.ID); ok {
			c.Restore(cs)
		}
	}
	if snap.ATG != nil {
		s.atg.restore(snap.ATG)
	}
	s.log.Infof("Snapshot restored: savedAt=%s txCounter=%d",
		snap.SavedAt.Format(time.RFC3339), snap.TxCounter)
}

// persistSnapshot 落盘当前计数水位
func (s *Station) persistSnapshot(ctx context.Context) {
	snap := &storage.Snapshot{
		StationID:   s.name,
		HashID:      s.hashID,
		OCPPVersion: s.version.String(),
		BootStatus:  string(s.RegistrationStatus()),
		TxCounter:   s.txCounter.Load(),
		SavedAt:     time.Now().UTC(),
	}
	if s.cfg16 != nil {
		snap.ConfigurationKeys = s.cfg16.Export()
	}
	if s.registry != nil {
		snap.Variables = s.exportVariables()
	}
	for _, c := range s.connectors {
		snap.Connectors = append(snap.Connectors, c.Snapshot())
	}
	if s.atg != nil {
		snap.ATG = s.atg.snapshot()
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.log.Warnf("Failed to persist snapshot: %v", err)
	}
}

// exportVariables 导出设备模型里可写且需持久化的变量
func (s *Station) exportVariables() []storage.VariableSnapshot {
	var out []storage.VariableSnapshot
	for _, meta := range s.registry.Entries() {
		if !meta.Persistent || meta.Constant || meta.Mutability != ocpp201.MutabilityReadWrite {
			continue
		}
		vs := storage.VariableSnapshot{
			Component: meta.Component.Name,
			Variable:  meta.Variable.Name,
			Value:     meta.Value,
		}
		if meta.Component.Instance != nil {
			vs.ComponentInstance = *meta.Component.Instance
		}
		if meta.Component.EVSE != nil {
			vs.EvseID = meta.Component.EVSE.Id
			if meta.Component.EVSE.ConnectorId != nil {
				vs.ConnectorID = *meta.Component.EVSE.ConnectorId
			}
		}
		if meta.Variable.Instance != nil {
			vs.VariableInstance = *meta.Variable.Instance
		}
		out = append(out, vs)
	}
	return out
}

// restoreVariables 回填快照里的变量值，未注册的条目跳过
func (s *Station) restoreVariables(snaps []storage.VariableSnapshot) {
	for _, vs := range snaps {
		component := ocpp201.Component{Name: vs.Component}
		if vs.ComponentInstance != "" {
			inst := vs.ComponentInstance
			component.Instance = &inst
		}
		if vs.EvseID > 0 {
			evse := &ocpp201.EVSE{Id: vs.EvseID}
			if vs.ConnectorID > 0 {
				cid := vs.ConnectorID
				evse.ConnectorId = &cid
			}
			component.EVSE = evse
		}
		variable := ocpp201.Variable{Name: vs.Variable}
		if vs.VariableInstance != "" {
			inst := vs.VariableInstance
			variable.Instance = &inst
		}

		meta, ok := s.registry.Lookup(component, variable)
		if !ok || meta.Constant || meta.Mutability != ocpp201.MutabilityReadWrite {
			continue
		}
		_ = s.registry.SetValue(component, variable, vs.Value)
	}
}
