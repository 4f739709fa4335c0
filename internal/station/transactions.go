package station

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/charging-platform/charge-station-simulator/internal/domain/events"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/metrics"
)

// errDeauthorized CSMS在交易开始应答里否决了idTag
var errDeauthorized = errors.New("id tag rejected at transaction start")

// runTransaction 一笔交易的完整生命周期：插枪、开账、周期计量，
// 触发停止条件后冲账。duration为0表示只等停止信号或会话结束。
func (s *Station) runTransaction(ctx context.Context, c *Connector, idTag string, remoteStartID *int, authorized bool, duration time.Duration) error {
	if err := s.beginTransaction(ctx, c, idTag, remoteStartID, authorized); err != nil {
		return err
	}
	cause, flush := s.superviseTransaction(ctx, c, duration)
	if flush {
		s.finishTransaction(ctx, c, cause, true)
	}
	return nil
}

// beginTransaction 插枪开账。1.6等CSMS分配交易号并检查授权结果，
// 2.0.1本地生成交易ID并上报Started事件。开账失败时状态回落。
func (s *Station) beginTransaction(ctx context.Context, c *Connector, idTag string, remoteStartID *int, authorized bool) error {
	if !c.IsOperative() {
		return fmt.Errorf("connector %d/%d is inoperative", c.EvseID(), c.ID())
	}

	s.transitionConnector(ctx, c, ConnectorStatePreparing)

	tx := Transaction{
		IdTag:         idTag,
		StartedAt:     time.Now().UTC(),
		RemoteStartID: remoteStartID,
	}
	if s.version.IsOCPP201() {
		tx.ID = uuid.NewString()
	}
	if err := c.Begin(tx); err != nil {
		s.transitionConnector(ctx, c, ConnectorStateAvailable)
		return err
	}
	s.nextTxNumber()
	started, _ := c.ActiveTransaction()

	var err error
	if s.version.IsOCPP201() {
		err = s.sendTransactionStarted(ctx, c, started, authorized)
	} else {
		err = s.sendStartTransaction16(ctx, c, started)
	}
	if err != nil {
		if errors.Is(err, errDeauthorized) {
			// 交易已在CSMS落账，需按取消授权冲正
			s.finishTransaction(ctx, c, stopCauseDeAuthorized, true)
			return err
		}
		c.End()
		s.transitionConnector(ctx, c, ConnectorStateAvailable)
		return err
	}

	s.transitionConnector(ctx, c, ConnectorStateCharging)
	s.emitTransactionStarted(c)
	s.log.Infof("Transaction started: evse=%d connector=%d idTag=%s", c.EvseID(), c.ID(), idTag)
	return nil
}

// superviseTransaction 交易存续期内的计量与停止监督。返回停止原因
// 及是否由调用方冲账：会话拆除时账由拆除方统一收。
func (s *Station) superviseTransaction(ctx context.Context, c *Connector, duration time.Duration) (stopCause, bool) {
	interval := s.sampleInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var durationCh <-chan time.Time
	if duration > 0 {
		durTimer := time.NewTimer(duration)
		defer durTimer.Stop()
		durationCh = durTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return stopCause{}, false
		case cause := <-c.stopSignal():
			return cause, true
		case <-durationCh:
			return stopCauseLocal, true
		case <-timer.C:
			s.sampleMeter(ctx, c)
			// 采样间隔热更新即刻生效
			interval = s.sampleInterval()
			timer.Reset(interval)
		}
	}
}

// finishTransaction 交易冲账：停表、上报停止、状态回落，
// 交易期间挂账的可用性变更此刻生效。返回停止上报的错误。
func (s *Station) finishTransaction(ctx context.Context, c *Connector, cause stopCause, sendStop bool) error {
	tx, meterStop, ok := c.End()
	if !ok {
		return nil
	}

	s.transitionConnector(ctx, c, ConnectorStateFinishing)

	var stopErr error
	if sendStop {
		if s.version.IsOCPP201() {
			stopErr = s.sendTransactionEnded(ctx, c, tx, meterStop, cause)
		} else {
			stopErr = s.sendStopTransaction16(ctx, tx, meterStop, cause)
		}
		if stopErr != nil {
			s.log.Warnf("Failed to report transaction stop: txId=%s err=%v", tx.ID, stopErr)
		}
	}

	if a, deferred := s.takeDeferredAvailability(c); deferred {
		c.SetAvailability(a)
	}
	final := ConnectorStateAvailable
	if !c.IsOperative() {
		final = ConnectorStateUnavailable
	}
	s.transitionConnector(ctx, c, final)

	metrics.TransactionsTotal.WithLabelValues(string(cause.reason16)).Inc()
	s.emitTransactionStopped(c, tx, meterStop, cause)
	s.log.Infof("Transaction stopped: evse=%d connector=%d txId=%s reason=%s energyWh=%.0f",
		c.EvseID(), c.ID(), tx.ID, cause.reason16, meterStop-tx.MeterStart)
	return stopErr
}

// sendStartTransaction16 1.6开账，CSMS在应答里分配交易号
func (s *Station) sendStartTransaction16(ctx context.Context, c *Connector, tx Transaction) error {
	req := &ocpp16.StartTransactionRequest{
		ConnectorId: c.ID(),
		IdTag:       tx.IdTag,
		MeterStart:  int(math.Round(tx.MeterStart)),
		Timestamp:   ocpp16.Now(),
	}
	resp, err := s.callWithRetry(ctx, string(ocpp16.ActionStartTransaction), req)
	if err != nil {
		return err
	}
	start, ok := resp.(*ocpp16.StartTransactionResponse)
	if !ok {
		return fmt.Errorf("unexpected StartTransaction response type %T", resp)
	}
	c.SetTransactionID16(start.TransactionId)
	if !start.IdTagInfo.Valid() {
		return errDeauthorized
	}
	return nil
}

// sendTransactionStarted 2.0.1 Started事件，携带起始读数
func (s *Station) sendTransactionStarted(ctx context.Context, c *Connector, tx Transaction, authorized bool) error {
	trigger := ocpp201.TriggerReasonCablePluggedIn
	if tx.RemoteStartID != nil {
		trigger = ocpp201.TriggerReasonRemoteStart
	} else if authorized {
		trigger = ocpp201.TriggerReasonAuthorized
	}
	charging := ocpp201.ChargingStateCharging
	cid := c.ID()

	req := &ocpp201.TransactionEventRequest{
		EventType:     ocpp201.TransactionEventStarted,
		Timestamp:     ocpp201.Now(),
		TriggerReason: trigger,
		SeqNo:         c.NextSeqNo(),
		TransactionInfo: ocpp201.TransactionInfo{
			TransactionId: tx.ID,
			ChargingState: &charging,
			RemoteStartId: tx.RemoteStartID,
		},
		IdToken:    &ocpp201.IdToken{IdToken: tx.IdTag, Type: ocpp201.IdTokenTypeISO14443},
		Evse:       &ocpp201.EVSE{Id: c.EvseID(), ConnectorId: &cid},
		MeterValue: []ocpp201.MeterValue{energyReading201(tx.MeterStart, ocpp201.ReadingContextTransactionBegin)},
	}
	resp, err := s.callWithRetry(ctx, string(ocpp201.ActionTransactionEvent), req)
	if err != nil {
		return err
	}
	ev, ok := resp.(*ocpp201.TransactionEventResponse)
	if !ok {
		return fmt.Errorf("unexpected TransactionEvent response type %T", resp)
	}
	if ev.IdTokenInfo != nil && !ev.IdTokenInfo.Valid() {
		return errDeauthorized
	}
	return nil
}

// sendStopTransaction16 1.6冲账，交易数据附最终电能读数
func (s *Station) sendStopTransaction16(ctx context.Context, tx Transaction, meterStop float64, cause stopCause) error {
	reason := cause.reason16
	req := &ocpp16.StopTransactionRequest{
		MeterStop:       int(math.Round(meterStop)),
		Timestamp:       ocpp16.Now(),
		TransactionId:   tx.ID16,
		Reason:          &reason,
		TransactionData: []ocpp16.MeterValue{energyReading16(meterStop, ocpp16.ReadingContextTransactionEnd)},
	}
	if tx.IdTag != "" {
		idTag := tx.IdTag
		req.IdTag = &idTag
	}
	_, err := s.callWithRetry(ctx, string(ocpp16.ActionStopTransaction), req)
	return err
}

// sendTransactionEnded 2.0.1 Ended事件，携带最终读数与停止原因
func (s *Station) sendTransactionEnded(ctx context.Context, c *Connector, tx Transaction, meterStop float64, cause stopCause) error {
	reason := cause.reason201
	charging := int(time.Since(tx.StartedAt) / time.Second)
	cid := c.ID()

	req := &ocpp201.TransactionEventRequest{
		EventType:     ocpp201.TransactionEventEnded,
		Timestamp:     ocpp201.Now(),
		TriggerReason: stopTrigger(cause),
		SeqNo:         c.NextSeqNo(),
		TransactionInfo: ocpp201.TransactionInfo{
			TransactionId:     tx.ID,
			StoppedReason:     &reason,
			TimeSpentCharging: &charging,
			RemoteStartId:     tx.RemoteStartID,
		},
		Evse:       &ocpp201.EVSE{Id: c.EvseID(), ConnectorId: &cid},
		MeterValue: []ocpp201.MeterValue{energyReading201(meterStop, ocpp201.ReadingContextTransactionEnd)},
	}
	_, err := s.callWithRetry(ctx, string(ocpp201.ActionTransactionEvent), req)
	return err
}

// stopTrigger Ended事件的触发原因按停止原因折算
func stopTrigger(cause stopCause) ocpp201.TriggerReason {
	switch cause.reason201 {
	case ocpp201.StoppedReasonRemote:
		return ocpp201.TriggerReasonRemoteStop
	case ocpp201.StoppedReasonDeAuthorized:
		return ocpp201.TriggerReasonDeauthorized
	case ocpp201.StoppedReasonEVDisconnected:
		return ocpp201.TriggerReasonEVDeparted
	case ocpp201.StoppedReasonImmediateReset:
		return ocpp201.TriggerReasonResetCommand
	case ocpp201.StoppedReasonPowerLoss:
		return ocpp201.TriggerReasonAbnormalCondition
	}
	return ocpp201.TriggerReasonStopAuthorized
}

// meterSample 版本无关的采样读数
type meterSample struct {
	measurand string
	value     float64
	unit      string
}

// sampleMeter 推进电表并上报周期采样。电表推进是本地事实，
// 上报失败不回滚。
func (s *Station) sampleMeter(ctx context.Context, c *Connector) {
	tx, ok := c.ActiveTransaction()
	if !ok {
		return
	}

	interval := s.sampleInterval()
	powerW := s.jitter(s.tpl.PowerW(), 0.05)
	total := c.AddEnergy(powerW * interval.Seconds() / 3600)
	samples := s.takeReadings(tx, total, powerW)
	if len(samples) == 0 {
		return
	}

	var err error
	if s.version.IsOCPP201() {
		req := &ocpp201.TransactionEventRequest{
			EventType:       ocpp201.TransactionEventUpdated,
			Timestamp:       ocpp201.Now(),
			TriggerReason:   ocpp201.TriggerReasonMeterValuePeriodic,
			SeqNo:           c.NextSeqNo(),
			TransactionInfo: ocpp201.TransactionInfo{TransactionId: tx.ID},
			MeterValue:      []ocpp201.MeterValue{toMeterValue201(samples)},
		}
		_, err = s.call(ctx, string(ocpp201.ActionTransactionEvent), req)
	} else {
		txID := tx.ID16
		req := &ocpp16.MeterValuesRequest{
			ConnectorId:   c.ID(),
			TransactionId: &txID,
			MeterValue:    []ocpp16.MeterValue{toMeterValue16(samples)},
		}
		_, err = s.call(ctx, string(ocpp16.ActionMeterValues), req)
	}
	if err != nil {
		s.log.Warnf("Meter sample report failed: evse=%d connector=%d err=%v", c.EvseID(), c.ID(), err)
	}

	s.emitMeterValues(c, tx, samples)
}

// takeReadings 按配置的measurand生成一轮读数，未建模的跳过
func (s *Station) takeReadings(tx Transaction, totalWh, powerW float64) []meterSample {
	voltage := s.tpl.VoltageOut
	phases := s.tpl.NumberOfPhases

	var out []meterSample
	for _, m := range s.sampledMeasurands() {
		switch m {
		case string(ocpp16.MeasurandEnergyActiveImportRegister):
			out = append(out, meterSample{m, math.Round(totalWh), "Wh"})
		case string(ocpp16.MeasurandPowerActiveImport):
			out = append(out, meterSample{m, math.Round(powerW), "W"})
		case string(ocpp16.MeasurandCurrentImport):
			amps := powerW / (voltage * float64(phases))
			out = append(out, meterSample{m, math.Round(amps*10) / 10, "A"})
		case string(ocpp16.MeasurandVoltage):
			out = append(out, meterSample{m, math.Round(s.jitter(voltage, 0.02)*10) / 10, "V"})
		case string(ocpp16.MeasurandSoC):
			// 以充入电量折算的假想SoC，500Wh一个百分点
			soc := math.Min((totalWh-tx.MeterStart)/500, 100)
			out = append(out, meterSample{m, math.Round(soc*10) / 10, "Percent"})
		case string(ocpp16.MeasurandFrequency):
			out = append(out, meterSample{m, math.Round(s.jitter(50, 0.002)*100) / 100, ""})
		}
	}
	return out
}

// toMeterValue16 采样折算成1.6线上形态
func toMeterValue16(samples []meterSample) ocpp16.MeterValue {
	periodic := ocpp16.ReadingContextSamplePeriodic
	values := make([]ocpp16.SampledValue, 0, len(samples))
	for _, sm := range samples {
		measurand := ocpp16.Measurand(sm.measurand)
		sv := ocpp16.SampledValue{
			Value:     strconv.FormatFloat(sm.value, 'f', -1, 64),
			Context:   &periodic,
			Measurand: &measurand,
		}
		if sm.unit != "" {
			unit := ocpp16.UnitOfMeasure(sm.unit)
			sv.Unit = &unit
		}
		values = append(values, sv)
	}
	return ocpp16.MeterValue{Timestamp: ocpp16.Now(), SampledValue: values}
}

// toMeterValue201 采样折算成2.0.1线上形态
func toMeterValue201(samples []meterSample) ocpp201.MeterValue {
	periodic := ocpp201.ReadingContextSamplePeriodic
	values := make([]ocpp201.SampledValue, 0, len(samples))
	for _, sm := range samples {
		measurand := ocpp201.Measurand(sm.measurand)
		sv := ocpp201.SampledValue{
			Value:     sm.value,
			Context:   &periodic,
			Measurand: &measurand,
		}
		if sm.unit != "" {
			sv.UnitOfMeasure = &ocpp201.UnitOfMeasure{Unit: sm.unit}
		}
		values = append(values, sv)
	}
	return ocpp201.MeterValue{Timestamp: ocpp201.Now(), SampledValue: values}
}

// energyReading16 单条电能读数，开账停账时附带
func energyReading16(totalWh float64, context ocpp16.ReadingContext) ocpp16.MeterValue {
	measurand := ocpp16.MeasurandEnergyActiveImportRegister
	unit := ocpp16.UnitOfMeasureWh
	return ocpp16.MeterValue{
		Timestamp: ocpp16.Now(),
		SampledValue: []ocpp16.SampledValue{{
			Value:     strconv.FormatFloat(math.Round(totalWh), 'f', -1, 64),
			Context:   &context,
			Measurand: &measurand,
			Unit:      &unit,
		}},
	}
}

// energyReading201 单条电能读数，Started/Ended事件附带
func energyReading201(totalWh float64, context ocpp201.ReadingContext) ocpp201.MeterValue {
	measurand := ocpp201.MeasurandEnergyActiveImportRegister
	return ocpp201.MeterValue{
		Timestamp: ocpp201.Now(),
		SampledValue: []ocpp201.SampledValue{{
			Value:         math.Round(totalWh),
			Context:       &context,
			Measurand:     &measurand,
			UnitOfMeasure: &ocpp201.UnitOfMeasure{Unit: "Wh"},
		}},
	}
}

// transitionConnector 迁移连接器状态：变化时发布事件并上报CSMS
func (s *Station) transitionConnector(ctx context.Context, c *Connector, state ConnectorState) {
	prev := c.Status()
	if !c.SetStatus(state) {
		return
	}
	info := events.ConnectorInfo{
		EvseID:      c.EvseID(),
		ConnectorID: c.ID(),
		StationID:   s.name,
		Status:      state.eventStatus(),
	}
	s.emit(s.events.CreateConnectorStatusChangedEvent(s.name, info, prev.eventStatus(), s.metadata()))
	s.notifyStatus(ctx, c)
}

// notifyStatus 上报连接器当前状态，成功后记录已上报水位。
// 直接走doCall：Pending阶段CSMS可用TriggerMessage索要状态。
func (s *Station) notifyStatus(ctx context.Context, c *Connector) {
	st := c.Status()
	var err error
	if s.version.IsOCPP201() {
		req := &ocpp201.StatusNotificationRequest{
			Timestamp:       ocpp201.Now(),
			ConnectorStatus: st.status201(),
			EvseId:          c.EvseID(),
			ConnectorId:     c.ID(),
		}
		_, err = s.doCall(ctx, string(ocpp201.ActionStatusNotification), req)
	} else {
		err = s.sendStatus16(ctx, c.ID(), st.status16())
	}
	if err != nil {
		s.log.Warnf("StatusNotification failed: evse=%d connector=%d status=%s err=%v",
			c.EvseID(), c.ID(), st, err)
		return
	}
	c.MarkNotified(st)
}

// sendStatus16 1.6状态上报，0号连接器代表充电桩本体
func (s *Station) sendStatus16(ctx context.Context, connectorID int, status ocpp16.ChargePointStatus) error {
	ts := ocpp16.Now()
	req := &ocpp16.StatusNotificationRequest{
		ConnectorId: connectorID,
		ErrorCode:   ocpp16.ChargePointErrorCodeNoError,
		Status:      status,
		Timestamp:   &ts,
	}
	_, err := s.doCall(ctx, string(ocpp16.ActionStatusNotification), req)
	return err
}

// authorize 鉴权：免授权模板直接放行，缓存命中走离线判定，
// 否则发起Authorize并回填缓存
func (s *Station) authorize(ctx context.Context, idTag string) (bool, error) {
	if s.tpl.AutoRegister {
		s.emitAuthorization(idTag, string(ocpp16.AuthorizationStatusAccepted), false)
		return true, nil
	}
	if s.tpl.IsAuthCacheEnabled() {
		if entry, ok := s.authCache.Get(idTag); ok {
			s.emitAuthorization(idTag, entry.Status, true)
			return entry.IsAccepted(), nil
		}
	}

	status, err := s.wireAuthorize(ctx, idTag)
	if err != nil {
		return false, err
	}
	if s.tpl.IsAuthCacheEnabled() {
		s.authCache.Put(idTag, status)
	}
	s.emitAuthorization(idTag, status, false)
	return status == string(ocpp16.AuthorizationStatusAccepted), nil
}

// wireAuthorize 发起授权请求，返回CSMS给的状态字符串
func (s *Station) wireAuthorize(ctx context.Context, idTag string) (string, error) {
	if s.version.IsOCPP201() {
		req := &ocpp201.AuthorizeRequest{
			IdToken: ocpp201.IdToken{IdToken: idTag, Type: ocpp201.IdTokenTypeISO14443},
		}
		resp, err := s.call(ctx, string(ocpp201.ActionAuthorize), req)
		if err != nil {
			return "", err
		}
		auth, ok := resp.(*ocpp201.AuthorizeResponse)
		if !ok {
			return "", fmt.Errorf("unexpected Authorize response type %T", resp)
		}
		return string(auth.IdTokenInfo.Status), nil
	}

	req := &ocpp16.AuthorizeRequest{IdTag: idTag}
	resp, err := s.call(ctx, string(ocpp16.ActionAuthorize), req)
	if err != nil {
		return "", err
	}
	auth, ok := resp.(*ocpp16.AuthorizeResponse)
	if !ok {
		return "", fmt.Errorf("unexpected Authorize response type %T", resp)
	}
	return string(auth.IdTagInfo.Status), nil
}

// emitAuthorization 发布授权结果事件
func (s *Station) emitAuthorization(idTag, status string, fromCache bool) {
	info := events.AuthorizationInfo{
		IdTag:     idTag,
		Result:    authResult(status),
		FromCache: fromCache,
	}
	s.emit(s.events.CreateAuthorizationResultEvent(s.name, info, s.metadata()))
}

// authResult 线上授权状态折算到事件词汇
func authResult(status string) events.AuthorizationResult {
	switch status {
	case string(ocpp16.AuthorizationStatusAccepted):
		return events.AuthorizationResultAccepted
	case string(ocpp16.AuthorizationStatusBlocked):
		return events.AuthorizationResultBlocked
	case string(ocpp16.AuthorizationStatusExpired):
		return events.AuthorizationResultExpired
	case string(ocpp16.AuthorizationStatusInvalid):
		return events.AuthorizationResultInvalid
	case string(ocpp16.AuthorizationStatusConcurrentTx):
		return events.AuthorizationResultConcurrentTx
	}
	return events.AuthorizationResultUnknown
}

// emitTransactionStarted 发布交易开始事件
func (s *Station) emitTransactionStarted(c *Connector) {
	tx, ok := c.ActiveTransaction()
	if !ok {
		return
	}
	info := events.TransactionInfo{
		ID:            tx.ID,
		StationID:     s.name,
		EvseID:        c.EvseID(),
		ConnectorID:   c.ID(),
		IdTag:         tx.IdTag,
		Status:        events.TransactionStatusActive,
		StartTime:     tx.StartedAt,
		MeterStart:    int(math.Round(tx.MeterStart)),
		RemoteStartID: tx.RemoteStartID,
	}
	auth := events.AuthorizationInfo{IdTag: tx.IdTag, Result: events.AuthorizationResultAccepted}
	s.emit(s.events.CreateTransactionStartedEvent(s.name, info, auth, s.metadata()))
}

// emitTransactionStopped 发布交易结束事件，附最终电能读数
func (s *Station) emitTransactionStopped(c *Connector, tx Transaction, meterStop float64, cause stopCause) {
	end := time.Now().UTC()
	stop := int(math.Round(meterStop))
	reason := string(cause.reason16)
	info := events.TransactionInfo{
		ID:            tx.ID,
		StationID:     s.name,
		EvseID:        c.EvseID(),
		ConnectorID:   c.ID(),
		IdTag:         tx.IdTag,
		Status:        events.TransactionStatusStopped,
		StartTime:     tx.StartedAt,
		EndTime:       &end,
		MeterStart:    int(math.Round(tx.MeterStart)),
		MeterStop:     &stop,
		StopReason:    &reason,
		RemoteStartID: tx.RemoteStartID,
	}
	final := []events.MeterValueSample{{
		Measurand: string(ocpp16.MeasurandEnergyActiveImportRegister),
		Value:     math.Round(meterStop),
		Timestamp: end,
	}}
	s.emit(s.events.CreateTransactionStoppedEvent(s.name, info, final, s.metadata()))
}

// emitMeterValues 发布采样事件
func (s *Station) emitMeterValues(c *Connector, tx Transaction, samples []meterSample) {
	now := time.Now().UTC()
	out := make([]events.MeterValueSample, 0, len(samples))
	for _, sm := range samples {
		ev := events.MeterValueSample{
			Measurand: sm.measurand,
			Value:     sm.value,
			Timestamp: now,
		}
		if sm.unit != "" {
			unit := sm.unit
			ev.Unit = &unit
		}
		out = append(out, ev)
	}
	txID := tx.ID
	s.emit(s.events.CreateMeterValuesSampledEvent(s.name, c.EvseID(), c.ID(), &txID, out, s.metadata()))
}
