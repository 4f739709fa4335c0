package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/charging-platform/charge-station-simulator/internal/domain/events"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/serialization"
	"github.com/charging-platform/charge-station-simulator/internal/metrics"
	"github.com/charging-platform/charge-station-simulator/internal/transport/wsclient"
)

// errNotConnected 没有活动的CSMS连接
var errNotConnected = errors.New("no active CSMS connection")

// handlerFunc CSMS下发Call的处理器。返回应答payload或commandError
type handlerFunc func(ctx context.Context, frame *serialization.Frame) (interface{}, error)

// commandError 处理器拒绝请求时携带OCPP-J错误码
type commandError struct {
	Code        string
	Description string
}

// Error 实现error接口
func (e *commandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func errFormation(format string, args ...interface{}) error {
	return &commandError{Code: serialization.ErrorFormationViolation, Description: fmt.Sprintf(format, args...)}
}

func errNotSupported(format string, args ...interface{}) error {
	return &commandError{Code: serialization.ErrorNotSupported, Description: fmt.Sprintf(format, args...)}
}

// Run 站点主循环：连接、注册、心跳、应答CSMS，断线按退避策略重连，
// 重置走断开重连的完整周期。实现 worker.Element，阻塞直到停机。
func (s *Station) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("station %s already running", s.name)
	}
	defer close(s.runDone)

	metrics.StationsRunning.Inc()
	defer metrics.StationsRunning.Dec()

	s.restoreSnapshot(ctx)
	s.log.Infof("Starting station: version=%s url=%s connectors=%d",
		s.version, s.url, len(s.connectors))

	stopReason := "station stopped"
	var runErr error
	reconnect := false

	for {
		if ctx.Err() != nil || s.stopped() {
			break
		}

		client, err := s.connect(ctx, reconnect)
		if err != nil {
			if ctx.Err() != nil || s.stopped() || errors.Is(err, ErrStationStopped) {
				break
			}
			s.log.ErrorWithErr(err, "Giving up connecting to CSMS")
			stopReason = "csms unreachable"
			runErr = err
			break
		}
		reconnect = true

		s.runSession(ctx, client)

		if ctx.Err() != nil || s.stopped() {
			break
		}
		if s.resetInFlight() {
			// 模拟重启耗时，之后以RemoteReset原因重新上线
			if !s.sleepFor(ctx, s.tpl.ResetPause()) {
				break
			}
			s.clearReset()
			s.bootReason.Store(ocpp201.BootReasonRemoteReset)
		}
	}

	s.persistSnapshot(context.Background())
	s.emit(s.events.CreateStationStoppedEvent(s.name, stopReason, s.metadata()))
	s.log.Infof("Station stopped: reason=%s", stopReason)
	return runErr
}

// Shutdown 请求停机并等待主循环退出，实现 worker.Element
func (s *Station) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.runDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopped 停机信号是否已发出
func (s *Station) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// sleepFor 可被停机或撤销打断的等待
func (s *Station) sleepFor(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	}
}

// connect 按指数退避策略拨号CSMS，重试间隔从初始值翻倍直到上限
func (s *Station) connect(ctx context.Context, reconnect bool) (*wsclient.Client, error) {
	if reconnect {
		metrics.Reconnects.Inc()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.csms.ReconnectInitialDelay
	policy.MaxInterval = s.csms.ReconnectMaxDelay
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	policy.Reset()

	var wrapped backoff.BackOff = backoff.WithContext(policy, ctx)
	if s.csms.ReconnectMaxRetries > 0 {
		wrapped = backoff.WithMaxRetries(wrapped, s.csms.ReconnectMaxRetries)
	}

	var client *wsclient.Client
	operation := func() error {
		if s.stopped() {
			return backoff.Permanent(ErrStationStopped)
		}
		c, err := wsclient.Dial(ctx, s.dialOptions(), s.log)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	var attempt uint64
	notify := func(err error, next time.Duration) {
		attempt++
		metrics.Reconnects.Inc()
		s.log.Warnf("Connect to CSMS failed: err=%v retryIn=%s attempt=%d",
			err, next.Round(time.Millisecond), attempt)
		s.emit(s.events.CreateStationReconnectingEvent(s.name, attempt, next, s.metadata()))
	}

	if err := backoff.RetryNotify(operation, wrapped, notify); err != nil {
		return nil, err
	}
	return client, nil
}

// dialOptions 基础认证用户名缺省取站点标识，符合安全配置1的惯例
func (s *Station) dialOptions() wsclient.Options {
	user := s.csms.BasicAuthUser
	if user == "" && s.csms.BasicAuthPassword != "" {
		user = s.name
	}
	return wsclient.Options{
		URL:               s.url,
		Subprotocol:       s.version.Subprotocol(),
		ConnectTimeout:    s.csms.ConnectTimeout,
		PingInterval:      s.pingInterval(),
		BasicAuthUser:     user,
		BasicAuthPassword: s.csms.BasicAuthPassword,
		TLSSkipVerify:     s.csms.TLSSkipVerify,
	}
}

// runSession 一次CSMS连接的完整生命周期：注册、心跳、状态上报、
// 自动交易，直到连接断开、停机、宿主撤销或重置拆除
func (s *Station) runSession(ctx context.Context, client *wsclient.Client) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setClient(client)
	s.setRegistration(RegistrationBooting)
	s.openHandlerGate()

	s.emit(s.events.CreateStationConnectedEvent(s.name, s.stationInfo(events.StationStatusOnline), s.metadata()))
	s.log.Infof("Connected to CSMS: subprotocol=%s", s.version.Subprotocol())

	var wg sync.WaitGroup
	registered := make(chan struct{})

	wg.Add(3)
	go func() {
		defer wg.Done()
		s.readLoop(sessCtx, client)
	}()
	go func() {
		defer wg.Done()
		s.expireLoop(sessCtx)
	}()
	go func() {
		defer wg.Done()
		if s.bootLoop(sessCtx) {
			close(registered)
		}
	}()

	// 注册通过后才允许心跳、状态上报与自动交易
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sessCtx.Done():
			return
		case <-registered:
		}
		s.flushStatusNotifications(sessCtx)
		s.atg.start(sessCtx, &wg)
		s.heartbeatLoop(sessCtx)
	}()

	select {
	case <-client.Done():
	case <-ctx.Done():
	case <-s.stopCh:
	case <-s.rebootCh:
	}

	s.teardown(client, cancel)
	wg.Wait()
	s.persistSnapshot(context.Background())
}

// teardown 拆除当前会话：先停生成器与心跳，再把活动交易冲账，
// 最后关闭连接并让在途请求立即失败
func (s *Station) teardown(client *wsclient.Client, cancel context.CancelFunc) {
	cause := s.terminationCause()
	reason := s.disconnectReason(client)

	cancel()
	s.closeHandlerGate()

	if active := s.activeTransactions(); len(active) > 0 {
		sendStop := true
		if cause == stopCauseLocal && !s.tpl.IsStopTransactionsOnStopped() {
			sendStop = false
		}
		timeout := s.csms.MessageTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		flushCtx, cancelFlush := context.WithTimeout(context.Background(),
			time.Duration(len(active))*timeout+5*time.Second)
		for _, c := range active {
			s.finishTransaction(flushCtx, c, cause, sendStop)
		}
		cancelFlush()
	}

	s.sendStoppedStatuses(client)

	_ = client.Close()
	s.pending.FailAll(wsclient.ErrClosed)
	s.setClient(nil)
	s.setRegistration(RegistrationBooting)

	s.emit(s.events.CreateStationDisconnectedEvent(s.name, reason, s.metadata()))
	s.log.Infof("Disconnected from CSMS: reason=%s", reason)
}

// sendStoppedStatuses 有序停机时向CSMS通告连接器不可用。
// 连接已断开或尚未注册时跳过，只上报不改动本地连接器状态，
// 重启后由注册通过时的状态冲账恢复真实状态。
func (s *Station) sendStoppedStatuses(client *wsclient.Client) {
	if !s.tpl.IsNotifyStatusOnStopped() || !s.IsAccepted() {
		return
	}
	select {
	case <-client.Done():
		return
	default:
	}

	timeout := s.csms.MessageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()

	if !s.version.IsOCPP201() {
		if err := s.sendStatus16(ctx, 0, ocpp16.ChargePointStatusUnavailable); err != nil {
			return
		}
	}
	for _, c := range s.connectors {
		var err error
		if s.version.IsOCPP201() {
			req := &ocpp201.StatusNotificationRequest{
				Timestamp:       ocpp201.Now(),
				ConnectorStatus: ocpp201.ConnectorStatusUnavailable,
				EvseId:          c.EvseID(),
				ConnectorId:     c.ID(),
			}
			_, err = s.doCall(ctx, string(ocpp201.ActionStatusNotification), req)
		} else {
			err = s.sendStatus16(ctx, c.ID(), ocpp16.ChargePointStatusUnavailable)
		}
		if err != nil {
			s.log.Debugf("Stop status notification skipped: connector=%d err=%v", c.ID(), err)
			return
		}
	}
}

// disconnectReason 会话结束原因，事件流与日志共用
func (s *Station) disconnectReason(client *wsclient.Client) string {
	select {
	case <-client.Done():
		if err := client.Err(); err != nil && !errors.Is(err, wsclient.ErrClosed) {
			return err.Error()
		}
		return "connection lost"
	default:
	}
	if s.resetInFlight() {
		return "reset"
	}
	if s.stopped() {
		return "station stopping"
	}
	return "context canceled"
}

// bootOutcome BootNotification交换的归一化结果
type bootOutcome struct {
	status   string
	interval int
}

// bootLoop 周期发送BootNotification直到Accepted。Pending与Rejected
// 按CSMS给的间隔重试，间隔缺省60秒；TriggerMessage可提前唤醒。
// 返回true表示注册通过。
func (s *Station) bootLoop(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		outcome, err := s.sendBootNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.log.Warnf("BootNotification failed: %v", err)
			if !s.waitBootRetry(ctx, defaultBootRetrySecs) {
				return false
			}
			continue
		}

		switch outcome.status {
		case string(ocpp16.RegistrationStatusAccepted):
			if outcome.interval > 0 {
				s.applyHeartbeatInterval(outcome.interval)
			}
			s.setRegistration(RegistrationAccepted)
			s.log.Infof("Registration accepted: heartbeatInterval=%s", s.heartbeatInterval())
			s.emit(s.events.CreateStationRegisteredEvent(
				s.name, s.stationInfo(events.StationStatusRegistered), outcome.interval, s.metadata()))
			return true

		case string(ocpp16.RegistrationStatusPending):
			s.setRegistration(RegistrationPending)
			s.log.Infof("Registration pending: retryInterval=%ds", outcome.interval)
			s.emit(s.events.CreateStationPendingEvent(s.name, outcome.interval, s.metadata()))
			if !s.waitBootRetry(ctx, outcome.interval) {
				return false
			}

		case string(ocpp16.RegistrationStatusRejected):
			s.setRegistration(RegistrationRejected)
			s.log.Warnf("Registration rejected: retryInterval=%ds", outcome.interval)
			s.emit(s.events.CreateStationRejectedEvent(s.name, outcome.interval, s.metadata()))
			if !s.waitBootRetry(ctx, outcome.interval) {
				return false
			}

		default:
			s.log.Errorf("Unexpected registration status: %s", outcome.status)
			if !s.waitBootRetry(ctx, defaultBootRetrySecs) {
				return false
			}
		}
	}
}

// waitBootRetry 等待下一轮注册重试，可被TriggerMessage唤醒
func (s *Station) waitBootRetry(ctx context.Context, secs int) bool {
	if secs <= 0 {
		secs = defaultBootRetrySecs
	}
	t := time.NewTimer(time.Duration(secs) * time.Second)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.bootWakeCh:
		s.log.Debugf("Boot retry triggered early")
		return true
	case <-ctx.Done():
		return false
	}
}

// wakeBoot 唤醒注册重试循环
func (s *Station) wakeBoot() {
	select {
	case s.bootWakeCh <- struct{}{}:
	default:
	}
}

// sendBootNotification 按协议版本发送启动通知并归一化应答
func (s *Station) sendBootNotification(ctx context.Context) (*bootOutcome, error) {
	if s.version.IsOCPP201() {
		req := &ocpp201.BootNotificationRequest{
			Reason: s.currentBootReason(),
			ChargingStation: ocpp201.ChargingStation{
				Model:      s.tpl.ChargePointModel,
				VendorName: s.tpl.ChargePointVendor,
			},
		}
		if s.tpl.ChargePointSerialNumber != "" {
			sn := s.tpl.ChargePointSerialNumber
			req.ChargingStation.SerialNumber = &sn
		}
		if s.tpl.FirmwareVersion != "" {
			fw := s.tpl.FirmwareVersion
			req.ChargingStation.FirmwareVersion = &fw
		}
		if s.tpl.ICCID != "" || s.tpl.IMSI != "" {
			modem := &ocpp201.Modem{}
			if s.tpl.ICCID != "" {
				iccid := s.tpl.ICCID
				modem.Iccid = &iccid
			}
			if s.tpl.IMSI != "" {
				imsi := s.tpl.IMSI
				modem.Imsi = &imsi
			}
			req.ChargingStation.Modem = modem
		}

		resp, err := s.call(ctx, string(ocpp201.ActionBootNotification), req)
		if err != nil {
			return nil, err
		}
		boot, ok := resp.(*ocpp201.BootNotificationResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected BootNotification response type %T", resp)
		}
		return &bootOutcome{status: string(boot.Status), interval: boot.Interval}, nil
	}

	req := &ocpp16.BootNotificationRequest{
		ChargePointVendor: s.tpl.ChargePointVendor,
		ChargePointModel:  s.tpl.ChargePointModel,
	}
	if s.tpl.ChargePointSerialNumber != "" {
		sn := s.tpl.ChargePointSerialNumber
		req.ChargePointSerialNumber = &sn
	}
	if s.tpl.FirmwareVersion != "" {
		fw := s.tpl.FirmwareVersion
		req.FirmwareVersion = &fw
	}
	if s.tpl.ICCID != "" {
		iccid := s.tpl.ICCID
		req.Iccid = &iccid
	}
	if s.tpl.IMSI != "" {
		imsi := s.tpl.IMSI
		req.Imsi = &imsi
	}
	if s.tpl.MeterType != "" {
		mt := s.tpl.MeterType
		req.MeterType = &mt
	}
	if s.tpl.MeterSerialNumber != "" {
		msn := s.tpl.MeterSerialNumber
		req.MeterSerialNumber = &msn
	}

	resp, err := s.call(ctx, string(ocpp16.ActionBootNotification), req)
	if err != nil {
		return nil, err
	}
	boot, ok := resp.(*ocpp16.BootNotificationResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected BootNotification response type %T", resp)
	}
	return &bootOutcome{status: string(boot.Status), interval: boot.Interval}, nil
}

// currentBootReason 本轮上线的启动原因，重置后为RemoteReset
func (s *Station) currentBootReason() ocpp201.BootReason {
	if reason, ok := s.bootReason.Load().(ocpp201.BootReason); ok {
		return reason
	}
	return ocpp201.BootReasonPowerUp
}

// flushStatusNotifications 注册通过后上报整站连接器状态。
// 1.6以0号连接器代表充电桩本体。
func (s *Station) flushStatusNotifications(ctx context.Context) {
	if !s.version.IsOCPP201() {
		s.sendStatus16(ctx, 0, ocpp16.ChargePointStatusAvailable)
	}
	for _, c := range s.connectors {
		s.notifyStatus(ctx, c)
	}
}

// heartbeatLoop 心跳循环。间隔热更新立即重排，任何主动请求
// 都会把下一次心跳顺延一个完整周期。
func (s *Station) heartbeatLoop(ctx context.Context) {
	interval := s.heartbeatInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()
	s.log.Debugf("Heartbeat loop started: interval=%s", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.heartbeatCh:
			interval = d
			resetTimer(timer, interval)
			s.log.Infof("Heartbeat interval updated: interval=%s", interval)
		case <-s.hbKickCh:
			resetTimer(timer, interval)
		case <-timer.C:
			s.sendHeartbeat(ctx)
			timer.Reset(interval)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// kickHeartbeat 任何主动请求都算一次通信，心跳窗口顺延
func (s *Station) kickHeartbeat() {
	select {
	case s.hbKickCh <- struct{}{}:
	default:
	}
}

// sendHeartbeat 发送心跳并记录CSMS侧时间。
// 走doCall：Pending阶段CSMS可用TriggerMessage索要心跳。
func (s *Station) sendHeartbeat(ctx context.Context) {
	var resp interface{}
	var err error
	if s.version.IsOCPP201() {
		resp, err = s.doCall(ctx, string(ocpp201.ActionHeartbeat), &ocpp201.HeartbeatRequest{})
	} else {
		resp, err = s.doCall(ctx, string(ocpp16.ActionHeartbeat), &ocpp16.HeartbeatRequest{})
	}
	if err != nil {
		s.log.Warnf("Heartbeat failed: %v", err)
		return
	}
	switch hb := resp.(type) {
	case *ocpp201.HeartbeatResponse:
		s.log.Debugf("Heartbeat acknowledged: csmsTime=%s", hb.CurrentTime.Format(time.RFC3339))
	case *ocpp16.HeartbeatResponse:
		s.log.Debugf("Heartbeat acknowledged: csmsTime=%s", hb.CurrentTime.Format(time.RFC3339))
	}
}

// expireLoop 周期清理超时的在途请求
func (s *Station) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.pending.Expire(time.Now()); n > 0 {
				s.log.Warnf("Expired pending calls: count=%d", n)
			}
		}
	}
}

// readLoop 消费CSMS下行帧直到连接关闭
func (s *Station) readLoop(ctx context.Context, client *wsclient.Client) {
	for data := range client.Received() {
		if err := s.validator.ValidateMessageSize(data, maxInboundBytes); err != nil {
			s.log.Warnf("Dropping oversized frame: %v", err)
			s.emit(s.events.CreateProtocolErrorEvent(s.name, events.ErrorInfo{
				Code:        events.ErrorCodeProtocolError,
				Description: err.Error(),
				Timestamp:   time.Now().UTC(),
			}, string(data[:128]), s.metadata()))
			continue
		}
		frame, err := serialization.ParseFrame(data)
		if err != nil {
			s.log.Warnf("Dropping malformed frame: %v", err)
			s.emit(s.events.CreateProtocolErrorEvent(s.name, events.ErrorInfo{
				Code:        events.ErrorCodeProtocolError,
				Description: err.Error(),
				Timestamp:   time.Now().UTC(),
			}, string(data), s.metadata()))
			continue
		}

		switch {
		case frame.IsCall():
			s.dispatch(ctx, frame, client)
		case frame.IsCallResult():
			if !s.pending.Resolve(frame) {
				s.log.Warnf("CallResult for unknown messageId: %s", frame.MessageID)
			}
		case frame.IsCallError():
			if !s.pending.Fail(frame) {
				s.log.Warnf("CallError for unknown messageId: %s", frame.MessageID)
			}
		}
	}
}

// dispatch 处理CSMS下发的Call：门禁、解码、执行、应答，处理器
// panic折算成InternalError应答而不拖垮会话
func (s *Station) dispatch(ctx context.Context, frame *serialization.Frame, client *wsclient.Client) {
	metrics.MessagesTotal.WithLabelValues("received", frame.Action, s.version.String()).Inc()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Handler panic: action=%s messageId=%s panic=%v", frame.Action, frame.MessageID, r)
			s.respondError(client, frame, serialization.ErrorInternalError, "internal error")
		}
	}()

	if s.RegistrationStatus() == RegistrationRejected {
		s.respondError(client, frame, serialization.ErrorSecurityError, "registration rejected by CSMS")
		return
	}

	// 严格模式下Pending阶段不接受交易类命令，注册前不能产生交易报文
	if s.tpl.OCPPStrictCompliance && s.RegistrationStatus() == RegistrationPending && isTransactionCommand(frame.Action) {
		s.respondError(client, frame, serialization.ErrorSecurityError, "station registration is pending")
		return
	}

	cmd := events.RemoteCommand{
		ID:         frame.MessageID,
		StationID:  s.name,
		Action:     frame.Action,
		Status:     events.CommandStatusExecuting,
		Parameters: rawToMap(frame.Payload),
		ReceivedAt: time.Now().UTC(),
	}
	s.emit(s.events.CreateCommandReceivedEvent(s.name, cmd, s.metadata()))

	handler, ok := s.handlers[frame.Action]
	if !ok {
		code := serialization.ErrorNotImplemented
		if s.knownAction(frame.Action) {
			code = serialization.ErrorNotSupported
		}
		desc := fmt.Sprintf("action %s is not supported by this station", frame.Action)
		s.respondError(client, frame, code, desc)
		s.emitCommandResult(cmd, events.CommandStatusRejected, code, desc, nil)
		return
	}

	resp, err := handler(ctx, frame)
	if err != nil {
		code := serialization.ErrorInternalError
		desc := err.Error()
		var cmdErr *commandError
		if errors.As(err, &cmdErr) {
			code = cmdErr.Code
			desc = cmdErr.Description
		}
		s.log.Warnf("Command failed: action=%s code=%s desc=%s", frame.Action, code, desc)
		s.respondError(client, frame, code, desc)
		s.emitCommandResult(cmd, events.CommandStatusFailed, code, desc, nil)
		return
	}

	s.respondResult(client, frame, resp)
	s.emitCommandResult(cmd, events.CommandStatusCompleted, "", "", resp)
}

// isTransactionCommand 会引发站点侧交易报文的远程命令
func isTransactionCommand(action string) bool {
	switch action {
	case string(ocpp201.ActionRequestStartTransaction),
		string(ocpp201.ActionRequestStopTransaction),
		string(ocpp16.ActionRemoteStartTransaction),
		string(ocpp16.ActionRemoteStopTransaction):
		return true
	}
	return false
}

// knownAction action是否在当前协议版本的词汇表中
func (s *Station) knownAction(action string) bool {
	if s.version.IsOCPP201() {
		return ocpp201.IsKnownAction(ocpp201.Action(action))
	}
	return ocpp16.IsKnownAction(ocpp16.Action(action))
}

// emitCommandResult 补全命令终态并发布执行结果事件
func (s *Station) emitCommandResult(cmd events.RemoteCommand, status events.CommandStatus, code, desc string, result interface{}) {
	now := time.Now().UTC()
	cmd.Status = status
	cmd.CompletedAt = &now
	if code != "" {
		cmd.ErrorCode = &code
	}
	if desc != "" {
		cmd.ErrorMessage = &desc
	}
	if result != nil {
		cmd.Result = toMap(result)
	}
	s.emit(s.events.CreateCommandExecutedEvent(s.name, cmd, s.metadata()))
}

// respondResult 回CallResult
func (s *Station) respondResult(client *wsclient.Client, frame *serialization.Frame, payload interface{}) {
	data, err := serialization.MarshalCallResult(frame.MessageID, payload)
	if err != nil {
		s.log.ErrorWithErr(err, "Failed to marshal CallResult")
		return
	}
	if err := client.Send(data); err != nil {
		s.log.Warnf("Failed to send CallResult: action=%s err=%v", frame.Action, err)
		return
	}
	metrics.MessagesTotal.WithLabelValues("sent", frame.Action, s.version.String()).Inc()
}

// respondError 回CallError
func (s *Station) respondError(client *wsclient.Client, frame *serialization.Frame, code, description string) {
	data, err := serialization.MarshalCallError(frame.MessageID, code, description, nil)
	if err != nil {
		s.log.ErrorWithErr(err, "Failed to marshal CallError")
		return
	}
	if err := client.Send(data); err != nil {
		s.log.Warnf("Failed to send CallError: action=%s err=%v", frame.Action, err)
		return
	}
	metrics.MessagesTotal.WithLabelValues("sent", frame.Action, s.version.String()).Inc()
}

// call 站点主动请求。未注册时只放行BootNotification。
func (s *Station) call(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	if !s.IsAccepted() && action != string(ocpp16.ActionBootNotification) {
		return nil, ErrNotRegistered
	}
	return s.doCall(ctx, action, payload)
}

// doCall 不经注册门禁的请求通道，TriggerMessage在Pending期间触发的
// 上报走这里。同一连接上同一时刻只允许一个在途请求。
func (s *Station) doCall(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	client := s.currentClient()
	if client == nil {
		return nil, errNotConnected
	}

	if s.tpl.OCPPStrictCompliance && payload != nil {
		if err := s.validator.ValidateStruct(payload); err != nil {
			return nil, fmt.Errorf("outgoing %s payload invalid: %w", action, err)
		}
	}

	timeout := s.csms.MessageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	messageID := uuid.NewString()
	data, err := serialization.MarshalCall(messageID, action, payload)
	if err != nil {
		return nil, err
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	req := s.pending.Add(messageID, action, timeout)
	if err := client.Send(data); err != nil {
		s.pending.Remove(messageID)
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues("sent", action, s.version.String()).Inc()
	s.kickHeartbeat()

	start := time.Now()
	backstop := time.NewTimer(timeout + 5*time.Second)
	defer backstop.Stop()

	select {
	case out := <-req.ResponseChan:
		metrics.RequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		if out.err != nil {
			if errors.Is(out.err, ErrCallTimeout) {
				metrics.CallTimeouts.Inc()
				s.emit(s.events.CreateCallTimeoutEvent(s.name, action, messageID, s.metadata()))
			}
			return nil, out.err
		}
		return out.payload, nil
	case <-ctx.Done():
		s.pending.Remove(messageID)
		return nil, ctx.Err()
	case <-backstop.C:
		s.pending.Remove(messageID)
		metrics.CallTimeouts.Inc()
		s.emit(s.events.CreateCallTimeoutEvent(s.name, action, messageID, s.metadata()))
		return nil, ErrCallTimeout
	}
}

// callWithRetry 交易相关消息超时后按配置重发
func (s *Station) callWithRetry(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	attempts := s.transactionAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := s.call(ctx, action, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, ErrCallTimeout) || attempt == attempts {
			break
		}
		retryIn := s.transactionRetryInterval()
		s.log.Warnf("Retrying %s after timeout: attempt=%d/%d wait=%s", action, attempt, attempts, retryIn)
		if !s.sleepFor(ctx, retryIn) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// requestReboot 登记重置原因并触发会话拆除。
// 返回false表示已有重置在途。
func (s *Station) requestReboot(cause stopCause) bool {
	if !s.markReset(cause) {
		return false
	}
	s.fireReboot()
	return true
}

// fireReboot 触发会话拆除信号
func (s *Station) fireReboot() {
	select {
	case s.rebootCh <- struct{}{}:
	default:
	}
}

// scheduleIdleReset 等全部交易自然结束后再执行重置。
// 调用方需已通过markReset占住重置席位。
func (s *Station) scheduleIdleReset(ctx context.Context) {
	ticker := time.NewTicker(resetIdlePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(s.activeTransactions()) == 0 {
				s.log.Infof("All transactions finished, executing deferred reset")
				s.fireReboot()
				return
			}
		}
	}
}

// openHandlerGate 新会话开始时放开处理器派生协程
func (s *Station) openHandlerGate() {
	s.bgMu.Lock()
	s.bgClosed = false
	s.bgMu.Unlock()
}

// spawnHandlerTask 托管处理器派生的协程，拆除开始后拒绝新派生
func (s *Station) spawnHandlerTask(fn func()) bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgClosed {
		return false
	}
	s.bgWg.Add(1)
	go func() {
		defer s.bgWg.Done()
		fn()
	}()
	return true
}

// closeHandlerGate 关闭派生并等待已有协程退出
func (s *Station) closeHandlerGate() {
	s.bgMu.Lock()
	s.bgClosed = true
	s.bgMu.Unlock()
	s.bgWg.Wait()
}

// registrationGauge 注册状态对应的指标槽位
func registrationGauge(state RegistrationState) (prometheus.Gauge, bool) {
	switch state {
	case RegistrationAccepted, RegistrationPending, RegistrationRejected:
		return metrics.StationsRegistered.WithLabelValues(strings.ToLower(string(state))), true
	}
	return nil, false
}

// rawToMap 原始JSON转通用map，事件流记录命令参数用
func rawToMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// toMap 结构体经JSON折算成通用map
func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return rawToMap(data)
}
