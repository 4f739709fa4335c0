package serialization

import (
	"encoding/json"
	"fmt"
)

// MessageType OCPP-J消息类型
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// OCPP-J RPC错误码，1.6与2.0.1通用
const (
	ErrorFormationViolation            = "FormationViolation"
	ErrorGenericError                  = "GenericError"
	ErrorInternalError                 = "InternalError"
	ErrorNotImplemented                = "NotImplemented"
	ErrorNotSupported                  = "NotSupported"
	ErrorOccurrenceConstraintViolation = "OccurrenceConstraintViolation"
	ErrorPropertyConstraintViolation   = "PropertyConstraintViolation"
	ErrorProtocolError                 = "ProtocolError"
	ErrorSecurityError                 = "SecurityError"
	ErrorTypeConstraintViolation       = "TypeConstraintViolation"
)

// Frame 解析后的OCPP-J消息帧。payload保持json.RawMessage，
// 由调用方按版本和action决定解码到哪个类型。
type Frame struct {
	MessageType      MessageType
	MessageID        string
	Action           string
	Payload          json.RawMessage
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// IsCall 是否为请求帧
func (f *Frame) IsCall() bool {
	return f.MessageType == MessageTypeCall
}

// IsCallResult 是否为应答帧
func (f *Frame) IsCallResult() bool {
	return f.MessageType == MessageTypeCallResult
}

// IsCallError 是否为错误帧
func (f *Frame) IsCallError() bool {
	return f.MessageType == MessageTypeCallError
}

// SerializationError 序列化错误
type SerializationError struct {
	Operation string
	Message   string
	Cause     error
}

// Error 实现error接口
func (e SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap 暴露底层错误
func (e SerializationError) Unwrap() error {
	return e.Cause
}

// emptyObject payload为nil时的占位，OCPP-J要求payload必须是JSON对象
var emptyObject = json.RawMessage(`{}`)

// MarshalCall 编码请求帧 [2, messageId, action, payload]
func MarshalCall(messageID string, action string, payload interface{}) ([]byte, error) {
	payloadData, err := marshalPayload("MarshalCall", payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal([]interface{}{MessageTypeCall, messageID, action, payloadData})
	if err != nil {
		return nil, SerializationError{
			Operation: "MarshalCall",
			Message:   "Failed to marshal JSON array",
			Cause:     err,
		}
	}
	return data, nil
}

// MarshalCallResult 编码应答帧 [3, messageId, payload]
func MarshalCallResult(messageID string, payload interface{}) ([]byte, error) {
	payloadData, err := marshalPayload("MarshalCallResult", payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal([]interface{}{MessageTypeCallResult, messageID, payloadData})
	if err != nil {
		return nil, SerializationError{
			Operation: "MarshalCallResult",
			Message:   "Failed to marshal JSON array",
			Cause:     err,
		}
	}
	return data, nil
}

// MarshalCallError 编码错误帧 [4, messageId, errorCode, errorDescription, errorDetails]。
// 发送侧始终带5个元素，details为空时填{}。
func MarshalCallError(messageID string, errorCode string, errorDescription string, errorDetails interface{}) ([]byte, error) {
	detailsData, err := marshalPayload("MarshalCallError", errorDetails)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal([]interface{}{MessageTypeCallError, messageID, errorCode, errorDescription, detailsData})
	if err != nil {
		return nil, SerializationError{
			Operation: "MarshalCallError",
			Message:   "Failed to marshal JSON array",
			Cause:     err,
		}
	}
	return data, nil
}

func marshalPayload(operation string, payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return emptyObject, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, SerializationError{
			Operation: operation,
			Message:   "Failed to marshal payload",
			Cause:     err,
		}
	}
	return data, nil
}

// ParseFrame 解析原始OCPP-J消息。不解码payload本身，
// 只校验数组骨架：类型、ID和元素个数。
func ParseFrame(data []byte) (*Frame, error) {
	var elements []json.RawMessage

	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   "Failed to unmarshal JSON array",
			Cause:     err,
		}
	}

	if len(elements) < 3 {
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   "Message array too short",
		}
	}

	var msgType int
	if err := json.Unmarshal(elements[0], &msgType); err != nil {
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   "Failed to parse message type",
			Cause:     err,
		}
	}

	var msgID string
	if err := json.Unmarshal(elements[1], &msgID); err != nil {
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   "Failed to parse message ID",
			Cause:     err,
		}
	}
	if msgID == "" {
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   "Message ID must not be empty",
		}
	}

	frame := &Frame{
		MessageType: MessageType(msgType),
		MessageID:   msgID,
	}

	switch frame.MessageType {
	case MessageTypeCall:
		if len(elements) != 4 {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "Call message must have exactly 4 elements",
			}
		}
		if err := json.Unmarshal(elements[2], &frame.Action); err != nil {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "Failed to parse action",
				Cause:     err,
			}
		}
		frame.Payload = elements[3]
		return frame, nil

	case MessageTypeCallResult:
		if len(elements) != 3 {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "CallResult message must have exactly 3 elements",
			}
		}
		frame.Payload = elements[2]
		return frame, nil

	case MessageTypeCallError:
		// 部分CSMS省略details，按4或5个元素接受
		if len(elements) < 4 || len(elements) > 5 {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "CallError message must have 4 or 5 elements",
			}
		}
		if err := json.Unmarshal(elements[2], &frame.ErrorCode); err != nil {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "Failed to parse error code",
				Cause:     err,
			}
		}
		if err := json.Unmarshal(elements[3], &frame.ErrorDescription); err != nil {
			return nil, SerializationError{
				Operation: "ParseFrame",
				Message:   "Failed to parse error description",
				Cause:     err,
			}
		}
		if len(elements) == 5 {
			frame.ErrorDetails = elements[4]
		}
		return frame, nil

	default:
		return nil, SerializationError{
			Operation: "ParseFrame",
			Message:   fmt.Sprintf("Invalid message type: %d", msgType),
		}
	}
}

// DecodePayload 解码payload到目标类型
func DecodePayload(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		data = emptyObject
	}
	if err := json.Unmarshal(data, target); err != nil {
		return SerializationError{
			Operation: "DecodePayload",
			Message:   "Failed to unmarshal payload",
			Cause:     err,
		}
	}
	return nil
}

// PrettyPrint 格式化打印JSON，调试日志使用
func PrettyPrint(data []byte) ([]byte, error) {
	var temp interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return nil, SerializationError{
			Operation: "PrettyPrint",
			Message:   "Failed to parse JSON",
			Cause:     err,
		}
	}

	prettyData, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return nil, SerializationError{
			Operation: "PrettyPrint",
			Message:   "Failed to format JSON",
			Cause:     err,
		}
	}
	return prettyData, nil
}

// CompactJSON 压缩JSON
func CompactJSON(data []byte) ([]byte, error) {
	var temp interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return nil, SerializationError{
			Operation: "CompactJSON",
			Message:   "Failed to parse JSON",
			Cause:     err,
		}
	}

	compactData, err := json.Marshal(temp)
	if err != nil {
		return nil, SerializationError{
			Operation: "CompactJSON",
			Message:   "Failed to compact JSON",
			Cause:     err,
		}
	}
	return compactData, nil
}
