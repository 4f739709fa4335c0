package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp16"
	"github.com/charging-platform/charge-station-simulator/internal/domain/ocpp201"
	"github.com/charging-platform/charge-station-simulator/internal/domain/protocol"
)

// Validator OCPP消息验证器
type Validator struct {
	validate *validator.Validate
}

// ValidationError 验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error 实现error接口
func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors 验证错误集合
type ValidationErrors []ValidationError

// Error 实现error接口
func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// stationIDPattern 站点标识规则，批量孵化时生成的名字形如 sim-le-001-00042
var stationIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,48}$`)

// NewValidator 创建新的验证器
func NewValidator() *Validator {
	validate := validator.New()

	// 注册自定义验证规则
	registerCustomValidations(validate)

	return &Validator{
		validate: validate,
	}
}

// ValidateStruct 验证结构体
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors

	if validatorErrors, ok := err.(validator.ValidationErrors); ok {
		for _, validatorError := range validatorErrors {
			validationError := ValidationError{
				Field:   validatorError.Field(),
				Tag:     validatorError.Tag(),
				Value:   fmt.Sprintf("%v", validatorError.Value()),
				Message: getErrorMessage(validatorError),
			}
			validationErrors = append(validationErrors, validationError)
		}
	}

	return validationErrors
}

// ValidateJSON 验证JSON格式
func (v *Validator) ValidateJSON(data []byte) error {
	var temp interface{}
	return json.Unmarshal(data, &temp)
}

// ValidateOCPPMessage 验证OCPP消息骨架。payload传nil只校验信封。
func (v *Validator) ValidateOCPPMessage(version protocol.Version, messageType int, messageID string, action string, payload interface{}) error {
	// 验证消息类型
	if messageType < 2 || messageType > 4 {
		return ValidationError{
			Field:   "messageType",
			Tag:     "range",
			Value:   strconv.Itoa(messageType),
			Message: "Message type must be 2 (Call), 3 (CallResult), or 4 (CallError)",
		}
	}

	// 验证消息ID
	if messageID == "" {
		return ValidationError{
			Field:   "messageId",
			Tag:     "required",
			Value:   "",
			Message: "Message ID is required",
		}
	}

	if len(messageID) > 36 {
		return ValidationError{
			Field:   "messageId",
			Tag:     "max",
			Value:   messageID,
			Message: "Message ID must not exceed 36 characters",
		}
	}

	// 对于Call消息，验证action
	if messageType == 2 {
		if action == "" {
			return ValidationError{
				Field:   "action",
				Tag:     "required",
				Value:   "",
				Message: "Action is required for Call messages",
			}
		}

		if !IsValidAction(version, action) {
			return ValidationError{
				Field:   "action",
				Tag:     "invalid",
				Value:   action,
				Message: fmt.Sprintf("Invalid %s action", version),
			}
		}
	}

	// 验证payload
	if payload != nil {
		return v.ValidateStruct(payload)
	}

	return nil
}

// IsValidAction 检查action是否属于对应协议版本的词汇表
func IsValidAction(version protocol.Version, action string) bool {
	switch version {
	case protocol.VersionOCPP16:
		return ocpp16.IsKnownAction(ocpp16.Action(action))
	case protocol.VersionOCPP201:
		return ocpp201.IsKnownAction(ocpp201.Action(action))
	default:
		return false
	}
}

// registerCustomValidations 注册自定义验证规则
func registerCustomValidations(validate *validator.Validate) {
	// 注册OCPP特定的验证规则
	validate.RegisterValidation("ocpp_datetime", validateOCPPDateTime)
	validate.RegisterValidation("ocpp_identifier", validateOCPPIdentifier)
	validate.RegisterValidation("ocpp_id_token", validateOCPPIdToken)
	validate.RegisterValidation("ocpp_connector_id", validateOCPPConnectorId)
}

// validateOCPPDateTime 验证OCPP日期时间格式
func validateOCPPDateTime(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 允许空值，required标签会处理必填验证
	}

	// OCPP使用RFC3339格式，允许小数秒
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339Nano, value)
	return err == nil
}

// identifierPattern OCPP identifierString字符集
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9*_=:+|@.-]+$`)

// validateOCPPIdentifier 验证OCPP identifierString字段
func validateOCPPIdentifier(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return identifierPattern.MatchString(value)
}

// validateOCPPIdToken 验证授权令牌。1.6的idTag上限20字符，
// 2.0.1的idToken上限36，这里按宽的一侧放行，精确长度由min/max标签约束。
func validateOCPPIdToken(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}

	if len(value) > 36 {
		return false
	}

	return identifierPattern.MatchString(value)
}

// validateOCPPConnectorId 验证连接器ID
func validateOCPPConnectorId(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	// 连接器ID必须大于等于0
	return value >= 0
}

// getErrorMessage 获取友好的错误消息
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("Field '%s' must be a valid URL", fe.Field())
	case "ocpp_datetime":
		return fmt.Sprintf("Field '%s' must be a valid RFC3339 datetime", fe.Field())
	case "ocpp_identifier":
		return fmt.Sprintf("Field '%s' must be a valid OCPP identifier string", fe.Field())
	case "ocpp_id_token":
		return fmt.Sprintf("Field '%s' must be a valid ID token (max 36 identifier characters)", fe.Field())
	case "ocpp_connector_id":
		return fmt.Sprintf("Field '%s' must be a valid connector ID (>= 0)", fe.Field())
	default:
		return fmt.Sprintf("Field '%s' failed validation for tag '%s'", fe.Field(), fe.Tag())
	}
}

// ValidateMessageSize 验证消息大小
func (v *Validator) ValidateMessageSize(data []byte, maxSize int) error {
	if len(data) > maxSize {
		return ValidationError{
			Field:   "message",
			Tag:     "max_size",
			Value:   fmt.Sprintf("%d bytes", len(data)),
			Message: fmt.Sprintf("Message size %d bytes exceeds maximum allowed size %d bytes", len(data), maxSize),
		}
	}
	return nil
}

// ValidateStationID 验证站点ID
func (v *Validator) ValidateStationID(stationID string) error {
	if stationID == "" {
		return ValidationError{
			Field:   "stationId",
			Tag:     "required",
			Value:   "",
			Message: "Station ID is required",
		}
	}

	if !stationIDPattern.MatchString(stationID) {
		return ValidationError{
			Field:   "stationId",
			Tag:     "format",
			Value:   stationID,
			Message: "Station ID must be 1-48 characters of [a-zA-Z0-9_-]",
		}
	}

	return nil
}

// ValidateProtocolVersion 验证协议版本
func (v *Validator) ValidateProtocolVersion(version string) error {
	if !protocol.IsVersionSupported(version) {
		return ValidationError{
			Field:   "protocolVersion",
			Tag:     "invalid",
			Value:   version,
			Message: "Unsupported protocol version",
		}
	}

	return nil
}
