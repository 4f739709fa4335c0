package protocol

// Version OCPP协议版本，取值与WebSocket子协议名一致
type Version string

// OCPP协议版本常量
const (
	VersionOCPP16  Version = "ocpp1.6"
	VersionOCPP201 Version = "ocpp2.0.1"

	// 默认版本
	DefaultVersion = VersionOCPP16
)

// SupportedVersions 模拟器支持的协议版本列表
var SupportedVersions = []Version{
	VersionOCPP16,
	VersionOCPP201,
}

// versionMapping 处理各种格式的版本号
// 2.0 的写法统一归一到 2.0.1：模拟器以 2.0.1 栈应答
var versionMapping = map[string]Version{
	"1.6":     VersionOCPP16,
	"ocpp1.6": VersionOCPP16,
	"OCPP1.6": VersionOCPP16,

	"2.0":       VersionOCPP201,
	"ocpp2.0":   VersionOCPP201,
	"OCPP2.0":   VersionOCPP201,
	"2.0.1":     VersionOCPP201,
	"ocpp2.0.1": VersionOCPP201,
	"OCPP2.0.1": VersionOCPP201,
}

// NormalizeVersion 规范化协议版本，未知版本返回空串
func NormalizeVersion(version string) Version {
	if normalized, exists := versionMapping[version]; exists {
		return normalized
	}
	return ""
}

// IsVersionSupported 检查版本是否支持
func IsVersionSupported(version string) bool {
	normalized := NormalizeVersion(version)
	if normalized == "" {
		return false
	}
	for _, supported := range SupportedVersions {
		if normalized == supported {
			return true
		}
	}
	return false
}

// Subprotocol 返回WebSocket握手使用的子协议名
func (v Version) Subprotocol() string {
	return string(v)
}

// String 实现 fmt.Stringer
func (v Version) String() string {
	return string(v)
}

// IsOCPP16 是否为1.6版本
func (v Version) IsOCPP16() bool {
	return v == VersionOCPP16
}

// IsOCPP201 是否为2.0.1版本
func (v Version) IsOCPP201() bool {
	return v == VersionOCPP201
}
