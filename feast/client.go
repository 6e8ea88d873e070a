// Package feast 通过 Feast 在线特征库补全乘客记录中缺失的字段。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 在线特征读取的客户端接口。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - Features: 特征引用，例如 ["passenger_stats:Fare", "passenger_stats:Cabin_Assigned"]
	//   - EntityRows: 实体行，例如 [{"passenger_id": 892}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	Features   []string
	EntityRows []map[string]any
	Project    string // 可选，默认使用客户端的项目
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 与 EntityRows 一一对应
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征引用 -> 值（int64 / float64 / string），缺失的特征不出现
	Values    map[string]any
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	Endpoint string
	Project  string
	Timeout  time.Duration
	Auth     *AuthConfig
}

// AuthConfig 认证配置；gRPC 仅支持 static（静态 Token）
type AuthConfig struct {
	Type  string
	Token string
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}
