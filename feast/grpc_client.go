package feast

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
type GrpcClient struct {
	client *feastsdk.GrpcClient

	Project  string
	Endpoint string
	Timeout  time.Duration
}

// NewGrpcClient 创建 Feast gRPC 客户端。
//
// 参数：
//   - host: Feast Serving 主机地址，例如 "localhost"
//   - port: gRPC 端口，0 表示默认 6565
//   - project: 项目名称
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if config.Auth != nil && config.Auth.Type == "static" && config.Auth.Token != "" {
		security := feastsdk.SecurityConfig{
			Credential: feastsdk.NewStaticCredential(config.Auth.Token),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client: %w", err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
		Timeout:  config.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			entityRow[k] = convertToSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features: %w", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	vectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if v := convertFromSDKValue(row[name]); v != nil {
				values[name] = v
			}
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 释放客户端（实现 Client 接口）；底层连接由 gRPC 库管理。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

// convertToSDKValue 把实体键转为 SDK 值类型
func convertToSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// convertFromSDKValue 把 SDK 值转为 int64 / float64 / string；未设置的值返回 nil。
func convertFromSDKValue(val *types.Value) any {
	if val == nil {
		return nil
	}
	switch v := val.GetVal().(type) {
	case *types.Value_StringVal:
		return v.StringVal
	case *types.Value_Int64Val:
		return v.Int64Val
	case *types.Value_Int32Val:
		return int64(v.Int32Val)
	case *types.Value_DoubleVal:
		return v.DoubleVal
	case *types.Value_FloatVal:
		return float64(v.FloatVal)
	case *types.Value_BoolVal:
		if v.BoolVal {
			return int64(1)
		}
		return int64(0)
	case *types.Value_BytesVal:
		return string(v.BytesVal)
	default:
		return nil
	}
}

var _ Client = (*GrpcClient)(nil)
