package feast

import (
	"strconv"
	"strings"
)

// NewClient 根据端点创建 gRPC 客户端
//
// 示例：
//
//	client, err := feast.NewClient("grpc://localhost:6565", "titanic")
func NewClient(endpoint, project string, opts ...ClientOption) (Client, error) {
	host, port := parseEndpoint(endpoint)
	c, err := NewGrpcClient(host, port, project, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// parseEndpoint 解析端点地址，返回 host 和 port；没有端口时 port 为 0
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "grpc://")

	if i := strings.LastIndex(endpoint, ":"); i >= 0 {
		if port, err := strconv.Atoi(endpoint[i+1:]); err == nil {
			return endpoint[:i], port
		}
	}
	return endpoint, 0
}
