package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// RemoteModel 是通过 HTTP 调用外部模型服务的 Classifier 实现（例如 sklearn/xgboost 的 Python 服务）。
//
// 请求格式（JSON）：
//
//	{"instances": [{"Pclass": 1, "Sex": 1, ...}]}
//
// 响应格式（JSON）：
//
//	{"labels": [1], "probabilities": [[0.18, 0.82]]}
//
// probabilities 可省略；省略时 PredictProba 返回错误。
// 调用受 ctx 约束：请求取消或超时会中断远程调用。
type RemoteModel struct {
	ID       string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRemoteModel(id, endpoint string, timeout time.Duration) *RemoteModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RemoteModel{
		ID:       id,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RemoteModel) Name() string {
	if m.ID == "" {
		return "remote"
	}
	return m.ID
}

type remoteResponse struct {
	Labels        []int        `json:"labels"`
	Probabilities [][2]float64 `json:"probabilities"`
}

// Predict 调用远程模型服务获取标签
func (m *RemoteModel) Predict(ctx context.Context, features Features) (int, error) {
	resp, err := m.call(ctx, features)
	if err != nil {
		return 0, err
	}
	if len(resp.Labels) != 1 {
		return 0, fmt.Errorf("response labels count mismatch: expected 1, got %d", len(resp.Labels))
	}
	if l := resp.Labels[0]; l != 0 && l != 1 {
		return 0, fmt.Errorf("response label %d is not binary", l)
	}
	return resp.Labels[0], nil
}

// PredictProba 调用远程模型服务获取概率
func (m *RemoteModel) PredictProba(ctx context.Context, features Features) ([2]float64, error) {
	resp, err := m.call(ctx, features)
	if err != nil {
		return [2]float64{}, err
	}
	if len(resp.Probabilities) != 1 {
		return [2]float64{}, fmt.Errorf("response probabilities count mismatch: expected 1, got %d", len(resp.Probabilities))
	}
	return resp.Probabilities[0], nil
}

func (m *RemoteModel) call(ctx context.Context, features Features) (*remoteResponse, error) {
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.Timeout}
	}

	jsonData, err := json.Marshal(map[string]any{
		"instances": []Features{features},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

var _ ProbabilisticClassifier = (*RemoteModel)(nil)
