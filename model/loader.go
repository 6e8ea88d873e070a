package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rushteam/survkit/core"
)

// Loader 从某个来源加载模型制品
type Loader interface {
	Load(ctx context.Context, source string) (*Artifact, error)
}

// FileLoader 本地文件加载器
type FileLoader struct{}

// NewFileLoader 创建本地文件加载器
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load 从本地 JSON 文件加载制品
func (l *FileLoader) Load(_ context.Context, path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ModelLoadError{Source: path, Err: err}
	}
	a, err := ParseArtifact(data)
	if err != nil {
		return nil, &core.ModelLoadError{Source: path, Err: err}
	}
	return a, nil
}

// HTTPLoader HTTP 接口制品加载器（例如模型仓库的下载地址）
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader 创建 HTTP 加载器
//
// 用法：
//
//	loader := model.NewHTTPLoader(10 * time.Second)
//	a, err := loader.Load(ctx, "http://models.internal/titanic/v2/artifact.json")
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

// NewHTTPLoaderWithClient 使用自定义 HTTP 客户端创建加载器
func NewHTTPLoaderWithClient(client *http.Client) *HTTPLoader {
	return &HTTPLoader{client: client}
}

// Load 从 HTTP 接口加载制品
func (l *HTTPLoader) Load(ctx context.Context, url string) (*Artifact, error) {
	data, err := l.fetch(ctx, url)
	if err != nil {
		return nil, &core.ModelLoadError{Source: url, Err: err}
	}
	a, err := ParseArtifact(data)
	if err != nil {
		return nil, &core.ModelLoadError{Source: url, Err: err}
	}
	return a, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http status=%d, body=%s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// Load 根据来源自动选择加载器：http(s):// 走 HTTP，其余按本地路径。
func Load(ctx context.Context, source string) (*Artifact, error) {
	if source == "" {
		return nil, &core.ModelLoadError{Source: source, Err: fmt.Errorf("empty model source")}
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewHTTPLoader(0).Load(ctx, source)
	}
	return NewFileLoader().Load(ctx, strings.TrimPrefix(source, "file://"))
}
