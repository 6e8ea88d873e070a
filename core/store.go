package core

import "context"

// HistoryStore 是历史预测存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 核心 Pipeline 不依赖它；由 predictor 在结果产生后写入
//
// 实现：
//   - store.MemoryStore（测试/开发）
//   - store.RedisStore（生产常用）
//   - store.SQLiteStore（单机持久化，predictions 表）
type HistoryStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Save 写入一条历史记录
	Save(ctx context.Context, entry *HistoryEntry) error

	// Get 按 ID 读取
	Get(ctx context.Context, id string) (*HistoryEntry, error)

	// Recent 返回最近 limit 条记录，按时间倒序
	Recent(ctx context.Context, limit int) ([]*HistoryEntry, error)

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示记录不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: entry not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为记录不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
