// Package history stores the bounded per-session conversation history used by
// the response generator.
package history

import (
	"context"

	"github.com/BaSui01/voicerelay/types"
)

// UpdateFunc 接收当前历史并返回新历史。返回错误时不写入任何变更。
type UpdateFunc func(turns []types.Turn) ([]types.Turn, error)

// Store 是按会话 ID 分区的历史存储。
// 同一 ID 的 Update 彼此串行；不同 ID 互不阻塞。
type Store interface {
	// Load 返回会话历史的副本，不存在时返回空切片
	Load(ctx context.Context, sessionID string) ([]types.Turn, error)
	// Update 原子地读取-修改-写回会话历史
	Update(ctx context.Context, sessionID string, fn UpdateFunc) error
	// Delete 删除会话历史
	Delete(ctx context.Context, sessionID string) error
}

// Trim 保留最近的 n 轮，丢弃最早的轮次
func Trim(turns []types.Turn, n int) []types.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func clone(turns []types.Turn) []types.Turn {
	if len(turns) == 0 {
		return []types.Turn{}
	}
	out := make([]types.Turn, len(turns))
	copy(out, turns)
	return out
}
