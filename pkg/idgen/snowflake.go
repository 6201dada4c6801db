package idgen

import (
	"fmt"
	"sync"
	"time"
)

// 积分流水号生成器
//
// 64 位布局：1 位符号 | 41 位毫秒时间戳 | 10 位节点号 | 12 位序列号
// 流水号对外展示，不使用自增主键，避免暴露业务量。

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	nodeBits       = 10
	sequenceBits   = 12
	maxNode        = -1 ^ (-1 << nodeBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Snowflake 单节点内线程安全的 ID 生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	node      int64
	sequence  int64
}

var (
	defaultMu        sync.Mutex
	defaultGenerator *Snowflake
)

// New 创建指定节点号的生成器
func New(node int64) (*Snowflake, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("node must be within 0-%d, got %d", maxNode, node)
	}
	return &Snowflake{node: node}, nil
}

// Init 设置默认生成器的节点号
func Init(node int64) error {
	g, err := New(node)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGenerator = g
	defaultMu.Unlock()
	return nil
}

func generator() *Snowflake {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultGenerator == nil {
		defaultGenerator = &Snowflake{node: 1}
	}
	return defaultGenerator
}

// NextID 默认生成器的下一个 ID
func NextID() int64 {
	return generator().Generate()
}

// Generate 生成 ID，同一毫秒内序列号用尽时等待下一毫秒
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// 时钟回拨，沿用上次的时间戳
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.timestamp = now

	return ((now - epoch) << timestampShift) | (s.node << nodeShift) | s.sequence
}

// GenerateTransactionNo 生成积分流水号
// 格式：TXN + 年月日时分秒 + 完整雪花 ID，例如 TXN20240115143052_1234567890123
func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%s_%d", time.Now().Format("20060102150405"), NextID())
}
