// Package sequence 维护“位置即整数键”的有序集合。
//
// 训练课条目的 order_index 只允许通过这里计算出的 Slot 写回存储，
// reorder、move、compact 三种操作共用同一套位置计算和差异比较。
package sequence

import (
	"sort"
)

// Slot 一个条目及其位置
type Slot struct {
	ID    int64
	Index int
}

// Clamp 把目标位置收敛到 [0, n-1]，n 为 0 时返回 0
func Clamp(target, n int) int {
	if n <= 0 || target < 0 {
		return 0
	}
	if target > n-1 {
		return n - 1
	}
	return target
}

// Ordered 按 (Index, ID) 升序返回条目 id
func Ordered(slots []Slot) []int64 {
	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Index != sorted[j].Index {
			return sorted[i].Index < sorted[j].Index
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]int64, len(sorted))
	for i, s := range sorted {
		ids[i] = s.ID
	}
	return ids
}

// Assign 以在序列中的下标作为新位置
func Assign(ids []int64) []Slot {
	slots := make([]Slot, len(ids))
	for i, id := range ids {
		slots[i] = Slot{ID: id, Index: i}
	}
	return slots
}

// Move 把 from 处的元素移动到 to，中间区间整体平移一位，返回新序列
func Move(ids []int64, from, to int) []int64 {
	out := make([]int64, 0, len(ids))
	if from < 0 || from >= len(ids) {
		return append(out, ids...)
	}
	to = Clamp(to, len(ids))
	moved := ids[from]

	for i, id := range ids {
		if i != from {
			out = append(out, id)
		}
	}
	out = append(out, 0)
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// Changed 返回 desired 中位置与 current 不同的条目，只有这些行需要写回
func Changed(current, desired []Slot) []Slot {
	was := make(map[int64]int, len(current))
	for _, s := range current {
		was[s.ID] = s.Index
	}

	var diff []Slot
	for _, s := range desired {
		if idx, ok := was[s.ID]; ok && idx == s.Index {
			continue
		}
		diff = append(diff, s)
	}
	return diff
}

// Position 返回 id 在序列中的下标，不存在时返回 -1
func Position(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// HasDuplicates 序列中是否有重复 id
func HasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
