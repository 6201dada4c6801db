package handler

import (
	"encoding/json"
	"math"
	"strings"

	"fittrack/internal/service"
	"fittrack/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListSessions GET /sessions?include=exercises|all
func (h *Handler) ListSessions(c *gin.Context) {
	include := strings.ToLower(c.Query("include"))
	if include == "exercises" || include == "all" {
		details, err := h.sessions.ListWithExercises(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, details)
		return
	}

	views, err := h.sessions.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, views)
}

// GetSession 训练课详情，始终带条目
// GET /sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, detail)
}

// SessionRequest 创建和更新共用，字段缺省表示不修改，null 表示清空
type SessionRequest struct {
	Title    *string          `json:"title"`
	Notes    optional[string] `json:"notes"`
	TypeID   optional[number] `json:"type_id"`
	RestTime optional[number] `json:"restTime"`
}

func (r *SessionRequest) input() (*service.SessionInput, *service.Error) {
	typeID, err := int64Field(r.TypeID, service.ErrInvalidTypeID)
	if err != nil {
		return nil, err
	}
	restTime, err := intField(r.RestTime, service.ErrInvalidRestTime)
	if err != nil {
		return nil, err
	}
	return &service.SessionInput{
		Title:       r.Title,
		SetNotes:    r.Notes.Set,
		Notes:       r.Notes.Value,
		SetTypeID:   r.TypeID.Set,
		TypeID:      typeID,
		SetRestTime: r.RestTime.Set,
		RestTime:    restTime,
	}, nil
}

// CreateSession POST /sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	in, fieldErr := req.input()
	if fieldErr != nil {
		badRequest(c, fieldErr)
		return
	}

	detail, err := h.sessions.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, detail)
}

// UpdateSession PUT /sessions/:id
func (h *Handler) UpdateSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	in, fieldErr := req.input()
	if fieldErr != nil {
		badRequest(c, fieldErr)
		return
	}

	detail, err := h.sessions.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, detail)
}

// DeleteSession DELETE /sessions/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// EntryRequest 添加或更新条目
type EntryRequest struct {
	ExerciseID number           `json:"exercise_id"`
	Weight     optional[number] `json:"weight"`
	Reps       optional[number] `json:"reps"`
	OrderIndex optional[number] `json:"order_index"`
}

func (r *EntryRequest) fields() (weight decimal.NullDecimal, reps, orderIndex *int, err *service.Error) {
	if weight, err = decimalField(r.Weight, service.ErrInvalidWeight); err != nil {
		return
	}
	if reps, err = intField(r.Reps, service.ErrInvalidReps); err != nil {
		return
	}
	orderIndex, err = intField(r.OrderIndex, service.ErrInvalidOrderIndex)
	return
}

// AddEntry 添加动作到训练课，未指定 order_index 时追加到末尾
// POST /sessions/:id/exercises
func (h *Handler) AddEntry(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EntryRequest
	if !bindJSON(c, &req) {
		return
	}
	exerciseID, ok := integer(req.ExerciseID)
	if !ok || exerciseID <= 0 {
		badRequest(c, service.ErrMissingExerciseID)
		return
	}
	weight, reps, orderIndex, fieldErr := req.fields()
	if fieldErr != nil {
		badRequest(c, fieldErr)
		return
	}

	entry, err := h.ordering.AddEntry(c.Request.Context(), &service.AddEntryRequest{
		SessionID:  sessionID,
		ExerciseID: exerciseID,
		Weight:     weight,
		Reps:       reps,
		OrderIndex: orderIndex,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, entry)
}

// UpdateEntry 更新重量、次数或位置
// PUT /sessions/:id/exercises/:entryId
func (h *Handler) UpdateEntry(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	var req EntryRequest
	if !bindJSON(c, &req) {
		return
	}
	weight, reps, orderIndex, fieldErr := req.fields()
	if fieldErr != nil {
		badRequest(c, fieldErr)
		return
	}

	entry, err := h.ordering.UpdateEntry(c.Request.Context(), &service.UpdateEntryRequest{
		SessionID:  sessionID,
		EntryID:    entryID,
		SetWeight:  req.Weight.Set,
		Weight:     weight,
		SetReps:    req.Reps.Set,
		Reps:       reps,
		OrderIndex: orderIndex,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entry)
}

// DeleteEntry DELETE /sessions/:id/exercises/:entryId
func (h *Handler) DeleteEntry(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	if err := h.ordering.DeleteEntry(c.Request.Context(), sessionID, entryID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ReorderRequest 完整的条目 id 序列
type ReorderRequest struct {
	Order []number `json:"order"`
}

// ReorderEntries 按 id 序列重排
// PUT /sessions/:id/exercises/reorder
func (h *Handler) ReorderEntries(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	entries, err := h.ordering.Reorder(c.Request.Context(), sessionID, reorderIDs(req.Order))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": sessionID, "exercises": entries})
}

// reorderIDs 非整数 id 换成互不相同且不会命中任何条目的占位值，
// 空序列、重复、数量和归属的校验顺序交给服务层
func reorderIDs(raw []number) []int64 {
	ids := make([]int64, len(raw))
	seen := make(map[int64]bool, len(raw))
	var invalid []int
	for i, r := range raw {
		id, ok := integer(r)
		if !ok {
			invalid = append(invalid, i)
			continue
		}
		ids[i] = id
		seen[id] = true
	}

	next := int64(math.MinInt64)
	for _, i := range invalid {
		for seen[next] {
			next++
		}
		ids[i] = next
		next++
	}
	return ids
}

type orderItemRequest struct {
	ID         number `json:"id"`
	OrderIndex number `json:"order_index"`
}

// parseOrderMap 接受 [{id, order_index}] 或 {"order": [...]}
func parseOrderMap(body []byte) ([]orderItemRequest, bool) {
	var items []orderItemRequest
	if err := json.Unmarshal(body, &items); err == nil {
		return items, true
	}
	var wrapped struct {
		Order []orderItemRequest `json:"order"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, false
	}
	return wrapped.Order, true
}

// ReorderEntriesByMap 只修改列出的条目
// PUT /sessions/exercises/reorder-map/:id
func (h *Handler) ReorderEntriesByMap(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		response.ParamError(c, response.CodeInvalidBody, err.Error())
		return
	}
	raw, ok := parseOrderMap(body)
	if !ok {
		response.ParamError(c, response.CodeInvalidBody, "expected an array or {\"order\": [...]}")
		return
	}

	items := make([]service.OrderItem, len(raw))
	for i, r := range raw {
		id, ok := integer(r.ID)
		if !ok || id <= 0 {
			badRequest(c, service.ErrInvalidID)
			return
		}
		idx, ok := smallInteger(r.OrderIndex)
		if !ok || idx < 0 {
			badRequest(c, service.ErrInvalidOrderIndex)
			return
		}
		items[i] = service.OrderItem{ID: id, OrderIndex: idx}
	}

	entries, err := h.ordering.ReorderMap(c.Request.Context(), sessionID, items)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": sessionID, "exercises": entries})
}

// MoveRequest new_index 超出范围时收敛到首尾
type MoveRequest struct {
	NewIndex number `json:"new_index"`
}

// MoveEntry 把条目移动到指定位置
// PATCH /sessions/:id/exercises/:entryId/move
func (h *Handler) MoveEntry(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entryId")
	if !ok {
		return
	}
	var req MoveRequest
	if !bindJSON(c, &req) {
		return
	}
	target, ok := position(req.NewIndex)
	if !ok {
		badRequest(c, service.ErrInvalidTargetIndex)
		return
	}

	entries, err := h.ordering.Move(c.Request.Context(), sessionID, entryID, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": sessionID, "exercises": entries})
}

// CompactEntries 重新编号为 0..n-1
// POST /sessions/:id/exercises/compact
func (h *Handler) CompactEntries(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.ordering.Compact(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"session_id": sessionID, "compacted": true})
}
