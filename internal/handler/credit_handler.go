package handler

import (
	"encoding/json"
	"strconv"

	"fittrack/internal/service"
	"fittrack/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// selfOrAdmin 非管理员只能访问自己的数据
func selfOrAdmin(c *gin.Context, userID int64) bool {
	if !actorFrom(c).CanAccessUser(userID) {
		response.Forbidden(c)
		return false
	}
	return true
}

// GetCredits 查询积分余额
// GET /users/:id/credits
func (h *Handler) GetCredits(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok || !selfOrAdmin(c, userID) {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id":        userID,
		"credit_balance": balance,
	})
}

// ListCreditTransactions 积分流水，最新的在前
// GET /users/:id/credits/transactions?limit=&offset=
func (h *Handler) ListCreditTransactions(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok || !selfOrAdmin(c, userID) {
		return
	}

	// 非法的 limit 按缺省处理，非法的 offset 按 0 处理
	var limit *int
	if raw, ok := c.GetQuery("limit"); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = &n
		}
	}
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.ledger.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, page)
}

// AdjustCreditsRequest 调整积分请求
type AdjustCreditsRequest struct {
	Delta         number           `json:"delta"`
	Reason        string           `json:"reason"`
	ReferenceType *string          `json:"reference_type"`
	ReferenceID   optional[number] `json:"reference_id"`
	Metadata      json.RawMessage  `json:"metadata"`
	AllowNegative bool             `json:"allowNegative"`
}

// AdjustCredits 管理员调整积分
// POST /users/:id/credits/adjust
func (h *Handler) AdjustCredits(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AdjustCreditsRequest
	if !bindJSON(c, &req) {
		return
	}
	delta, ok := integer(req.Delta)
	if !ok || delta == 0 {
		badRequest(c, service.ErrInvalidDelta)
		return
	}
	refID, fieldErr := int64Field(req.ReferenceID, service.ErrInvalidID)
	if fieldErr != nil {
		badRequest(c, fieldErr.WithMessage("reference_id must be an integer"))
		return
	}
	var metadata datatypes.JSON
	if len(req.Metadata) > 0 && string(req.Metadata) != "null" {
		metadata = datatypes.JSON(req.Metadata)
	}

	result, err := h.ledger.Adjust(c.Request.Context(), &service.AdjustRequest{
		ActorID:       actorFrom(c).UserID,
		UserID:        userID,
		Delta:         delta,
		Reason:        req.Reason,
		ReferenceType: req.ReferenceType,
		ReferenceID:   refID,
		Metadata:      metadata,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, result)
}

// VerifyCredits 对账：缓存余额与流水合计
// GET /users/:id/credits/verify
func (h *Handler) VerifyCredits(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	audit, err := h.ledger.Verify(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, audit)
}
