package handler

import (
	"fittrack/internal/service"
	"fittrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

// Register 注册
// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, user)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 登录并签发令牌
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Me 当前登录用户
// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	actor := actorFrom(c)
	user, err := h.users.Get(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"me": user})
}

// ListUsers 管理员查看全部用户
// GET /users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, users)
}

// GetMe GET /users/me
func (h *Handler) GetMe(c *gin.Context) {
	actor := actorFrom(c)
	user, err := h.users.Get(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser GET /users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateUserRequest 部分更新资料，name 传 null 表示清空
type UpdateUserRequest struct {
	Email    *string          `json:"email"`
	Name     optional[string] `json:"name"`
	Password *string          `json:"password"`
}

// UpdateUser 本人或管理员
// PATCH /users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actorFrom(c), id, &service.ProfileInput{
		Email:    req.Email,
		SetName:  req.Name.Set,
		Name:     req.Name.Value,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

// SetRoleRequest role 为角色名，role_id 为角色 id，二选一
type SetRoleRequest struct {
	Role   string           `json:"role"`
	RoleID optional[number] `json:"role_id"`
}

// SetUserRole 管理员修改角色
// PATCH /users/:id/role
func (h *Handler) SetUserRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	roleName := req.Role
	if roleName == "" {
		roleID, fieldErr := int64Field(req.RoleID, service.ErrInvalidRole)
		if fieldErr != nil || roleID == nil || *roleID <= 0 {
			badRequest(c, service.ErrInvalidRole)
			return
		}
		name, err := h.users.RoleName(c.Request.Context(), *roleID)
		if err != nil {
			h.fail(c, err)
			return
		}
		roleName = name
	}

	user, err := h.users.SetRole(c.Request.Context(), id, roleName)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true, "user": user})
}

// DeleteUser 本人或管理员
// DELETE /users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
