package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"fittrack/internal/service"
	"fittrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// TypeRequest 类型的创建和更新，description 传 null 表示清空
type TypeRequest struct {
	Name        *string          `json:"name"`
	Description optional[string] `json:"description"`
}

func (r *TypeRequest) input() *service.TypeInput {
	return &service.TypeInput{
		Name:           r.Name,
		SetDescription: r.Description.Set,
		Description:    r.Description.Value,
	}
}

// typeRoutes 动作类型和训练课类型共用一套处理函数
type typeRoutes struct {
	h   *Handler
	svc *service.TypeService
}

func (t typeRoutes) list(c *gin.Context) {
	types, err := t.svc.List(c.Request.Context())
	if err != nil {
		t.h.fail(c, err)
		return
	}
	response.Success(c, types)
}

func (t typeRoutes) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ct, err := t.svc.Get(c.Request.Context(), id)
	if err != nil {
		t.h.fail(c, err)
		return
	}
	response.Success(c, ct)
}

func (t typeRoutes) create(c *gin.Context) {
	var req TypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := t.svc.Create(c.Request.Context(), req.input())
	if err != nil {
		t.h.fail(c, err)
		return
	}
	response.Created(c, ct)
}

func (t typeRoutes) update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := t.svc.Update(c.Request.Context(), id, req.input())
	if err != nil {
		t.h.fail(c, err)
		return
	}
	response.Success(c, ct)
}

func (t typeRoutes) remove(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := t.svc.Delete(c.Request.Context(), id); err != nil {
		t.h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ListExercises GET /exercises
func (h *Handler) ListExercises(c *gin.Context) {
	list, err := h.exercises.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// GetExercise GET /exercises/:id
func (h *Handler) GetExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ex, err := h.exercises.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ex)
}

// formFile 可选文件字段
func formFile(c *gin.Context, name string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return fh, err
}

// exerciseForm 解析 multipart 表单：title、type_id、image、video
func exerciseForm(c *gin.Context) (*service.ExerciseInput, bool) {
	in := &service.ExerciseInput{}
	if title, ok := c.GetPostForm("title"); ok {
		in.Title = &title
	}
	if raw, ok := c.GetPostForm("type_id"); ok {
		in.SetTypeID = true
		if raw = strings.TrimSpace(raw); raw != "" && raw != "null" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				badRequest(c, service.ErrInvalidTypeID)
				return nil, false
			}
			in.TypeID = &id
		}
	}

	var err error
	if in.Image, err = formFile(c, "image"); err != nil {
		response.ParamError(c, response.CodeInvalidBody, err.Error())
		return nil, false
	}
	if in.Video, err = formFile(c, "video"); err != nil {
		response.ParamError(c, response.CodeInvalidBody, err.Error())
		return nil, false
	}
	return in, true
}

// CreateExercise 管理员创建动作
// POST /exercises (multipart/form-data)
func (h *Handler) CreateExercise(c *gin.Context) {
	in, ok := exerciseForm(c)
	if !ok {
		return
	}
	ex, err := h.exercises.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, ex)
}

// UpdateExercise 管理员更新动作，新上传的文件替换旧文件
// PUT /exercises/:id (multipart/form-data)
func (h *Handler) UpdateExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := exerciseForm(c)
	if !ok {
		return
	}
	ex, err := h.exercises.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ex)
}

// DeleteExercise DELETE /exercises/:id
func (h *Handler) DeleteExercise(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.exercises.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
