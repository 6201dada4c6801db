package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"fittrack/internal/service"
	"fittrack/pkg/logger"
	"fittrack/pkg/response"
	"fittrack/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Services handler 依赖的全部服务
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Ledger        *service.LedgerService
	Ordering      *service.OrderingService
	Sessions      *service.SessionService
	Exercises     *service.ExerciseService
	ExerciseTypes *service.TypeService
	SessionTypes  *service.TypeService
}

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	auth          *service.AuthService
	users         *service.UserService
	ledger        *service.LedgerService
	ordering      *service.OrderingService
	sessions      *service.SessionService
	exercises     *service.ExerciseService
	exerciseTypes *service.TypeService
	sessionTypes  *service.TypeService
	log           *logrus.Entry
}

func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{
		auth:          svc.Auth,
		users:         svc.Users,
		ledger:        svc.Ledger,
		ordering:      svc.Ordering,
		sessions:      svc.Sessions,
		exercises:     svc.Exercises,
		exerciseTypes: svc.ExerciseTypes,
		sessionTypes:  svc.SessionTypes,
		log:           log.Component("http"),
	}
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail 业务错误按 Kind 映射状态码，其余错误记录日志后返回 SERVER_ERROR
func (h *Handler) fail(c *gin.Context, err error) {
	var svcErr *service.Error
	switch {
	case errors.As(err, &svcErr):
		response.Error(c, statusFor(svcErr.Kind), svcErr.Code, svcErr.Message)
	case errors.Is(err, token.ErrInvalidToken):
		response.Unauthorized(c, response.CodeInvalidToken)
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
		response.ServerError(c)
	}
}

// badRequest 直接返回业务错误码
func badRequest(c *gin.Context, e *service.Error) {
	response.ParamError(c, e.Code, e.Message)
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.ParamError(c, response.CodeInvalidBody, err.Error())
		return false
	}
	return true
}

// pathID 解析正整数路径参数
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, response.CodeInvalidID, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// number 接受任意 JSON 标量并保存原文，字符串去掉引号，由调用方校验
type number string

func (n *number) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = number(s)
		return nil
	}
	*n = number(b)
	return nil
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt32 = decimal.NewFromInt(math.MinInt32)
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
)

// wholeNumber 解析整数（5.0 视为 5），不限范围
func wholeNumber(n number) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(string(n)))
	if err != nil || !d.IsInteger() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// integer 要求值为 int64 范围内的整数，超出范围视为非法而不是截断
func integer(n number) (int64, bool) {
	d, ok := wholeNumber(n)
	if !ok || d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, false
	}
	return d.IntPart(), true
}

// smallInteger 写入 INT 列的整数，超出 int32 范围视为非法
func smallInteger(n number) (int, bool) {
	d, ok := wholeNumber(n)
	if !ok || d.LessThan(minInt32) || d.GreaterThan(maxInt32) {
		return 0, false
	}
	return int(d.IntPart()), true
}

// position 目标位置，超出 int32 范围时饱和到边界，再由服务层收敛到 [0, n-1]
func position(n number) (int, bool) {
	d, ok := wholeNumber(n)
	switch {
	case !ok:
		return 0, false
	case d.LessThan(minInt32):
		return math.MinInt32, true
	case d.GreaterThan(maxInt32):
		return math.MaxInt32, true
	}
	return int(d.IntPart()), true
}

// optional 区分字段缺省、显式 null 和有值
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// intField 可选整数字段，非整数返回 code
func intField(o optional[number], code *service.Error) (*int, *service.Error) {
	if o.Value == nil {
		return nil, nil
	}
	v, ok := smallInteger(*o.Value)
	if !ok {
		return nil, code
	}
	return &v, nil
}

// decimalField 可选小数字段
func decimalField(o optional[number], code *service.Error) (decimal.NullDecimal, *service.Error) {
	if o.Value == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(*o.Value)))
	if err != nil {
		return decimal.NullDecimal{}, code
	}
	return decimal.NewNullDecimal(d), nil
}

func int64Field(o optional[number], code *service.Error) (*int64, *service.Error) {
	if o.Value == nil {
		return nil, nil
	}
	v, ok := integer(*o.Value)
	if !ok {
		return nil, code
	}
	return &v, nil
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"ok": true})
}
