package service

import (
	"errors"

	"fittrack/internal/model"

	"gorm.io/gorm"
)

// Kind 错误分类，handler 据此映射 HTTP 状态码
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
)

// Error 带稳定符号码的业务错误，不属于 Error 的错误一律视为基础设施错误
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// Is 按符号码比较，WithMessage 派生出的错误仍与原哨兵相等
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 复制一份并附带说明
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: msg}
}

func newError(kind Kind, code string) *Error {
	return &Error{Code: code, Kind: kind}
}

// 积分
var (
	ErrInvalidDelta        = newError(KindValidation, "INVALID_DELTA")
	ErrUserNotFound        = newError(KindNotFound, "USER_NOT_FOUND")
	ErrInsufficientCredits = newError(KindConflict, "INSUFFICIENT_CREDITS")
	ErrBalanceOutOfRange   = newError(KindConflict, "BALANCE_OUT_OF_RANGE")
)

// 排序
var (
	ErrSessionNotFound    = newError(KindNotFound, "SESSION_NOT_FOUND")
	ErrEntryNotFound      = newError(KindNotFound, "ENTRY_NOT_FOUND")
	ErrExerciseNotFound   = newError(KindNotFound, "EXERCISE_NOT_FOUND")
	ErrMissingExerciseID  = newError(KindValidation, "MISSING_EXERCISE_ID")
	ErrInvalidWeight      = newError(KindValidation, "INVALID_WEIGHT")
	ErrInvalidReps        = newError(KindValidation, "INVALID_REPS")
	ErrNoFields           = newError(KindValidation, "NO_FIELDS")
	ErrEmptyOrder         = newError(KindValidation, "EMPTY_ORDER")
	ErrDuplicatedIDs      = newError(KindValidation, "DUPLICATED_IDS")
	ErrMismatchCount      = newError(KindValidation, "MISMATCH_COUNT")
	ErrIDNotInSession     = newError(KindValidation, "ID_NOT_IN_SESSION")
	ErrInvalidID          = newError(KindValidation, "INVALID_ID")
	ErrInvalidOrderIndex  = newError(KindValidation, "INVALID_ORDER_INDEX")
	ErrInvalidTargetIndex = newError(KindValidation, "INVALID_NEW_INDEX")
)

// 训练课与目录
var (
	ErrMissingTitle    = newError(KindValidation, "MISSING_TITLE")
	ErrInvalidTypeID   = newError(KindValidation, "INVALID_TYPE_ID")
	ErrInvalidRestTime = newError(KindValidation, "INVALID_REST_TIME")
	ErrMissingName     = newError(KindValidation, "MISSING_NAME")
	ErrTypeNotFound    = newError(KindNotFound, "TYPE_NOT_FOUND")
	ErrNameInUse       = newError(KindConflict, "NAME_IN_USE")
	ErrReferenced      = newError(KindConflict, "REFERENCED")
	ErrUnsupportedMime = newError(KindValidation, "UNSUPPORTED_MIME")
	ErrFileTooLarge    = newError(KindValidation, "FILE_TOO_LARGE")
)

// 账号与权限
var (
	ErrMissingFields         = newError(KindValidation, "MISSING_FIELDS")
	ErrEmailInUse            = newError(KindConflict, "EMAIL_IN_USE")
	ErrInvalidCredentials    = newError(KindUnauthorized, "INVALID_CREDENTIALS")
	ErrInvalidRole           = newError(KindValidation, "INVALID_ROLE")
	ErrCannotRemoveLastAdmin = newError(KindConflict, "CANNOT_REMOVE_LAST_ADMIN")
	ErrUserHasTransactions   = newError(KindConflict, "USER_HAS_TRANSACTIONS")
	ErrForbidden             = newError(KindForbidden, "FORBIDDEN")
)

// Actor 已认证的调用方
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// CanAccessUser 管理员或本人
func (a Actor) CanAccessUser(userID int64) bool {
	return a.IsAdmin() || a.UserID == userID
}

// translateConstraint 把 gorm 翻译后的唯一键/外键错误映射为业务冲突，对应参数为 nil 时原样返回
func translateConstraint(err error, duplicate, referenced *Error) error {
	switch {
	case duplicate != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicate
	case referenced != nil && errors.Is(err, gorm.ErrForeignKeyViolated):
		return referenced
	default:
		return err
	}
}
