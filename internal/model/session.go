package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 重量以数字而不是字符串输出
	decimal.MarshalJSONWithoutQuotes = true
}

// SessionType 训练课类型
type SessionType struct {
	CatalogType
}

func (SessionType) TableName() string {
	return "session_types"
}

// Session 训练课，独占其下的 SessionExercise
type Session struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Notes     *string   `gorm:"type:text" json:"notes"`
	TypeID    *int64    `gorm:"index" json:"type_id"`
	RestTime  *int      `json:"restTime"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionExercise 训练课中的一个动作条目
// 同一 session 下 order_index 在 reorder/move/compact 提交后恰好是 0..n-1
type SessionExercise struct {
	ID         int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  int64               `gorm:"not null;index:idx_session_exercise_order,priority:1" json:"session_id"`
	ExerciseID int64               `gorm:"not null;index" json:"exercise_id"`
	Weight     decimal.NullDecimal `gorm:"type:decimal(8,2)" json:"weight"`
	Reps       *int                `json:"reps"`
	OrderIndex int                 `gorm:"not null;index:idx_session_exercise_order,priority:2" json:"order_index"`
}

func (SessionExercise) TableName() string {
	return "session_exercises"
}

// ExerciseRef 条目里冗余的动作信息
type ExerciseRef struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	ImgURL   *string `json:"imgUrl"`
	VideoURL *string `json:"videoUrl"`
}

// SessionExerciseView 条目读视图
type SessionExerciseView struct {
	ID         int64               `json:"id"`
	SessionID  int64               `json:"session_id"`
	Exercise   ExerciseRef         `json:"exercise"`
	Weight     decimal.NullDecimal `json:"weight"`
	Reps       *int                `json:"reps"`
	OrderIndex int                 `json:"order_index"`
}

// SessionView 训练课读视图（带类型信息）
type SessionView struct {
	Session
	TypeName        *string `json:"type_name"`
	TypeDescription *string `json:"type_description"`
}

// SessionDetail 训练课聚合视图
type SessionDetail struct {
	SessionView
	Exercises []SessionExerciseView `json:"exercises"`
}
