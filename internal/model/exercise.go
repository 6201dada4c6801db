package model

import (
	"time"
)

// ExerciseType 动作类型
type ExerciseType struct {
	CatalogType
}

func (ExerciseType) TableName() string {
	return "exercise_types"
}

// Exercise 动作，ImgURL/VideoURL 是媒体存储返回的公开地址
type Exercise struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	ImgURL    *string   `gorm:"type:varchar(512)" json:"imgUrl"`
	VideoURL  *string   `gorm:"type:varchar(512)" json:"videoUrl"`
	TypeID    *int64    `gorm:"index" json:"type_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// ExerciseView 带类型名的动作视图
type ExerciseView struct {
	Exercise
	TypeName *string `json:"type_name"`
}
