package model

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Role 角色表
type Role struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(32);uniqueIndex;not null" json:"name"`
}

func (Role) TableName() string {
	return "roles"
}

// User 用户表
// CreditBalance 是积分流水的缓存投影，只允许积分引擎在同一事务内随流水一起修改
type User struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email         string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"type:varchar(255);not null" json:"-"`
	Name          *string   `gorm:"type:varchar(128)" json:"name"`
	RoleID        int64     `gorm:"index;not null" json:"role_id"`
	CreditBalance int64     `gorm:"not null;default:0" json:"credit_balance"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// UserView 带角色名的用户视图
type UserView struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          *string   `json:"name"`
	RoleID        int64     `json:"role_id"`
	RoleName      string    `json:"role_name"`
	CreditBalance int64     `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin 是否管理员
func (u *UserView) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}
