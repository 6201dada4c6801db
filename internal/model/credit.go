package model

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultCreditReason 未指定原因时的默认值
const DefaultCreditReason = "admin_adjust"

// CreditTransaction 积分流水表
// 只追加，不修改，不删除；某用户所有 Delta 之和必须等于 users.credit_balance
type CreditTransaction struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64          `gorm:"not null;index:idx_credit_tx_user_created,priority:1" json:"user_id"`
	Delta         int64          `gorm:"not null" json:"delta"`
	Reason        string         `gorm:"type:varchar(64);not null" json:"reason"`
	ReferenceType *string        `gorm:"type:varchar(64)" json:"reference_type"`
	ReferenceID   *int64         `json:"reference_id"`
	CreatedBy     *int64         `gorm:"index" json:"created_by"`
	Metadata      datatypes.JSON `json:"metadata"`
	BalanceBefore int64          `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64          `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index:idx_credit_tx_user_created,priority:2" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
