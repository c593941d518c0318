package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Transaction struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"not null;index"`
	EventID         uint   `gorm:"not null;index"`
	TicketCount     int    `gorm:"not null;check:ticket_count >= 1"`
	Status          string `gorm:"not null;index"`
	Subtotal        int64  `gorm:"not null"`
	DiscountAmount  int64  `gorm:"not null;default:0"`
	TotalAmount     int64  `gorm:"not null;check:total_amount >= 0"`
	PointsUsed      int64  `gorm:"not null;default:0"`
	PaymentProofRef string
	ExpiresAt       *time.Time           `gorm:"index"`
	Vouchers        []TransactionVoucher `gorm:"foreignKey:TransactionID"`
	Coupons         []TransactionCoupon  `gorm:"foreignKey:TransactionID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TransactionVoucher struct {
	TransactionID uint `gorm:"primaryKey"`
	VoucherID     uint `gorm:"primaryKey"`
}

type TransactionCoupon struct {
	TransactionID uint `gorm:"primaryKey"`
	CouponID      uint `gorm:"primaryKey"`
}

type TransactionDAO struct {
	db *gorm.DB
}

func NewTransactionDAO(db *gorm.DB) *TransactionDAO {
	return &TransactionDAO{
		db: db,
	}
}

func (d *TransactionDAO) Insert(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := d.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (d *TransactionDAO) FindByID(ctx context.Context, id uint) (Transaction, error) {
	var tx Transaction

	result := d.db.WithContext(ctx).Preload("Vouchers").Preload("Coupons").First(&tx, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}

		return Transaction{}, result.Error
	}

	return tx, nil
}

// FindByIDForUpdate locks the transaction row, then loads its discount links.
func (d *TransactionDAO) FindByIDForUpdate(ctx context.Context, id uint) (Transaction, error) {
	var tx Transaction

	result := d.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&tx, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}

		return Transaction{}, result.Error
	}

	if err := d.db.WithContext(ctx).Where("transaction_id = ?", id).Find(&tx.Vouchers).Error; err != nil {
		return Transaction{}, err
	}
	if err := d.db.WithContext(ctx).Where("transaction_id = ?", id).Find(&tx.Coupons).Error; err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

func (d *TransactionDAO) FindByUserID(ctx context.Context, userID uint) ([]Transaction, error) {
	var txs []Transaction

	result := d.db.WithContext(ctx).
		Preload("Vouchers").
		Preload("Coupons").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txs)
	if result.Error != nil {
		return nil, result.Error
	}

	return txs, nil
}

// UpdateStatus moves a row to `to` only while its status is one of `from`.
func (d *TransactionDAO) UpdateStatus(ctx context.Context, id uint, from []string, to string, proofRef string) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if proofRef != "" {
		updates["payment_proof_ref"] = proofRef
	}

	result := d.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (d *TransactionDAO) FindExpired(ctx context.Context, now time.Time, limit int) ([]Transaction, error) {
	var txs []Transaction

	result := d.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", "WAITING_PAYMENT", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&txs)
	if result.Error != nil {
		return nil, result.Error
	}

	return txs, nil
}
