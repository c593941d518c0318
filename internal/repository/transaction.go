package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
)

type TransactionDAO interface {
	Insert(ctx context.Context, tx dao.Transaction) (dao.Transaction, error)
	FindByID(ctx context.Context, id uint) (dao.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id uint) (dao.Transaction, error)
	FindByUserID(ctx context.Context, userID uint) ([]dao.Transaction, error)
	UpdateStatus(ctx context.Context, id uint, from []string, to string, proofRef string) (bool, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]dao.Transaction, error)
}

type TransactionRepository struct {
	dao TransactionDAO
}

func NewTransactionRepository(dao TransactionDAO) *TransactionRepository {
	return &TransactionRepository{
		dao: dao,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	created, err := r.dao.Insert(ctx, transactionDomainToDao(tx))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return transactionDaoToDomain(created), nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uint) (domain.Transaction, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return transactionDaoToDomain(found), nil
}

func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id uint) (domain.Transaction, error) {
	found, err := r.dao.FindByIDForUpdate(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.FindByIDForUpdate -> %w", err)
	}

	return transactionDaoToDomain(found), nil
}

func (r *TransactionRepository) FindByUserID(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	rows, err := r.dao.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUserID -> %w", err)
	}

	return transactionDaosToDomain(rows), nil
}

func (r *TransactionRepository) Transition(ctx context.Context, id uint, from []domain.TransactionStatus, to domain.TransactionStatus, proofRef string) (bool, error) {
	sources := make([]string, len(from))
	for i, status := range from {
		sources[i] = string(status)
	}

	moved, err := r.dao.UpdateStatus(ctx, id, sources, string(to), proofRef)
	if err != nil {
		return false, fmt.Errorf("r.dao.UpdateStatus -> %w", err)
	}

	return moved, nil
}

func (r *TransactionRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.dao.FindExpired(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindExpired -> %w", err)
	}

	return transactionDaosToDomain(rows), nil
}

func transactionDomainToDao(tx domain.Transaction) dao.Transaction {
	row := dao.Transaction{
		ID:              tx.ID,
		UserID:          tx.UserID,
		EventID:         tx.EventID,
		TicketCount:     tx.TicketCount,
		Status:          string(tx.Status),
		Subtotal:        tx.Subtotal,
		DiscountAmount:  tx.DiscountAmount,
		TotalAmount:     tx.TotalAmount,
		PointsUsed:      tx.PointsUsed,
		PaymentProofRef: tx.PaymentProofRef,
		ExpiresAt:       tx.ExpiresAt,
	}
	for _, id := range tx.VoucherIDs {
		row.Vouchers = append(row.Vouchers, dao.TransactionVoucher{VoucherID: id})
	}
	for _, id := range tx.CouponIDs {
		row.Coupons = append(row.Coupons, dao.TransactionCoupon{CouponID: id})
	}
	return row
}

func transactionDaoToDomain(row dao.Transaction) domain.Transaction {
	tx := domain.Transaction{
		ID:              row.ID,
		UserID:          row.UserID,
		EventID:         row.EventID,
		TicketCount:     row.TicketCount,
		Status:          domain.TransactionStatus(row.Status),
		Subtotal:        row.Subtotal,
		DiscountAmount:  row.DiscountAmount,
		TotalAmount:     row.TotalAmount,
		PointsUsed:      row.PointsUsed,
		PaymentProofRef: row.PaymentProofRef,
		ExpiresAt:       row.ExpiresAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	for _, link := range row.Vouchers {
		tx.VoucherIDs = append(tx.VoucherIDs, link.VoucherID)
	}
	for _, link := range row.Coupons {
		tx.CouponIDs = append(tx.CouponIDs, link.CouponID)
	}
	return tx
}

func transactionDaosToDomain(rows []dao.Transaction) []domain.Transaction {
	txs := make([]domain.Transaction, len(rows))
	for i, row := range rows {
		txs[i] = transactionDaoToDomain(row)
	}
	return txs
}
