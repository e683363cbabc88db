package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/example/pianostore/internal/models"
)

// Store persists returns and reconciled order payment state in postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RecordReturn(ctx context.Context, rec *models.PaymentReturnRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// Reconcile moves the order snapshot to status when the payment status
// machine allows it. Replayed or out-of-order returns leave it untouched.
func (s *Store) Reconcile(ctx context.Context, orderRef string, status models.PaymentStatus, transactionNo, message string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snapshot models.OrderPaymentSnapshot
		err := tx.Where("order_ref = ?", orderRef).First(&snapshot).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.OrderPaymentSnapshot{
				OrderRef:      orderRef,
				PaymentStatus: status,
				TransactionNo: transactionNo,
				LastMessage:   message,
				ReconciledAt:  at,
			}).Error
		}
		if err != nil {
			return err
		}

		if !Advances(snapshot.PaymentStatus, status) {
			log.Printf("[Payment] Ignoring %s -> %s for %s", snapshot.PaymentStatus, status, orderRef)
			return nil
		}

		return tx.Model(&snapshot).Updates(map[string]any{
			"payment_status": status,
			"transaction_no": transactionNo,
			"last_message":   message,
			"reconciled_at":  at,
		}).Error
	})
}

// Snapshot returns the reconciled state for orderRef.
func (s *Store) Snapshot(ctx context.Context, orderRef string) (models.OrderPaymentSnapshot, error) {
	var snapshot models.OrderPaymentSnapshot
	err := s.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&snapshot).Error
	return snapshot, err
}

// Returns lists recorded returns, newest first. An empty orderRef lists all.
func (s *Store) Returns(ctx context.Context, orderRef string, limit, offset int) ([]models.PaymentReturnRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PaymentReturnRecord{})
	if orderRef != "" {
		query = query.Where("order_ref = ?", orderRef)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.PaymentReturnRecord
	err := query.Order("received_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	return records, total, err
}

// Advances reports whether a snapshot at current may move to next. A repeat
// of the current status refreshes the snapshot.
func Advances(current, next models.PaymentStatus) bool {
	return current == next || current.CanTransitionTo(next)
}

// OutcomeCounts tallies recorded returns per outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	type outcomeCount struct {
		Outcome string
		Count   int64
	}
	var rows []outcomeCount
	if err := s.db.WithContext(ctx).Model(&models.PaymentReturnRecord{}).
		Select("outcome, count(*) as count").
		Group("outcome").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}
