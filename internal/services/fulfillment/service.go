package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
)

type DeliverableStore interface {
	CreateForPurchase(ctx context.Context, purchaseID, memberID int64) (pgrepo.DeceasedRecord, error)
}

// Service creates the burial record that a redeemed plot purchase entitles
// the member to. It sits behind the settlement flow and never touches money.
type Service struct {
	deliverables DeliverableStore
	logger       *zap.Logger
}

func NewService(deliverables DeliverableStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deliverables: deliverables, logger: logger}
}

// CreateDeliverable records the burial entitlement for a redeemed purchase.
// A duplicate call is absorbed: the record already existing means the
// entitlement was delivered.
func (s *Service) CreateDeliverable(ctx context.Context, purchaseID, memberID int64) error {
	if s.deliverables == nil {
		return fmt.Errorf("deliverable store is nil")
	}

	rec, err := s.deliverables.CreateForPurchase(ctx, purchaseID, memberID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrDeliverableExists) {
			s.logger.Info("deliverable already recorded",
				zap.Int64("purchase_id", purchaseID),
			)
			return nil
		}
		return err
	}

	s.logger.Info("deliverable recorded",
		zap.Int64("purchase_id", purchaseID),
		zap.Int64("record_id", rec.ID),
	)
	return nil
}
