// Package services orchestrates writes that span more than one concern:
// repository mutation, ownership verification, and event publishing.
package services

import (
	"context"
	"fmt"

	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/log"
	"tally/internal/storage"
)

// TransactionService coordinates transaction writes across the store and
// the optional event publisher.
type TransactionService struct {
	transactions *storage.TransactionRepository
	categories   *storage.CategoryRepository
	publisher    *events.Publisher
	log          *log.Logger
}

func NewTransactionService(transactions *storage.TransactionRepository, categories *storage.CategoryRepository, publisher *events.Publisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		categories:   categories,
		publisher:    publisher,
		log:          logger.WithComponent(log.ComponentTxn),
	}
}

// Create validates category ownership, normalizes the amount to its
// positive magnitude, and persists the transaction. The event publish is
// best-effort: the write has already succeeded.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (*storage.TransactionRecord, error) {
	if err := s.checkCategory(ctx, t.UserID, t.CategoryID); err != nil {
		return nil, err
	}

	t.Amount = core.NormalizeAmount(t.Amount)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	record, err := s.transactions.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, events.TypeTransactionCreated, record.ID, record.UserID)

	s.log.InfoContext(ctx, "Transaction created",
		log.FieldTxnID, record.ID,
		log.FieldUserID, record.UserID,
		log.FieldAmount, record.Amount.String(),
		log.FieldOperation, log.OpCreate)
	return record, nil
}

// Update applies allow-listed field changes to an owned transaction.
func (s *TransactionService) Update(ctx context.Context, id, userID int64, updates storage.TransactionUpdate) (*storage.TransactionRecord, error) {
	if updates.SetCategory {
		if err := s.checkCategory(ctx, userID, updates.CategoryID); err != nil {
			return nil, err
		}
	}
	if updates.Amount != nil {
		normalized := core.NormalizeAmount(*updates.Amount)
		if normalized.IsZero() {
			return nil, core.ErrInvalidAmount
		}
		updates.Amount = &normalized
	}

	if err := s.transactions.UpdateForUser(ctx, id, userID, updates); err != nil {
		return nil, err
	}

	record, err := s.transactions.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeTransactionUpdated, id, userID)
	return record, nil
}

// Delete removes an owned transaction.
func (s *TransactionService) Delete(ctx context.Context, id, userID int64) error {
	if err := s.transactions.DeleteForUser(ctx, id, userID); err != nil {
		return err
	}

	s.publish(ctx, events.TypeTransactionDeleted, id, userID)

	s.log.InfoContext(ctx, "Transaction deleted",
		log.FieldTxnID, id,
		log.FieldUserID, userID,
		log.FieldOperation, log.OpDelete)
	return nil
}

// checkCategory verifies a referenced category belongs to the user. A nil
// category id (uncategorized) is always acceptable.
func (s *TransactionService) checkCategory(ctx context.Context, userID int64, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.categories.FindByIDForUser(ctx, *categoryID, userID); err != nil {
		return core.ErrForeignCategory
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, eventType string, id, userID int64) {
	if err := s.publisher.PublishTransactionEvent(ctx, eventType, id, userID); err != nil {
		s.log.ErrorContext(ctx, "Failed to publish transaction event",
			"type", eventType, log.FieldTxnID, id, log.FieldError, err)
	}
}
