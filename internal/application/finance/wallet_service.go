package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// WalletService is the only writer of wallet balances. Every posting runs
// under the wallet's row lock and appends its transaction in the same
// database transaction as the balance change.
type WalletService struct {
	serviceBase
}

// NewWalletService creates a new WalletService
func NewWalletService(cfg ServiceConfig) *WalletService {
	return &WalletService{serviceBase: newServiceBase(cfg)}
}

// PostingResult is the outcome of a credit or debit
type PostingResult struct {
	Transaction *finance.WalletTransaction
	// Created is false when the reference was already posted and the
	// earlier transaction is returned instead
	Created bool
}

// Credit adds amount to the wallet. It is idempotent on (wallet, reference).
func (s *WalletService) Credit(ctx context.Context, walletID uuid.UUID, amount valueobject.Money, reference, description string) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(withReference(ctx, reference), "wallet", "credit")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrWalletID, walletID.String(), telemetry.SpanAttrReference, reference)

	var result PostingResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, created, err := postCredit(ctx, repos, walletID, amount, stringPtr(reference), description)
		if err != nil {
			return err
		}
		result = PostingResult{Transaction: tx, Created: created}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Created {
		s.metrics.RecordPosting(ctx, string(finance.TransactionTypeCredit), string(amount.Currency()))
		s.log(ctx).Info("Wallet credited",
			zap.String("wallet_id", walletID.String()),
			zap.String("amount", amount.String()))
	}
	return &result, nil
}

// Debit removes amount from the wallet and never overdraws it. A user debit
// may omit reference; system debits always carry one and are idempotent on it.
func (s *WalletService) Debit(ctx context.Context, walletID uuid.UUID, amount valueobject.Money, reference, description string) (*PostingResult, error) {
	return s.debit(ctx, walletID, amount, reference, description, finance.TransactionStatusSuccess)
}

// DebitPending withholds amount for an external payout whose outcome is not
// known yet. The hold is settled by ConfirmTransaction or FailTransaction.
func (s *WalletService) DebitPending(ctx context.Context, walletID uuid.UUID, amount valueobject.Money, reference, description string) (*PostingResult, error) {
	if reference == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Pending debits require a reference")
	}
	return s.debit(ctx, walletID, amount, reference, description, finance.TransactionStatusPending)
}

func (s *WalletService) debit(ctx context.Context, walletID uuid.UUID, amount valueobject.Money, reference, description string, status finance.TransactionStatus) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(withReference(ctx, reference), "wallet", "debit")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrWalletID, walletID.String(), telemetry.SpanAttrReference, reference)

	var result PostingResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, created, err := postDebit(ctx, repos, walletID, amount, stringPtr(reference), description, status)
		if err != nil {
			return err
		}
		result = PostingResult{Transaction: tx, Created: created}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, finance.ErrInsufficientFunds) {
			s.log(ctx).Info("Debit rejected for insufficient funds",
				zap.String("wallet_id", walletID.String()),
				zap.String("amount", amount.String()))
		}
		return nil, err
	}

	if result.Created {
		s.metrics.RecordPosting(ctx, string(finance.TransactionTypeDebit), string(amount.Currency()))
	}
	return &result, nil
}

// ConfirmTransaction settles a pending debit
func (s *WalletService) ConfirmTransaction(ctx context.Context, txID uuid.UUID) (*finance.WalletTransaction, error) {
	return s.resolvePending(ctx, txID, func(tx *finance.WalletTransaction) error {
		return tx.Confirm()
	})
}

// FailTransaction marks a pending debit failed. The withheld funds stay out
// of the balance until the refund sweep returns them after the hold window.
func (s *WalletService) FailTransaction(ctx context.Context, txID uuid.UUID) (*finance.WalletTransaction, error) {
	now := s.now()
	return s.resolvePending(ctx, txID, func(tx *finance.WalletTransaction) error {
		return tx.Fail(now)
	})
}

func (s *WalletService) resolvePending(ctx context.Context, txID uuid.UUID, apply func(*finance.WalletTransaction) error) (*finance.WalletTransaction, error) {
	var result *finance.WalletTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, err := repos.WalletTransactions().FindByIDForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		before := tx.Status
		if err := apply(tx); err != nil {
			return err
		}
		if tx.Status != before {
			if err := repos.WalletTransactions().UpdateStatus(ctx, tx); err != nil {
				return fmt.Errorf("update transaction status: %w", err)
			}
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalance returns the wallet's current balance. It reads without a lock.
func (s *WalletService) GetBalance(ctx context.Context, walletID uuid.UUID) (valueobject.Money, error) {
	wallet, err := s.repos.Wallets().FindByID(ctx, walletID)
	if err != nil {
		return valueobject.Money{}, err
	}
	return wallet.BalanceMoney(), nil
}

// GetWallet returns a wallet by id
func (s *WalletService) GetWallet(ctx context.Context, walletID uuid.UUID) (*finance.Wallet, error) {
	return s.repos.Wallets().FindByID(ctx, walletID)
}

// GetOrCreateWallet returns the owner's wallet in currency, creating it on
// first use. Concurrent first uses converge on one wallet.
func (s *WalletService) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, currency valueobject.Currency) (*finance.Wallet, error) {
	var wallet *finance.Wallet
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		w, err := getOrCreateWallet(ctx, repos, ownerID, currency)
		wallet = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func getOrCreateWallet(ctx context.Context, repos TransactionalRepositories, ownerID uuid.UUID, currency valueobject.Currency) (*finance.Wallet, error) {
	wallet, err := repos.Wallets().FindByOwner(ctx, ownerID, currency)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	wallet, err = finance.NewWallet(ownerID, currency)
	if err != nil {
		return nil, err
	}
	if err := repos.Wallets().Create(ctx, wallet); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return repos.Wallets().FindByOwner(ctx, ownerID, currency)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// ListTransactions returns the wallet's postings, newest first
func (s *WalletService) ListTransactions(ctx context.Context, walletID uuid.UUID, filter shared.Filter) (shared.Paginated[finance.WalletTransaction], error) {
	if _, err := s.repos.Wallets().FindByID(ctx, walletID); err != nil {
		return shared.Paginated[finance.WalletTransaction]{}, err
	}
	items, total, err := s.repos.WalletTransactions().FindByWallet(ctx, walletID, filter)
	if err != nil {
		return shared.Paginated[finance.WalletTransaction]{}, err
	}
	return shared.NewPaginated(items, total, filter), nil
}
