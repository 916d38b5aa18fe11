package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
)

// The helpers below run inside a caller's transaction. They never open
// one themselves, so a flow can combine several postings atomically.

// lockWallet takes the per-wallet row lock
func lockWallet(ctx context.Context, repos TransactionalRepositories, walletID uuid.UUID) (*finance.Wallet, error) {
	wallet, err := repos.Wallets().FindByIDForUpdate(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet %s: %w", walletID, err)
	}
	return wallet, nil
}

// findPosting returns the wallet's earlier posting for reference, or nil
func findPosting(ctx context.Context, repos TransactionalRepositories, walletID uuid.UUID, reference *string) (*finance.WalletTransaction, error) {
	if reference == nil || *reference == "" {
		return nil, nil
	}
	existing, err := repos.WalletTransactions().FindByReference(ctx, walletID, *reference)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// appendPosting stores tx and the wallet's new balance. The wallet must be
// locked by the caller.
func appendPosting(ctx context.Context, repos TransactionalRepositories, wallet *finance.Wallet, tx *finance.WalletTransaction) error {
	if err := repos.WalletTransactions().Create(ctx, tx); err != nil {
		return fmt.Errorf("append wallet transaction: %w", err)
	}
	if err := repos.Wallets().SaveWithLock(ctx, wallet); err != nil {
		return fmt.Errorf("save wallet balance: %w", err)
	}
	return nil
}

// postCredit credits a wallet under its row lock. A reference already
// posted on the wallet returns that transaction with created=false and
// leaves the balance alone.
func postCredit(ctx context.Context, repos TransactionalRepositories, walletID uuid.UUID, amount valueobject.Money, reference *string, description string) (*finance.WalletTransaction, bool, error) {
	wallet, err := lockWallet(ctx, repos, walletID)
	if err != nil {
		return nil, false, err
	}
	return creditLocked(ctx, repos, wallet, amount, reference, description)
}

func creditLocked(ctx context.Context, repos TransactionalRepositories, wallet *finance.Wallet, amount valueobject.Money, reference *string, description string) (*finance.WalletTransaction, bool, error) {
	existing, err := findPosting(ctx, repos, wallet.ID, reference)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Type != finance.TransactionTypeCredit {
			return nil, false, shared.ErrAlreadyExists.WithMessage("Reference " + *reference + " is already used by a debit")
		}
		return existing, false, nil
	}
	tx, err := wallet.Credit(amount, reference, description)
	if err != nil {
		return nil, false, err
	}
	if err := appendPosting(ctx, repos, wallet, tx); err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

// postDebit is postCredit's counterpart. status is success for settled
// debits and pending for holds awaiting an external outcome.
func postDebit(ctx context.Context, repos TransactionalRepositories, walletID uuid.UUID, amount valueobject.Money, reference *string, description string, status finance.TransactionStatus) (*finance.WalletTransaction, bool, error) {
	wallet, err := lockWallet(ctx, repos, walletID)
	if err != nil {
		return nil, false, err
	}
	return debitLocked(ctx, repos, wallet, amount, reference, description, status)
}

func debitLocked(ctx context.Context, repos TransactionalRepositories, wallet *finance.Wallet, amount valueobject.Money, reference *string, description string, status finance.TransactionStatus) (*finance.WalletTransaction, bool, error) {
	existing, err := findPosting(ctx, repos, wallet.ID, reference)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Type != finance.TransactionTypeDebit {
			return nil, false, shared.ErrAlreadyExists.WithMessage("Reference " + *reference + " is already used by a credit")
		}
		return existing, false, nil
	}
	tx, err := wallet.Debit(amount, reference, description, status)
	if err != nil {
		return nil, false, err
	}
	if err := appendPosting(ctx, repos, wallet, tx); err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

// settlement describes one payment applied to a locked invoice
type settlement struct {
	PayerID      uuid.UUID
	Amount       valueobject.Money
	Method       finance.PaymentMethod
	Reference    *string
	SourceID     *uuid.UUID
	Confirmation map[string]string
}

// settleLocked records a successful payment against a locked invoice and
// moves its outstanding. Overpayment is rejected before anything is written.
func settleLocked(ctx context.Context, repos TransactionalRepositories, invoice *finance.Invoice, s settlement, at time.Time) (*finance.Payment, valueobject.Money, error) {
	if err := invoice.EnsureCanAccept(s.Amount); err != nil {
		return nil, valueobject.Money{}, err
	}
	payment, err := finance.NewPayment(invoice.ID, s.PayerID, s.Amount, s.Method, s.Reference)
	if err != nil {
		return nil, valueobject.Money{}, err
	}
	payment.SourceID = s.SourceID
	if err := payment.Succeed(at, s.Confirmation); err != nil {
		return nil, valueobject.Money{}, err
	}
	applied, _, err := invoice.ApplyPayment(s.Amount, at)
	if err != nil {
		return nil, valueobject.Money{}, err
	}
	if err := repos.Payments().Create(ctx, payment); err != nil {
		return nil, valueobject.Money{}, fmt.Errorf("create payment: %w", err)
	}
	if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
		return nil, valueobject.Money{}, fmt.Errorf("save invoice: %w", err)
	}
	return payment, applied, nil
}

// activeFeeConfig reads the channel's active config from the store. A
// channel with no config yields nil, which means no fee.
func activeFeeConfig(ctx context.Context, repo finance.FeeConfigRepository, channel string) (*finance.FeeConfig, error) {
	cfg, err := repo.FindActiveByChannel(ctx, finance.NormalizeChannel(channel))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fee config %q: %w", channel, err)
	}
	return cfg, nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
