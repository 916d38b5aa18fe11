package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a wallet transaction
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// Opposite returns the type that reverses t
func (t TransactionType) Opposite() TransactionType {
	if t == TransactionTypeCredit {
		return TransactionTypeDebit
	}
	return TransactionTypeCredit
}

// TransactionStatus is the lifecycle status of a wallet transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// IsTerminal returns true for success and failed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// Wallet is a per-owner stored-value account. Its balance is only ever
// changed through Credit and Debit, and never drops below zero.
type Wallet struct {
	shared.BaseAggregateRoot
	OwnerID  uuid.UUID
	Currency valueobject.Currency
	Balance  decimal.Decimal
	Active   bool
}

// NewWallet creates an empty, active wallet for the owner
func NewWallet(ownerID uuid.UUID, currency valueobject.Currency) (*Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Wallet owner cannot be empty")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Unsupported wallet currency: "+string(currency))
	}
	return &Wallet{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		Currency:          currency,
		Balance:           decimal.Zero,
		Active:            true,
	}, nil
}

// BalanceMoney returns the balance as Money
func (w *Wallet) BalanceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(w.Balance, w.Currency)
	return m
}

func (w *Wallet) checkPosting(amount valueobject.Money) error {
	if !w.Active {
		return ErrWalletInactive
	}
	if amount.Currency() != w.Currency {
		return ErrCurrencyMismatch.WithMessage("Amount currency " + string(amount.Currency()) + " does not match wallet currency " + string(w.Currency))
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return checkMinorUnits(amount)
}

// checkMinorUnits rejects amounts finer than the currency's minor unit.
// The ledger stores two places, so 0.005 would otherwise be rounded by the
// database instead of by the domain.
func checkMinorUnits(amounts ...valueobject.Money) error {
	for _, a := range amounts {
		if !a.IsWholeMinor() {
			return ErrInvalidAmount.WithMessage("Amount " + a.Amount().String() + " has more than 2 decimal places")
		}
	}
	return nil
}

// Credit adds amount to the balance and returns the transaction that
// records it. The caller persists both in one unit of work.
func (w *Wallet) Credit(amount valueobject.Money, reference *string, description string) (*WalletTransaction, error) {
	if err := w.checkPosting(amount); err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(amount.Amount())
	w.Touch()
	return newWalletTransaction(w, TransactionTypeCredit, amount.Amount(), reference, description, TransactionStatusSuccess), nil
}

// Debit removes amount from the balance. It fails with ErrInsufficientFunds
// rather than overdraw. A pending debit holds the funds for an external
// payout whose result arrives later.
func (w *Wallet) Debit(amount valueobject.Money, reference *string, description string, status TransactionStatus) (*WalletTransaction, error) {
	if err := w.checkPosting(amount); err != nil {
		return nil, err
	}
	if status != TransactionStatusSuccess && status != TransactionStatusPending {
		return nil, ErrInvalidTransition.WithMessage("Debit must start as pending or success")
	}
	if amount.Amount().GreaterThan(w.Balance) {
		return nil, ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount.Amount())
	w.Touch()
	return newWalletTransaction(w, TransactionTypeDebit, amount.Amount(), reference, description, status), nil
}

// Deactivate freezes the wallet against further postings
func (w *Wallet) Deactivate() {
	if !w.Active {
		return
	}
	w.Active = false
	w.Touch()
}

// WalletTransaction is an immutable ledger line. Only its status may move,
// and only forward from pending.
type WalletTransaction struct {
	shared.BaseEntity
	WalletID     uuid.UUID
	Type         TransactionType
	Amount       decimal.Decimal
	Currency     valueobject.Currency
	Reference    *string
	Status       TransactionStatus
	Description  string
	BalanceAfter decimal.Decimal
	FailedAt     *time.Time
}

func newWalletTransaction(w *Wallet, typ TransactionType, amount decimal.Decimal, reference *string, description string, status TransactionStatus) *WalletTransaction {
	return &WalletTransaction{
		BaseEntity:   shared.NewBaseEntity(),
		WalletID:     w.ID,
		Type:         typ,
		Amount:       amount,
		Currency:     w.Currency,
		Reference:    normalizeReference(reference),
		Status:       status,
		Description:  description,
		BalanceAfter: w.Balance,
	}
}

// normalizeReference maps empty references to nil so they never collide on
// the (wallet, reference) unique index
func normalizeReference(ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}
	r := *ref
	return &r
}

// AmountMoney returns the amount as Money
func (t *WalletTransaction) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(t.Amount, t.Currency)
	return m
}

// Confirm moves a pending transaction to success
func (t *WalletTransaction) Confirm() error {
	if t.Status == TransactionStatusSuccess {
		return nil
	}
	if t.Status != TransactionStatusPending {
		return ErrInvalidTransition.WithMessage("Only pending transactions can be confirmed")
	}
	t.Status = TransactionStatusSuccess
	t.Touch()
	return nil
}

// Fail moves a pending transaction to failed. The held funds stay withheld
// until a refund returns them.
func (t *WalletTransaction) Fail(at time.Time) error {
	if t.Status == TransactionStatusFailed {
		return nil
	}
	if t.Status != TransactionStatusPending {
		return ErrInvalidTransition.WithMessage("Only pending transactions can fail")
	}
	t.Status = TransactionStatusFailed
	t.FailedAt = &at
	t.Touch()
	return nil
}

// Ref returns the reference or an empty string
func (t *WalletTransaction) Ref() string {
	if t.Reference == nil {
		return ""
	}
	return *t.Reference
}
