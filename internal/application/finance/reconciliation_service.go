package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/logger"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// WebhookOutcome is how a delivered event was handled. Every outcome is
// acknowledged to the sender with 200.
type WebhookOutcome string

const (
	// WebhookOutcomeProcessed means ledger effects were written
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	// WebhookOutcomeDuplicate means the event was handled by an earlier delivery
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	// WebhookOutcomeIgnored means the event type is not one the ledger acts on
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
	// WebhookOutcomeFailed means the event was recorded as failed without
	// moving money
	WebhookOutcomeFailed WebhookOutcome = "failed"
)

// WebhookResult describes the handling of one delivery
type WebhookResult struct {
	Outcome     WebhookOutcome
	DedupKey    string
	Event       *finance.WebhookEvent
	Transaction *finance.WalletTransaction
	Split       *finance.FeeSplit
	Payment     *finance.Payment
	Reason      string
}

// ReconciliationConfig configures the ReconciliationService
type ReconciliationConfig struct {
	ServiceConfig
	Verifier finance.SignatureVerifier
	// Gateway confirms charges before crediting; nil skips the check
	Gateway        finance.TransactionVerifier
	GatewayTimeout time.Duration
	// Idempotency is a best-effort fast path in front of the event table
	Idempotency     shared.IdempotencyStore
	DedupTTL        time.Duration
	FeeChannel      string
	DefaultCurrency valueobject.Currency
}

// ReconciliationService turns verified gateway webhooks into ledger
// postings. Redelivered events are recognised by their dedup key and never
// credited twice.
type ReconciliationService struct {
	serviceBase
	verifier        finance.SignatureVerifier
	gateway         finance.TransactionVerifier
	gatewayTimeout  time.Duration
	idempotency     shared.IdempotencyStore
	dedupTTL        time.Duration
	feeChannel      string
	defaultCurrency valueobject.Currency
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationConfig) *ReconciliationService {
	s := &ReconciliationService{
		serviceBase:     newServiceBase(cfg.ServiceConfig),
		verifier:        cfg.Verifier,
		gateway:         cfg.Gateway,
		gatewayTimeout:  cfg.GatewayTimeout,
		idempotency:     cfg.Idempotency,
		dedupTTL:        cfg.DedupTTL,
		feeChannel:      cfg.FeeChannel,
		defaultCurrency: cfg.DefaultCurrency,
	}
	if s.gatewayTimeout <= 0 {
		s.gatewayTimeout = 10 * time.Second
	}
	if s.dedupTTL <= 0 {
		s.dedupTTL = 72 * time.Hour
	}
	if s.feeChannel == "" {
		s.feeChannel = finance.PaymentProviderPaystack
	}
	if s.defaultCurrency == "" {
		s.defaultCurrency = valueobject.DefaultCurrency
	}
	return s
}

// Provider returns the gateway this service accepts events from
func (s *ReconciliationService) Provider() string {
	return s.verifier.Provider()
}

// ProcessWebhook authenticates, parses and applies one delivery.
//
// Errors: ErrInvalidSignature and ErrMalformedEvent before anything is
// stored; ErrOutcomeUnknown when gateway verification timed out, leaving the
// event validated so a redelivery can finish it.
func (s *ReconciliationService) ProcessWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "process")
	defer span.End()
	provider := s.verifier.Provider()

	if err := s.verifier.Verify(body, signature); err != nil {
		s.metrics.RecordWebhook(ctx, provider, "", "invalid_signature")
		s.log(ctx).Warn("Webhook signature rejected", zap.String("provider", provider))
		return nil, err
	}

	payload, err := finance.ParseWebhookPayload(body, s.defaultCurrency)
	if err != nil {
		s.metrics.RecordWebhook(ctx, provider, "", "malformed")
		s.log(ctx).Warn("Malformed webhook", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}
	key := payload.DedupKey(provider)
	ctx = logger.WithReference(ctx, payload.Reference)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEvent, payload.Event,
		telemetry.SpanAttrReference, payload.Reference,
	)
	log := s.log(ctx).With(
		zap.String("provider", provider),
		zap.String("event", payload.Event),
		zap.String("dedup_key", key))

	if s.seenBefore(ctx, key) {
		s.metrics.RecordWebhook(ctx, provider, payload.Event, string(WebhookOutcomeDuplicate))
		log.Info("Duplicate webhook acknowledged from dedup cache")
		return &WebhookResult{Outcome: WebhookOutcomeDuplicate, DedupKey: key}, nil
	}

	event, err := s.recordEvent(ctx, provider, payload, body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if event.Status.IsTerminal() {
		s.markSeen(ctx, key)
		s.metrics.RecordWebhook(ctx, provider, payload.Event, string(WebhookOutcomeDuplicate))
		log.Info("Duplicate webhook acknowledged", zap.String("status", string(event.Status)))
		return &WebhookResult{Outcome: WebhookOutcomeDuplicate, DedupKey: key, Event: event}, nil
	}

	reason, err := s.confirmWithGateway(ctx, payload)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordWebhook(ctx, provider, payload.Event, "outcome_unknown")
		log.Warn("Gateway verification did not complete; event left pending", zap.Error(err))
		return nil, err
	}

	var result *WebhookResult
	if reason != "" {
		result, err = s.failEvent(ctx, key, payload, reason)
	} else {
		result, err = s.applyEvent(ctx, key, payload)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to apply webhook", zap.Error(err))
		return nil, err
	}
	result.DedupKey = key

	s.markSeen(ctx, key)
	s.metrics.RecordWebhook(ctx, provider, payload.Event, string(result.Outcome))
	log.Info("Webhook handled", zap.String("outcome", string(result.Outcome)), zap.String("reason", result.Reason))
	return result, nil
}

// seenBefore consults the dedup cache. Cache errors only cost the fast
// path; the event table is still authoritative.
func (s *ReconciliationService) seenBefore(ctx context.Context, key string) bool {
	if s.idempotency == nil {
		return false
	}
	seen, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil {
		s.log(ctx).Warn("Dedup cache lookup failed", zap.String("dedup_key", key), zap.Error(err))
		return false
	}
	return seen
}

func (s *ReconciliationService) markSeen(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, key, s.dedupTTL); err != nil {
		s.log(ctx).Warn("Dedup cache write failed", zap.String("dedup_key", key), zap.Error(err))
	}
}

// recordEvent stores the event as validated, or returns the stored event
// when this is a redelivery
func (s *ReconciliationService) recordEvent(ctx context.Context, provider string, payload *finance.WebhookPayload, body []byte) (*finance.WebhookEvent, error) {
	event := finance.NewWebhookEvent(provider, payload, body)
	if err := event.MarkValidated(); err != nil {
		return nil, err
	}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.WebhookEvents().Create(ctx, event)
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		return s.repos.WebhookEvents().FindByDedupKey(ctx, event.DedupKey)
	}
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	return event, nil
}

// confirmWithGateway asks the gateway about a charge before crediting it.
// It runs outside any transaction so no lock is held while waiting. A
// non-empty reason means the gateway disowned the charge.
func (s *ReconciliationService) confirmWithGateway(ctx context.Context, payload *finance.WebhookPayload) (string, error) {
	if s.gateway == nil || payload.Event != finance.EventChargeSuccess {
		return "", nil
	}
	vctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	gtx, err := s.gateway.VerifyTransaction(vctx, payload.Reference)
	if err != nil {
		if errors.Is(err, finance.ErrOutcomeUnknown) {
			return "", err
		}
		return "", finance.ErrOutcomeUnknown.WithMessage("Gateway verification failed: " + err.Error())
	}
	switch {
	case gtx.Status != finance.GatewayTransactionSuccess:
		return "gateway reports charge " + string(gtx.Status), nil
	case gtx.AmountMinor != payload.AmountMinor:
		return fmt.Sprintf("gateway amount %d does not match event amount %d", gtx.AmountMinor, payload.AmountMinor), nil
	case gtx.Currency != "" && gtx.Currency != payload.Currency:
		return "gateway currency " + string(gtx.Currency) + " does not match event currency", nil
	}
	return "", nil
}

// lockEvent takes the event row lock. ok is false when another delivery
// already finished it.
func lockEvent(ctx context.Context, repos TransactionalRepositories, key string) (*finance.WebhookEvent, bool, error) {
	event, err := repos.WebhookEvents().FindByDedupKeyForUpdate(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("lock webhook event: %w", err)
	}
	return event, !event.Status.IsTerminal(), nil
}

func (s *ReconciliationService) failEvent(ctx context.Context, key string, payload *finance.WebhookPayload, reason string) (*WebhookResult, error) {
	result := &WebhookResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		event, ok, err := lockEvent(ctx, repos, key)
		if err != nil {
			return err
		}
		result.Event = event
		if !ok {
			result.Outcome = WebhookOutcomeDuplicate
			return nil
		}
		return s.recordFailure(ctx, repos, event, payload, reason, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ReconciliationService) recordFailure(ctx context.Context, repos TransactionalRepositories, event *finance.WebhookEvent, payload *finance.WebhookPayload, reason string, result *WebhookResult) error {
	split := finance.ComputeFee(nil, payload.Amount())
	audit := finance.NewTransactionAudit(finance.AuditSourceWebhook, payload.Reference, payload.Channel, split, finance.AuditStatusFailed)
	audit.Note = reason
	if err := repos.Audits().Create(ctx, audit); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	if err := event.MarkFailed(reason, s.now()); err != nil {
		return err
	}
	if err := repos.WebhookEvents().SaveWithLock(ctx, event); err != nil {
		return fmt.Errorf("save webhook event: %w", err)
	}
	result.Outcome = WebhookOutcomeFailed
	result.Reason = reason
	return nil
}

func (s *ReconciliationService) applyEvent(ctx context.Context, key string, payload *finance.WebhookPayload) (*WebhookResult, error) {
	result := &WebhookResult{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		event, ok, err := lockEvent(ctx, repos, key)
		if err != nil {
			return err
		}
		result.Event = event
		if !ok {
			result.Outcome = WebhookOutcomeDuplicate
			return nil
		}

		switch payload.Event {
		case finance.EventChargeSuccess:
			return s.applyChargeSuccess(ctx, repos, event, payload, result)
		case finance.EventChargeFailed:
			return s.applyChargeFailed(ctx, repos, event, payload, result)
		default:
			if err := event.MarkProcessed(s.now()); err != nil {
				return err
			}
			result.Outcome = WebhookOutcomeIgnored
			return repos.WebhookEvents().SaveWithLock(ctx, event)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ReconciliationService) applyChargeFailed(ctx context.Context, repos TransactionalRepositories, event *finance.WebhookEvent, payload *finance.WebhookPayload, result *WebhookResult) error {
	split := finance.ComputeFee(nil, payload.Amount())
	audit := finance.NewTransactionAudit(finance.AuditSourceWebhook, payload.Reference, payload.Channel, split, finance.AuditStatusFailed)
	audit.Note = "gateway reported charge failure"
	if err := repos.Audits().Create(ctx, audit); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	if err := event.MarkProcessed(s.now()); err != nil {
		return err
	}
	result.Outcome = WebhookOutcomeProcessed
	result.Split = &split
	return repos.WebhookEvents().SaveWithLock(ctx, event)
}

func (s *ReconciliationService) applyChargeSuccess(ctx context.Context, repos TransactionalRepositories, event *finance.WebhookEvent, payload *finance.WebhookPayload, result *WebhookResult) error {
	wallet, reason, err := s.resolveWallet(ctx, repos, payload)
	if err != nil {
		return err
	}
	// Failing here is final: wallet ids are assigned by the ledger, so an
	// unknown id never resolves on redelivery, and a deactivated wallet is
	// never reactivated. The failed audit row carries the reason for manual
	// follow-up. Owner-addressed (v2) events create the wallet instead.
	if reason != "" {
		return s.recordFailure(ctx, repos, event, payload, reason, result)
	}

	cfg, err := activeFeeConfig(ctx, repos.FeeConfigs(), s.feeChannel)
	if err != nil {
		return err
	}
	split := finance.ComputeFee(cfg, payload.Amount())
	result.Split = &split

	if err := event.MarkApplied(); err != nil {
		return err
	}

	var credited *finance.WalletTransaction
	if split.Net.IsPositive() {
		reference := payload.Reference
		credited, _, err = creditLocked(ctx, repos, wallet, split.Net, &reference, "Gateway charge "+reference)
		if err != nil {
			return err
		}
		result.Transaction = credited
	}

	audit := finance.NewTransactionAudit(finance.AuditSourceWebhook, payload.Reference, s.feeChannel, split, finance.AuditStatusSuccess)
	if credited != nil {
		audit.WalletTransactionID = uuidPtr(credited.ID)
	}
	if payload.Channel != "" {
		audit.Note = "payment channel " + payload.Channel
	}
	if err := repos.Audits().Create(ctx, audit); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	if payload.InvoiceID != nil && credited != nil {
		if err := s.settleFromCredit(ctx, repos, wallet, payload, split.Net, result); err != nil {
			return err
		}
	}

	if err := event.MarkProcessed(s.now()); err != nil {
		return err
	}
	result.Outcome = WebhookOutcomeProcessed
	return repos.WebhookEvents().SaveWithLock(ctx, event)
}

// resolveWallet finds and locks the wallet an event pays into. A non-empty
// reason means the event cannot be credited and should be failed.
func (s *ReconciliationService) resolveWallet(ctx context.Context, repos TransactionalRepositories, payload *finance.WebhookPayload) (*finance.Wallet, string, error) {
	walletID := payload.WalletID
	if walletID == nil && payload.OwnerID != nil {
		w, err := getOrCreateWallet(ctx, repos, *payload.OwnerID, payload.Currency)
		if err != nil {
			return nil, "", err
		}
		walletID = uuidPtr(w.ID)
	}
	if walletID == nil {
		return nil, "event does not identify a wallet", nil
	}

	wallet, err := repos.Wallets().FindByIDForUpdate(ctx, *walletID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, "wallet " + walletID.String() + " not found", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("lock wallet %s: %w", walletID, err)
	}
	switch {
	case !wallet.Active:
		return nil, "wallet " + wallet.ID.String() + " is not active", nil
	case wallet.Currency != payload.Currency:
		return nil, "wallet currency " + string(wallet.Currency) + " does not match event currency " + string(payload.Currency), nil
	}
	return wallet, "", nil
}

// settleFromCredit moves freshly credited funds onto the invoice named by
// the event. The invoice must be open, belong to the wallet owner, and owe
// at least net; otherwise the funds stay in the wallet.
func (s *ReconciliationService) settleFromCredit(ctx context.Context, repos TransactionalRepositories, wallet *finance.Wallet, payload *finance.WebhookPayload, net valueobject.Money, result *WebhookResult) error {
	invoice, err := repos.Invoices().FindByIDForUpdate(ctx, *payload.InvoiceID)
	if errors.Is(err, shared.ErrNotFound) {
		result.Reason = "invoice not found; funds left in wallet"
		return nil
	}
	if err != nil {
		return err
	}
	if invoice.TenantID != wallet.OwnerID {
		result.Reason = "invoice belongs to another tenant; funds left in wallet"
		return nil
	}
	if err := invoice.EnsureCanAccept(net); err != nil {
		result.Reason = "invoice cannot accept payment (" + err.Error() + "); funds left in wallet"
		return nil
	}

	reference := "settle:" + payload.Reference
	debit, _, err := debitLocked(ctx, repos, wallet, net, &reference, "Invoice "+invoice.ID.String(), finance.TransactionStatusSuccess)
	if err != nil {
		return err
	}
	payment, _, err := settleLocked(ctx, repos, invoice, settlement{
		PayerID:   wallet.OwnerID,
		Amount:    net,
		Method:    finance.PaymentMethodGateway,
		Reference: &payload.Reference,
		SourceID:  uuidPtr(debit.ID),
		Confirmation: map[string]string{
			"provider":  s.verifier.Provider(),
			"reference": payload.Reference,
			"channel":   payload.Channel,
		},
	}, s.now())
	if err != nil {
		return err
	}

	audit := finance.NewTransactionAudit(finance.AuditSourceSettlement, reference, string(finance.PaymentMethodGateway),
		finance.ComputeFee(nil, net), finance.AuditStatusSuccess)
	audit.WalletTransactionID = uuidPtr(debit.ID)
	audit.PaymentID = uuidPtr(payment.ID)
	audit.InvoiceID = uuidPtr(invoice.ID)
	if err := repos.Audits().Create(ctx, audit); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	result.Payment = payment
	return nil
}
