package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SettlementMetrics counts ledger activity. A nil *SettlementMetrics is
// valid and records nothing.
type SettlementMetrics struct {
	postings    *Counter
	webhooks    *Counter
	refunds     *Counter
	jobRuns     *Counter
	jobDuration *Histogram
}

// NewSettlementMetrics registers the ledger instruments on meter
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	postings, err := NewCounter(meter, "ledger_postings_total", "Settled wallet postings", "{posting}")
	if err != nil {
		return nil, err
	}
	webhooks, err := NewCounter(meter, "ledger_webhooks_total", "Inbound gateway webhooks by outcome", "{event}")
	if err != nil {
		return nil, err
	}
	refunds, err := NewCounter(meter, "ledger_refunds_total", "Refunds created", "{refund}")
	if err != nil {
		return nil, err
	}
	jobRuns, err := NewCounter(meter, "ledger_job_runs_total", "Scheduler job runs by outcome", "{run}")
	if err != nil {
		return nil, err
	}
	jobDuration, err := NewHistogram(meter, "ledger_job_duration_seconds", "Scheduler job run duration", "s", JobDurationBuckets...)
	if err != nil {
		return nil, err
	}
	return &SettlementMetrics{
		postings:    postings,
		webhooks:    webhooks,
		refunds:     refunds,
		jobRuns:     jobRuns,
		jobDuration: jobDuration,
	}, nil
}

// RecordPosting counts one settled credit or debit
func (m *SettlementMetrics) RecordPosting(ctx context.Context, txType, currency string) {
	if m == nil {
		return
	}
	m.postings.Inc(ctx, AttrTxType.String(txType), AttrCurrency.String(currency))
}

// RecordWebhook counts one webhook delivery by outcome
func (m *SettlementMetrics) RecordWebhook(ctx context.Context, provider, event, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Inc(ctx, AttrProvider.String(provider), AttrEvent.String(event), AttrOutcome.String(outcome))
}

// RecordRefund counts one created refund
func (m *SettlementMetrics) RecordRefund(ctx context.Context, auto bool) {
	if m == nil {
		return
	}
	m.refunds.Inc(ctx, AttrAuto.Bool(auto))
}

// RecordJobRun records a finished scheduler run
func (m *SettlementMetrics) RecordJobRun(ctx context.Context, job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.jobRuns.Inc(ctx, AttrJob.String(job), AttrOutcome.String(outcome))
	m.jobDuration.RecordDuration(ctx, elapsed, AttrJob.String(job))
}
