package finance

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
)

// Gateway event names handled by the reconciliation flow
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Metadata schema versions understood by ParseWebhookPayload
const (
	// MetadataSchemaV1 carries metadata.wallet_id
	MetadataSchemaV1 = 1
	// MetadataSchemaV2 carries metadata.owner_id with optional currency and invoice_id
	MetadataSchemaV2 = 2
)

// WebhookPayload is the validated form of an inbound gateway event
type WebhookPayload struct {
	Event         string
	Reference     string
	AmountMinor   int64
	Currency      valueobject.Currency
	Channel       string
	SchemaVersion int

	WalletID  *uuid.UUID
	OwnerID   *uuid.UUID
	InvoiceID *uuid.UUID

	Metadata map[string]any

	bodyDigest string
}

// IsKnown reports whether the event type is one the ledger acts on
func (p *WebhookPayload) IsKnown() bool {
	return p.Event == EventChargeSuccess || p.Event == EventChargeFailed
}

// Amount returns the gross amount as Money
func (p *WebhookPayload) Amount() valueobject.Money {
	return valueobject.FromMinorUnits(p.AmountMinor, p.Currency)
}

// DedupKey identifies the event across redeliveries. Known events key on
// the sender's reference; unknown ones fall back to a digest of the body.
func (p *WebhookPayload) DedupKey(provider string) string {
	id := p.Reference
	if id == "" {
		id = "sha256:" + p.bodyDigest
	}
	return provider + ":" + p.Event + ":" + id
}

type rawEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type rawData struct {
	Reference string          `json:"reference"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	Metadata  json.RawMessage `json:"metadata"`
}

// ParseWebhookPayload decodes body against the versioned event schema.
// Unknown event types only need a well-formed envelope. Known events must
// carry a reference, a positive integer amount and metadata matching a
// supported schema version; anything else is ErrMalformedEvent.
func ParseWebhookPayload(body []byte, defaultCurrency valueobject.Currency) (*WebhookPayload, error) {
	var env rawEnvelope
	if err := decodeStrict(body, &env); err != nil {
		return nil, malformed("envelope: %v", err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return nil, malformed("event is required")
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) || env.Data[0] != '{' {
		return nil, malformed("data must be an object")
	}

	digest := sha256.Sum256(body)
	p := &WebhookPayload{
		Event:         env.Event,
		Currency:      defaultCurrency,
		SchemaVersion: MetadataSchemaV1,
		Metadata:      map[string]any{},
		bodyDigest:    hex.EncodeToString(digest[:]),
	}

	var data rawData
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		if !p.IsKnown() {
			return p, nil
		}
		return nil, malformed("data: %v", err)
	}
	p.Reference = strings.TrimSpace(data.Reference)
	p.Channel = data.Channel

	if !p.IsKnown() {
		return p, nil
	}

	if p.Reference == "" {
		return nil, malformed("data.reference is required")
	}
	amount, err := strconv.ParseInt(data.Amount.String(), 10, 64)
	if err != nil || amount <= 0 {
		return nil, malformed("data.amount must be a positive integer in minor units")
	}
	p.AmountMinor = amount

	if data.Currency != "" {
		c := valueobject.Currency(strings.ToUpper(data.Currency))
		if !c.IsValid() {
			return nil, malformed("data.currency %q is not supported", data.Currency)
		}
		p.Currency = c
	}

	meta, err := decodeMetadata(data.Metadata)
	if err != nil {
		return nil, err
	}
	p.Metadata = meta
	if err := p.applyMetadataSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeMetadata accepts an object, null, or the empty string some
// gateways send when no metadata was attached
func decodeMetadata(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return map[string]any{}, nil
	}
	if raw[0] != '{' {
		return nil, malformed("data.metadata must be an object")
	}
	meta := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		return nil, malformed("data.metadata: %v", err)
	}
	return meta, nil
}

func (p *WebhookPayload) applyMetadataSchema() error {
	version, err := schemaVersion(p.Metadata["schema_version"])
	if err != nil {
		return err
	}
	p.SchemaVersion = version

	switch version {
	case MetadataSchemaV1:
		id, err := metadataUUID(p.Metadata, "wallet_id", p.Event == EventChargeSuccess)
		if err != nil {
			return err
		}
		p.WalletID = id
	case MetadataSchemaV2:
		owner, err := metadataUUID(p.Metadata, "owner_id", p.Event == EventChargeSuccess)
		if err != nil {
			return err
		}
		p.OwnerID = owner
		invoice, err := metadataUUID(p.Metadata, "invoice_id", false)
		if err != nil {
			return err
		}
		p.InvoiceID = invoice
		if raw, ok := p.Metadata["currency"]; ok {
			s, isStr := raw.(string)
			c := valueobject.Currency(strings.ToUpper(s))
			if !isStr || !c.IsValid() {
				return malformed("metadata.currency is not a supported currency")
			}
			p.Currency = c
		}
	default:
		return malformed("metadata.schema_version %d is not supported", version)
	}
	return nil
}

func schemaVersion(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return MetadataSchemaV1, nil
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), "v"))
		if err != nil {
			return 0, malformed("metadata.schema_version %q is not a number", v)
		}
		return n, nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, malformed("metadata.schema_version %s is not an integer", v)
		}
		return n, nil
	default:
		return 0, malformed("metadata.schema_version has unsupported type %T", raw)
	}
}

func metadataUUID(meta map[string]any, key string, required bool) (*uuid.UUID, error) {
	raw, ok := meta[key]
	if !ok || raw == nil {
		if required {
			return nil, malformed("metadata.%s is required", key)
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, malformed("metadata.%s must be a string", key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, malformed("metadata.%s is not a valid id", key)
	}
	return &id, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

func malformed(format string, args ...any) error {
	return ErrMalformedEvent.WithMessage("Malformed webhook: " + fmt.Sprintf(format, args...))
}
