package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// anchorRetryIntervals is the wait before each redelivery attempt.
var anchorRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// EventBatchBuilt is the only event the notifier emits.
const EventBatchBuilt = "batch.built"

// Notification headers.
const (
	HeaderSignature = "X-Ergoveritas-Signature"
	HeaderTimestamp = "X-Ergoveritas-Timestamp"
	HeaderEvent     = "X-Ergoveritas-Event"
)

// BatchBuiltEvent is the JSON body POSTed to the anchoring endpoint.
type BatchBuiltEvent struct {
	Event      string      `json:"event"`
	BatchID    uuid.UUID   `json:"batch_id"`
	MerkleRoot string      `json:"merkle_root"`
	ReceiptIDs []uuid.UUID `json:"receipt_ids"`
	CreatedAt  time.Time   `json:"created_at"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AnchorNotifierImpl implements ports.AnchorNotifier with signed webhook
// delivery. Every attempt is recorded on the batch's delivery row.
type AnchorNotifierImpl struct {
	deliveryRepo ports.AnchorDeliveryRepository
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	targetURL    string
	secret       string
	intervals    []time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewAnchorNotifier creates a notifier. An empty targetURL disables delivery.
func NewAnchorNotifier(
	deliveryRepo ports.AnchorDeliveryRepository,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	targetURL string,
	secret string,
	log zerolog.Logger,
) *AnchorNotifierImpl {
	return &AnchorNotifierImpl{
		deliveryRepo: deliveryRepo,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		targetURL:    targetURL,
		secret:       secret,
		intervals:    anchorRetryIntervals,
		log:          log,
		now:          time.Now,
	}
}

// NotifyBatchBuilt records a pending delivery and sends it in the background.
func (n *AnchorNotifierImpl) NotifyBatchBuilt(ctx context.Context, batch *domain.Batch) error {
	if n.targetURL == "" {
		n.log.Debug().Str("batch_id", batch.ID.String()).Msg("anchor: no endpoint configured, skipping")
		return nil
	}

	body, err := json.Marshal(BatchBuiltEvent{
		Event:      EventBatchBuilt,
		BatchID:    batch.ID,
		MerkleRoot: batch.MerkleRoot,
		ReceiptIDs: batch.ReceiptIDs,
		CreatedAt:  batch.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal batch event: %w", err)
	}

	now := n.now().UTC()
	delivery := &domain.AnchorDelivery{
		ID:        uuid.New(),
		BatchID:   batch.ID,
		TargetURL: n.targetURL,
		Payload:   string(body),
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.deliveryRepo != nil {
		if err := n.deliveryRepo.Create(ctx, delivery); err != nil {
			return fmt.Errorf("record anchor delivery: %w", err)
		}
	}

	go n.deliverWithRetries(context.WithoutCancel(ctx), delivery)

	return nil
}

// deliverWithRetries POSTs the event until a 2xx response or the retry
// schedule is exhausted.
func (n *AnchorNotifierImpl) deliverWithRetries(ctx context.Context, delivery *domain.AnchorDelivery) {
	batchID := delivery.BatchID.String()

	for attempt := 0; attempt <= len(n.intervals); attempt++ {
		if attempt > 0 {
			time.Sleep(n.intervals[attempt-1])
		}
		delivery.Attempt = attempt + 1

		status, err := n.send(ctx, delivery.Payload)
		if status != 0 {
			delivery.HTTPStatus = &status
		}

		switch {
		case err == nil && status >= 200 && status < 300:
			delivery.Status = domain.DeliveryStatusDelivered
			delivery.LastError = nil
			delivery.NextRetryAt = nil
			n.record(ctx, delivery)
			n.log.Info().Str("batch_id", batchID).Int("attempt", delivery.Attempt).Int("status", status).Msg("anchor: delivered")
			return
		case err != nil:
			msg := err.Error()
			delivery.LastError = &msg
			n.log.Warn().Err(err).Str("batch_id", batchID).Int("attempt", delivery.Attempt).Msg("anchor: delivery failed")
		default:
			msg := fmt.Sprintf("non-2xx response: %d", status)
			delivery.LastError = &msg
			n.log.Warn().Str("batch_id", batchID).Int("attempt", delivery.Attempt).Int("status", status).Msg("anchor: non-2xx response, retrying")
		}

		if attempt < len(n.intervals) {
			next := n.now().UTC().Add(n.intervals[attempt])
			delivery.NextRetryAt = &next
		} else {
			delivery.Status = domain.DeliveryStatusFailed
			delivery.NextRetryAt = nil
		}
		n.record(ctx, delivery)
	}

	n.log.Error().Str("batch_id", batchID).Msg("anchor: all retry attempts exhausted")
}

func (n *AnchorNotifierImpl) send(ctx context.Context, body string) (int, error) {
	ts := n.now().Unix()
	signature := n.sigSvc.Sign(n.secret, n.sigSvc.BuildDeliveryString(ts, body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.targetURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, EventBatchBuilt)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, signature)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (n *AnchorNotifierImpl) record(ctx context.Context, delivery *domain.AnchorDelivery) {
	if n.deliveryRepo == nil {
		return
	}
	delivery.UpdatedAt = n.now().UTC()
	if err := n.deliveryRepo.Update(ctx, delivery); err != nil {
		n.log.Warn().Err(err).Str("batch_id", delivery.BatchID.String()).Msg("anchor: failed to record delivery attempt")
	}
}
