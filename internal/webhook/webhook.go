package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/logger"
	"slotbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "webhooks"
	failedQueueKey = "webhooks:failed"
	maxTries       = 5

	HeaderEvent     = "X-Slotbook-Event"
	HeaderDelivery  = "X-Slotbook-Delivery"
	HeaderTimestamp = "X-Slotbook-Timestamp"
	HeaderSignature = "X-Slotbook-Signature"
)

type Delivery struct {
	ID      string          `json:"id"`
	URL     string          `json:"url"`
	Secret  string          `json:"secret,omitempty"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Tries   int             `json:"tries"`
	Created time.Time       `json:"created"`
}

type envelope struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type Queue struct {
	redis      *redis.Client
	hc         *http.Client
	retryDelay time.Duration
	now        func() time.Time
}

func NewQueue(rdb *redis.Client, timeout time.Duration) *Queue {
	return &Queue{
		redis:      rdb,
		hc:         &http.Client{Timeout: timeout},
		retryDelay: 2 * time.Second,
		now:        time.Now,
	}
}

// Sign returns the hex HMAC-SHA256 of "timestamp.body".
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value produced by a delivery.
func Verify(secret string, timestamp int64, body []byte, signature string) bool {
	expected := "sha256=" + Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Enqueue schedules data for delivery to url and returns the delivery id.
func (q *Queue) Enqueue(ctx context.Context, url, secret, event string, data interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	d := Delivery{
		ID:      uuid.NewString(),
		URL:     url,
		Secret:  secret,
		Event:   event,
		Data:    raw,
		Created: q.now().UTC(),
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	if err := q.redis.LPush(ctx, queueKey, string(payload)).Err(); err != nil {
		return "", fmt.Errorf("queue webhook: %w", err)
	}

	logger.Info("webhook queued", "delivery_id", d.ID, "event", event)
	return d.ID, nil
}

func (q *Queue) Start(ctx context.Context) {
	logger.Info("webhook worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("webhook worker stopped")
			return
		default:
			q.processNext(ctx)
		}
	}
}

func (q *Queue) processNext(ctx context.Context) {
	result, err := q.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var d Delivery
	if err := json.Unmarshal([]byte(result[1]), &d); err != nil {
		logger.Error("bad webhook payload", "error", err)
		return
	}

	d.Tries++
	if err := q.deliver(ctx, d); err != nil {
		logger.Warn("webhook delivery failed", "delivery_id", d.ID, "event", d.Event, "attempt", d.Tries, "error", err)

		data, _ := json.Marshal(d)
		if d.Tries < maxTries {
			time.Sleep(q.retryDelay * time.Duration(d.Tries))
			q.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			metrics.RecordNotification("webhook", "retry")
			return
		}

		q.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data))
		metrics.RecordNotification("webhook", "failed")
		logger.Error("webhook moved to failed queue", "delivery_id", d.ID, "event", d.Event)
		return
	}

	metrics.RecordNotification("webhook", "sent")
	logger.Info("webhook delivered", "delivery_id", d.ID, "event", d.Event)
}

func (q *Queue) deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(envelope{ID: d.ID, Event: d.Event, CreatedAt: d.Created, Data: d.Data})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	ts := q.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, d.Event)
	req.Header.Set(HeaderDelivery, d.ID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	if d.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(d.Secret, ts, body))
	}

	resp, err := q.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (q *Queue) QueueLength(ctx context.Context) int64 {
	length, _ := q.redis.LLen(ctx, queueKey).Result()
	metrics.SetQueueLength(queueKey, length)
	return length
}
