package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisOpt translates the configured Redis URL into asynq connection options,
// so the queue and the cache share one REDIS_URL setting.
func RedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}, nil
}

// OCRInitPayload kicks off the page fan-out for one uploaded document.
type OCRInitPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	StorageKey string    `json:"storage_key"`
}

// PageOCRPayload is one page's unit of work.
type PageOCRPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	PageIndex  int       `json:"page_index"`
	ImageKey   string    `json:"image_key"`
}

// ExtractPayload triggers structure extraction once all pages are in.
type ExtractPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// GeneratePayload is one generated question's unit of work. It carries the
// full source snapshot so the worker never reads the original question.
type GeneratePayload struct {
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionIndex int             `json:"question_index"`
	Snapshot      SnapshotPayload `json:"snapshot"`
}

// SnapshotPayload mirrors model.QuestionSnapshot on the wire.
type SnapshotPayload struct {
	Index   int             `json:"index"`
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client enqueues pipeline tasks onto the named asynq lanes.
type Client struct {
	client *asynq.Client
}

// NewClient creates an enqueue client on the given Redis connection options.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueOCRInit schedules the OCR initializer for a freshly uploaded document.
func (c *Client) EnqueueOCRInit(ctx context.Context, p OCRInitPayload) error {
	return c.enqueue(ctx, config.TaskKey.OCRInit, config.QueueKey.OCRLane, p, 10*time.Minute)
}

// EnqueuePageOCR schedules recognition of one page.
func (c *Client) EnqueuePageOCR(ctx context.Context, p PageOCRPayload) error {
	return c.enqueue(ctx, config.TaskKey.OCRPage, config.QueueKey.OCRLane, p, 5*time.Minute)
}

// EnqueueExtract schedules structure extraction. Exactly one of these exists
// per document; the extraction trigger's compare-and-set guarantees it.
func (c *Client) EnqueueExtract(ctx context.Context, p ExtractPayload) error {
	return c.enqueue(ctx, config.TaskKey.ExtractExam, config.QueueKey.ExtractLane, p, 10*time.Minute)
}

// EnqueueGenerate schedules generation of one question.
func (c *Client) EnqueueGenerate(ctx context.Context, p GeneratePayload) error {
	return c.enqueue(ctx, config.TaskKey.GenerateQuestion, config.QueueKey.GenerateLane, p, 5*time.Minute)
}

func (c *Client) enqueue(ctx context.Context, taskType, lane string, payload interface{}, timeout time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(lane),
		asynq.Timeout(timeout),
		asynq.MaxRetry(3),
	); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
