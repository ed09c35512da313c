package scheduler

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type schedConfig struct {
	redisURL string
	queue    string
}

func (c schedConfig) GetRedisURL() string       { return c.redisURL }
func (c schedConfig) GetRedisTLSInsecure() bool { return false }
func (c schedConfig) GetAsynqQueueName() string { return c.queue }
func (c schedConfig) GetAsynqConcurrency() int  { return 1 }

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedConfig{}); err == nil {
		t.Fatal("NewClient without redis url must fail")
	}
}

func TestClientEnqueuesWelcomeMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(schedConfig{redisURL: "redis://" + mr.Addr(), queue: "ingest"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	err = client.EnqueueWelcomeMessage(context.Background(), WelcomeMessagePayload{
		LeadID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("EnqueueWelcomeMessage: %v", err)
	}

	var queued bool
	for _, key := range mr.Keys() {
		if strings.Contains(key, "asynq") && strings.Contains(key, "ingest") {
			queued = true
			break
		}
	}
	if !queued {
		t.Errorf("no task landed in the ingest queue, keys = %v", mr.Keys())
	}
}

func TestNilClientRefusesEnqueue(t *testing.T) {
	var client *Client
	if err := client.EnqueueWelcomeMessage(context.Background(), WelcomeMessagePayload{}); err == nil {
		t.Fatal("nil client must surface an error so the caller can fall back")
	}
}
