package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers hands out one ordered publisher per topic and stops them
// all on shutdown so buffered messages are flushed.
type topicPublishers struct {
	client pubSubClient

	mu   sync.Mutex
	byID map[string]*gcpPublisher
}

func newTopicPublishers(client pubSubClient) *topicPublishers {
	return &topicPublishers{client: client, byID: make(map[string]*gcpPublisher)}
}

func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byID[topic]; ok {
		return p
	}
	raw := t.client.Publisher(topic)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	p := &gcpPublisher{Publisher: raw}
	t.byID[topic] = p
	return p
}

func (t *topicPublishers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, p := range t.byID {
		p.Stop()
		delete(t.byID, topic)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{result: p.Publisher.Publish(ctx, msg), publisher: p.Publisher, key: msg.OrderingKey}
}

// orderedResult resumes the ordering key after a failure; Pub/Sub pauses a
// key on error and rejects later messages for it until resumed.
type orderedResult struct {
	result    *gcppubsub.PublishResult
	publisher *gcppubsub.Publisher
	key       string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.result.Get(ctx)
	if err != nil && r.key != "" {
		r.publisher.ResumePublish(r.key)
	}
	return id, err
}
