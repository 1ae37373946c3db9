package events

import (
	"encoding/json"
	"fmt"
	"time"

	"vidgrab/types"

	"github.com/nats-io/nats.go"
)

// JobEvent is published whenever a job changes status
type JobEvent struct {
	VideoID   string          `json:"video_id"`
	Status    types.JobStatus `json:"status"`
	URL       string          `json:"url"`
	Title     string          `json:"title,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewJobEvent builds the event for the current state of a job
func NewJobEvent(job types.Job) JobEvent {
	return JobEvent{
		VideoID:   job.ID,
		Status:    job.Status,
		URL:       job.SourceURL,
		Title:     job.Title,
		Error:     job.Error,
		Timestamp: time.Now().UTC(),
	}
}

// Subject returns the subject a status is published on, e.g. video.jobs.completed
func Subject(prefix string, status types.JobStatus) string {
	return fmt.Sprintf("%s.%s", prefix, status)
}

// Publisher sends job events to NATS
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials NATS and returns a publisher for the given subject prefix
func Connect(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("vidgrab"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &Publisher{nc: nc, prefix: prefix}, nil
}

// Publish sends the job's current state on its status subject
func (p *Publisher) Publish(job types.Job) error {
	data, err := json.Marshal(NewJobEvent(job))
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(p.prefix, job.Status), data)
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
