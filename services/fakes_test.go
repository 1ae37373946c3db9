package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vidgrab/types"
	"vidgrab/websocket"
)

// fakeRetriever writes a small file where the engine would have written the video
type fakeRetriever struct {
	title   string
	ext     string
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (f *fakeRetriever) Retrieve(ctx context.Context, sourceURL, outputTemplate string, onProgress ProgressFunc) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}

	if onProgress != nil {
		partial := strings.NewReplacer("%(title)s", f.title, "%(ext)s", f.ext).Replace(outputTemplate) + ".part"
		onProgress(ProgressEvent{Phase: PhaseDownloading, Percent: 50, Speed: "1.0MB/s", Filename: partial})
	}
	if f.err != nil {
		if onProgress != nil {
			onProgress(ProgressEvent{Phase: PhaseError})
		}
		return "", f.err
	}

	path := strings.NewReplacer("%(title)s", f.title, "%(ext)s", f.ext).Replace(outputTemplate)
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(ProgressEvent{Phase: PhaseFinished, Percent: 100})
	}
	return path, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Job
}

func (p *recordingPublisher) Publish(job types.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, job)
	return nil
}

func (p *recordingPublisher) statuses() []types.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.JobStatus, 0, len(p.events))
	for _, job := range p.events {
		out = append(out, job.Status)
	}
	return out
}

type broadcast struct {
	jobID, msgType, status, message string
	progress                        float64
}

type recordingHub struct {
	mu       sync.Mutex
	messages []broadcast
}

func (h *recordingHub) Run() {}
func (h *recordingHub) Shutdown() {}
func (h *recordingHub) SendTo(client *websocket.Client, message types.ProgressMessage) {}
func (h *recordingHub) RegisterClient(client *websocket.Client) {}
func (h *recordingHub) UnregisterClient(client *websocket.Client) {}

func (h *recordingHub) BroadcastProgress(jobID, msgType, status, speed, message string, progress float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, broadcast{jobID: jobID, msgType: msgType, status: status, message: message, progress: progress})
}

func (h *recordingHub) all() []broadcast {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]broadcast(nil), h.messages...)
}

func (h *recordingHub) kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, m.msgType)
	}
	return out
}

const (
	waitTimeout  = 2 * time.Second
	pollInterval = 10 * time.Millisecond
)

type missingFileRetriever struct{}

func (missingFileRetriever) Retrieve(ctx context.Context, sourceURL, outputTemplate string, onProgress ProgressFunc) (string, error) {
	return filepath.Join(filepath.Dir(outputTemplate), "vanished.mp4"), nil
}
