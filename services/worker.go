package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"vidgrab/types"
	"vidgrab/websocket"
)

// EventPublisher receives every status change of a job
type EventPublisher interface {
	Publish(job types.Job) error
}

// Worker runs one background download per submitted job
type Worker struct {
	store     JobStore
	retriever Retriever
	dir       string
	hub       websocket.Hub
	events    EventPublisher
	wg        sync.WaitGroup
}

// NewWorker creates a worker that writes artifacts into dir.
// hub and events are optional.
func NewWorker(store JobStore, retriever Retriever, dir string, hub websocket.Hub, events EventPublisher) *Worker {
	return &Worker{
		store:     store,
		retriever: retriever,
		dir:       dir,
		hub:       hub,
		events:    events,
	}
}

// Submit records a pending job, starts its download and returns immediately
func (w *Worker) Submit(sourceURL string) types.Job {
	job := w.store.Create(sourceURL)

	w.wg.Add(1)
	go w.run(job.ID, sourceURL)

	return job
}

// Wait blocks until every started download has finished
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(id, sourceURL string) {
	defer w.wg.Done()

	job, err := w.store.Update(id, JobUpdate{Status: types.JobStatusInProgress})
	if err != nil {
		log.Printf("Job %s could not start: %v", id, err)
		return
	}
	w.notify(job)

	path, title, err := w.download(id, sourceURL)
	if err != nil {
		job, uerr := w.store.Update(id, JobUpdate{Status: types.JobStatusFailed, Error: err.Error()})
		if uerr != nil {
			log.Printf("Job %s failed (%v) and could not be updated: %v", id, err, uerr)
			return
		}
		log.Printf("Job %s failed: %v", id, err)
		w.notify(job)
		return
	}

	job, err = w.store.Update(id, JobUpdate{
		Status:       types.JobStatusCompleted,
		ArtifactPath: path,
		Title:        title,
	})
	if err != nil {
		log.Printf("Job %s finished but could not be updated: %v", id, err)
		return
	}
	log.Printf("Job %s completed successfully: %s", id, path)
	w.notify(job)
}

// download fetches the media and moves it to <id>.<ext> inside the download directory
func (w *Worker) download(id, sourceURL string) (string, string, error) {
	template := filepath.Join(w.dir, "%(title)s ["+id+"].%(ext)s")

	produced, err := w.retriever.Retrieve(context.Background(), sourceURL, template, func(ev ProgressEvent) {
		w.broadcastProgress(id, ev)
	})
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", sourceURL, err)
	}

	final := filepath.Join(w.dir, ArtifactFileName(id, produced))
	if filepath.Clean(produced) != final {
		if err := os.Rename(produced, final); err != nil {
			return "", "", fmt.Errorf("rename artifact: %w", err)
		}
	}

	return final, ArtifactTitle(final, produced), nil
}

func (w *Worker) broadcastProgress(id string, ev ProgressEvent) {
	if w.hub == nil {
		return
	}
	var name string
	if ev.Filename != "" {
		name = filepath.Base(ev.Filename)
	}
	w.hub.BroadcastProgress(id, "progress", ev.Phase, ev.Speed, name, ev.Percent)
}

// notify pushes a status change to websocket clients and the event bus
func (w *Worker) notify(job types.Job) {
	if w.hub != nil {
		msgType, progress, message := "status", 0.0, string(job.Status)
		switch job.Status {
		case types.JobStatusCompleted:
			msgType, progress, message = "complete", 100, "download completed"
		case types.JobStatusFailed:
			msgType, message = "error", job.Error
		case types.JobStatusInProgress:
			message = "download started"
		}
		w.hub.BroadcastProgress(job.ID, msgType, string(job.Status), "", message, progress)
	}

	if w.events != nil {
		if err := w.events.Publish(job); err != nil {
			log.Printf("Job %s: could not publish %s event: %v", job.ID, job.Status, err)
		}
	}
}
