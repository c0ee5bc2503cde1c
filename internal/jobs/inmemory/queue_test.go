package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-coach/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var processed atomic.Int32
	done := make(chan string, 1)

	handler := func(ctx context.Context, job jobs.Job) error {
		processed.Add(1)
		done <- job.GetID()
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.IngestAttachmentJob{
		ConversationID: "c1",
		UserID:         "u1",
		GCSURI:         "gs://coach-attachments/c1/nota.ogg",
		Transcript:     "gasto 300 mil en mercado",
	}
	if err := q.PublishIngestAttachment(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish must assign a job ID")
	}

	select {
	case id := <-done:
		if id != job.JobID {
			t.Errorf("processed job %s, want %s", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed in time")
	}

	// Give the post-handler status save a moment.
	deadline := time.Now().Add(time.Second)
	for {
		got, err := store.GetJob(context.Background(), job.JobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %s, want completed", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if processed.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", processed.Load())
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	succeeded := make(chan struct{}, 1)

	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		succeeded <- struct{}{}
		return nil
	}

	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := q.PublishIngestAttachment(context.Background(), &jobs.IngestAttachmentJob{
		ConversationID: "c1",
		GCSURI:         "gs://coach-attachments/c1/doc.pdf",
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-succeeded:
	case <-time.After(5 * time.Second):
		t.Fatalf("job never succeeded after retry, attempts=%d", attempts.Load())
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestQueue_PublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := q.PublishIngestAttachment(context.Background(), &jobs.IngestAttachmentJob{})
	if err == nil {
		t.Fatal("publishing to a closed queue must fail")
	}
}

func TestStore_ListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	for i, j := range []*jobs.IngestAttachmentJob{
		{JobID: "j1", ConversationID: "c1", Status: jobs.JobStatusPending},
		{JobID: "j2", ConversationID: "c1", Status: jobs.JobStatusCompleted},
		{JobID: "j3", ConversationID: "c2", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("conversation filter returned %d jobs, want 2", len(got))
	}
	if got[0].JobID != "j2" {
		t.Errorf("newest first: got %s, want j2", got[0].JobID)
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("status filter returned %d jobs, want 2", len(got))
	}
}
