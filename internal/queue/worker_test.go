package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

type recordingRunner struct {
	jobs []string
	err  error
}

func (r *recordingRunner) RunJob(_ context.Context, name string) (scheduler.Report, error) {
	r.jobs = append(r.jobs, name)
	return scheduler.Report{Job: name, Processed: 1}, r.err
}

func TestProcessMessage(t *testing.T) {
	valid, _ := json.Marshal(JobMessage{RequestID: uuid.New(), Job: scheduler.JobMonthlyFee, RequestedBy: uuid.New()})

	tests := []struct {
		name     string
		data     string
		runErr   error
		wantJobs []string
	}{
		{name: "valid message", data: string(valid), wantJobs: []string{scheduler.JobMonthlyFee}},
		{name: "runner refuses", data: string(valid), runErr: model.ErrJobAlreadyRunning, wantJobs: []string{scheduler.JobMonthlyFee}},
		{name: "malformed message", data: "{not json", wantJobs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &recordingRunner{err: tt.runErr}
			w := NewWorker(nil, runner, zap.NewNop())

			w.processMessage(context.Background(), tt.data)

			if len(runner.jobs) != len(tt.wantJobs) {
				t.Fatalf("ran %v, want %v", runner.jobs, tt.wantJobs)
			}
			for i := range tt.wantJobs {
				if runner.jobs[i] != tt.wantJobs[i] {
					t.Errorf("job %d = %s, want %s", i, runner.jobs[i], tt.wantJobs[i])
				}
			}
		})
	}
}
