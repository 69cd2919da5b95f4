package main

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/vidsum/errors"
)

func TestExitCode(t *testing.T) {
	appLogger := logrus.New()
	appLogger.SetOutput(io.Discard)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, 0},
		{"data errors only", errors.Data("BatchJobService.Reconcile", nil, "input batch-3 has no output"), 0},
		{"job failed", errors.JobFailed("SummarizeService.complete", nil, "batch job ended in status Stopped"), 1},
		{"timeout", errors.Timeout("BatchJobService.Wait", nil, "gave up"), 1},
		{"unclassified", fmt.Errorf("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(appLogger, tt.err); got != tt.expected {
				t.Errorf("exitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}
