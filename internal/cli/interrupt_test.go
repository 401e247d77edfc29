package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.interrupted)
		})
	}
}

func TestParentCancellationIsNotAnInterrupt(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, "Sync", "attend sync")
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("derived context was not canceled")
	}
	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestInterruptShowsMessageOnce(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)
	handler.operation = "Reconciliation"

	handler.interrupt()
	handler.interrupt()

	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Reconciliation interrupted!"))
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		resumeHint  string
		expected    []string
		notExpected []string
	}{
		{
			name:       "with resume hint",
			operation:  "Sync",
			resumeHint: "attend sync --start 2024-03-01 --end 2024-04-01",
			expected: []string{
				"Sync interrupted!",
				"Progress has been saved",
				"Resume with: attend sync --start 2024-03-01 --end 2024-04-01",
			},
		},
		{
			name:        "without resume hint",
			operation:   "Reconciliation",
			expected:    []string{"Reconciliation interrupted!"},
			notExpected: []string{"Progress has been saved", "Resume with"},
		},
		{
			name:     "unnamed operation",
			expected: []string{"Operation interrupted!"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:     &output,
				operation:  tt.operation,
				resumeHint: tt.resumeHint,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
