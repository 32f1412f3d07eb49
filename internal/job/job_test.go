package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCancelling, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "zabbix.bulk_add_hosts", TypeOf("zabbix", "bulk_add_hosts"))
}

func TestAppendLogPreservesOrder(t *testing.T) {
	j := &Job{}
	j.AppendLog("first")
	j.AppendLog("second")
	j.AppendLog("third")

	if assert.Len(t, j.Logs, 3) {
		assert.Equal(t, "first", j.Logs[0].Message)
		assert.Equal(t, "second", j.Logs[1].Message)
		assert.Equal(t, "third", j.Logs[2].Message)
		assert.False(t, j.Logs[0].At.After(j.Logs[2].At))
	}
}

func TestMarkCancellingAndCancelled(t *testing.T) {
	before := time.Now().UTC()

	j := &Job{Status: StatusRunning}
	j.MarkCancelling("cancellation requested")
	assert.Equal(t, StatusCancelling, j.Status)

	j.MarkCancelled("job cancelled")
	assert.Equal(t, StatusCancelled, j.Status)

	if assert.Len(t, j.Logs, 2) {
		assert.False(t, j.Logs[0].At.Before(before))
	}

	// Empty message marks without logging.
	k := &Job{Status: StatusQueued}
	k.MarkCancelling("")
	assert.Equal(t, StatusCancelling, k.Status)
	assert.Empty(t, k.Logs)
}
