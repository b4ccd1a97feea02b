package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heldProcess is a stage that finishes when its channel is closed.
type heldProcess struct {
	pid     int
	release chan struct{}
	status  int
}

func newHeldProcess(pid, status int) *heldProcess {
	return &heldProcess{pid: pid, release: make(chan struct{}), status: status}
}

func (p *heldProcess) Pid() int { return p.pid }

func (p *heldProcess) Wait() int {
	<-p.release
	return p.status
}

func TestJobTable(t *testing.T) {
	var mu sync.Mutex
	var exited []int

	table := NewJobTable()
	table.OnExit = func(job *Job) {
		mu.Lock()
		defer mu.Unlock()
		exited = append(exited, job.ID)
	}

	first := newHeldProcess(100, 0)
	second := newHeldProcess(0, 3)
	job1 := table.Add("sleep 10", []process{first})
	job2 := table.Add("false | false", []process{exitedProcess(1), second})

	assert.Equal(t, 1, job1.ID)
	assert.Equal(t, 2, job2.ID)
	assert.Equal(t, []int{100}, job1.Pids)
	assert.Empty(t, job2.Pids)
	assert.Equal(t, "Running", job1.State())
	assert.Equal(t, "[1]  Running    sleep 10", job1.String())
	assert.Empty(t, table.Reap())

	close(second.release)
	assert.Equal(t, 3, job2.Wait())
	assert.Equal(t, "Exit 3", job2.State())

	reaped := table.Reap()
	require.Len(t, reaped, 1)
	assert.Equal(t, job2, reaped[0])
	assert.Empty(t, table.Reap(), "jobs are reported once")

	_, ok := table.Get(2)
	assert.False(t, ok)
	got, ok := table.Get(1)
	assert.True(t, ok)
	assert.Equal(t, job1, got)

	close(first.release)
	table.WaitAll()
	assert.Equal(t, "Done", job1.State())

	require.Len(t, table.Reap(), 1)
	assert.Empty(t, table.List())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(exited) == 2
	}, time.Second, time.Millisecond)

	// Numbering restarts once every job is gone.
	job := table.Add("true", []process{exitedProcess(0)})
	assert.Equal(t, 1, job.ID)
}

func TestJobTable_Forget(t *testing.T) {
	table := NewJobTable()
	job := table.Add("true", []process{exitedProcess(0)})
	job.Wait()

	table.Forget(job)
	assert.Empty(t, table.List())
	assert.Empty(t, table.Reap(), "forgotten jobs aren't reported")
}

func TestJobTable_keepFinished(t *testing.T) {
	table := NewJobTable()
	table.KeepFinished = 2

	running := newHeldProcess(50, 0)
	defer close(running.release)
	table.Add("sleep 10", []process{running})
	for i := 0; i < 5; i++ {
		table.Add("true", []process{exitedProcess(0)}).Wait()
	}

	var ids []int
	for _, job := range table.List() {
		ids = append(ids, job.ID)
	}
	assert.Equal(t, []int{1, 4, 5, 6}, ids, "oldest finished jobs dropped, running job kept")

	job, ok := table.Get(6)
	require.True(t, ok)
	assert.Equal(t, 0, job.Wait())
}

func TestExitStatus(t *testing.T) {
	assert.Equal(t, 0, exitStatus(nil))
	assert.Equal(t, 1, exitStatus(assert.AnError))
}
