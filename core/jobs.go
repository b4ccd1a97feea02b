package core

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"syscall"
)

// process is one started pipeline stage.
type process interface {
	// Pid is the OS process id, zero for stages run inside the shell.
	Pid() int
	// Wait blocks until the stage finishes and returns its status. It must be
	// called exactly once.
	Wait() int
}

type externalProcess struct {
	cmd *exec.Cmd
}

func (p *externalProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *externalProcess) Wait() int {
	return exitStatus(p.cmd.Wait())
}

// builtinProcess is a built-in running on its own goroutine.
type builtinProcess struct {
	done chan int
}

func (p *builtinProcess) Pid() int { return 0 }

func (p *builtinProcess) Wait() int {
	return <-p.done
}

// exitedProcess is a stage that finished before it started, e.g. because its
// command wasn't found.
type exitedProcess int

func (p exitedProcess) Pid() int { return 0 }

func (p exitedProcess) Wait() int { return int(p) }

// exitStatus converts the result of exec.Cmd.Wait into a shell status.
// Processes killed by a signal report 128 plus the signal number.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// waitAll waits for every stage and returns the status of the last one.
func waitAll(procs []process) int {
	status := 0
	for _, proc := range procs {
		status = proc.Wait()
	}
	return status
}

// Job is a background pipeline.
type Job struct {
	ID      int
	Command string
	Pids    []int

	done     chan struct{}
	status   int
	notified bool
}

// Done reports whether every process of the job has exited.
func (j *Job) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finishes and returns the status of its last
// command.
func (j *Job) Wait() int {
	<-j.done
	return j.status
}

// State describes the job the way the jobs built-in shows it.
func (j *Job) State() string {
	if !j.Done() {
		return "Running"
	}
	if j.status == 0 {
		return "Done"
	}
	return fmt.Sprintf("Exit %d", j.status)
}

func (j *Job) String() string {
	return fmt.Sprintf("[%d]  %-10s %s", j.ID, j.State(), j.Command)
}

// DefaultKeepFinished is how many finished, unreaped jobs a table remembers
// for wait before dropping the oldest.
const DefaultKeepFinished = 1024

// JobTable tracks background pipelines until they've been reaped and
// reported.
type JobTable struct {
	// OnExit, if set, is called from the reaping goroutine when a job
	// finishes.
	OnExit func(*Job)
	// KeepFinished bounds the finished jobs kept for wait and jobs, zero
	// means DefaultKeepFinished. Scripts that never reap stay bounded.
	KeepFinished int

	mu     sync.Mutex
	nextID int
	jobs   []*Job
}

// NewJobTable creates an empty job table.
func NewJobTable() *JobTable {
	return &JobTable{}
}

// Add starts reaping procs in the background and records them as a job.
func (t *JobTable) Add(command string, procs []process) *Job {
	t.mu.Lock()
	t.prune()
	t.nextID++
	job := &Job{
		ID:      t.nextID,
		Command: command,
		done:    make(chan struct{}),
	}
	for _, proc := range procs {
		if pid := proc.Pid(); pid != 0 {
			job.Pids = append(job.Pids, pid)
		}
	}
	t.jobs = append(t.jobs, job)
	onExit := t.OnExit
	t.mu.Unlock()

	go func() {
		job.status = waitAll(procs)
		close(job.done)
		if onExit != nil {
			onExit(job)
		}
	}()

	return job
}

// Get finds a job that hasn't been reaped yet.
func (t *JobTable) Get(id int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, job := range t.jobs {
		if job.ID == id {
			return job, true
		}
	}
	return nil, false
}

// List returns the tracked jobs ordered by ID.
func (t *JobTable) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := append([]*Job(nil), t.jobs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WaitAll blocks until every tracked job finishes.
func (t *JobTable) WaitAll() {
	for _, job := range t.List() {
		job.Wait()
	}
}

// Reap forgets finished jobs and returns the ones that haven't been reported
// yet. Job numbering restarts once the table is empty.
func (t *JobTable) Reap() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	var finished []*Job
	remaining := t.jobs[:0]
	for _, job := range t.jobs {
		if !job.Done() {
			remaining = append(remaining, job)
			continue
		}
		if !job.notified {
			job.notified = true
			finished = append(finished, job)
		}
	}
	clearTail(t.jobs, len(remaining))
	t.jobs = remaining
	if len(t.jobs) == 0 {
		t.nextID = 0
	}
	return finished
}

// prune drops the oldest finished jobs beyond KeepFinished. The caller holds
// t.mu.
func (t *JobTable) prune() {
	keep := t.KeepFinished
	if keep <= 0 {
		keep = DefaultKeepFinished
	}

	excess := -keep
	for _, job := range t.jobs {
		if job.Done() {
			excess++
		}
	}
	if excess <= 0 {
		return
	}

	remaining := t.jobs[:0]
	for _, job := range t.jobs {
		if excess > 0 && job.Done() {
			excess--
			continue
		}
		remaining = append(remaining, job)
	}
	clearTail(t.jobs, len(remaining))
	t.jobs = remaining
}

// clearTail drops references past n left behind by filtering jobs in place.
func clearTail(jobs []*Job, n int) {
	for i := n; i < len(jobs); i++ {
		jobs[i] = nil
	}
}

// Forget drops a finished job without reporting it, as wait does.
func (t *JobTable) Forget(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job.notified = true
	for i, j := range t.jobs {
		if j == job {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			break
		}
	}
	if len(t.jobs) == 0 {
		t.nextID = 0
	}
}
