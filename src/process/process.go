// Package process implements generic subprocess management functions.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/cli"
)

var log = logging.MustGetLogger("process")

// terminateGracePeriod is how long a process gets to exit after SIGTERM before we SIGKILL it.
const terminateGracePeriod = 500 * time.Millisecond

// An Executor handles starting, running and monitoring a set of subprocesses.
// It registers as an exit handler to attempt to terminate them all at process exit.
type Executor struct {
	processes map[*exec.Cmd]struct{}
	mutex     sync.Mutex
}

// New returns a new Executor.
func New() *Executor {
	e := &Executor{
		processes: map[*exec.Cmd]struct{}{},
	}
	cli.AtExit(e.killAll) // Kill any subprocess if we are ourselves killed
	return e
}

// A StartError is returned when a command could not be started at all, as opposed to
// starting and then failing.
type StartError struct {
	Argv []string
	Dir  string
	Err  error
}

func (err *StartError) Error() string {
	return fmt.Sprintf("failed to start %s in %s: %s", err.Argv[0], err.Dir, err.Err)
}

func (err *StartError) Unwrap() error {
	return err.Err
}

// ExecWithTimeout runs an external command with a timeout, which is also bounded by the given context.
// If the command times out the returned error will be a context.DeadlineExceeded error.
// It returns stdout and stderr separately, and any error that occurred. A command that exits
// unsuccessfully returns an *exec.ExitError along with whatever output it produced.
func (e *Executor) ExecWithTimeout(ctx context.Context, dir string, env []string, timeout time.Duration, argv []string) ([]byte, []byte, error) {
	// We deliberately don't attach this context to the command, so we have better
	// control over how the process gets terminated.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := e.ExecCommand(argv[0], argv[1:]...)
	defer e.removeProcess(cmd)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Start the command, wait for the timeout & then kill it.
	// We deliberately don't use CommandContext because it will only send SIGKILL which
	// child processes can't handle themselves.
	if err := cmd.Start(); err != nil {
		return nil, nil, &StartError{Argv: argv, Dir: dir, Err: err}
	}
	e.registerProcess(cmd)
	ch := make(chan error, 1)
	go runCommand(cmd, ch)
	var err error
	select {
	case err = <-ch:
		// Do nothing.
	case <-ctx.Done():
		log.Debug("Terminating %s: %s", argv[0], ctx.Err())
		killProcess(cmd, syscall.SIGTERM)
		select {
		case <-ch:
		case <-time.After(terminateGracePeriod):
			killProcess(cmd, syscall.SIGKILL)
			<-ch
		}
		err = ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// runCommand runs a command and signals on the given channel when it's done.
func runCommand(cmd *exec.Cmd, ch chan error) {
	ch <- cmd.Wait()
}

// KillProcess kills a process and its group outright.
func (e *Executor) KillProcess(cmd *exec.Cmd) {
	killProcess(cmd, syscall.SIGKILL)
	e.removeProcess(cmd)
}

func (e *Executor) registerProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = struct{}{}
}

func (e *Executor) removeProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, cmd)
}

// killProcess signals the process group of the given command.
// It returns true if the signal was delivered.
func killProcess(cmd *exec.Cmd, sig syscall.Signal) bool {
	if cmd.Process == nil {
		log.Debug("Not terminating process, it seems to have not started yet")
		return false
	}
	log.Debug("Sending signal %s to -%d", sig, cmd.Process.Pid)
	return syscall.Kill(-cmd.Process.Pid, sig) == nil // Kill the group - we always set one in ExecCommand.
}

// killAll kills all subprocesses of this executor.
func (e *Executor) killAll() {
	e.mutex.Lock()
	processes := make([]*exec.Cmd, 0, len(e.processes))
	for proc := range e.processes {
		processes = append(processes, proc)
	}
	e.mutex.Unlock()

	if len(processes) > 0 {
		var wg sync.WaitGroup
		wg.Add(len(processes))
		for _, proc := range processes {
			go func(proc *exec.Cmd) {
				e.KillProcess(proc)
				wg.Done()
			}(proc)
		}
		wg.Wait()
	}
}
