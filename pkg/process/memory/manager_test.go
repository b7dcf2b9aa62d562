package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/butter-bot-machines/procmux/pkg/process"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return nil
}

func TestManager_BasicOperations(t *testing.T) {
	sink := &lineSink{}
	mgr := NewManager(sink)
	mgr.Script("SERVER", Script{Lines: []string{"listening", "client connected"}, ExitCode: 2})

	proc := mgr.New(process.Descriptor{Name: "SERVER", Command: []string{"server"}})
	if proc.ID() != 0 {
		t.Errorf("Got ID %d before start, want 0", proc.ID())
	}

	if err := proc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if proc.ID() != 1 {
		t.Errorf("Got ID %d, want 1", proc.ID())
	}
	if err := proc.Join(); err != nil {
		t.Errorf("Join failed: %v", err)
	}
	if proc.ExitCode() != 2 {
		t.Errorf("Got exit code %d, want 2", proc.ExitCode())
	}

	want := []string{"[SERVER]  |listening", "[SERVER]  |client connected"}
	if diff := cmp.Diff(want, sink.lines); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"start SERVER", "join SERVER"}, mgr.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(mgr.List()) != 1 {
		t.Errorf("Got %d processes, want 1", len(mgr.List()))
	}
}

func TestProcess_Lifecycle(t *testing.T) {
	boom := errors.New("boom")

	t.Run("Start Failure", func(t *testing.T) {
		sink := &lineSink{}
		mgr := NewManager(sink)
		mgr.Script("CLIENT", Script{StartErr: boom})
		proc := mgr.New(process.Descriptor{Name: "CLIENT", Command: []string{"client"}})

		err := proc.Start()
		var spawnErr *process.SpawnError
		if !errors.As(err, &spawnErr) || !errors.Is(err, boom) {
			t.Errorf("Start error = %v, want SpawnError wrapping boom", err)
		}
		if err := proc.Join(); err != process.ErrNotStarted {
			t.Errorf("Join = %v, want ErrNotStarted", err)
		}
		if err := proc.Kill(); err != process.ErrNotStarted {
			t.Errorf("Kill = %v, want ErrNotStarted", err)
		}
		if diff := cmp.Diff([]string{"Killing process CLIENT"}, sink.lines); diff != "" {
			t.Errorf("sink mismatch (-want +got):\n%s", diff)
		}

		idle := mgr.New(process.Descriptor{Name: "IDLE", Command: []string{"idle"}})
		if err := idle.Kill(); err != process.ErrNotStarted {
			t.Errorf("Kill before Start = %v, want ErrNotStarted", err)
		}
		if len(sink.lines) != 1 {
			t.Errorf("unstarted process wrote a kill notice: %q", sink.lines)
		}
	})

	t.Run("Blocked Until Kill", func(t *testing.T) {
		sink := &lineSink{}
		mgr := NewManager(sink)
		mgr.Script("SERVER", Script{Block: true})
		proc := mgr.New(process.Descriptor{Name: "SERVER", Command: []string{"server"}})
		if err := proc.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if !proc.Running() {
			t.Fatal("blocked process should be running")
		}

		joined := make(chan error, 1)
		go func() { joined <- proc.Join() }()

		select {
		case <-joined:
			t.Fatal("Join returned before Kill")
		case <-time.After(20 * time.Millisecond):
		}

		if err := proc.Kill(); err != nil {
			t.Fatalf("Kill failed: %v", err)
		}
		if err := proc.Kill(); err != nil {
			t.Fatalf("second Kill failed: %v", err)
		}
		select {
		case err := <-joined:
			if err != nil {
				t.Errorf("Join = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Join did not return after Kill")
		}
		if proc.ExitCode() != -1 {
			t.Errorf("killed process exit code = %d, want -1", proc.ExitCode())
		}
		if diff := cmp.Diff([]string{"Killing process SERVER", "Killing process SERVER"}, sink.lines); diff != "" {
			t.Errorf("output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Start Twice", func(t *testing.T) {
		proc := NewManager(nil).New(process.Descriptor{Name: "X", Command: []string{"x"}})
		proc.Start()
		if err := proc.Start(); err != process.ErrAlreadyStarted {
			t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
		}
	})
}
