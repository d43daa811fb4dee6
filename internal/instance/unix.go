package instance

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// IsProcessRunning checks whether a process with the given PID is alive.
// Sending signal 0 performs only error checking, no signal is actually sent.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}

	err := unix.Kill(pid, 0)
	if err == nil {
		return true, nil
	}
	if err == unix.ESRCH {
		return false, nil
	}
	if err == unix.EPERM {
		// Process exists but is owned by someone else.
		return true, nil
	}
	return false, fmt.Errorf("kill(%d, 0): %w", pid, err)
}

// GetProcessName reads the comm name of a process from /proc.
func GetProcessName(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// GetProcessStartTime returns the start time of a process, derived from the
// modification time of its /proc/<pid> directory (an approximation, but good enough for
// the staleness checks this package needs).
func GetProcessStartTime(pid int) (time.Time, error) {
	info, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// KillProcess sends SIGKILL to a process.
func KillProcess(pid int) error {
	if err := unix.Kill(pid, int(syscall.SIGKILL)); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}

// AcquireLock acquires an exclusive advisory lock to prevent multiple
// instances from starting concurrently against the same data directory.
func (m *InstanceManager) AcquireLock() error {
	lockPath := m.pidFilePath + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("failed to acquire lock (another instance may be starting): %w", err)
	}

	if err := f.Truncate(0); err == nil {
		f.WriteString(strconv.Itoa(os.Getpid()))
	}

	m.lockFile = f
	m.acquiredLock = true
	return nil
}

// ReleaseLock releases the exclusive lock.
func (m *InstanceManager) ReleaseLock() error {
	if !m.acquiredLock {
		return nil
	}

	lockPath := m.pidFilePath + ".lock"

	if m.lockFile != nil {
		if err := unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN); err != nil {
			fmt.Printf("Warning: Failed to release lock: %v\n", err)
		}
		m.lockFile.Close()
		m.lockFile = nil
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Failed to remove lock file: %v\n", err)
	}

	m.acquiredLock = false
	return nil
}
