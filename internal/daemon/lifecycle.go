package daemon

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"
)

type LifecycleManager struct {
	lockFile   *LockFile
	pidFile    *PIDFile
	socketPath string
}

func NewLifecycleManager(baseDir, socketPath string) *LifecycleManager {
	return &LifecycleManager{
		lockFile:   NewLockFile(filepath.Join(baseDir, "daemon.lock")),
		pidFile:    NewPIDFile(filepath.Join(baseDir, "daemon.pid")),
		socketPath: socketPath,
	}
}

// AcquireInstanceLock takes the single-instance lock. When the lock is
// already held, the error distinguishes a live daemon from a stale
// lock by probing the socket.
func (lm *LifecycleManager) AcquireInstanceLock() error {
	err := lm.lockFile.Acquire()
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLockHeld) && lm.isSocketResponsive() {
		return fmt.Errorf("daemon already running at %s", lm.socketPath)
	}
	return fmt.Errorf("failed to acquire instance lock: %w", err)
}

func (lm *LifecycleManager) isSocketResponsive() bool {
	conn, err := net.DialTimeout("unix", lm.socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (lm *LifecycleManager) RegisterRunningDaemon() error {
	return lm.pidFile.Write()
}

func (lm *LifecycleManager) Cleanup() {
	lm.pidFile.Remove()
	lm.lockFile.Release()
}

func (lm *LifecycleManager) LockFile() *LockFile {
	return lm.lockFile
}

func (lm *LifecycleManager) PIDFile() *PIDFile {
	return lm.pidFile
}
