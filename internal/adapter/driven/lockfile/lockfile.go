package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/gofrs/flock"
)

// holder descreve quem detém o lock; fica em um arquivo ao lado do lock
// apenas para diagnóstico.
type holder struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLock implementa o RunLockRepository com um lock consultivo do sistema
// operacional. O kernel solta o lock quando o processo termina, então uma
// execução interrompida não deixa o pipeline travado.
type FileLock struct {
	path string
	now  func() time.Time
}

var _ repository.RunLockRepository = (*FileLock)(nil)

// New cria o lock no caminho indicado.
func New(path string) *FileLock {
	return &FileLock{path: path, now: time.Now}
}

func (l *FileLock) holderPath() string { return l.path + ".json" }

// Acquire tenta o lock sem bloquear; se outro processo o detém a execução é
// recusada com types.ErrLockHeld, informando quem o detém.
func (l *FileLock) Acquire(owner string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(l.path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", l.path, err)
	}
	if !locked {
		if h, ok := l.current(); ok {
			return nil, fmt.Errorf("%w: run %s (pid %d on %s) since %s",
				types.ErrLockHeld, h.Owner, h.PID, h.Host, h.AcquiredAt.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("%w: %s", types.ErrLockHeld, l.path)
	}

	host, _ := os.Hostname()
	data, err := json.Marshal(holder{Owner: owner, PID: os.Getpid(), Host: host, AcquiredAt: l.now().UTC()})
	if err == nil {
		err = os.WriteFile(l.holderPath(), data, 0o644)
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("writing lock holder: %w", err), fl.Unlock())
	}

	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			if err := os.Remove(l.holderPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
				releaseErr = fmt.Errorf("removing lock holder: %w", err)
			}
			releaseErr = errors.Join(releaseErr, fl.Unlock())
		})
		return releaseErr
	}, nil
}

// ForceRelease apaga o que uma execução interrompida deixou em disco. Com o
// lock ainda preso por um processo vivo, recusa com types.ErrLockHeld.
func (l *FileLock) ForceRelease() error {
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	fl := flock.New(l.path)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: a running process still holds %s", types.ErrLockHeld, l.path)
	}
	defer fl.Unlock()

	for _, p := range []string{l.holderPath(), l.path} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func (l *FileLock) current() (holder, bool) {
	data, err := os.ReadFile(l.holderPath())
	if err != nil {
		return holder{}, false
	}
	var h holder
	if err := json.Unmarshal(data, &h); err != nil {
		return holder{}, false
	}
	return h, true
}
