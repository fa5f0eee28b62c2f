package repository

// RunLockRepository provides the single-writer guarantee for pipeline runs.
type RunLockRepository interface {
	// Acquire takes the exclusive run lock or fails with types.ErrLockHeld.
	Acquire(owner string) (release func() error, err error)
	// ForceRelease clears files left by a crashed run. It fails with
	// types.ErrLockHeld while a live process holds the lock.
	ForceRelease() error
}
