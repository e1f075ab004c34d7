//go:build !unix

package inventory

// fileLock is a no-op where flock is unavailable
type fileLock struct{}

func acquireLock(string) (*fileLock, error) {
	return &fileLock{}, nil
}

func (*fileLock) release() error {
	return nil
}
