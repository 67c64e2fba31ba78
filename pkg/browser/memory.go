package browser

import "context"

// memoryBrowser is a no-op Browser used for tests and local development.
type memoryBrowser struct {
	cdpURL string
	closed bool
}

func (b *memoryBrowser) CDPURL() string { return b.cdpURL }

func (b *memoryBrowser) Close(context.Context) error {
	b.closed = true
	return nil
}

// MemoryFactory hands out no-op browser sessions, one per New call.
type MemoryFactory struct{}

// NewMemoryFactory returns a Factory suitable for tests.
func NewMemoryFactory() *MemoryFactory { return &MemoryFactory{} }

func (f *MemoryFactory) New(_ context.Context, cdpURL string) (Browser, error) {
	return &memoryBrowser{cdpURL: cdpURL}, nil
}

var _ Factory = (*MemoryFactory)(nil)
