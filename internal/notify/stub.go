//go:build !linux

package notify

// Bus is unavailable off Linux.
type Bus struct{}

// Dial always fails with ErrUnavailable.
func Dial(string) (*Bus, error) {
	return nil, ErrUnavailable
}

func (*Bus) Send(Message) (uint32, error) { return 0, ErrUnavailable }

func (*Bus) Close() error { return nil }
