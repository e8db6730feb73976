package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// ErrUnavailable is returned when no clipboard mechanism could be initialized.
var ErrUnavailable = errors.New("clipboard unavailable")

var (
	writeMu sync.Mutex
	ready   bool
	initErr error
	once    sync.Once
)

// Init prepares the system clipboard. Later calls return the first result.
func Init() error {
	once.Do(func() {
		if err := clipboard.Init(); err != nil {
			initErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		writeMu.Lock()
		ready = true
		writeMu.Unlock()
	})
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if !ready {
		return ErrUnavailable
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// System is the process clipboard as a value the output sink can hold.
type System struct{}

func (System) Write(text string) error { return Write(text) }
