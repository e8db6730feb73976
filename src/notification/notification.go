package notification

import (
	"sync"

	"fyne.io/fyne/v2"

	"screen-ocr/src/logutil"
)

const (
	resultTitle   = "Screen OCR"
	maxPreviewLen = 200
)

var (
	mu  sync.Mutex
	app fyne.App
)

// Init binds notifications to the running application. Before Init, or with
// a nil app, notifications are only logged.
func Init(a fyne.App) {
	mu.Lock()
	defer mu.Unlock()
	app = a
}

func current() fyne.App {
	mu.Lock()
	defer mu.Unlock()
	return app
}

// ShowOCRResult displays a desktop notification with a preview of the text.
func ShowOCRResult(text string) {
	displayText := Preview(text)
	a := current()
	if a == nil {
		logutil.Logger().Infof("OCR Result: %s", logutil.SanitizeForLogging(displayText, 0))
		return
	}
	a.SendNotification(fyne.NewNotification(resultTitle, displayText))
}

// ShowBlockingError reports an error to the user.
func ShowBlockingError(title, message string) {
	logutil.Logger().Errorf("%s: %s", title, message)
	if a := current(); a != nil {
		a.SendNotification(fyne.NewNotification(title, message))
	}
}

// Preview truncates text to the notification length limit.
func Preview(text string) string {
	r := []rune(text)
	if len(r) > maxPreviewLen {
		return string(r[:maxPreviewLen]) + "..."
	}
	return text
}
