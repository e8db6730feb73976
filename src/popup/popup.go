package popup

import (
	"screen-ocr/src/logutil"
	"screen-ocr/src/notification"
)

// Show displays the extracted text as a desktop notification.
// This is a simple adapter on top of the notification package.
func Show(text string) error {
	logutil.Logger().Debugf("Popup with %d characters: %q", len(text), logutil.SanitizeForLogging(text, 50))
	// Fire-and-forget: the desktop shell owns the notification lifetime.
	notification.ShowOCRResult(text)
	return nil
}

// ShowError surfaces a failed capture or extraction.
func ShowError(message string) {
	notification.ShowBlockingError("Screen OCR error", message)
}
