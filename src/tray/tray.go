package tray

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"screen-ocr/src/logutil"
)

const Title = "Screen OCR"

// Install puts the capture menu in the system tray. fyne appends its own
// Quit item, which stops the application. It reports false when the driver
// has no tray support.
func Install(a fyne.App, onCapture func()) bool {
	desk, ok := a.(desktop.App)
	if !ok {
		logutil.Logger().Warn("System tray not supported by this driver")
		return false
	}

	capture := fyne.NewMenuItem("Capture Screen", func() {
		logutil.Logger().Info("Tray: capture requested")
		if onCapture != nil {
			onCapture()
		}
	})
	capture.Icon = Icon

	desk.SetSystemTrayMenu(fyne.NewMenu(Title, capture))
	desk.SetSystemTrayIcon(Icon)
	logutil.Logger().Debug("System tray installed")
	return true
}
