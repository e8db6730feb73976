package gui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"screen-ocr/src/logutil"
)

const AppID = "io.github.screen-ocr"

// App owns the fyne application. fyne needs the main OS thread, so Run must
// be called from main and every other package reaches the UI through fyne.Do.
type App struct {
	fyne fyne.App

	mu sync.Mutex
	// stopped is set once Quit is requested or Run returns.
	stopped bool
}

func New() *App {
	a := app.NewWithID(AppID)
	return &App{fyne: a}
}

// Fyne exposes the underlying application for the tray and popups.
func (a *App) Fyne() fyne.App { return a.fyne }

// Run blocks until Quit is called or the last window closes without a tray.
func (a *App) Run() {
	logutil.Logger().Debug("GUI loop starting")
	a.fyne.Run()
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	logutil.Logger().Debug("GUI loop exited")
}

// Quit stops Run. Safe to call from any goroutine, and after Run returned.
func (a *App) Quit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	fyne.Do(a.fyne.Quit)
}

func (a *App) running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.stopped
}

// NewSurface returns a selection overlay bound to this application. Its
// Teardown skips the UI thread once the app is stopping.
func (a *App) NewSurface(opts SurfaceOptions) *Surface {
	s := NewSurface(a.fyne, opts)
	s.alive = a.running
	return s
}
