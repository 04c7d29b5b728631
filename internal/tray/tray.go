// Package tray provides a system tray control surface for the podoscan capture station.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onCapture   func() (string, error)
	onDashboard func()
	onQuit      func()
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuCapture *systray.MenuItem
	menuLast    *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnCapture sets the callback run when Capture is clicked. It returns the
// folder of the persisted session.
func (t *Tray) OnCapture(fn func() (string, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCapture = fn
}

// OnDashboard sets the callback function to be called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Podoscan")
	systray.SetTooltip("Podoscan foot capture station")

	t.mu.Lock()
	t.menuCapture = systray.AddMenuItem("Capture", "Persist the current frame pair")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastLabel(""), "Last persisted session")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open dashboard", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop capturing and quit")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuCapture.ClickedCh:
				t.handleCapture()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleCapture handles the capture menu item click.
func (t *Tray) handleCapture() {
	t.mu.RLock()
	callback := t.onCapture
	t.mu.RUnlock()

	if callback == nil {
		return
	}

	t.menuCapture.Disable()
	folder, err := callback()
	t.menuCapture.Enable()

	if err != nil {
		t.SetLast("failed (" + err.Error() + ")")
		return
	}
	t.SetLast(folder)
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLast updates the last session display in the menu.
func (t *Tray) SetLast(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLast != nil {
		t.menuLast.SetTitle(lastLabel(name))
	}
}

func lastLabel(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
