package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender is a platform-specific desktop notification backend.
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send.
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender uses osascript.
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier prints to the console and, where a backend exists, raises a
// desktop notification. Notification failures are never surfaced; they are
// not critical to a download run.
type Notifier struct {
	sender NotificationSender
	quiet  bool
}

// NewNotifier picks the backend for the current platform.
func NewNotifier(quiet bool) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{sender: sender, quiet: quiet}
}

// Notify prints an informational message and raises a notification.
func (n *Notifier) Notify(title, message string) {
	if !n.quiet {
		fmt.Printf("\n%s: %s\n", Cyan(title), Yellow(message))
	}
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

// NotifyError prints and raises an error notification.
func (n *Notifier) NotifyError(title, message string) {
	if !n.quiet {
		fmt.Printf("\n%s: %s\n", Red(title), Red(message))
	}
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

// NotifySuccess prints and raises a success notification.
func (n *Notifier) NotifySuccess(title, message string) {
	if !n.quiet {
		fmt.Printf("\n%s: %s\n", Green(title), Green(message))
	}
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}
