// Package browser opens files and URLs with the desktop's default handler.
// The login flow uses it to show the downloaded QR image when asked to.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// Open shows target, a local path or URL, with the default viewer.
// It tries open-golang first and falls back to platform commands.
func Open(target string) error {
	err := open.Run(target)
	if err == nil {
		log.Debugf("opened %s using open-golang", target)
		return nil
	}

	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openPlatformSpecific(target)
}

func openPlatformSpecific(target string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "linux":
		for _, viewer := range []string{"xdg-open", "gio", "eog", "display"} {
			if _, err := exec.LookPath(viewer); err == nil {
				if viewer == "gio" {
					cmd = exec.Command(viewer, "open", target)
				} else {
					cmd = exec.Command(viewer, target)
				}
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable viewer found on Linux system")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start viewer command: %w", err)
	}
	return nil
}
