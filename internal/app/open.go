package app

import (
	"os/exec"

	"github.com/justyntemme/dropzone/internal/debug"
)

// openPath opens path with the desktop's default application.
func openPath(path string) error {
	cmd := exec.Command("xdg-open", path)
	if err := cmd.Start(); err != nil {
		return err
	}
	debug.Log(debug.APP, "xdg-open %s (pid %d)", path, cmd.Process.Pid)
	// Reap it so it does not linger as a zombie
	go cmd.Wait()
	return nil
}
