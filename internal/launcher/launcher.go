// Package launcher spawns and detaches the game process after a
// successful patch and login, the one piece of game-process handling
// spec.md section 1 keeps in scope ("No game process supervision
// beyond spawning and detaching"). Grounded on
// original_source/launch_ttr.py's start_game: set TTR_GAMESERVER /
// TTR_PLAYCOOKIE, chdir into the install directory, spawn the engine
// executable, and do not wait on it.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sanbornm/ttr-patcher/internal/patcherr"
)

// Env carries the session values the game engine reads from the
// environment, per original_source/launch_ttr.py's start_game.
type Env struct {
	GameServer string
	PlayCookie string
}

// executableNames maps a platform tag (internal/platform.Current) to
// the game engine binary's filename.
var executableNames = map[string]string{
	"win32":  "TTREngine.exe",
	"win64":  "TTREngine.exe",
	"darwin": "Toontown Rewritten.app/Contents/MacOS/Toontown Rewritten",
	"linux":  "TTREngine",
	"linux2": "TTREngine",
}

// Launch starts the game engine executable under installDir, detached
// from the caller: Wait is never called, so a caller exiting does not
// kill the child (matching the original's "launch and move on").
func Launch(installDir, platformTag string, env Env) (*os.Process, error) {
	name, ok := executableNames[platformTag]
	if !ok {
		return nil, patcherr.New(patcherr.KindUnsupportedPlatform, fmt.Sprintf("no known game executable for platform %q", platformTag))
	}

	execPath := filepath.Join(installDir, name)
	if _, err := os.Stat(execPath); err != nil {
		return nil, patcherr.Wrap(patcherr.KindIO, fmt.Errorf("locating game executable at %s: %w", execPath, err))
	}

	cmd := exec.Command(execPath)
	cmd.Dir = installDir
	cmd.Env = append(os.Environ(),
		"TTR_GAMESERVER="+env.GameServer,
		"TTR_PLAYCOOKIE="+env.PlayCookie,
	)

	if err := cmd.Start(); err != nil {
		return nil, patcherr.Wrap(patcherr.KindIO, fmt.Errorf("starting game executable: %w", err))
	}
	return cmd.Process, nil
}
