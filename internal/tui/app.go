package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aira-metrics/dashboard/internal/logger"
)

// DebugLogEnv names a file the browser logs to. Log lines would otherwise
// corrupt the alternate screen, so they are discarded when it is unset.
const DebugLogEnv = "AIRA_TUI_LOG"

// App runs the terminal browser.
type App struct {
	opts    Options
	program *tea.Program
}

// NewApp creates the browser.
func NewApp(opts Options) *App {
	return &App{opts: opts}
}

// Run blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	restore, err := redirectLogs()
	if err != nil {
		return err
	}
	defer restore()

	m := NewModel(a.opts)
	m.loadingSessions = true
	m.loadingDetail = a.opts.SessionID != ""

	a.program = tea.NewProgram(*m, tea.WithAltScreen(), tea.WithContext(ctx))
	logger.Debugf("browser starting")
	_, err = a.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func redirectLogs() (func(), error) {
	level := logger.CurrentLevel()
	restore := func() { logger.ConfigureWriter(level, os.Stderr) }

	path := os.Getenv(DebugLogEnv)
	if path == "" {
		logger.ConfigureWriter(level, io.Discard)
		return restore, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	logger.ConfigureWriter(logger.LevelDebug, f)
	return func() {
		restore()
		_ = f.Close()
	}, nil
}

// View renders the current view
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.GetCurrentView().Render(&m)
}
