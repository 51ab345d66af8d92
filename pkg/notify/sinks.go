package notify

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// LogNotifier writes leads to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a sink logging to logger, or to the default
// logger when nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, l Lead) error {
	n.Logger.Info("new lead", "id", l.ID, "type", l.Type, "name", l.Name, "phone", l.Phone, "plot", l.PlotID)
	return nil
}

// FileNotifier appends each lead as one JSON line to a file, the request
// backlog that survives a mail outage.
type FileNotifier struct {
	path string
	mu   sync.Mutex
}

// DefaultRequestLog is the file name used by the server when none is
// configured.
const DefaultRequestLog = "requests.txt"

// NewFileNotifier returns a sink appending to path.
func NewFileNotifier(path string) *FileNotifier {
	return &FileNotifier{path: path}
}

// Path returns the request log path.
func (n *FileNotifier) Path() string { return n.path }

func (n *FileNotifier) Name() string { return "file" }

func (n *FileNotifier) Notify(ctx context.Context, l Lead) error {
	line, err := json.Marshal(l)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()

	if dir := filepath.Dir(n.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Multi fans a lead out to several sinks. Every sink is attempted; the
// errors of failing sinks are joined.
type Multi []Notifier

func (m Multi) Name() string {
	names := ""
	for i, n := range m {
		if i > 0 {
			names += "+"
		}
		names += n.Name()
	}
	return names
}

func (m Multi) Notify(ctx context.Context, l Lead) error {
	var errs []error
	for _, n := range m {
		if err := Deliver(ctx, n, l); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return goerrors.Join(errs...)
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*FileNotifier)(nil)
	_ Notifier = Multi(nil)
)
