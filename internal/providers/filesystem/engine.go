package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/filemanager/internal/domain/restriction"
	"github.com/GriffinCanCode/filemanager/internal/domain/thumbnail"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
	"github.com/GriffinCanCode/filemanager/internal/shared/utils"
)

// Engine performs sandboxed file operations. It holds only immutable
// configuration; the filesystem is the sole shared state.
type Engine struct {
	cfg      Config
	resolver *paths.Resolver
	rules    *restriction.Engine
	thumbs   *thumbnail.Cache
	reserved string
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewEngine wires the engine to its collaborators
func NewEngine(cfg Config, resolver *paths.Resolver, rules *restriction.Engine, thumbs *thumbnail.Cache) *Engine {
	e := &Engine{
		cfg:      cfg,
		resolver: resolver,
		rules:    rules,
		thumbs:   thumbs,
		logger:   logging.NewNop(),
	}

	// A thumbnail root inside the sandbox is hidden from clients.
	if root := thumbs.Root(); paths.Within(resolver.Root(), root) {
		e.reserved = root
	}
	return e
}

// WithLogger sets the logger for best-effort failures
func (e *Engine) WithLogger(logger *logging.Logger) *Engine {
	e.logger = logger.Named("filesystem")
	return e
}

// WithMetrics adds metrics collection to the engine
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Config returns the engine options
func (e *Engine) Config() Config {
	return e.cfg
}

// Rules exposes the restriction engine
func (e *Engine) Rules() *restriction.Engine {
	return e.rules
}

// Resolver exposes the sandbox resolver
func (e *Engine) Resolver() *paths.Resolver {
	return e.resolver
}

// track times an operation; call the result with the named error return.
func (e *Engine) track(operation string) func(*error) {
	timer := monitoring.NewTimer(e.metrics, operation)
	return func(errp *error) {
		status := monitoring.StatusOK
		if *errp != nil {
			status = string(fserr.KindOf(*errp))
		}
		timer.Stop(status)
	}
}

func (e *Engine) isReserved(abs string) bool {
	return e.reserved != "" && paths.Within(e.reserved, abs)
}

func (e *Engine) checkWritable(rel string) error {
	if e.cfg.ReadOnly {
		return fserr.Forbidden(rel)
	}
	return nil
}

// lookup resolves rel to an existing path the client may see.
func (e *Engine) lookup(rel string) (string, os.FileInfo, error) {
	abs, info, err := e.resolver.ResolveExisting(rel)
	if err != nil {
		return "", nil, err
	}
	return e.checkEntry(rel, abs, info)
}

// lookupEntry is lookup without following a symlink in the last element.
func (e *Engine) lookupEntry(rel string) (string, os.FileInfo, error) {
	abs, info, err := e.resolver.ResolveEntry(rel)
	if err != nil {
		return "", nil, err
	}
	return e.checkEntry(rel, abs, info)
}

func (e *Engine) checkEntry(rel, abs string, info os.FileInfo) (string, os.FileInfo, error) {
	if e.isReserved(abs) {
		return "", nil, fserr.Forbidden(rel)
	}
	if !e.rules.MatchesRestriction(e.resolver.Rel(abs), info.IsDir()) {
		return "", nil, fserr.Forbidden(rel)
	}
	return abs, info, nil
}

func (e *Engine) lookupDir(rel string) (string, os.FileInfo, error) {
	abs, info, err := e.lookup(rel)
	if err != nil {
		return "", nil, err
	}
	if !info.IsDir() {
		return "", nil, fserr.DirectoryRequired(rel)
	}
	return abs, info, nil
}

func (e *Engine) lookupFile(rel string) (string, os.FileInfo, error) {
	abs, info, err := e.lookup(rel)
	if err != nil {
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, fserr.FileRequired(rel)
	}
	return abs, info, nil
}

// lookupMutable resolves a path that is about to be moved, renamed or
// deleted: it must not be the root. A symlink is returned as the link.
func (e *Engine) lookupMutable(rel string) (string, os.FileInfo, error) {
	if err := e.checkWritable(rel); err != nil {
		return "", nil, err
	}
	abs, info, err := e.lookupEntry(rel)
	if err != nil {
		return "", nil, err
	}
	if err := e.resolver.AssertNotRoot(abs, rel); err != nil {
		return "", nil, err
	}
	return abs, info, nil
}

// destination validates dir/name as the target of a create, move, copy,
// rename or upload. name must be a single path element.
func (e *Engine) destination(dirAbs, name string, isDir bool) (string, string, error) {
	target := filepath.Join(dirAbs, name)
	rel := e.resolver.Rel(target)

	if filepath.Dir(target) != dirAbs || e.isReserved(target) {
		return "", "", fserr.Forbidden(rel)
	}
	if !e.rules.MatchesRestriction(rel, isDir) {
		return "", "", fserr.Forbidden(rel)
	}
	if _, err := os.Lstat(target); err == nil {
		return "", "", fserr.AlreadyExists(e.resolver.ID(target, isDir))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", "", fserr.Server(err, rel)
	}
	return target, rel, nil
}

// checkName rejects names that are not a single path element.
func checkName(name string) error {
	switch utils.ValidateName(name) {
	case "separator":
		return fserr.ForbiddenCharacter(name)
	case "reserved":
		return fserr.ForbiddenName(name)
	}
	return nil
}

// warn logs a best-effort failure that does not fail the operation.
func (e *Engine) warn(msg, rel string, err error) {
	if err == nil {
		return
	}
	e.logger.Warn(msg, zap.String("path", rel), zap.Error(err))
}
