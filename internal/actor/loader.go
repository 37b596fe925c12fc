package actor

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// BuiltinScheme prefixes source paths that name a Go factory.
const BuiltinScheme = "builtin:"

// LuaExt is the file extension of Lua actor sources.
const LuaExt = ".lua"

// Factory creates a new instance of a Go actor.
type Factory func() (Actor, error)

// module is a loaded actor source. It is immutable once cached and can
// instantiate any number of actors.
type module struct {
	id      uint64
	path    string
	proto   *lua.FunctionProto
	factory Factory
}

// Loader turns source paths into actor instances.
//
// Modules are cached by ModuleID, so registering the same path twice only
// reads and compiles the source once unless a reload is forced.
type Loader struct {
	mu       sync.Mutex
	modules  map[uint64]*module
	builtins map[string]Factory
	loads    atomic.Int64
	logger   logger.Logger
}

// NewLoader creates a Loader.
func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.Default()
	}
	return &Loader{
		modules:  make(map[uint64]*module),
		builtins: make(map[string]Factory),
		logger:   log,
	}
}

// RegisterBuiltin makes a Go factory loadable as "builtin:<name>".
func (l *Loader) RegisterBuiltin(name string, f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builtins[name] = f
}

// Builtins returns the names of the registered Go factories.
func (l *Loader) Builtins() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.builtins))
	for name := range l.builtins {
		names = append(names, name)
	}
	return names
}

// Loads returns how many times a source has been read and compiled.
func (l *Loader) Loads() int64 {
	return l.loads.Load()
}

// CanonicalPath returns the path used to identify a source.
// File paths are made absolute and cleaned; builtin paths are unchanged.
func CanonicalPath(path string) (string, error) {
	if strings.HasPrefix(path, BuiltinScheme) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// ModuleID derives the identity of a module from its canonical path.
func ModuleID(canonical string) uint64 {
	return murmur3.Sum64([]byte(canonical))
}

// IsLuaSource reports whether path names a Lua actor source.
func IsLuaSource(path string) bool {
	return strings.HasSuffix(path, LuaExt) && !strings.HasPrefix(path, BuiltinScheme)
}

// Load returns a new actor instance for path along with the canonical
// path. The cached module is reused unless force is set.
func (l *Loader) Load(path string, force bool) (Actor, string, error) {
	if path == "" {
		return nil, "", domain.BadRequestf("source path is empty")
	}
	canonical, err := CanonicalPath(path)
	if err != nil {
		return nil, "", domain.BadRequestf("invalid source path %s", path).WithCause(err)
	}

	mod, err := l.module(canonical, force)
	if err != nil {
		return nil, "", err
	}

	a, err := mod.instantiate(l.logger)
	if err != nil {
		return nil, "", err
	}
	return a, canonical, nil
}

func (l *Loader) module(canonical string, force bool) (*module, error) {
	id := ModuleID(canonical)

	l.mu.Lock()
	defer l.mu.Unlock()

	if mod, ok := l.modules[id]; ok && !force {
		return mod, nil
	}

	mod := &module{id: id, path: canonical}
	switch {
	case strings.HasPrefix(canonical, BuiltinScheme):
		f, ok := l.builtins[strings.TrimPrefix(canonical, BuiltinScheme)]
		if !ok {
			return nil, domain.BadRequestf("unknown builtin actor %s", canonical)
		}
		mod.factory = f
	case IsLuaSource(canonical):
		proto, err := compileLua(canonical)
		if err != nil {
			return nil, err
		}
		mod.proto = proto
	default:
		return nil, domain.BadRequestf("unsupported actor source %s", canonical)
	}

	l.modules[id] = mod
	l.loads.Add(1)
	l.logger.Debug("actor module loaded",
		"path", canonical,
		"module_id", id,
		"forced", force,
	)
	return mod, nil
}

func (m *module) instantiate(log logger.Logger) (Actor, error) {
	if m.factory != nil {
		a, err := m.factory()
		if err != nil {
			return nil, domain.BadRequestf("create actor from %s: %v", m.path, err).WithCause(err)
		}
		if a == nil {
			return nil, domain.BadRequestf("%s has no Actor entry point", m.path)
		}
		return a, nil
	}
	return newLuaActor(m.proto, m.path, log)
}

func compileLua(path string) (*lua.FunctionProto, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.BadRequestf("source %s does not exist", path)
		}
		return nil, domain.BadRequestf("open source %s", path).WithCause(err)
	}
	defer f.Close()

	chunk, err := parse.Parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, domain.BadRequestf("parse %s: %v", path, err).WithCause(err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, domain.BadRequestf("compile %s: %v", path, err).WithCause(err)
	}
	return proto, nil
}
