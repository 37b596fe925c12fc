package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/internal/telemetry/logger"
)

// Lua actor sources define a global Actor, either a table or a function
// returning one. Its methods field maps method names to either a function
// or a table {fn=..., args={...}, doc="...", defaults={...}}:
//
//	Actor = {
//	  methods = {
//	    hi = { doc = "Say hello.", fn = function(self) return "hello world" end },
//	    add2 = function(self, a, b) return a + b end,
//	  },
//	}
//
// Functions whose first parameter is named self receive the Actor table.
const luaEntryPoint = "Actor"

// luaActor owns one LState. An LState is single threaded, so calls are
// serialized.
type luaActor struct {
	mu      sync.Mutex
	L       *lua.LState
	self    *lua.LTable
	path    string
	methods []Method
	closed  bool
}

func newLuaActor(proto *lua.FunctionProto, path string, log logger.Logger) (*luaActor, error) {
	L := lua.NewState()
	a := &luaActor{L: L, path: path}
	openGedisLib(L, log.With("source", path))

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, domain.BadRequestf("run %s: %s", path, luaErrorText(err)).WithCause(err)
	}
	L.SetTop(0)

	self, err := a.entryPoint()
	if err != nil {
		L.Close()
		return nil, err
	}
	a.self = self

	if err := a.buildMethods(); err != nil {
		L.Close()
		return nil, err
	}
	return a, nil
}

func (a *luaActor) entryPoint() (*lua.LTable, error) {
	switch v := a.L.GetGlobal(luaEntryPoint).(type) {
	case *lua.LTable:
		return v, nil
	case *lua.LFunction:
		if err := a.L.CallByParam(lua.P{Fn: v, NRet: 1, Protect: true}); err != nil {
			return nil, domain.BadRequestf("construct actor from %s: %s", a.path, luaErrorText(err)).WithCause(err)
		}
		ret := a.L.Get(-1)
		a.L.Pop(1)
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			return nil, domain.BadRequestf("%s: Actor() must return a table", a.path)
		}
		return tbl, nil
	default:
		return nil, domain.BadRequestf("%s has no Actor entry point", a.path)
	}
}

func (a *luaActor) buildMethods() error {
	tbl, ok := a.self.RawGetString("methods").(*lua.LTable)
	if !ok {
		return domain.BadRequestf("%s: Actor.methods must be a table", a.path)
	}

	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok {
			err = domain.BadRequestf("%s: method names must be strings", a.path)
			return
		}
		var m Method
		m, err = a.method(string(name), v)
		if err == nil {
			a.methods = append(a.methods, m)
		}
	})
	if err != nil {
		return err
	}

	sort.Slice(a.methods, func(i, j int) bool { return a.methods[i].Name < a.methods[j].Name })
	return nil
}

func (a *luaActor) method(name string, v lua.LValue) (Method, error) {
	m := Method{Name: name}

	var fn *lua.LFunction
	switch spec := v.(type) {
	case *lua.LFunction:
		fn = spec
	case *lua.LTable:
		f, ok := spec.RawGetString("fn").(*lua.LFunction)
		if !ok {
			return Method{}, domain.BadRequestf("%s: method %s has no fn", a.path, name)
		}
		fn = f
		if doc, ok := spec.RawGetString("doc").(lua.LString); ok {
			m.Doc = string(doc)
		}
		if args, ok := spec.RawGetString("args").(*lua.LTable); ok {
			m.Args = []string{}
			for i := 1; i <= args.Len(); i++ {
				m.Args = append(m.Args, args.RawGetInt(i).String())
			}
		}
		if defaults, ok := spec.RawGetString("defaults").(*lua.LTable); ok {
			m.Defaults = make(map[string]any)
			defaults.ForEach(func(k, v lua.LValue) {
				m.Defaults[k.String()] = fromLua(v)
			})
		}
	default:
		return Method{}, domain.BadRequestf("%s: method %s must be a function or a table", a.path, name)
	}

	params, withSelf := luaParams(fn)
	if m.Args == nil {
		m.Args = params
	}
	argNames := m.Args
	m.Handler = func(ctx context.Context, args Args) (any, error) {
		return a.call(ctx, fn, withSelf, argNames, args)
	}
	return m, nil
}

// luaParams returns the declared parameter names of a Lua function and
// whether the first one is self.
func luaParams(fn *lua.LFunction) ([]string, bool) {
	params := []string{}
	if fn.Proto == nil {
		return params, false
	}
	n := int(fn.Proto.NumParameters)
	for i := 0; i < n && i < len(fn.Proto.DbgLocals); i++ {
		params = append(params, fn.Proto.DbgLocals[i].Name)
	}
	if len(params) > 0 && params[0] == "self" {
		return params[1:], true
	}
	return params, false
}

// Methods implements Actor.
func (a *luaActor) Methods() []Method {
	return a.methods
}

// Close implements Closer. It waits for an in-flight call to finish.
func (a *luaActor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		a.L.Close()
	}
	return nil
}

func (a *luaActor) call(ctx context.Context, fn *lua.LFunction, withSelf bool, params []string, args Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, domain.Internalf("actor from %s was unloaded", a.path)
	}

	a.L.SetContext(ctx)
	defer a.L.RemoveContext()

	lv := make([]lua.LValue, 0, len(params)+1)
	if withSelf {
		lv = append(lv, a.self)
	}
	for _, p := range params {
		lv = append(lv, toLua(a.L, args[p]))
	}

	if err := a.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lv...); err != nil {
		a.L.SetTop(0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, luaError(err)
	}

	ret := a.L.Get(-1)
	a.L.Pop(1)
	return fromLua(ret), nil
}

// luaError converts a Lua error into an *ActorError. Errors raised with a
// {kind=..., message=...} table keep their kind; anything else is Internal.
func luaError(err error) error {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return domain.Internalf("%s", err.Error())
	}
	if tbl, ok := apiErr.Object.(*lua.LTable); ok {
		kind := domain.ParseErrorKind(tbl.RawGetString("kind").String())
		msg := tbl.RawGetString("message")
		if msg == lua.LNil {
			return domain.NewActorError(kind, "")
		}
		return domain.NewActorError(kind, msg.String())
	}
	return domain.Internalf("%s", apiErr.Object.String())
}

func luaErrorText(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// openGedisLib installs the gedis table: error kind constants,
// gedis.raise(kind, message) and gedis.log(message, ...).
func openGedisLib(L *lua.LState, log logger.Logger) {
	mod := L.NewTable()
	for _, kind := range []domain.ErrorKind{domain.KindNotFound, domain.KindBadRequest, domain.KindPermission, domain.KindInternal} {
		mod.RawSetString(string(kind), lua.LString(kind))
	}
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"raise": func(L *lua.LState) int {
			errTbl := L.NewTable()
			errTbl.RawSetString("kind", lua.LString(L.CheckString(1)))
			errTbl.RawSetString("message", lua.LString(L.OptString(2, "")))
			L.Error(errTbl, 1)
			return 0
		},
		"log": func(L *lua.LState) int {
			msg := L.CheckString(1)
			attrs := make([]any, 0, L.GetTop())
			for i := 2; i+1 <= L.GetTop(); i += 2 {
				attrs = append(attrs, L.Get(i).String(), fromLua(L.Get(i+1)))
			}
			log.Info(msg, attrs...)
			return 0
		},
	})
	L.SetGlobal("gedis", mod)
}

// toLua converts a decoded argument into a Lua value.
func toLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case []byte:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return lua.LString(v.String())
		}
		return lua.LNumber(f)
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for i, item := range v {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(v))
		for k, item := range v {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// fromLua converts a Lua value into a Go value the codec can encode.
func fromLua(lv lua.LValue) any {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case *lua.LTable:
		if isArrayLikeTable(v) {
			n := v.Len()
			result := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				result = append(result, fromLua(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = fromLua(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable reports whether a table only has the keys 1..n.
func isArrayLikeTable(tbl *lua.LTable) bool {
	n := tbl.Len()
	arrayLike := true
	tbl.ForEach(func(k, _ lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > n {
			arrayLike = false
		}
	})
	return arrayLike
}
