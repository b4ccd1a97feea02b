// Package env holds shell variables and tracks which of them are exported to
// child processes.
package env

import (
	"sort"
	"strings"
	"sync"
)

// Vars is an in-memory variable store. The zero value is empty and ready to
// use.
type Vars struct {
	rw       sync.RWMutex
	vars     map[string]string
	exported map[string]bool
}

// New creates an empty variable store.
func New() *Vars {
	return &Vars{}
}

// FromEnviron creates a store from a list of KEY=value strings, such as
// os.Environ(). Every variable is exported.
func FromEnviron(environ []string) *Vars {
	out := New()
	for _, e := range environ {
		key, value := splitEntry(e)
		if key == "" {
			continue
		}
		out.Set(key, value)
		out.Export(key)
	}
	return out
}

func splitEntry(e string) (string, string) {
	split := strings.SplitN(e, "=", 2)
	key, value := split[0], ""
	if len(split) > 1 {
		value = split[1]
	}
	return key, value
}

func (v *Vars) init() {
	if v.vars == nil {
		v.vars = make(map[string]string)
	}
	if v.exported == nil {
		v.exported = make(map[string]bool)
	}
}

// Set assigns a value without changing whether the variable is exported.
func (v *Vars) Set(key, value string) {
	v.rw.Lock()
	defer v.rw.Unlock()

	v.init()
	v.vars[key] = value
}

// Lookup retrieves the value of the variable named by the key. The boolean is
// false if the variable is unset.
func (v *Vars) Lookup(key string) (string, bool) {
	v.rw.RLock()
	defer v.rw.RUnlock()

	val, ok := v.vars[key]
	return val, ok
}

// Get retrieves the value of a variable, empty if it's unset.
func (v *Vars) Get(key string) string {
	val, _ := v.Lookup(key)
	return val
}

// Unset removes the variable and its export flag.
func (v *Vars) Unset(key string) {
	v.rw.Lock()
	defer v.rw.Unlock()

	delete(v.vars, key)
	delete(v.exported, key)
}

// Export marks the variable to be passed to child processes. Exporting an
// unset variable is remembered and takes effect once it's assigned.
func (v *Vars) Export(key string) {
	v.rw.Lock()
	defer v.rw.Unlock()

	v.init()
	v.exported[key] = true
}

// Unexport keeps the variable but stops passing it to child processes.
func (v *Vars) Unexport(key string) {
	v.rw.Lock()
	defer v.rw.Unlock()

	delete(v.exported, key)
}

// IsExported reports whether the variable is marked for export.
func (v *Vars) IsExported(key string) bool {
	v.rw.RLock()
	defer v.rw.RUnlock()

	return v.exported[key]
}

// Environ returns the exported variables that are set, as sorted KEY=value
// strings suitable for exec.Cmd.Env.
func (v *Vars) Environ() []string {
	v.rw.RLock()
	defer v.rw.RUnlock()

	env := []string{}
	for k, val := range v.vars {
		if v.exported[k] {
			env = append(env, k+"="+val)
		}
	}
	sort.Strings(env)
	return env
}

// Names returns the sorted names of all set variables.
func (v *Vars) Names() []string {
	v.rw.RLock()
	defer v.rw.RUnlock()

	names := make([]string, 0, len(v.vars))
	for k := range v.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the store.
func (v *Vars) Clone() *Vars {
	v.rw.RLock()
	defer v.rw.RUnlock()

	out := New()
	out.init()
	for k, val := range v.vars {
		out.vars[k] = val
	}
	for k := range v.exported {
		out.exported[k] = true
	}
	return out
}

// WithOverrides returns Environ with the given KEY=value entries replacing or
// added to the exported ones. The store is not modified.
func (v *Vars) WithOverrides(overrides []string) []string {
	if len(overrides) == 0 {
		return v.Environ()
	}

	tmp := v.Clone()
	for _, e := range overrides {
		key, value := splitEntry(e)
		tmp.Set(key, value)
		tmp.Export(key)
	}
	return tmp.Environ()
}
