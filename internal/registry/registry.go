// Package registry holds the process-wide table of registered engines and
// their connected clients. It is the single source of truth the rest of
// the agent reads and mutates through.
package registry

import (
	"fmt"
	"net"
	"sync"
)

// MaxEngines bounds the number of distinct engine types a single agent can
// register, fixed per spec.md §6.
const MaxEngines = 32

// MaxClientsPerEngine bounds the number of simultaneously connected GUI
// sessions a single engine type can serve, fixed per spec.md §6.
const MaxClientsPerEngine = 64

// EngineHandle is an opaque reference to a slot in the registry's engine
// table. It replaces the original's raw `*EngineEntry` back-pointer (see
// DESIGN.md, "cyclic ownership") — a client never holds a pointer into the
// registry's internal array, only an index. Lookups check that the slot is
// still allocated; they do not check that it holds the same engine.
type EngineHandle struct {
	index int
	valid bool
}

// ClientHandle is the client-side analogue of EngineHandle.
type ClientHandle struct {
	engine EngineHandle
	index  int
	valid  bool
}

// EngineEntry is a registered engine type on this host.
type EngineEntry struct {
	allocated bool

	Dir      string // absolute engine directory
	Name     string // short engine name, e.g. "stockfish"
	ExeName  string // executable filename
	Port     string // TCP listen port
	Args     string // colon-separated launch arguments

	clients [MaxClientsPerEngine]ClientEntry
}

// ClientEntry is one connected GUI session against one engine.
type ClientEntry struct {
	connected bool
	dataLogOn bool

	ReqPipePath string
	RspPipePath string

	Conn net.Conn

	ClientIP string // remote GUI IP
	ServerIP string // local interface IP that accepted the connection

	InstanceExeName string // jei_<clientIP>_<engineName>
}

// Registry is the fixed-capacity engine/client table plus the mutex that
// serializes every read and write against it.
type Registry struct {
	mu      sync.Mutex
	engines [MaxEngines]EngineEntry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// FindEngine reports whether an engine with the given name is registered.
func (r *Registry) FindEngine(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.engines {
		e := &r.engines[i]
		if e.allocated && e.Name == name {
			return true
		}
	}
	return false
}

// AddEngine allocates the first free engine slot and populates it. It does
// not check for duplicate names — callers are expected to call FindEngine
// first, matching spec.md §4.1. The zero handle and false are returned iff
// no slot is free.
func (r *Registry) AddEngine(dir, exe, port, name, args string) (EngineHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.engines {
		e := &r.engines[i]
		if e.allocated {
			continue
		}

		e.allocated = true
		e.Dir = dir
		e.Name = name
		e.ExeName = exe
		e.Port = port
		e.Args = args

		return EngineHandle{index: i, valid: true}, true
	}

	return EngineHandle{}, false
}

// EngineByHandle returns a copy of the engine entry's immutable fields.
func (r *Registry) EngineByHandle(h EngineHandle) (EngineEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !h.valid || h.index < 0 || h.index >= MaxEngines || !r.engines[h.index].allocated {
		return EngineEntry{}, false
	}

	return r.engines[h.index], true
}

// AllocClient allocates the first free client slot within engine h. The
// zero handle and false are returned iff the engine has no free slot or h
// does not refer to an allocated engine.
func (r *Registry) AllocClient(h EngineHandle, conn net.Conn, clientIP, servIP, instName, reqPipe, rspPipe string) (ClientHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !h.valid || h.index < 0 || h.index >= MaxEngines || !r.engines[h.index].allocated {
		return ClientHandle{}, false
	}

	eng := &r.engines[h.index]
	for i := range eng.clients {
		c := &eng.clients[i]
		if c.connected {
			continue
		}

		*c = ClientEntry{
			connected:       true,
			Conn:            conn,
			ClientIP:        clientIP,
			ServerIP:        servIP,
			InstanceExeName: instName,
			ReqPipePath:     reqPipe,
			RspPipePath:     rspPipe,
		}

		return ClientHandle{engine: h, index: i, valid: true}, true
	}

	return ClientHandle{}, false
}

// MarkClientDisconnected sets the client's connected flag to false. It does
// not close the socket or pipes — that remains the bridges' responsibility,
// per spec.md §4.1.
func (r *Registry) MarkClientDisconnected(ch ClientHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !ch.valid || !ch.engine.valid {
		return
	}
	if ch.engine.index < 0 || ch.engine.index >= MaxEngines {
		return
	}

	eng := &r.engines[ch.engine.index]
	if ch.index < 0 || ch.index >= MaxClientsPerEngine {
		return
	}

	eng.clients[ch.index].connected = false
}

// Snapshot is a read-only view of the registry used for the query report
// and for tests; it is built entirely under the registry mutex so callers
// never observe a torn state.
type Snapshot struct {
	Engines []EngineSnapshot
}

// EngineSnapshot mirrors an allocated EngineEntry plus its connected
// clients.
type EngineSnapshot struct {
	Name    string
	Port    string
	Dir     string
	ExeName string
	Clients []ClientSnapshot
}

// ClientSnapshot mirrors a connected ClientEntry.
type ClientSnapshot struct {
	ClientIP        string
	ServerIP        string
	InstanceExeName string
	Sock            string
}

// TakeSnapshot copies the entire registry state for reporting.
func (r *Registry) TakeSnapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var snap Snapshot
	for i := range r.engines {
		e := &r.engines[i]
		if !e.allocated {
			continue
		}

		es := EngineSnapshot{
			Name:    e.Name,
			Port:    e.Port,
			Dir:     e.Dir,
			ExeName: e.ExeName,
		}

		for j := range e.clients {
			c := &e.clients[j]
			if !c.connected {
				continue
			}

			es.Clients = append(es.Clients, ClientSnapshot{
				ClientIP:        c.ClientIP,
				ServerIP:        c.ServerIP,
				InstanceExeName: c.InstanceExeName,
				Sock:            fmt.Sprintf("%v", c.Conn.RemoteAddr()),
			})
		}

		snap.Engines = append(snap.Engines, es)
	}

	return snap
}
