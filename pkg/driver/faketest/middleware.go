// Package faketest provides an in-memory driver.Middleware for tests, the
// way the teacher's pkg/can/virtual package ships a virtual bus in place of
// real hardware.
package faketest

import (
	"sync"

	"github.com/samsamfire/playernsd/pkg/driver"
)

// Published records one driver.Middleware.Publish call.
type Published struct {
	Addr    driver.Address
	Subtype driver.Subtype
	Payload []byte
}

// Middleware is a recording fake: Register/Subscribe always succeed and
// Publish appends to Published for the test to assert against.
type Middleware struct {
	mu         sync.Mutex
	registered map[string]int
	subscribed []driver.Address
	Published  []Published
}

func New() *Middleware {
	return &Middleware{registered: make(map[string]int)}
}

func (m *Middleware) Register(code string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered[code] = index
	return nil
}

func (m *Middleware) Publish(addr driver.Address, subtype driver.Subtype, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), payload...)
	m.Published = append(m.Published, Published{Addr: addr, Subtype: subtype, Payload: cp})
	return nil
}

func (m *Middleware) Subscribe(addr driver.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, addr)
	return nil
}

// PublishedCount reports how many Publish calls have been recorded.
func (m *Middleware) PublishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// Subscriptions returns a copy of every address Subscribe was called with.
func (m *Middleware) Subscriptions() []driver.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driver.Address(nil), m.subscribed...)
}
