// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package port

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Peripheral is a device wired to a simulated register.
//
// Both methods are called with the register locked. They must not call back
// into the Dev they are attached to.
type Peripheral interface {
	// Latched is called after the latch or direction register changed.
	Latched(lat, tris byte)
	// Drive returns the levels the peripheral puts on the lines in mask.
	// It is called each time the register is sampled.
	Drive() (value, mask byte)
}

// Sim is a Backend for a simulated PIC18 port.
//
// An input line reads the level held on it by SetInput, overridden by any
// attached Peripheral driving it. Lines nobody holds read High, like the
// pulled-up switch inputs of the board. An output line reads its latch.
type Sim struct {
	name string

	mu          sync.Mutex
	ext         byte
	peripherals []Peripheral
	edges       [Width]chan struct{}
}

// NewSim returns a simulated port backend.
func NewSim(name string) *Sim {
	s := &Sim{name: name, ext: devMask}
	for ix := range s.edges {
		s.edges[ix] = make(chan struct{}, 1)
	}
	return s
}

// Attach wires p to the port.
func (s *Sim) Attach(p Peripheral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peripherals = append(s.peripherals, p)
}

// SetInput holds line bit at level l, as a switch or a jumper would.
func (s *Sim) SetInput(bit int, l gpio.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := byte(1) << bit
	old := s.ext & m
	if l {
		s.ext |= m
	} else {
		s.ext &^= m
	}
	if s.ext&m != old {
		select {
		case s.edges[bit] <- struct{}{}:
		default:
		}
	}
}

// Apply implements Backend.
func (s *Sim) Apply(lat, tris byte) error {
	s.mu.Lock()
	ps := s.peripherals
	s.mu.Unlock()
	for _, p := range ps {
		p.Latched(lat, tris)
	}
	return nil
}

// Sample implements Backend.
func (s *Sim) Sample(lat, tris byte) (byte, error) {
	s.mu.Lock()
	ext := s.ext
	ps := s.peripherals
	s.mu.Unlock()
	for _, p := range ps {
		v, m := p.Drive()
		ext = (ext &^ m) | (v & m)
	}
	return (lat &^ tris) | (ext & tris), nil
}

// WaitForEdge waits until SetInput changes line bit. A negative timeout waits
// forever.
func (s *Sim) WaitForEdge(bit int, timeout time.Duration) bool {
	ch := s.edges[bit]
	if timeout < 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

func (s *Sim) flushEdges(bit int) {
	select {
	case <-s.edges[bit]:
	default:
	}
}

func (s *Sim) String() string {
	return s.name
}

var _ Backend = &Sim{}
var _ edgeWaiter = &Sim{}
