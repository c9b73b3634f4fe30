package contree

import (
	"sync"

	"github.com/google/uuid"
)

// BufferWriteCommand is one byte-range update for a device-resident buffer.
// Offset is the node address times the record size of whichever collection
// Buffer mirrors.
type BufferWriteCommand struct {
	Buffer uuid.UUID
	Offset uint64
	Data   []byte
}

// Mirror queues node writes for a render loop to drain once per frame,
// before it submits GPU work. Sends are fire-and-forget and never block.
//
// A nil *Mirror is the detached mode: every write is a no-op and the host
// tree stays fully correct. Detached is how headless tools and tests run.
type Mirror struct {
	// InnerBuffer and LeafBuffer identify the two device buffers the tree's
	// collections are mirrored into.
	InnerBuffer uuid.UUID
	LeafBuffer  uuid.UUID

	mu      sync.Mutex
	pending []BufferWriteCommand
}

func NewMirror() *Mirror {
	return &Mirror{
		InnerBuffer: uuid.New(),
		LeafBuffer:  uuid.New(),
	}
}

func (m *Mirror) writeInner(addr Addr, node *InnerNode) {
	if m == nil {
		return
	}
	m.push(BufferWriteCommand{
		Buffer: m.InnerBuffer,
		Offset: uint64(addr) * InnerNodeSize,
		Data:   node.AppendBytes(nil),
	})
}

func (m *Mirror) writeLeaf(addr Addr, node *LeafNode) {
	if m == nil {
		return
	}
	m.push(BufferWriteCommand{
		Buffer: m.LeafBuffer,
		Offset: uint64(addr) * LeafNodeSize,
		Data:   node.AppendBytes(nil),
	})
}

func (m *Mirror) push(cmd BufferWriteCommand) {
	m.mu.Lock()
	m.pending = append(m.pending, cmd)
	m.mu.Unlock()
}

// Drain hands back every queued command in send order and clears the queue.
// The consumer calls this once per frame; the latest write for an address is
// always the authoritative state, so applying in order is sufficient.
func (m *Mirror) Drain() []BufferWriteCommand {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	cmds := m.pending
	m.pending = nil
	m.mu.Unlock()
	return cmds
}

// Pending reports how many commands are queued.
func (m *Mirror) Pending() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
