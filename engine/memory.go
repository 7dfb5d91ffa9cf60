package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhook/errors"
)

// Memory wraps a guest's exported linear memory with bounds-checked
// accessors that report failures as structured errors.
type Memory struct {
	mem api.Memory
}

// NewMemory wraps mem. A nil mem yields a Memory whose every access fails.
func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

// View returns a slice aliasing guest memory. The slice is only valid until
// the next guest call, which may grow and move the memory.
func (m *Memory) View(offset, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	return val, nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 4)
	}
	return nil
}

// Size returns the current size of guest memory in bytes, or 0 when no
// memory is attached.
func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
