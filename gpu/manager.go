package gpu

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/gekko3d/contree"
)

const (
	// HeadroomNodes keeps node buffers ahead of arena growth so a single
	// insert rarely forces a reallocation mid-frame.
	HeadroomNodes = 1 * 1024 * 1024
)

// BufferManager owns the device-side copies of the tree's node pools plus
// the uniform data the march shader reads. Host buffers are addressed by
// the mirror's uuid handles; the manager resolves them to wgpu buffers.
type BufferManager struct {
	Device *wgpu.Device

	CameraBuf     *wgpu.Buffer
	TreeParamsBuf *wgpu.Buffer
	MaterialBuf   *wgpu.Buffer

	BindGroup0 *wgpu.BindGroup
	BindGroup1 *wgpu.BindGroup

	buffers   map[uuid.UUID]*wgpu.Buffer
	labels    map[uuid.UUID]string
	snapshots map[uuid.UUID]func() []byte
}

func NewBufferManager(device *wgpu.Device) *BufferManager {
	return &BufferManager{
		Device:    device,
		buffers:   make(map[uuid.UUID]*wgpu.Buffer),
		labels:    make(map[uuid.UUID]string),
		snapshots: make(map[uuid.UUID]func() []byte),
	}
}

// Register uploads the tree's current node pools and remembers how to take
// fresh snapshots if a buffer ever has to be rebuilt. A detached tree (nil
// mirror) is skipped. Returns true when any buffer was (re)created.
func (m *BufferManager) Register(t *contree.Contree) bool {
	mirror := t.Mirror()
	if mirror == nil {
		return false
	}

	m.labels[mirror.InnerBuffer] = "InnerNodesBuf"
	m.labels[mirror.LeafBuffer] = "LeafNodesBuf"
	m.snapshots[mirror.InnerBuffer] = t.SnapshotInner
	m.snapshots[mirror.LeafBuffer] = t.SnapshotLeaf

	recreated := false
	if m.syncBuffer(mirror.InnerBuffer) {
		recreated = true
	}
	if m.syncBuffer(mirror.LeafBuffer) {
		recreated = true
	}
	m.UpdateTreeParams(t)
	return recreated
}

// ApplyWrites replays a drained mirror queue onto the device. Writes that
// land past the end of a buffer mean the arena outgrew the allocation; the
// whole pool is resynced from a snapshot and the caller must rebuild bind
// groups. Returns true when that happened.
func (m *BufferManager) ApplyWrites(cmds []contree.BufferWriteCommand) bool {
	recreated := false
	for i := range cmds {
		cmd := &cmds[i]
		buf := m.buffers[cmd.Buffer]
		if buf == nil || cmd.Offset+uint64(len(cmd.Data)) > buf.GetSize() {
			if m.syncBuffer(cmd.Buffer) {
				recreated = true
			}
			continue
		}
		m.Device.GetQueue().WriteBuffer(buf, cmd.Offset, cmd.Data)
	}
	return recreated
}

// syncBuffer re-uploads one pool from its snapshot, reallocating if needed.
func (m *BufferManager) syncBuffer(id uuid.UUID) bool {
	snapshot, ok := m.snapshots[id]
	if !ok {
		return false
	}
	buf := m.buffers[id]
	recreated := m.ensureBuffer(m.labels[id], &buf, snapshot(), wgpu.BufferUsageStorage, HeadroomNodes)
	m.buffers[id] = buf
	return recreated
}

func (m *BufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) bool {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}

		desc := &wgpu.BufferDescriptor{
			Label:            name,
			Size:             neededSize,
			Usage:            usage | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		}
		newBuf, err := m.Device.CreateBuffer(desc)
		if err != nil {
			panic(err)
		}
		*buf = newBuf

		if len(data) > 0 {
			m.Device.GetQueue().WriteBuffer(*buf, 0, data)
		}
		return true
	}

	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return false
}

// UpdateTreeParams refreshes the small uniform the shader uses to map world
// positions into the tree: center offset, root address, half extent, depth.
func (m *BufferManager) UpdateTreeParams(t *contree.Contree) {
	// Struct TreeParams {
	//   center_offset: vec4<f32>; -- 16
	//   root: u32;                -- 20
	//   half_extent: u32;         -- 24
	//   depth: u32;               -- 28
	//   pad: u32;                 -- 32
	// }
	buf := make([]byte, 32)
	off := t.CenterOffset
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(off.X()))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(off.Y()))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(off.Z()))
	binary.LittleEndian.PutUint32(buf[16:], uint32(t.Root()))
	binary.LittleEndian.PutUint32(buf[20:], t.Size())
	binary.LittleEndian.PutUint32(buf[24:], uint32(t.Depth()))

	if m.TreeParamsBuf == nil {
		desc := &wgpu.BufferDescriptor{
			Label: "TreeParamsUB",
			Size:  32,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		}
		var err error
		m.TreeParamsBuf, err = m.Device.CreateBuffer(desc)
		if err != nil {
			panic(err)
		}
	}
	m.Device.GetQueue().WriteBuffer(m.TreeParamsBuf, 0, buf)
}

func (m *BufferManager) UpdateMaterials(reg *contree.MaterialRegistry) bool {
	return m.ensureBuffer("MaterialBuf", &m.MaterialBuf, reg.AppendBytes(nil), wgpu.BufferUsageStorage, 0)
}

func (m *BufferManager) UpdateCamera(invView, invProj [16]float32, camPos [3]float32, debugMode bool) {
	// Struct CameraData {
	//   inv_view: mat4x4<f32>;  -- 64
	//   inv_proj: mat4x4<f32>;  -- 128
	//   cam_pos: vec4<f32>;     -- 144
	//   debug_mode: u32;        -- 148
	// } -> 160 bytes (padded)
	buf := make([]byte, 160)

	writeMat := func(offset int, mat [16]float32) {
		for i, v := range mat {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v))
		}
	}

	writeMat(0, invView)
	writeMat(64, invProj)

	binary.LittleEndian.PutUint32(buf[128:], math.Float32bits(camPos[0]))
	binary.LittleEndian.PutUint32(buf[132:], math.Float32bits(camPos[1]))
	binary.LittleEndian.PutUint32(buf[136:], math.Float32bits(camPos[2]))

	debugVal := uint32(0)
	if debugMode {
		debugVal = 1
	}
	binary.LittleEndian.PutUint32(buf[144:], debugVal)

	if m.CameraBuf == nil {
		desc := &wgpu.BufferDescriptor{
			Label: "CameraUB",
			Size:  160,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		}
		var err error
		m.CameraBuf, err = m.Device.CreateBuffer(desc)
		if err != nil {
			panic(err)
		}
	}
	m.Device.GetQueue().WriteBuffer(m.CameraBuf, 0, buf)
}

// CreateBindGroups builds group 0 (uniforms) and group 1 (node pools and
// materials) against the compute pipeline's layouts. Must be called again
// whenever ApplyWrites or Register reports a recreated buffer.
func (m *BufferManager) CreateBindGroups(pipeline *wgpu.ComputePipeline, tree *contree.Contree) {
	mirror := tree.Mirror()
	if mirror == nil {
		return
	}

	entries0 := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: m.CameraBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: m.TreeParamsBuf, Size: wgpu.WholeSize},
	}
	desc0 := &wgpu.BindGroupDescriptor{
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries0,
	}
	var err error
	m.BindGroup0, err = m.Device.CreateBindGroup(desc0)
	if err != nil {
		panic(err)
	}

	entries1 := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: m.buffers[mirror.InnerBuffer], Size: wgpu.WholeSize},
		{Binding: 1, Buffer: m.buffers[mirror.LeafBuffer], Size: wgpu.WholeSize},
		{Binding: 2, Buffer: m.MaterialBuf, Size: wgpu.WholeSize},
	}
	desc1 := &wgpu.BindGroupDescriptor{
		Layout:  pipeline.GetBindGroupLayout(1),
		Entries: entries1,
	}
	m.BindGroup1, err = m.Device.CreateBindGroup(desc1)
	if err != nil {
		panic(err)
	}
}
