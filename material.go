package contree

import (
	"encoding/binary"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// MaterialSize is the wire size of one device-side material record:
// a color vec4, a reflectivity float, and padding to a 32-byte stride.
const MaterialSize = 32

// MaterialTraits is a per-material bitset consulted by simulation rules.
type MaterialTraits uint8

const (
	TraitFlammable MaterialTraits = 1 << iota
	TraitEmissive
)

type Material struct {
	Color        [4]float32
	Reflectivity float32
	Traits       MaterialTraits
}

func (m Material) Flammable() bool { return m.Traits&TraitFlammable != 0 }
func (m Material) Emissive() bool  { return m.Traits&TraitEmissive != 0 }

// MaterialRegistry maps the 8-bit ids stored in leaf slots to material data.
// It is built once at startup and passed by reference to whoever needs it;
// id 0 is reserved for air and renders as nothing.
type MaterialRegistry struct {
	materials [256]Material
}

func NewMaterialRegistry() *MaterialRegistry {
	r := &MaterialRegistry{}
	for i := 1; i < len(r.materials); i++ {
		r.materials[i] = Material{Color: [4]float32{1, 1, 1, 1}}
	}
	return r
}

func (r *MaterialRegistry) Set(id uint8, m Material) { r.materials[id] = m }
func (r *MaterialRegistry) Get(id uint8) Material    { return r.materials[id] }

// RegistryFromImage builds color entries from a palette image resampled to
// a 256x1 strip. MagicaVoxel palettes ship in exactly this shape; anything
// else is scaled down to it.
func RegistryFromImage(img image.Image) *MaterialRegistry {
	strip := image.NewRGBA(image.Rect(0, 0, 256, 1))
	xdraw.NearestNeighbor.Scale(strip, strip.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	r := NewMaterialRegistry()
	for i := 0; i < 256; i++ {
		o := strip.PixOffset(i, 0)
		r.materials[i] = Material{Color: [4]float32{
			float32(strip.Pix[o+0]) / 255,
			float32(strip.Pix[o+1]) / 255,
			float32(strip.Pix[o+2]) / 255,
			float32(strip.Pix[o+3]) / 255,
		}}
	}
	return r
}

// AppendBytes serializes the whole table in its device layout, 256 records
// of MaterialSize bytes. Traits stay host-side; the padding is zeroed.
func (r *MaterialRegistry) AppendBytes(dst []byte) []byte {
	var rec [MaterialSize]byte
	for i := range r.materials {
		m := &r.materials[i]
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint32(rec[c*4:], math.Float32bits(m.Color[c]))
		}
		binary.LittleEndian.PutUint32(rec[16:], math.Float32bits(m.Reflectivity))
		for j := 20; j < MaterialSize; j++ {
			rec[j] = 0
		}
		dst = append(dst, rec[:]...)
	}
	return dst
}
