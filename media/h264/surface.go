package h264

import (
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// SurfaceID is an opaque handle to a hardware decode surface owned by
// the client layer.
type SurfaceID int32

// InvalidSurfaceID marks a missing surface in neutral reference
// descriptors.
const InvalidSurfaceID SurfaceID = -1

// decodeSurface correlates a POC with the hardware surface being decoded
// into and the client bitstream buffer the picture came from. Once the
// picture is emitted the surface is on loan to the client and only
// returns through an explicit reuse.
type decodeSurface struct {
	poc         int32
	bitstreamID int32
	surface     SurfaceID
	outputted   bool
}

// surfacePool hands free surfaces to pictures and keeps the POC-keyed
// in-use mapping. Capacity backpressure is what parks the decode loop:
// an empty free list is the soft NoSurfaces condition.
type surfacePool struct {
	available []SurfaceID
	inUse     map[int32]*decodeSurface
}

func newSurfacePool() *surfacePool {
	return &surfacePool{inUse: make(map[int32]*decodeSurface)}
}

// assign draws a free surface and binds it to poc.
func (s *surfacePool) assign(bitstreamID int32, poc int32) error {
	if len(s.available) == 0 {
		log.Debug().Msg("[SurfacePool] no surfaces available")
		return errs.ErrNoSurfaces
	}
	surface := s.available[len(s.available)-1]
	s.available = s.available[:len(s.available)-1]

	if _, dup := s.inUse[poc]; dup {
		return errs.New(errs.CodeInvalidStream, "POC already has a surface assigned")
	}
	s.inUse[poc] = &decodeSurface{poc: poc, bitstreamID: bitstreamID, surface: surface}
	log.Debug().Int32("poc", poc).Int32("surface", int32(surface)).Msg("[SurfacePool] assign")
	return nil
}

// unassign drops the binding for poc. Surfaces the client never saw go
// straight back to the free list; emitted ones stay out until the
// client reuses them. Unknown POCs are diagnostic only.
func (s *surfacePool) unassign(poc int32) {
	ds, ok := s.inUse[poc]
	if !ok {
		log.Debug().Int32("poc", poc).Msg("[SurfacePool] unassign of unassigned POC")
		return
	}
	delete(s.inUse, poc)
	if !ds.outputted {
		s.available = append(s.available, ds.surface)
	}
	log.Debug().Int32("poc", poc).Int32("surface", int32(ds.surface)).Msg("[SurfacePool] unassign")
}

// markOutputted records that the surface bound to poc was handed to the
// client.
func (s *surfacePool) markOutputted(poc int32) {
	if ds, ok := s.inUse[poc]; ok {
		ds.outputted = true
	}
}

// byPOC returns the binding for poc, or nil. Callers tolerate absence by
// submitting a neutral reference descriptor.
func (s *surfacePool) byPOC(poc int32) *decodeSurface {
	ds, ok := s.inUse[poc]
	if !ok {
		log.Debug().Int32("poc", poc).Msg("[SurfacePool] no surface assigned to POC")
		return nil
	}
	return ds
}

// reuse returns a surface handed back by the client to the free list.
func (s *surfacePool) reuse(id SurfaceID) {
	s.available = append(s.available, id)
}

// drop empties the free list; used when the surface set is being
// reallocated.
func (s *surfacePool) drop() {
	s.available = s.available[:0]
}

func (s *surfacePool) hasAvailable() bool { return len(s.available) > 0 }

// pocsInUse snapshots the bound POCs so callers can unassign in bulk
// without iterating the live map.
func (s *surfacePool) pocsInUse() []int32 {
	pocs := make([]int32, 0, len(s.inUse))
	for poc := range s.inUse {
		pocs = append(pocs, poc)
	}
	return pocs
}
