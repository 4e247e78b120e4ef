// Package loader provides ELF image loading for 32-bit ARM guests.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF image.
type Segment struct {
	// PhysAddr is the guest physical address the segment is placed at.
	PhysAddr uint32
	// VirtAddr is the address the segment is linked at.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Image represents a guest image ready to be placed in guest memory.
type Image struct {
	// EntryPoint is the address where the guest starts executing.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// Memory is the guest physical memory an image is written to.
type Memory interface {
	Write(addr uint64, data []byte)
}

// Load parses a 32-bit little-endian ARM ELF image.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	img := &Image{EntryPoint: uint32(f.Entry)}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Paddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		img.Segments = append(img.Segments, Segment{
			PhysAddr: uint32(phdr.Paddr),
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return img, nil
}

// LoadInto writes every segment at its physical address and zero-fills
// the part of each segment beyond its file data.
func (img *Image) LoadInto(mem Memory) {
	for _, seg := range img.Segments {
		addr := uint64(seg.PhysAddr)
		mem.Write(addr, seg.Data)
		if seg.MemSize > uint32(len(seg.Data)) {
			mem.Write(addr+uint64(len(seg.Data)), make([]byte, seg.MemSize-uint32(len(seg.Data))))
		}
	}
}

// Size returns the total memory footprint of the image.
func (img *Image) Size() uint64 {
	var total uint64
	for _, seg := range img.Segments {
		total += uint64(seg.MemSize)
	}
	return total
}
