// Package insts provides ARM coprocessor instruction definitions and
// decoding.
//
// The trap layer hands the virtualization core the 32-bit word of every
// trapped coprocessor instruction. This package classifies it and extracts
// its fields:
//   - Register transfers: MCR, MRC
//   - Double register transfers: MCRR, MRRC
//   - Data operations: CDP
//   - Loads and stores: LDC, STC
//
// Encodings with condition 0b1111 are the unconditional "2" variants
// (MCR2, MRC2, ...); they decode to the same Op with Unconditional set.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xEE110F10) // MRC p15, 0, r0, c1, c0, 0
//	fmt.Printf("Op: %v, CRn: %d, Rt: %d\n", inst.Op, inst.CRn, inst.Rt)
package insts
