package tiff

import "encoding/binary"

// undoHorizontal reverses horizontal differencing in place. buf holds whole
// rows of rowBytes bytes with spp interleaved samples of bps bits.
func undoHorizontal(buf []byte, rowBytes, spp, bps int, order binary.ByteOrder) {
	for off := 0; off+rowBytes <= len(buf); off += rowBytes {
		row := buf[off : off+rowBytes]

		switch bps {
		case 8:
			for x := spp; x < len(row); x++ {
				row[x] += row[x-spp]
			}
		case 16:
			step := spp * 2
			for x := step; x+1 < len(row); x += 2 {
				v := order.Uint16(row[x:]) + order.Uint16(row[x-step:])
				order.PutUint16(row[x:], v)
			}
		}
	}
}

// applyHorizontal replaces 8-bit samples with their difference from the
// sample spp bytes to the left.
func applyHorizontal(buf []byte, rowBytes, spp int) {
	for off := 0; off+rowBytes <= len(buf); off += rowBytes {
		row := buf[off : off+rowBytes]
		for x := len(row) - 1; x >= spp; x-- {
			row[x] -= row[x-spp]
		}
	}
}
