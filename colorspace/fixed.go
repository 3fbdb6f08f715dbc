package colorspace

// Fixed-point conversions for whole rows of 8-bit samples. They trade the
// float path's precision for speed and stay within two levels of it.

// clip clamps an int32 value to the valid 8-bit range [0, 255].
func clip(x int32) byte {
	if x < 0 {
		return 0
	}

	if x > 255 {
		return 255
	}

	return byte(x)
}

// YCbCrToBGRA converts interleaved Y, Cb, Cr samples to B, G, R, A quads.
// dst must hold 4 bytes per 3 bytes of src.
func YCbCrToBGRA(dst, src []byte) {
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		y := int32(src[i]) << 8
		cb := int32(src[i+1]) - 128
		cr := int32(src[i+2]) - 128

		r := (y + 359*cr + 128) >> 8
		g := (y - 88*cb - 183*cr + 128) >> 8
		b := (y + 454*cb + 128) >> 8

		dst[j] = clip(b)
		dst[j+1] = clip(g)
		dst[j+2] = clip(r)
		dst[j+3] = 255
	}
}

// CmykToBGRA converts interleaved C, M, Y, K samples (0 = no ink) to B, G, R, A quads.
func CmykToBGRA(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		w := 255 - int32(src[i+3])

		dst[i] = byte((255 - int32(src[i+2])) * w / 255)
		dst[i+1] = byte((255 - int32(src[i+1])) * w / 255)
		dst[i+2] = byte((255 - int32(src[i])) * w / 255)
		dst[i+3] = 255
	}
}
