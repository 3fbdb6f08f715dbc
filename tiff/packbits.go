package tiff

// unpackBits expands a PackBits stream into dst and returns the number of
// bytes written. It stops when dst is full or src runs out.
func unpackBits(dst, src []byte) int {
	n := 0
	for i := 0; i < len(src) && n < len(dst); {
		c := int8(src[i])
		i++

		switch {
		case c >= 0:
			k := min(int(c)+1, len(src)-i, len(dst)-n)
			n += copy(dst[n:], src[i:i+k])
			i += int(c) + 1
		case c != -128:
			if i >= len(src) {
				return n
			}

			k := min(1-int(c), len(dst)-n)
			for j := 0; j < k; j++ {
				dst[n+j] = src[i]
			}

			n += k
			i++
		}
	}

	return n
}

// packBits appends the PackBits encoding of src to dst. Runs of two or more
// bytes become repeat packets; literals break before a run of three.
func packBits(dst, src []byte) []byte {
	for i := 0; i < len(src); {
		j := i + 1
		for j < len(src) && j-i < 128 && src[j] == src[i] {
			j++
		}

		if j-i >= 2 {
			dst = append(dst, byte(257-(j-i)), src[i])
			i = j

			continue
		}

		j = i
		for j < len(src) && j-i < 128 {
			if j+2 < len(src) && src[j] == src[j+1] && src[j] == src[j+2] {
				break
			}
			j++
		}

		dst = append(dst, byte(j-i-1))
		dst = append(dst, src[i:j]...)
		i = j
	}

	return dst
}
