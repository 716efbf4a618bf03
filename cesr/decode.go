package cesr

// decodeFixed decodes a fixed-size data frame of known identifier and
// body size n. On success it returns a view of the body and advances
// *stream past the frame.
func decodeFixed(identifier uint32, n int, stream *[]byte) ([]byte, bool) {
	s := *stream
	total := nextMultipleOf3(n + 1)
	lead := total - n

	var word uint32
	switch lead {
	case 1:
		word = bits(identifier, 6) << 18
	case 2:
		word = selD0<<18 | bits(identifier, 6)<<12
	case 3:
		word = selD1<<18 | bits(identifier, 18)
	}

	if len(s) < total || !headerMatch(s[:lead], headerBytes(word, lead)) {
		return nil, false
	}

	*stream = s[total:]
	return s[lead:total], true
}

// decodeIndexed decodes an indexed fixed-size data frame, returning the
// index alongside the body view.
func decodeIndexed(identifier uint32, n int, stream *[]byte) (uint16, []byte, bool) {
	s := *stream
	total := nextMultipleOf3(n + 1)
	lead := total - n

	if len(s) < 3 {
		return 0, nil, false
	}
	input := triplet(s[0], s[1], s[2])

	var word, index uint32
	switch lead {
	case 2:
		index = input >> 12 & mask(6)
		word = bits(identifier, 6)<<18 | bits(index, 6)<<12
	case 3:
		index = input & mask(12)
		word = selD0<<18 | bits(identifier, 6)<<12 | bits(index, 12)
	default:
		return 0, nil, false
	}

	if len(s) < total || !headerMatch(s[:lead], headerBytes(word, lead)) {
		return 0, nil, false
	}

	*stream = s[total:]
	return uint16(index), s[lead:total], true
}

// decodeVariableIndex locates a variable-size data frame with a known
// identifier and returns the [begin, end) byte range of its body within
// stream. It does not advance the stream and performs no allocation.
func decodeVariableIndex(identifier uint32, stream []byte) (begin, end int, ok bool) {
	if len(stream) < 3 {
		return 0, 0, false
	}
	input := triplet(stream[0], stream[1], stream[2])
	selector := input >> 18

	var size, foundID uint32
	switch selector {
	case selD4, selD5, selD6:
		foundID = input >> 12 & mask(6)
		size = input & mask(12)
	case selD7, selD8, selD9:
		foundID = input & mask(18)
		if len(stream) < 6 {
			return 0, 0, false
		}
		size = triplet(stream[3], stream[4], stream[5])
	default:
		return 0, 0, false
	}

	if foundID != identifier {
		return 0, 0, false
	}

	// offset covers the pad bytes (and, for large identifiers, the
	// extra header triplet) sitting before the body.
	offset := int(selector - selD4)
	begin = offset + 3
	end = nextMultipleOf3(offset+1) + 3*int(size)
	if end < begin || end > len(stream) {
		return 0, 0, false
	}
	return begin, end, true
}

// decodeVariable decodes a variable-size data frame, returning a view
// of the body and advancing the stream.
func decodeVariable(identifier uint32, stream *[]byte) ([]byte, bool) {
	begin, end, ok := decodeVariableIndex(identifier, *stream)
	if !ok {
		return nil, false
	}
	s := *stream
	*stream = s[end:]
	return s[begin:end], true
}

// decodeCount decodes a count frame with a known identifier and returns
// the sub-frame count.
func decodeCount(identifier uint32, stream *[]byte) (uint16, bool) {
	s := *stream
	if len(s) < 3 {
		return 0, false
	}
	word := triplet(s[0], s[1], s[2])
	index := word & mask(12)

	expected := selDash<<18 | bits(identifier, 6)<<12 | bits(index, 12)
	if word != expected {
		return 0, false
	}

	*stream = s[3:]
	return uint16(index), true
}

// decodeGenus matches a two-triplet genus frame with the given tag and
// returns the encoded version.
func decodeGenus(genus [3]byte, stream *[]byte) (Version, bool) {
	s := *stream
	if len(s) < 6 {
		return Version{}, false
	}

	word1 := selDash<<18 | selDash<<12 | bits(uint32(genus[0]), 6)<<6 | bits(uint32(genus[1]), 6)
	if triplet(s[0], s[1], s[2]) != word1 {
		return Version{}, false
	}

	word2 := triplet(s[3], s[4], s[5])
	if word2>>18 != bits(uint32(genus[2]), 6) {
		return Version{}, false
	}

	*stream = s[6:]
	return Version{
		Major: uint8(word2 >> 12 & mask(6)),
		Minor: uint8(word2 >> 6 & mask(6)),
		Patch: uint8(word2 & mask(6)),
	}, true
}

// headerMatch reports whether the observed header bytes equal the
// expected prefix exactly.
func headerMatch(observed, expected []byte) bool {
	if len(observed) != len(expected) {
		return false
	}
	for i := range observed {
		if observed[i] != expected[i] {
			return false
		}
	}
	return true
}
