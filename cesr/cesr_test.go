package cesr

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestFixedFrameGeometry(t *testing.T) {
	// Every fixed frame must be a multiple of three bytes, with the
	// lead-byte count determined by the body size.
	for _, n := range []int{1, 2, 3, 20, 32, 64} {
		body := make([]byte, n)
		for i := range body {
			body[i] = byte(i + 1)
		}
		frame := appendFixed(nil, idDigest, body)
		if len(frame)%3 != 0 {
			t.Fatalf("fixed frame of body %d has length %d, not a multiple of 3", n, len(frame))
		}

		stream := frame
		got, ok := decodeFixed(idDigest, n, &stream)
		if !ok {
			t.Fatalf("decodeFixed(%d) failed", n)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("body mismatch for n=%d", n)
		}
		if len(stream) != 0 {
			t.Fatalf("stream not fully consumed for n=%d", n)
		}
	}
}

func TestFixedFrameWrongIdentifier(t *testing.T) {
	frame := appendFixed(nil, idDigest, make([]byte, 32))
	stream := frame
	if _, ok := decodeFixed(idNonce, 32, &stream); ok {
		t.Fatal("decodeFixed accepted a frame with the wrong identifier")
	}
}

func TestIndexedFrameRoundTrip(t *testing.T) {
	body := make([]byte, 64)
	for i := range body {
		body[i] = byte(i)
	}
	for _, index := range []uint16{0, 1, 42, 63} {
		frame := appendIndexed(nil, idSignature, index, body)
		stream := frame
		gotIndex, got, ok := decodeIndexed(idSignature, 64, &stream)
		if !ok {
			t.Fatalf("decodeIndexed failed for index %d", index)
		}
		if gotIndex != index {
			t.Fatalf("index mismatch: got %d, want %d", gotIndex, index)
		}
		if !bytes.Equal(got, body) {
			t.Fatal("body mismatch")
		}
	}
}

func TestVariableFrameRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 100, 64*64*3 - 2, 64 * 64 * 3} {
		body := bytes.Repeat([]byte{0xab}, n)
		frame, err := appendVariable(nil, idPayloadBody, body)
		if err != nil {
			t.Fatalf("appendVariable(%d): %v", n, err)
		}
		if len(frame)%3 != 0 {
			t.Fatalf("variable frame of body %d has length %d, not a multiple of 3", n, len(frame))
		}

		stream := frame
		got, ok := decodeVariable(idPayloadBody, &stream)
		if !ok {
			t.Fatalf("decodeVariable(%d) failed", n)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("body mismatch for n=%d", n)
		}
		if len(stream) != 0 {
			t.Fatalf("stream not fully consumed for n=%d", n)
		}
	}
}

func TestVariableFrameLargeIdentifier(t *testing.T) {
	// An identifier above 63 forces the six-byte header form.
	body := []byte("large identifier body")
	frame, err := appendVariable(nil, 1234, body)
	if err != nil {
		t.Fatalf("appendVariable: %v", err)
	}

	stream := frame
	got, ok := decodeVariable(1234, &stream)
	if !ok {
		t.Fatal("decodeVariable failed for large identifier")
	}
	if !bytes.Equal(got, body) {
		t.Fatal("body mismatch")
	}
}

func TestVariableIndexZeroCopy(t *testing.T) {
	body := []byte("zero copy view")
	frame, err := appendVariable(nil, idCiphertext, body)
	if err != nil {
		t.Fatalf("appendVariable: %v", err)
	}

	begin, end, ok := decodeVariableIndex(idCiphertext, frame)
	if !ok {
		t.Fatal("decodeVariableIndex failed")
	}
	if !bytes.Equal(frame[begin:end], body) {
		t.Fatalf("range [%d:%d] does not cover the body", begin, end)
	}

	// Mutating through the range must mutate the frame: same memory.
	frame[begin] ^= 0xff
	view := frame[begin:end]
	if view[0] == body[0] {
		t.Fatal("returned range is not a view over the input")
	}
}

func TestCountFrameRoundTrip(t *testing.T) {
	for _, count := range []uint16{0, 1, 7, 4095} {
		frame := appendCount(nil, idHops, count)
		if len(frame) != 3 {
			t.Fatalf("count frame is %d bytes, want 3", len(frame))
		}
		stream := frame
		got, ok := decodeCount(idHops, &stream)
		if !ok {
			t.Fatalf("decodeCount failed for count %d", count)
		}
		if got != count {
			t.Fatalf("count mismatch: got %d, want %d", got, count)
		}
	}
}

func TestGenusRoundTrip(t *testing.T) {
	frame := appendGenus(nil, genusTSP, ProtocolVersion)
	if len(frame) != 6 {
		t.Fatalf("genus frame is %d bytes, want 6", len(frame))
	}

	stream := frame
	version, ok := decodeGenus(genusTSP, &stream)
	if !ok {
		t.Fatal("decodeGenus failed")
	}
	if version != ProtocolVersion {
		t.Fatalf("version mismatch: got %v, want %v", version, ProtocolVersion)
	}

	// A different genus tag must not match.
	stream = frame
	if _, ok := decodeGenus([3]byte{0, 1, 2}, &stream); ok {
		t.Fatal("decodeGenus matched the wrong genus tag")
	}
}

func TestToBinaryDomains(t *testing.T) {
	frame := appendGenus(nil, genusTSP, ProtocolVersion)
	frame = appendFixed(frame, idSuite, []byte{0, 0})

	// Binary domain passes through untouched.
	binary := append([]byte(nil), frame...)
	got, err := ToBinary(binary)
	if err != nil {
		t.Fatalf("ToBinary(binary): %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatal("binary domain was altered")
	}

	// Text domain decodes in place to the same bytes.
	text := []byte(base64.RawURLEncoding.EncodeToString(frame))
	got, err = ToBinary(text)
	if err != nil {
		t.Fatalf("ToBinary(text): %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatal("text domain did not decode to the binary form")
	}

	if _, err := ToBinary([]byte("AAAA")); err == nil {
		t.Fatal("ToBinary accepted a stream from neither domain")
	}
	if _, err := ToBinary([]byte{0, 0, 0}); err == nil {
		t.Fatal("ToBinary accepted a zero lead byte")
	}
	if _, err := ToBinary(nil); err == nil {
		t.Fatal("ToBinary accepted an empty stream")
	}
}
