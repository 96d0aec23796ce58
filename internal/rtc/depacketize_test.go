package rtc

import (
	"bytes"
	"testing"
)

func TestDepacketize_SingleNAL(t *testing.T) {
	d := NewH264Depacketizer()

	// Type 5 = IDR slice (single NAL, type in range 1-23)
	payload := []byte{0x65, 0x01, 0x02, 0x03}
	nalus := d.Depacketize(100, payload)

	if len(nalus) != 1 || !bytes.Equal(nalus[0], payload) {
		t.Fatalf("expected the payload back as one NALU, got %v", nalus)
	}
}

func TestDepacketize_EmptyAndUnknownPayloads(t *testing.T) {
	d := NewH264Depacketizer()

	for _, payload := range [][]byte{nil, {}, {0x00}, {0x1d, 0x01}} {
		if got := d.Depacketize(0, payload); got != nil {
			t.Errorf("payload %v: expected nil, got %v", payload, got)
		}
	}
}

func TestDepacketize_STAPA(t *testing.T) {
	d := NewH264Depacketizer()

	sps := []byte{0x67, 0xAA, 0xBB}
	pps := []byte{0x68, 0xCC}

	payload := []byte{0x18}               // STAP-A indicator
	payload = append(payload, 0x00, 0x03) // size of SPS
	payload = append(payload, sps...)
	payload = append(payload, 0x00, 0x02) // size of PPS
	payload = append(payload, pps...)

	nalus := d.Depacketize(100, payload)
	if len(nalus) != 2 {
		t.Fatalf("expected 2 NALUs, got %d", len(nalus))
	}
	if !bytes.Equal(nalus[0], sps) || !bytes.Equal(nalus[1], pps) {
		t.Errorf("unexpected NALUs: %v", nalus)
	}
}

func TestDepacketize_STAPAIgnoresZeroSizeNALU(t *testing.T) {
	d := NewH264Depacketizer()

	payload := []byte{0x18, 0x00, 0x00}
	if nalus := d.Depacketize(100, payload); len(nalus) != 0 {
		t.Fatalf("expected 0 NALUs, got %d", len(nalus))
	}
}

func TestDepacketize_FUA(t *testing.T) {
	d := NewH264Depacketizer()

	// Fragmented type 5 (IDR) NAL with NRI=3:
	// FU indicator 0x7C = NRI 3 | type 28, FU header carries start/end bits.
	startPkt := []byte{0x7C, 0x85, 0x01, 0x02}
	midPkt := []byte{0x7C, 0x05, 0x03, 0x04}
	endPkt := []byte{0x7C, 0x45, 0x05, 0x06}

	if got := d.Depacketize(100, startPkt); got != nil {
		t.Fatalf("expected nil on start fragment, got %v", got)
	}
	if got := d.Depacketize(101, midPkt); got != nil {
		t.Fatalf("expected nil on middle fragment, got %v", got)
	}

	nalus := d.Depacketize(102, endPkt)
	if len(nalus) != 1 {
		t.Fatalf("expected 1 NALU on end fragment, got %d", len(nalus))
	}
	// Rebuilt header: NRI=3 | type=5 = 0x65, then all fragment data.
	expected := []byte{0x65, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	if !bytes.Equal(nalus[0], expected) {
		t.Errorf("expected %v, got %v", expected, nalus[0])
	}
}

func TestDepacketize_FUADropsOnSequenceGap(t *testing.T) {
	d := NewH264Depacketizer()

	startPkt := []byte{0x7C, 0x85, 0x01, 0x02}
	midPkt := []byte{0x7C, 0x05, 0x03, 0x04}
	endPkt := []byte{0x7C, 0x45, 0x05, 0x06}

	if got := d.Depacketize(100, startPkt); got != nil {
		t.Fatalf("expected nil on start, got %v", got)
	}
	// One lost RTP packet: sequence 101 never arrives.
	if got := d.Depacketize(102, midPkt); got != nil {
		t.Fatalf("expected nil after sequence gap, got %v", got)
	}
	if got := d.Depacketize(103, endPkt); got != nil {
		t.Fatalf("expected nil on end of a dropped chain, got %v", got)
	}
}

func TestDepacketize_OrphanEndFragment(t *testing.T) {
	d1 := NewH264Depacketizer()
	d2 := NewH264Depacketizer()

	startPkt := []byte{0x7C, 0x85, 0x01, 0x02}
	endPkt := []byte{0x7C, 0x45, 0x03, 0x04}

	d1.Depacketize(100, startPkt)

	// d2 never saw the start: reassembly state is per instance.
	if got := d2.Depacketize(101, endPkt); got != nil {
		t.Fatalf("expected no NALU for orphan end fragment, got %v", got)
	}
	if got := d1.Depacketize(101, endPkt); len(got) != 1 {
		t.Fatalf("expected d1 to complete its fragment, got %v", got)
	}
}

func TestDepacketize_SingleFragmentFUA(t *testing.T) {
	d := NewH264Depacketizer()

	// Start and end bits set on the same fragment.
	pkt := []byte{0x7C, 0xC5, 0x01, 0x02}
	nalus := d.Depacketize(100, pkt)
	if len(nalus) != 1 || !bytes.Equal(nalus[0], []byte{0x65, 0x01, 0x02}) {
		t.Fatalf("expected one reassembled NALU, got %v", nalus)
	}
}
