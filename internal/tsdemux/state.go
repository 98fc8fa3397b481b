package tsdemux

import "time"

// pcrWrapTicks is the PCR wrap period (2^33 base ticks * 300 extension
// ticks), added on a negative inter-sample diff per spec.md §8 property 4.
const pcrWrapTicks = int64(1) << 33 * 300

// State is the per-channel demultiplexer state described in spec.md §3 as
// ParsedTSState. It is owned by exactly one channel monitor and must only
// ever be mutated from that monitor's goroutine.
type State struct {
	ProgramMap map[int]uint16 // program_number -> PMT PID
	pmtPIDs    map[uint16]bool

	VideoPid int // -1 until resolved from a PMT
	AudioPid int
	PCRPid   uint16

	ServiceName string
	EventName   string

	pidCC     map[uint16]uint8
	CCErrors  int64
	sections  map[uint16][]byte

	lastPCR     int64
	havePCR     bool
	lastPCRTime time.Time
	PCRJitterMs float64
}

// NewState returns a fresh per-channel demultiplexer state with no PIDs
// resolved yet, matching the "no PAT seen" boundary behavior in spec.md §8.
func NewState() *State {
	return &State{
		ProgramMap: make(map[int]uint16),
		pmtPIDs:    make(map[uint16]bool),
		VideoPid:   -1,
		AudioPid:   -1,
		PCRPid:     0,
		pidCC:      make(map[uint16]uint8),
		sections:   make(map[uint16][]byte),
	}
}

// ResetCCErrors zeroes the continuity-error counter; it is the only
// operation that may decrease it (spec.md §8 invariant 3).
func (s *State) ResetCCErrors() { s.CCErrors = 0 }

// Feed parses data as a sequence of TS packets and folds every packet into
// the state (continuity counters, PCR jitter, PSI/SI reassembly). It
// returns the packets parsed, mainly for tests.
func (s *State) Feed(data []byte, now time.Time) []Packet {
	packets := Scan(data)
	for _, pkt := range packets {
		s.process(pkt, now)
	}
	return packets
}

func (s *State) process(pkt Packet, now time.Time) {
	if pkt.TransportError || pkt.PID == NullPID {
		return
	}
	s.checkCC(pkt.PID, pkt.ContinuityCounter)
	if pkt.hasPCR() && pkt.PID == s.PCRPid {
		s.updatePCRJitter(pkt.PCR, now)
	}
	if !pkt.HasPayload {
		return
	}
	switch {
	case pkt.PID == PATPID:
		s.accumulateSection(pkt.PID, pkt.Payload, pkt.PayloadUnitStart)
	case s.pmtPIDs[pkt.PID]:
		s.accumulateSection(pkt.PID, pkt.Payload, pkt.PayloadUnitStart)
	case pkt.PID == SDTPID:
		s.accumulateSection(pkt.PID, pkt.Payload, pkt.PayloadUnitStart)
	case pkt.PID == EITPID:
		s.accumulateSection(pkt.PID, pkt.Payload, pkt.PayloadUnitStart)
	}
}

// checkCC updates the per-PID continuity counter table and increments
// CCErrors when a gap is observed. Duplicated packets (same CC as last) are
// tolerated per spec.md §3 invariants.
func (s *State) checkCC(pid uint16, cc uint8) {
	if prev, ok := s.pidCC[pid]; ok {
		expected := (prev + 1) % 16
		if cc != expected && cc != prev {
			s.CCErrors++
		}
	}
	s.pidCC[pid] = cc
}

// accumulateSection reassembles a PSI/SI section across packets. On
// payload_unit_start the in-progress buffer for this PID is discarded and
// restarted at payload[1+pointer:], per spec.md §3 invariant.
func (s *State) accumulateSection(pid uint16, payload []byte, unitStart bool) {
	if unitStart {
		if len(payload) == 0 {
			return
		}
		pointer := int(payload[0])
		start := 1 + pointer
		if start > len(payload) {
			start = len(payload)
		}
		s.sections[pid] = append([]byte(nil), payload[start:]...)
	} else if buf, ok := s.sections[pid]; ok {
		s.sections[pid] = append(buf, payload...)
	}

	buf := s.sections[pid]
	if len(buf) < 3 {
		return
	}
	total := 3 + sectionLength(buf)
	if len(buf) >= total {
		s.parseSection(pid, buf[:total])
		s.sections[pid] = buf[total:]
	}
}

// updatePCRJitter implements spec.md §8 testable property 4: jitter_ms is
// the absolute difference between the observed PCR advance (wrap-corrected)
// and the wall-clock advance, expressed in 27MHz ticks, divided by 27000.
func (s *State) updatePCRJitter(pcr int64, now time.Time) {
	if s.havePCR {
		pcrDiff := pcr - s.lastPCR
		if pcrDiff < 0 {
			pcrDiff += pcrWrapTicks
		}
		expectedDiff27MHz := now.Sub(s.lastPCRTime).Seconds() * 27_000_000
		if expectedDiff27MHz > 0 {
			jitterTicks := pcrDiff - int64(expectedDiff27MHz)
			if jitterTicks < 0 {
				jitterTicks = -jitterTicks
			}
			s.PCRJitterMs = float64(jitterTicks) / 27000.0
		}
	}
	s.lastPCR = pcr
	s.lastPCRTime = now
	s.havePCR = true
}
