package tsdemux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState_NoPAT_PidsUnresolved(t *testing.T) {
	s := NewState()
	assert.Equal(t, -1, s.VideoPid)
	assert.Equal(t, -1, s.AudioPid)
	assert.Zero(t, s.CCErrors)
}

func TestCheckCC_SequentialNoError(t *testing.T) {
	s := NewState()
	s.checkCC(0x100, 0)
	s.checkCC(0x100, 1)
	s.checkCC(0x100, 2)
	assert.Zero(t, s.CCErrors)
}

func TestCheckCC_DuplicateToleratedNotError(t *testing.T) {
	s := NewState()
	s.checkCC(0x100, 5)
	s.checkCC(0x100, 5)
	assert.Zero(t, s.CCErrors)
}

func TestCheckCC_GapIsError(t *testing.T) {
	s := NewState()
	s.checkCC(0x100, 5)
	s.checkCC(0x100, 7) // skipped 6
	assert.EqualValues(t, 1, s.CCErrors)
}

func TestCheckCC_WrapsAt16(t *testing.T) {
	s := NewState()
	s.checkCC(0x100, 15)
	s.checkCC(0x100, 0)
	assert.Zero(t, s.CCErrors)
}

func TestCheckCC_NullPIDExcludedByCaller(t *testing.T) {
	s := NewState()
	s.process(Packet{PID: NullPID, ContinuityCounter: 0, HasPayload: true, PCR: -1}, time.Now())
	s.process(Packet{PID: NullPID, ContinuityCounter: 5, HasPayload: true, PCR: -1}, time.Now())
	assert.Zero(t, s.CCErrors)
	assert.Empty(t, s.pidCC)
}

func TestResetCCErrors(t *testing.T) {
	s := NewState()
	s.checkCC(0x100, 5)
	s.checkCC(0x100, 7)
	require.EqualValues(t, 1, s.CCErrors)
	s.ResetCCErrors()
	assert.Zero(t, s.CCErrors)
}

func TestPCRJitter_ZeroBeforeTwoSamples(t *testing.T) {
	s := NewState()
	s.PCRPid = 0x100
	s.updatePCRJitter(1000, time.Now())
	assert.Zero(t, s.PCRJitterMs)
}

func TestPCRJitter_SteadyClock(t *testing.T) {
	s := NewState()
	s.PCRPid = 0x100
	t0 := time.Now()
	// 40ms of PCR ticks at 27MHz.
	const ticksPer40ms = int64(40) * 27000
	s.updatePCRJitter(0, t0)
	s.updatePCRJitter(ticksPer40ms, t0.Add(40*time.Millisecond))
	assert.InDelta(t, 0, s.PCRJitterMs, 1.0)
}

func TestPCRJitter_WrapProducesSmallJitterNotHuge(t *testing.T) {
	s := NewState()
	s.PCRPid = 0x100
	t0 := time.Now()
	const ticksPer40ms = int64(40) * 27000
	almostWrapped := pcrWrapTicks - 1000
	s.updatePCRJitter(almostWrapped, t0)
	// advance wall clock 40ms, PCR wraps to a small value just past zero.
	wrappedValue := (almostWrapped + ticksPer40ms) % pcrWrapTicks
	s.updatePCRJitter(wrappedValue, t0.Add(40*time.Millisecond))
	assert.Less(t, s.PCRJitterMs, 100.0, "wrap-corrected jitter should stay small, not spike to ~billions of ms")
}

func TestPCRJitter_IgnoresOtherPID(t *testing.T) {
	s := NewState()
	s.PCRPid = 0x100
	s.process(Packet{PID: 0x200, PCR: 1234, HasPayload: false}, time.Now())
	assert.False(t, s.havePCR)
}

// buildSection assembles a PSI section with the standard 3-byte header
// (table_id, section_length in the low 12 bits of bytes 1-2) followed by
// body bytes and a 4-byte dummy CRC.
func buildSection(tableID byte, body []byte) []byte {
	withCRC := append(append([]byte{}, body...), 0, 0, 0, 0)
	length := len(withCRC)
	return append([]byte{tableID, byte(length >> 8) & 0x0F, byte(length)}, withCRC...)
}

func wrapSectionInPackets(pid uint16, section []byte) [][]byte {
	payload := append([]byte{0x00}, section...) // pointer_field = 0
	pkt := buildPacket(pid, 0, true, payload, -1)
	return [][]byte{pkt}
}

func TestFeed_PATThenPMT_ResolvesVideoAudioPids(t *testing.T) {
	s := NewState()

	// PAT: program 1 -> PMT PID 0x100.
	patBody := []byte{
		0x00, 0x01, // transport_stream_id
		0xC1,       // reserved/version/current_next
		0x00, 0x00, // section_number, last_section_number
		0x00, 0x01, // program_number = 1
		0xE1, 0x00, // reserved(3) + PMT pid 0x100
	}
	patSection := buildSection(0x00, patBody)
	for _, pkt := range wrapSectionInPackets(PATPID, patSection) {
		s.Feed(pkt, time.Now())
	}
	require.Contains(t, s.ProgramMap, 1)
	assert.EqualValues(t, 0x100, s.ProgramMap[1])

	// PMT on pid 0x100: pcr_pid=0x101, video stream_type 0x1B on pid 0x101,
	// audio stream_type 0x0F on pid 0x102.
	pmtBody := []byte{
		0x00, 0x01, // program_number
		0xC1,
		0x00, 0x00,
		0xE1, 0x01, // reserved(3) + pcr_pid 0x101
		0xF0, 0x00, // reserved(4) + program_info_length=0
		0x1B, 0xE1, 0x01, 0xF0, 0x00, // video stream on 0x101
		0x0F, 0xE1, 0x02, 0xF0, 0x00, // audio stream on 0x102
	}
	pmtSection := buildSection(0x02, pmtBody)
	for _, pkt := range wrapSectionInPackets(0x100, pmtSection) {
		s.Feed(pkt, time.Now())
	}

	assert.Equal(t, 0x101, s.VideoPid)
	assert.Equal(t, 0x102, s.AudioPid)
	assert.EqualValues(t, 0x101, s.PCRPid)
}

func TestAccumulateSection_RestartsOnPUSI(t *testing.T) {
	s := NewState()
	s.sections[0x100] = []byte{0xAA, 0xAA, 0xAA}
	s.accumulateSection(0x100, append([]byte{0x00}, buildSection(0x00, []byte{0x00, 0x01, 0xC1, 0x00, 0x00, 0x00, 0x01, 0xE1, 0x05})...), true)
	// after restart the stale bytes must be gone; the buffer should now
	// hold (and fully consume) the fresh section only.
	assert.NotContains(t, string(s.sections[0x100]), "\xAA\xAA\xAA")
}
