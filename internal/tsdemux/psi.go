package tsdemux

// Video/audio stream_type values recognized in a PMT, per spec.md §4.B.
var (
	videoStreamTypes = map[byte]bool{0x01: true, 0x02: true, 0x1B: true, 0x24: true, 0x10: true}
	audioStreamTypes = map[byte]bool{0x03: true, 0x04: true, 0x0F: true, 0x11: true, 0x81: true, 0x82: true, 0x06: true}
)

// parseSection dispatches a reassembled section to the matching table
// parser based on its declaring PID and table_id. Unknown tables are
// ignored.
func (s *State) parseSection(pid uint16, data []byte) {
	if len(data) < 3 {
		return
	}
	tableID := data[0]
	switch {
	case pid == PATPID && tableID == 0x00:
		s.parsePAT(data)
	case s.pmtPIDs[pid] && tableID == 0x02:
		s.parsePMT(data)
	case pid == SDTPID && (tableID == 0x42 || tableID == 0x46):
		s.parseSDT(data)
	case pid == EITPID && (tableID >= 0x4E && tableID <= 0x51):
		s.parseEIT(data)
	}
}

func sectionLength(data []byte) int {
	return int(data[1]&0x0F)<<8 | int(data[2])
}

func (s *State) parsePAT(data []byte) {
	if len(data) < 8 {
		return
	}
	end := 3 + sectionLength(data) - 4
	if end > len(data) {
		end = len(data)
	}
	i := 8
	for i+3 < end {
		programNum := int(data[i])<<8 | int(data[i+1])
		pmtPID := uint16(data[i+2]&0x1F)<<8 | uint16(data[i+3])
		if programNum != 0 {
			if s.ProgramMap == nil {
				s.ProgramMap = make(map[int]uint16)
			}
			s.ProgramMap[programNum] = pmtPID
			if s.pmtPIDs == nil {
				s.pmtPIDs = make(map[uint16]bool)
			}
			s.pmtPIDs[pmtPID] = true
		}
		i += 4
	}
}

func (s *State) parsePMT(data []byte) {
	if len(data) < 12 {
		return
	}
	end := 3 + sectionLength(data) - 4
	if end > len(data) {
		end = len(data)
	}
	pcrPID := uint16(data[8]&0x1F)<<8 | uint16(data[9])
	s.PCRPid = pcrPID
	programInfoLength := int(data[10]&0x0F)<<8 | int(data[11])
	i := 12 + programInfoLength
	for i+4 < end {
		streamType := data[i]
		esPID := uint16(data[i+1]&0x1F)<<8 | uint16(data[i+2])
		esInfoLength := int(data[i+3]&0x0F)<<8 | int(data[i+4])
		if videoStreamTypes[streamType] && s.VideoPid == -1 {
			s.VideoPid = int(esPID)
		} else if audioStreamTypes[streamType] && s.AudioPid == -1 {
			s.AudioPid = int(esPID)
		}
		i += 5 + esInfoLength
	}
}

func (s *State) parseSDT(data []byte) {
	if len(data) < 11 {
		return
	}
	end := 3 + sectionLength(data) - 4
	if end > len(data) {
		end = len(data)
	}
	i := 11
	for i+4 < end {
		if i+5 > len(data) {
			break
		}
		descriptorsLoopLength := int(data[i+3]&0x0F)<<8 | int(data[i+4])
		j := i + 5
		descEnd := j + descriptorsLoopLength
		for j+1 < descEnd && j+1 < len(data) {
			descTag := data[j]
			descLen := int(data[j+1])
			descEndByte := j + 2 + descLen
			if descEndByte > len(data) {
				descEndByte = len(data)
			}
			descData := data[j+2 : descEndByte]
			if descTag == 0x48 && len(descData) >= 3 {
				providerLen := int(descData[1])
				nameOffset := 2 + providerLen
				if nameOffset < len(descData) {
					nameLen := int(descData[nameOffset])
					nameEnd := nameOffset + 1 + nameLen
					if nameEnd > len(descData) {
						nameEnd = len(descData)
					}
					s.ServiceName = decodeDVBString(descData[nameOffset+1 : nameEnd])
				}
			}
			j += 2 + descLen
		}
		i += 5 + descriptorsLoopLength
	}
}

func (s *State) parseEIT(data []byte) {
	if len(data) < 14 {
		return
	}
	end := 3 + sectionLength(data) - 4
	if end > len(data) {
		end = len(data)
	}
	i := 14
	for i+11 < end {
		descriptorsLoopLength := int(data[i+10]&0x0F)<<8 | int(data[i+11])
		j := i + 12
		descEnd := j + descriptorsLoopLength
		for j+1 < descEnd && j+1 < len(data) {
			descTag := data[j]
			descLen := int(data[j+1])
			descEndByte := j + 2 + descLen
			if descEndByte > len(data) {
				descEndByte = len(data)
			}
			descData := data[j+2 : descEndByte]
			if descTag == 0x4D && len(descData) >= 4 {
				eventNameLen := int(descData[3])
				eventNameEnd := 4 + eventNameLen
				if eventNameEnd > len(descData) {
					eventNameEnd = len(descData)
				}
				s.EventName = decodeDVBString(descData[4:eventNameEnd])
			}
			j += 2 + descLen
		}
		i += 12 + descriptorsLoopLength
	}
}
