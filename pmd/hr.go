package pmd

// HeartRateMeasurement is one decoded standard GATT heart rate measurement
// notification (characteristic 2a37).
type HeartRateMeasurement struct {
	BPM              int
	SensorContact    bool
	ContactSupported bool
	Energy           int
	RRIntervals      []int // raw units of 1/1024 s
	RRIntervalsMs    []int
}

// DecodeHeartRate decodes a standard heart rate measurement payload. Like
// Decode it never fails; a payload too short to carry a reading yields the
// zero measurement.
func DecodeHeartRate(data []byte) HeartRateMeasurement {
	if len(data) < 2 {
		return HeartRateMeasurement{}
	}

	flags := int(data[0])
	hrFormat16 := flags&0x01 != 0
	sensorContact := flags&0x06>>1 == 0x03
	contactSupported := flags&0x04 != 0
	energyPresent := flags&0x08 != 0
	rrPresent := flags&0x10 != 0

	m := HeartRateMeasurement{
		SensorContact:    sensorContact,
		ContactSupported: contactSupported,
	}

	offset := 1
	if hrFormat16 {
		if len(data) < offset+2 {
			return m
		}
		m.BPM = int(data[offset]) | int(data[offset+1])<<8
		offset += 2
	} else {
		m.BPM = int(data[offset])
		offset++
	}

	if energyPresent {
		if len(data) < offset+2 {
			return m
		}
		m.Energy = int(data[offset]) | int(data[offset+1])<<8
		offset += 2
	}

	if rrPresent {
		for offset+2 <= len(data) {
			rr := int(data[offset]) | int(data[offset+1])<<8
			offset += 2
			m.RRIntervals = append(m.RRIntervals, rr)
			m.RRIntervalsMs = append(m.RRIntervalsMs, rr*1000/1024)
		}
	}
	return m
}
