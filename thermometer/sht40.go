package thermometer

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	sht40Address       = 0x44
	sht40MeasureHigh   = 0xFD
	sht40SoftReset     = 0x94
	sht40MeasureDelay  = 10 * time.Millisecond
	sht40ResetDelay    = time.Millisecond
	sht40FrameLength   = 6
	sht40CRCPolynomial = 0x31
)

var ErrCRC = errors.New("sht40: checksum mismatch")

// i2cDev is a single addressed device on an I2C bus. The SHT4x answers a
// command with a separate read transaction after the conversion delay, so
// writes and reads are issued as distinct transfers.
type i2cDev interface {
	Tx(w, r []byte) error
}

var _ i2cDev = (*i2c.Dev)(nil)

// SHT40 reads temperature and relative humidity from a Sensirion SHT4x.
type SHT40 struct {
	mu    sync.Mutex
	dev   i2cDev
	sleep func(time.Duration)
	close func() error
}

// NewSHT40 opens the given I2C bus and soft-resets the sensor.
func NewSHT40(bus int) (*SHT40, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(strconv.Itoa(bus))
	if err != nil {
		return nil, err
	}

	s, err := newSHT40(&i2c.Dev{Bus: b, Addr: sht40Address}, time.Sleep, b.Close)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

func newSHT40(dev i2cDev, sleep func(time.Duration), closer func() error) (*SHT40, error) {
	s := &SHT40{dev: dev, sleep: sleep, close: closer}
	if err := s.dev.Tx([]byte{sht40SoftReset}, nil); err != nil {
		return nil, err
	}
	s.sleep(sht40ResetDelay)
	return s, nil
}

// Measure triggers a high precision measurement and decodes it.
func (s *SHT40) Measure() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.Tx([]byte{sht40MeasureHigh}, nil); err != nil {
		return Reading{}, err
	}
	s.sleep(sht40MeasureDelay)

	frame := make([]byte, sht40FrameLength)
	if err := s.dev.Tx(nil, frame); err != nil {
		return Reading{}, err
	}
	return decodeSHT40(frame)
}

func (s *SHT40) Shutdown() {
	if s.close != nil {
		s.close()
	}
}

func decodeSHT40(frame []byte) (Reading, error) {
	if len(frame) != sht40FrameLength {
		return Reading{}, errors.New("sht40: short frame")
	}
	if crc8(frame[0:2]) != frame[2] || crc8(frame[3:5]) != frame[5] {
		return Reading{}, ErrCRC
	}

	rawT := uint16(frame[0])<<8 | uint16(frame[1])
	rawRH := uint16(frame[3])<<8 | uint16(frame[4])

	rh := -6 + 125*float64(rawRH)/65535
	switch {
	case rh < 0:
		rh = 0
	case rh > 100:
		rh = 100
	}

	return Reading{
		Temperature: -45 + 175*float64(rawT)/65535,
		Humidity:    rh,
		HasHumidity: true,
	}, nil
}

func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ sht40CRCPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
