package sensor

import (
	"encoding/binary"
	"math/big"
	"strconv"

	"github.com/ericogr/mypci-voltage/pkg/config"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

const (
	// SampleSize is the number of bytes the device returns per sample.
	SampleSize = 2

	// ScaleSigned16 treats the sample as a full 16-bit two's complement value.
	ScaleSigned16 = 32768
	// ScaleShifted12 treats the sample as a 12-bit value shifted left by 4.
	ScaleShifted12 = 2047 * 16
)

// DecodeRaw interprets the first two bytes of b as a little-endian int16.
func DecodeRaw(b []byte) (int16, error) {
	if len(b) < SampleSize {
		return 0, &ReadError{
			Kind: ShortRead,
			Op:   opDecode,
			Err:  errors.Errorf("got %d bytes, want %d", len(b), SampleSize),
		}
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// Voltage computes raw*fullScale/scale in volts. The quotient is exact and
// rounded once to the nearest float64.
func Voltage(raw int16, fullScale physic.ElectricPotential, scale int) float64 {
	num := new(big.Int).Mul(big.NewInt(int64(raw)), big.NewInt(int64(fullScale)))
	den := new(big.Int).Mul(big.NewInt(int64(scale)), big.NewInt(int64(physic.Volt)))
	v, _ := new(big.Rat).SetFrac(num, den).Float64()
	return v
}

// FormatVoltage renders v as the shortest decimal that round-trips, followed
// by " V".
func FormatVoltage(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " V"
}

type scaling struct {
	fullScale physic.ElectricPotential
	scale     int
}

func (s scaling) voltage(raw int16) float64 {
	return Voltage(raw, s.fullScale, s.scale)
}

func buildScaling(cfg config.Config) (scaling, error) {
	fs, err := cfg.FullScalePotential()
	if err != nil {
		return scaling{}, err
	}
	if cfg.Scale <= 0 {
		return scaling{}, errors.Errorf("invalid scale %d", cfg.Scale)
	}
	return scaling{fullScale: fs, scale: int(cfg.Scale)}, nil
}
