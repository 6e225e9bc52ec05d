package sensor

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"
)

const simulatedDevice = "simulation"

// FakeSensor serves generated samples through the same read, decode and
// scale path as DeviceSensor.
type FakeSensor struct {
	*DeviceSensor
}

func NewFakeSensor(sc scaling) Sensor {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var mu sync.Mutex
	next := func() int16 {
		mu.Lock()
		defer mu.Unlock()
		return int16(rnd.Intn(1<<16) - 1<<15)
	}
	return &FakeSensor{DeviceSensor: NewDeviceSensor(simulatedDevice, sampleOpener(next), sc.fullScale, sc.scale)}
}

// FrameOpener returns an Opener that hands out frames in order, cycling
// when exhausted. A frame shorter than SampleSize simulates a short read,
// and so does an opener built with no frames.
func FrameOpener(frames ...[]byte) Opener {
	if len(frames) == 0 {
		frames = [][]byte{nil}
	}
	var mu sync.Mutex
	i := 0
	return func(string) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		f := frames[i%len(frames)]
		i++
		return io.NopCloser(bytes.NewReader(f)), nil
	}
}

func sampleOpener(next func() int16) Opener {
	return func(string) (io.ReadCloser, error) {
		buf := make([]byte, SampleSize)
		binary.LittleEndian.PutUint16(buf, uint16(next()))
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
}
