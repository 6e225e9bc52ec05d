package output

import "github.com/ericogr/mypci-voltage/pkg/sensor"

type Output interface {
	Publish(sensor.Reading) error
	Close() error
}

// helper constructors are in subpackages
