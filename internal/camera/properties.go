// internal/camera/properties.go
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/pkg/imager"
)

// PropertiesReadInterval bounds how often the device is queried.
const PropertiesReadInterval = 2 * time.Second

var ErrPropertiesRead = errors.New("reading camera properties failed")

// PropertiesReader caches the last property snapshot of a device.
type PropertiesReader struct {
	properties imager.Properties
	lastRead   time.Time
	now        func() time.Time
}

func NewPropertiesReader(device imager.Device, now func() time.Time) (*PropertiesReader, error) {
	if now == nil {
		now = time.Now
	}
	properties, err := device.ReadProperties()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPropertiesRead, err)
	}
	return &PropertiesReader{properties: properties, lastRead: now(), now: now}, nil
}

// Read refreshes the snapshot once the interval has elapsed.
func (r *PropertiesReader) Read(device imager.Device) error {
	now := r.now()
	if now.Sub(r.lastRead) < PropertiesReadInterval {
		return nil
	}
	properties, err := device.ReadProperties()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPropertiesRead, err)
	}
	r.properties = properties
	r.lastRead = now
	return nil
}

func (r *PropertiesReader) Properties() imager.Properties {
	return r.properties
}
