package thermometer

import (
	"github.com/alittlebrighter/embd"
	_ "github.com/alittlebrighter/embd/host/rpi"
	"github.com/alittlebrighter/embd/sensor/mcp9808"
)

// MCP9808 is a simple wrapper of an MCP9808 temperature sensor. It has no
// humidity channel.
type MCP9808 struct {
	sensor *mcp9808.MCP9808
}

// NewMCP9808 is the constructor for the MCP9808 wrapper.
func NewMCP9808(bus int) (*MCP9808, error) {
	meter := new(MCP9808)

	var err error
	meter.sensor, err = mcp9808.New(embd.NewI2CBus(byte(bus)))
	if err != nil {
		return nil, err
	}

	meter.sensor.SetShutdownMode(false)
	meter.sensor.SetTempResolution(mcp9808.SixteenthC)
	meter.sensor.SetTempHysteresis(mcp9808.Zero)

	return meter, nil
}

// Measure reads the current ambient temperature from an MCP9808 unit.
func (meter *MCP9808) Measure() (Reading, error) {
	temp, err := meter.sensor.AmbientTemp()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: temp.CelsiusDeg}, nil
}

// Shutdown is the deconstructor for an MCP9808.
func (meter *MCP9808) Shutdown() {
	meter.sensor.SetShutdownMode(true)
	embd.CloseI2C()
}
