package adc

import "fmt"

// AttrName returns the sysfs attribute holding the raw value of a channel.
func AttrName(channel int) string {
	return fmt.Sprintf("in_voltage%d_raw", channel)
}
