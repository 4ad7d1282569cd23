package sensor

import (
	"fmt"
	"strings"
)

// Unit is a temperature unit
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
	Kelvin
)

func (u Unit) String() string {
	switch u {
	case Fahrenheit:
		return "fahrenheit"
	case Kelvin:
		return "kelvin"
	default:
		return "celsius"
	}
}

// Symbol returns the short unit suffix used in log output
func (u Unit) Symbol() string {
	switch u {
	case Fahrenheit:
		return "°F"
	case Kelvin:
		return "K"
	default:
		return "°C"
	}
}

// FromCelsius converts a Celsius value to u
func (u Unit) FromCelsius(c float64) float64 {
	switch u {
	case Fahrenheit:
		return c*9/5 + 32
	case Kelvin:
		return c + 273.15
	default:
		return c
	}
}

// ParseUnit parses a unit name; the empty string means Celsius
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "k", "kelvin":
		return Kelvin, nil
	}
	return Celsius, fmt.Errorf("unknown temperature unit %q", s)
}
