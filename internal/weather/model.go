package weather

import "fmt"

// Model is the part of a prognostic model this module needs: the ordered
// list of variables it takes as input.
type Model interface {
	InputVariables() []string
}

// StaticModel declares a fixed variable order.
type StaticModel []string

// InputVariables implements Model.
func (m StaticModel) InputVariables() []string {
	return append([]string(nil), m...)
}

var pressureLevels = []int{50, 100, 150, 200, 250, 300, 400, 500, 600, 700, 850, 925, 1000}

// SFNOVariables returns the 73 input channels of the SFNO model, in order.
func SFNOVariables() []string {
	vars := []string{"u10m", "v10m", "u100m", "v100m", "t2m", "sp", "msl", "tcwv"}
	for _, prefix := range []string{"u", "v", "z", "t", "q"} {
		for _, level := range pressureLevels {
			vars = append(vars, fmt.Sprintf("%s%d", prefix, level))
		}
	}
	return vars
}

// SFNO returns a Model with the SFNO variable order.
func SFNO() StaticModel {
	return StaticModel(SFNOVariables())
}
