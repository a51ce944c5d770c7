// Package scenarios holds the named worlds the testbed can load.
package scenarios

import (
	"cmp"
	"slices"
	"strings"

	"github.com/san-kum/testbed/internal/testbed"
)

const stressPrefix = "(Stress test)"

var builders = []testbed.Scenario{
	{Name: "Balls", Build: Balls},
	{Name: "Boxes", Build: Boxes},
	{Name: "Domino", Build: Domino},
	{Name: "Joints", Build: Joints},
	{Name: "Kinematic", Build: Kinematic},
	{Name: "Pyramid", Build: Pyramid},
	{Name: "Sensor", Build: Sensor},
	{Name: stressPrefix + " balls", Build: StressBalls},
	{Name: stressPrefix + " joint ball", Build: StressJointBall},
	{Name: stressPrefix + " pyramid", Build: StressPyramid},
}

// All returns every scenario sorted by name, with stress tests last.
func All() []testbed.Scenario {
	out := slices.Clone(builders)
	slices.SortStableFunc(out, func(a, b testbed.Scenario) int {
		sa, sb := isStress(a.Name), isStress(b.Name)
		switch {
		case sa && !sb:
			return 1
		case !sa && sb:
			return -1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Stress returns only the stress tests, in the order of All.
func Stress() []testbed.Scenario {
	return slices.DeleteFunc(All(), func(s testbed.Scenario) bool { return !isStress(s.Name) })
}

// ByName looks a scenario up with the same matching as the --example flag.
func ByName(name string) (testbed.Scenario, error) {
	all := All()
	i, err := testbed.FindScenario(all, name)
	if err != nil {
		return testbed.Scenario{}, err
	}
	return all[i], nil
}

func isStress(name string) bool { return strings.HasPrefix(name, "(") }
