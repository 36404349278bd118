package mapping

// Edges is the difference between two consecutive abstract states.
type Edges struct {
	Touched   uint64
	Pressed   uint64
	Unpressed uint64
	Untouched uint64
	Axes      [AxisCount]bool
}

func Diff(prev, next State) Edges {
	touched := prev.Touched ^ next.Touched
	pressed := prev.Pressed ^ next.Pressed
	e := Edges{
		Touched:   touched & next.Touched,
		Pressed:   pressed & next.Pressed,
		Unpressed: pressed &^ next.Pressed,
		Untouched: touched &^ next.Touched,
	}
	for i := range next.Axes {
		e.Axes[i] = prev.Axes[i] != next.Axes[i]
	}
	return e
}

func (e Edges) Empty() bool {
	if e.Touched|e.Pressed|e.Unpressed|e.Untouched != 0 {
		return false
	}
	for _, changed := range e.Axes {
		if changed {
			return false
		}
	}
	return true
}
