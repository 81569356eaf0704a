// Package follow describes the MCS demand extrapolation engine as seen by the
// debugging tools. The engine itself lives outside this module; tools drive
// it through the Extrapolator interface with explicit, persisted state.
package follow

// BufferSize is the number of demands produced per extrapolation.
const BufferSize = 20

// Axis selects the mount axis to extrapolate.
type Axis int

const (
	AxisAzimuth   Axis = 1
	AxisElevation Axis = 2
)

func (a Axis) String() string {
	switch a {
	case AxisAzimuth:
		return "azimuth"
	case AxisElevation:
		return "elevation"
	default:
		return "unknown"
	}
}

// Demand is one position demand for both axes at an apply time.
type Demand struct {
	ApplyTime float64
	Az        float64
	El        float64
}

// Point is a demand projected onto a single axis.
type Point struct {
	ApplyTime float64
	Position  float64
}

// Limits are the kinematic inputs of one axis for one call.
type Limits struct {
	Offset float64
	Jump   float64
	MaxVel float64
	MaxAcc float64
	CurPos float64
	CurVel float64
	Recent bool
}

// Request is the fixed-shape input of a single extrapolation.
type Request struct {
	Axis   Axis
	Prior  [3]Point
	Limits Limits
}

// State is one extrapolated position and velocity.
type State struct {
	Position float64
	Velocity float64
}

// Response is the fixed-shape output of a single extrapolation.
type Response struct {
	PrevDemand float64
	Buffer     [BufferSize]State
}

// Params is the state the engine carries from one call to the next. It is
// owned by the caller and passed by reference on every call.
type Params struct {
	FirstAzFit bool
	FirstElFit bool

	AzA, AzB, AzC float64
	ElA, ElB, ElC float64

	LastAzVelocity float64
	LastElVelocity float64

	PrevAzVel    float64
	PrevAzDemand [3]float64
	PrevElVel    float64
	PrevElDemand [3]float64
}

// NewParams returns the state expected before the first call.
func NewParams() *Params {
	return &Params{
		FirstAzFit: true,
		FirstElFit: true,
	}
}

// Extrapolator computes future demands from the three previous ones. An
// implementation updates params in place.
type Extrapolator interface {
	FillBuffer(params *Params, req Request) (Response, error)
}
