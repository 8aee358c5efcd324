package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"glidernav/internal/navmath"
	"glidernav/internal/sensors"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	earthRadius = 6371000.0

	// Roll dynamics toward the bank angle of a coordinated turn.
	rollTimeConstant = 1.0  // s
	maxRollRate      = 0.35 // rad/s
)

// Truth is the simulated flight state after the latest sample.
type Truth struct {
	Attitude navmath.Euler
	Velocity r3.Vec // ground velocity NED
	Wind     r3.Vec
	Altitude float64
	TurnRate float64
}

// Flight integrates a coordinated glider flight along a Scenario and
// synthesizes the sensor readings for each sample.
type Flight struct {
	scn  *Scenario
	ts   float64
	step time.Duration

	elapsed time.Duration

	roll, nick, yaw float64
	yawRate         float64
	pos             r3.Vec
	vel             r3.Vec
	wind            r3.Vec
	field           r3.Vec

	lat0, lon0, alt0 float64

	rng *rand.Rand
}

func NewFlight(scn *Scenario, samplePeriod time.Duration) (*Flight, error) {
	if scn == nil {
		return nil, fmt.Errorf("sim: scenario is nil")
	}
	if samplePeriod <= 0 {
		return nil, fmt.Errorf("sim: sample period must be > 0")
	}
	s := scn.Script()
	inc := deg2rad(s.Field.InclinationDeg)
	dec := deg2rad(s.Field.DeclinationDeg)
	f := &Flight{
		scn:  scn,
		ts:   samplePeriod.Seconds(),
		step: samplePeriod,
		yaw:  navmath.WrapPi(deg2rad(s.Start.HeadingDeg)),
		wind: r3.Vec{X: s.Wind.NorthMps, Y: s.Wind.EastMps},
		field: r3.Vec{
			X: math.Cos(inc) * math.Cos(dec),
			Y: math.Cos(inc) * math.Sin(dec),
			Z: math.Sin(inc),
		},
		lat0: s.Start.LatDeg,
		lon0: s.Start.LonDeg,
		alt0: s.Start.AltM,
		rng:  rand.New(rand.NewSource(s.Sensors.NoiseSeed)),
	}
	c := scn.ConditionAt(0)
	f.nick = math.Asin(c.Climb / c.TAS)
	f.vel = f.groundVelocity(c)
	return f, nil
}

func (f *Flight) groundVelocity(c FlightCondition) r3.Vec {
	h := math.Sqrt(c.TAS*c.TAS - c.Climb*c.Climb)
	return r3.Vec{
		X: h*math.Cos(f.yaw) + f.wind.X,
		Y: h*math.Sin(f.yaw) + f.wind.Y,
		Z: -c.Climb,
	}
}

// Elapsed is the time of the latest sample.
func (f *Flight) Elapsed() time.Duration { return f.elapsed }

func (f *Flight) Truth() Truth {
	return Truth{
		Attitude: navmath.Euler{Roll: f.roll, Nick: f.nick, Yaw: f.yaw},
		Velocity: f.vel,
		Wind:     f.wind,
		Altitude: f.alt0 - f.pos.Z,
		TurnRate: f.yawRate,
	}
}

// Next advances by one sample period. It returns false once the scenario
// duration has been passed.
func (f *Flight) Next() (sensors.Tick, bool) {
	if f.elapsed+f.step > f.scn.Duration() {
		return sensors.Tick{}, false
	}
	f.elapsed += f.step
	c := f.scn.ConditionAt(f.elapsed)
	ts := f.ts

	targetRoll := math.Atan(c.TAS * c.TurnRate / navmath.Gravity)
	rollRate := clamp((targetRoll-f.roll)/rollTimeConstant, maxRollRate)
	targetNick := math.Asin(c.Climb / c.TAS)
	nickRate := (targetNick - f.nick) / ts

	midRoll := f.roll + 0.5*rollRate*ts
	midNick := f.nick + 0.5*nickRate*ts
	hSpeed := math.Sqrt(c.TAS*c.TAS - c.Climb*c.Climb)
	f.yawRate = navmath.Gravity * math.Tan(midRoll) / hSpeed

	sr, cr := math.Sin(midRoll), math.Cos(midRoll)
	sp, cp := math.Sin(midNick), math.Cos(midNick)
	gyro := r3.Vec{
		X: rollRate - f.yawRate*sp,
		Y: nickRate*cr + f.yawRate*cp*sr,
		Z: -nickRate*sr + f.yawRate*cp*cr,
	}

	f.roll += rollRate * ts
	f.nick = targetNick
	f.yaw = navmath.WrapPi(f.yaw + f.yawRate*ts)

	prevVel := f.vel
	f.vel = f.groundVelocity(c)
	acc := r3.Scale(1/ts, r3.Sub(f.vel, prevVel))
	f.pos = r3.Add(f.pos, r3.Scale(ts, f.vel))

	body2nav := navmath.RotationMatrix(navmath.FromEuler(navmath.Euler{Roll: f.roll, Nick: f.nick, Yaw: f.yaw}))
	specific := body2nav.ReverseMap(r3.Sub(acc, r3.Vec{Z: navmath.Gravity}))
	magBody := body2nav.ReverseMap(f.field)

	sn := f.scn.Script().Sensors
	var mag r3.Vec
	mag.X = sn.MagOffset[0] + sn.MagScale[0]*magBody.X
	mag.Y = sn.MagOffset[1] + sn.MagScale[1]*magBody.Y
	mag.Z = sn.MagOffset[2] + sn.MagScale[2]*magBody.Z

	gyro = r3.Add(gyro, r3.Vec{X: sn.GyroBias[0], Y: sn.GyroBias[1], Z: sn.GyroBias[2]})
	if sn.GyroNoise > 0 {
		gyro = r3.Add(gyro, f.noise(sn.GyroNoise))
	}
	if sn.AccNoise > 0 {
		specific = r3.Add(specific, f.noise(sn.AccNoise))
	}

	alt := f.alt0 - f.pos.Z
	static := sensors.StaticPressure(alt)
	tick := sensors.Tick{
		Gyro:           gyro,
		Acc:            specific,
		Mag:            mag,
		MagTrusted:     sn.MagTrusted,
		StaticPressure: static,
		TAS:            c.TAS,
		IAS:            c.TAS * math.Sqrt(densityRatio(alt)),
	}
	if c.GNSSFix {
		tick.GNSSFix = true
		tick.GNSSVelocity = f.vel
		tick.GNSSAcceleration = acc
		tick.GNSSNegAltitude = -alt
		tick.Latitude = f.lat0 + rad2deg(f.pos.X/earthRadius)
		tick.Longitude = f.lon0 + rad2deg(f.pos.Y/(earthRadius*math.Cos(deg2rad(f.lat0))))
		if sn.DGNSSHeading {
			tick.GNSSHeading = f.yaw
			tick.GNSSHeadingValid = true
		}
	}
	return tick, true
}

func (f *Flight) noise(std float64) r3.Vec {
	return r3.Vec{
		X: f.rng.NormFloat64() * std,
		Y: f.rng.NormFloat64() * std,
		Z: f.rng.NormFloat64() * std,
	}
}

// densityRatio is the ISA air density relative to sea level.
func densityRatio(alt float64) float64 {
	t := 1 - 0.0065*alt/288.15
	return math.Pow(t, 4.25588)
}

func clamp(x, limit float64) float64 {
	if x > limit {
		return limit
	}
	if x < -limit {
		return -limit
	}
	return x
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
