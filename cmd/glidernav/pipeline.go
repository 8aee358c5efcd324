package main

import (
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"glidernav/internal/ahrs"
	"glidernav/internal/config"
	"glidernav/internal/filter"
	"glidernav/internal/magcal"
	"glidernav/internal/navmath"
	"glidernav/internal/nmea"
	"glidernav/internal/observer"
	"glidernav/internal/replay"
	"glidernav/internal/sensors"
	"glidernav/internal/web"

	"gonum.org/v1/gonum/spatial/r3"
)

// airDensity is the ISA sea level density used to turn IAS back into the
// pitot pressure reported on $POV.
const airDensity = 1.225

// output is a named NMEA destination.
type output struct {
	name   string
	w      io.Writer
	errors int
}

// pipeline runs the fusion core for one tick at a time:
// AHRS, then flight observer, then wind averager, then outputs.
type pipeline struct {
	cfg    config.Config
	est    *ahrs.Estimator
	obs    *observer.Observer
	store  magcal.Store
	wind   *filter.VecLowPass
	status *web.Status
	hub    *web.Hub
	rec    *replay.Writer
	outs   []*output

	origin    time.Time
	ticks     int
	nmeaEvery int
	ready     bool
	fix       bool
	resets    int
	windAvg   r3.Vec
	buf       []byte
	pending   []byte
}

func newPipeline(cfg config.Config, store magcal.Store, status *web.Status, hub *web.Hub) (*pipeline, error) {
	cal, err := magcal.Open(store)
	if err != nil {
		return nil, fmt.Errorf("calibration store: %w", err)
	}
	p := &pipeline{
		cfg:       cfg,
		store:     store,
		status:    status,
		hub:       hub,
		origin:    time.Now().UTC(),
		nmeaEvery: int(cfg.Output.NMEAInterval / cfg.SamplePeriod),
		buf:       make([]byte, 0, 1024),
	}
	if p.status == nil {
		p.status = web.NewStatus()
	}
	p.est, err = ahrs.New(cfg.AHRSConfig(), cal, ahrs.ReporterFunc(p.calibrationChanged))
	if err != nil {
		return nil, err
	}
	ocfg := cfg.ObserverConfig()
	p.obs, err = observer.New(ocfg)
	if err != nil {
		return nil, err
	}
	windRate := 1 / (ocfg.SamplePeriod * float64(ocfg.WindDecimation))
	p.wind = filter.NewVecLowPass(cfg.Observer.WindAverageCutoffHz, windRate)
	if cal.Done() {
		log.Printf("magnetic calibration loaded from store")
	}
	return p, nil
}

func (p *pipeline) addOutput(name string, w io.Writer) {
	p.outs = append(p.outs, &output{name: name, w: w})
}

// elapsed is the sample time of the latest tick.
func (p *pipeline) elapsed() time.Duration {
	return time.Duration(p.ticks) * p.cfg.SamplePeriod
}

// handle processes one sensor tick.
func (p *pipeline) handle(tk sensors.Tick) error {
	p.ticks++
	if p.rec != nil {
		if err := p.rec.WriteTick(p.elapsed(), tk); err != nil {
			return fmt.Errorf("record tick: %w", err)
		}
	}

	pressureNegAlt := -sensors.PressureAltitude(tk.StaticPressure)
	gnssNegAlt := pressureNegAlt
	if tk.GNSSFix {
		gnssNegAlt = tk.GNSSNegAltitude
	}

	if !p.ready {
		if err := p.est.Setup(tk.Acc, tk.Mag); err != nil {
			log.Printf("ahrs setup skipped at t=%s: %v", p.elapsed(), err)
			p.status.MarkTick(time.Time{}, 0)
			return nil
		}
		p.ready = true
		p.fix = tk.GNSSFix
		p.obs.Reset(pressureNegAlt, gnssNegAlt)
		p.resets++
		log.Printf("ahrs setup t=%s mode=%s gnss_fix=%v", p.elapsed(), ahrs.SelectMode(p.ahrsInput(tk)), tk.GNSSFix)
	} else if tk.GNSSFix != p.fix {
		p.fix = tk.GNSSFix
		p.obs.Reset(pressureNegAlt, gnssNegAlt)
		p.resets++
		log.Printf("gnss fix=%v at t=%s, vertical estimators reset", tk.GNSSFix, p.elapsed())
	}

	p.est.Update(p.ahrsInput(tk))

	p.obs.Update(observer.Input{
		GNSSVelocity:        tk.GNSSVelocity,
		GNSSAcceleration:    tk.GNSSAcceleration,
		NavAcceleration:     p.est.NavAcceleration(),
		HeadingVector:       p.est.HeadingVector(),
		GNSSNegAltitude:     gnssNegAlt,
		PressureNegAltitude: pressureNegAlt,
		TAS:                 tk.TAS,
		IAS:                 tk.IAS,
		Circling:            p.est.CirclingState(),
		WindAverage:         p.windAvg,
		GNSSFix:             tk.GNSSFix,
	})
	if w, ok := p.obs.WindSample(); ok {
		p.windAvg = p.wind.Respond(w)
	}

	sent := 0
	if p.nmeaEvery <= 1 || p.ticks%p.nmeaEvery == 0 {
		sent = p.emit(tk)
		p.publish(tk)
	}
	p.status.MarkTick(time.Time{}, sent)
	return nil
}

func (p *pipeline) ahrsInput(tk sensors.Tick) ahrs.Input {
	return ahrs.Input{
		Gyro:                tk.Gyro,
		Acc:                 tk.Acc,
		Mag:                 tk.Mag,
		GNSSAcceleration:    tk.GNSSAcceleration,
		GNSSHeading:         tk.GNSSHeading,
		GNSSHeadingValid:    tk.GNSSHeadingValid,
		MagnetometerTrusted: tk.MagTrusted,
	}
}

func (p *pipeline) nmeaOutput(tk sensors.Tick) nmea.Output {
	e := p.est.Euler()
	out := nmea.Output{
		Fix: nmea.Fix{
			Time:      p.origin.Add(p.elapsed()),
			Valid:     tk.GNSSFix,
			Latitude:  tk.Latitude,
			Longitude: tk.Longitude,
			Speed:     math.Hypot(tk.GNSSVelocity.X, tk.GNSSVelocity.Y),
			Track:     math.Atan2(tk.GNSSVelocity.Y, tk.GNSSVelocity.X),
			Altitude:  -tk.GNSSNegAltitude,
		},
		Wind: p.windAvg,
		Air: nmea.AirData{
			TAS:            tk.TAS,
			StaticPressure: tk.StaticPressure,
			PitotPressure:  0.5 * airDensity * tk.IAS * tk.IAS,
			Vario:          p.obs.GNSSVario(),
			SupplyVoltage:  p.cfg.Output.SupplyVoltage,
		},
		Roll:    e.Roll,
		Nick:    e.Nick,
		Yaw:     e.Yaw,
		Heading: e.Yaw,
	}
	if tk.GNSSFix {
		out.Fix.Satellites = 12
	}
	return out
}

// emit formats the sentence block, prefixed by any pending calibration
// report, and writes it to every output.
func (p *pipeline) emit(tk sensors.Tick) int {
	p.buf = append(p.buf[:0], p.pending...)
	p.pending = p.pending[:0]
	p.buf = nmea.AppendAll(p.buf, p.nmeaOutput(tk))
	return p.send(p.buf)
}

func (p *pipeline) send(b []byte) int {
	sent := 0
	for _, o := range p.outs {
		n, err := o.w.Write(b)
		if err != nil {
			o.errors++
			if o.errors == 1 || o.errors%100 == 0 {
				log.Printf("output %s write failed (%d errors): %v", o.name, o.errors, err)
			}
			continue
		}
		sent += n
	}
	return sent
}

func (p *pipeline) publish(tk sensors.Tick) {
	if p.hub == nil {
		return
	}
	p.hub.Publish(web.Telemetry{
		Time:       p.origin.Add(p.elapsed()).Format(time.RFC3339Nano),
		ElapsedSec: p.elapsed().Seconds(),
		AHRS:       p.est.Snapshot(),
		Observer:   p.obs.Snapshot(),
		WindNorth:  p.windAvg.X,
		WindEast:   p.windAvg.Y,
		GNSSFix:    tk.GNSSFix,
	})
}

// calibrationChanged persists a new magnetometer calibration and queues the
// $PLMAG report for the next output block.
func (p *pipeline) calibrationChanged(rep magcal.Report, src ahrs.Source) {
	ind := r3.Vec{X: rep.NavInduction[0], Y: rep.NavInduction[1], Z: rep.NavInduction[2]}
	log.Printf("magnetic calibration changed src=%c t=%s std_dev=%.4f inclination_deg=%.1f",
		src, p.elapsed(), rep.NavInductionStdDev, math.Asin(ind.Z/r3.Norm(ind))*180/math.Pi)
	if err := p.store.Save(rep); err != nil {
		log.Printf("magnetic calibration save failed: %v", err)
	}
	p.status.SetCalibration(time.Time{}, string(rune(src)), rep)
	p.pending = nmea.AppendCalibration(p.pending, byte(src), rep)
}

// heading returns the current true heading in degrees, for logging.
func (p *pipeline) heading() float64 {
	h := navmath.WrapPi(p.est.Euler().Yaw) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}
