// Package verify implements the Verification Session Core: the
// per-connection state machine that multiplexes binary video chunks and
// JSON control/IMU frames over a WebSocket, buffers them in a Sensor
// Window, and orchestrates the sensor-fusion, classifier, and
// trust-scoring stages on completion.
package verify

import "time"

// VideoChunk is one binary frame received from the client, stamped with
// server receipt time since the client clock is not trusted.
type VideoChunk struct {
	Bytes []byte
	TS    time.Time
}

// Vector3 is a generic 3-axis linear reading (acceleration).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RotationRate mirrors the browser DeviceMotionEvent.rotationRate shape
// every real mobile client sends: alpha/beta/gamma in degrees/second, not
// x/y/z. Gamma is rotation about the device's front-to-back axis.
type RotationRate struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// IMUSample is one client-reported inertial reading.
type IMUSample struct {
	TS           float64      `json:"ts"`
	Acceleration Vector3      `json:"acceleration"`
	RotationRate RotationRate `json:"rotationRate"`
}

// SensorWindow is the ephemeral per-session buffer owned exclusively by
// the one live connection handling the session. All mutation happens from
// the handler's read loop; nothing else touches it, so it carries no lock.
type SensorWindow struct {
	VideoChunks  []VideoChunk
	IMUSamples   []IMUSample
	GyroGamma    []float64
	OpticalFlowX []float64
	Phase        string
	StartTime    time.Time
}

func NewSensorWindow() *SensorWindow {
	return &SensorWindow{StartTime: time.Now(), Phase: "baseline"}
}

// AppendVideoChunk records a binary frame with server receipt time.
func (w *SensorWindow) AppendVideoChunk(b []byte) {
	w.VideoChunks = append(w.VideoChunks, VideoChunk{Bytes: b, TS: time.Now()})
}

// AppendIMUBatch stores every sample verbatim and extracts gamma into
// GyroGamma, dropping null, NaN, or exactly-zero values per the gyro
// filter: a zero gamma is indistinguishable from a disconnected sensor and
// would otherwise corrupt the correlation.
func (w *SensorWindow) AppendIMUBatch(samples []IMUSample) {
	w.IMUSamples = append(w.IMUSamples, samples...)
	for _, s := range samples {
		g := s.RotationRate.Gamma
		if g != g { // NaN
			continue
		}
		if g == 0 {
			continue
		}
		w.GyroGamma = append(w.GyroGamma, g)
	}
}

// AppendOpticalFlow records one frame-pair's horizontal-flow magnitude.
func (w *SensorWindow) AppendOpticalFlow(x float64) {
	w.OpticalFlowX = append(w.OpticalFlowX, x)
}

// videoBytes concatenates every chunk in arrival order for artifact
// upload.
func (w *SensorWindow) videoBytes() []byte {
	var total int
	for _, c := range w.VideoChunks {
		total += len(c.Bytes)
	}
	out := make([]byte, 0, total)
	for _, c := range w.VideoChunks {
		out = append(out, c.Bytes...)
	}
	return out
}
