package verify

import (
	"encoding/json"
	"testing"
)

// TestIMUSample_UnmarshalsRealWireShape guards against the struct tags
// silently drifting from the DeviceMotionEvent shape real mobile clients
// send (alpha/beta/gamma), which a round-trip test that marshals its own
// fixtures can't catch.
func TestIMUSample_UnmarshalsRealWireShape(t *testing.T) {
	raw := []byte(`{
		"ts": 1.5,
		"acceleration": {"x": 0.1, "y": 0.2, "z": 9.8},
		"rotationRate": {"alpha": 12.5, "beta": -3.25, "gamma": 40.0}
	}`)

	var s IMUSample
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if s.RotationRate.Alpha != 12.5 || s.RotationRate.Beta != -3.25 || s.RotationRate.Gamma != 40.0 {
		t.Fatalf("rotationRate not populated from alpha/beta/gamma wire fields: got %+v", s.RotationRate)
	}
	if s.Acceleration.X != 0.1 || s.Acceleration.Y != 0.2 || s.Acceleration.Z != 9.8 {
		t.Fatalf("acceleration not populated from x/y/z wire fields: got %+v", s.Acceleration)
	}
}

// TestAppendIMUBatch_RealWireShape checks that gamma actually accumulates
// into GyroGamma when samples arrive in the real client's JSON shape,
// not just the Go struct literal shape.
func TestAppendIMUBatch_RealWireShape(t *testing.T) {
	raw := []byte(`[
		{"ts": 0, "acceleration": {"x":0,"y":0,"z":0}, "rotationRate": {"alpha":1,"beta":2,"gamma":5}},
		{"ts": 1, "acceleration": {"x":0,"y":0,"z":0}, "rotationRate": {"alpha":1,"beta":2,"gamma":-7.5}}
	]`)

	var samples []IMUSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w := NewSensorWindow()
	w.AppendIMUBatch(samples)

	if len(w.GyroGamma) != 2 {
		t.Fatalf("expected 2 gamma samples retained, got %d: %v", len(w.GyroGamma), w.GyroGamma)
	}
	if w.GyroGamma[0] != 5 || w.GyroGamma[1] != -7.5 {
		t.Fatalf("gamma values not extracted correctly: %v", w.GyroGamma)
	}
}
