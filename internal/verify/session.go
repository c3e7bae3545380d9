package verify

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strings"
	"time"

	"github.com/veraproof/verification-core/internal/artifact"
	"github.com/veraproof/verification-core/internal/classifier"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/fusion"
	"github.com/veraproof/verification-core/internal/metrics"
	"github.com/veraproof/verification-core/internal/opticalflow"
	"github.com/veraproof/verification-core/internal/ratelimit"
	"github.com/veraproof/verification-core/internal/trust"
	"github.com/veraproof/verification-core/internal/vsession"
	"github.com/veraproof/verification-core/internal/webhook"
)

const minAlignedSamples = 10

// Deps are the shared collaborators a Handler orchestrates; one Deps is
// constructed at startup and reused across every connection.
type Deps struct {
	Sessions         *vsession.Store
	Concurrency      *ratelimit.ConcurrencyGate
	Classifier       classifier.Classifier
	ClassifierTimeout time.Duration
	Artifacts        artifact.Sink
	Webhooks         *webhook.Dispatcher
	Branding         BrandingProvider
	SessionExtension time.Duration
	SyntheticOpticalFlow bool
}

// conn is the minimal surface Handler needs from a transport; satisfied by
// *websocket.Conn in production and a fake in tests.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close(code int, reason string) error
}

// Handler is the per-connection actor: every Sensor Window mutation and
// every state transition happens inside its Run loop, so nothing here
// needs a lock. External callers (rate limiter, classifier, store) are
// only ever invoked from that same goroutine.
type Handler struct {
	deps      *Deps
	conn      conn
	sessionID string
	tenantID  string
	window    *SensorWindow
	flow      *opticalflow.Computer
	entered   bool
}

func NewHandler(deps *Deps, c conn, sessionID, tenantID string) *Handler {
	return &Handler{
		deps:      deps,
		conn:      c,
		sessionID: sessionID,
		tenantID:  tenantID,
		window:    NewSensorWindow(),
		flow:      opticalflow.NewComputer(opticalflow.DefaultParams),
	}
}

// Run drives the session from BASELINE through COMPLETE (or an error
// close). It owns the connection's lifetime: callers close nothing
// themselves.
func (h *Handler) Run(ctx context.Context) {
	admitted, err := h.deps.Concurrency.Enter(ctx, h.tenantID, h.sessionID)
	if err != nil {
		log.Printf("verify: concurrency gate unavailable for %s: %v", h.sessionID, err)
	} else if !admitted {
		h.closeWithError(1011, "tenant at concurrent session limit")
		return
	}
	if admitted {
		h.entered = true
		defer func() {
			if err := h.deps.Concurrency.Leave(context.Background(), h.tenantID, h.sessionID); err != nil {
				log.Printf("verify: concurrency leave failed for %s: %v", h.sessionID, err)
			}
		}()
	}

	if err := h.deps.Sessions.SetState(ctx, h.sessionID, data.SessionBaseline); err != nil {
		log.Printf("verify: set_state baseline failed for %s: %v", h.sessionID, err)
	}
	newExpiry := time.Now().Add(h.deps.SessionExtension)
	if err := h.deps.Sessions.ExtendExpiry(ctx, h.sessionID, newExpiry); err != nil {
		log.Printf("verify: extend_expiry failed for %s: %v", h.sessionID, err)
	}
	metrics.SessionsActive.Inc()
	metrics.SessionsStartedTotal.Inc()
	defer metrics.SessionsActive.Dec()

	branding, err := h.deps.Branding.Branding(ctx, h.tenantID)
	if err != nil {
		branding = Branding{TenantID: h.tenantID, ProductName: "VeraProof"}
	}
	if err := h.conn.WriteJSON(brandingMessage(branding)); err != nil {
		return
	}
	if err := h.conn.WriteJSON(phaseChangeMessage("baseline")); err != nil {
		return
	}

	for {
		done, err := h.readLoopStep(ctx)
		if err != nil {
			h.fail(ctx, err.Error())
			return
		}
		if done {
			return
		}
	}
}

// readLoopStep reads and dispatches a single frame. Returns done=true once
// the session has reached ANALYZING and been fully resolved.
func (h *Handler) readLoopStep(ctx context.Context) (bool, error) {
	msgType, payload, err := h.conn.ReadMessage()
	if err != nil {
		return true, nil // client disconnect; nothing more to do
	}

	const binaryFrame = 2
	if msgType == binaryFrame {
		h.window.AppendVideoChunk(payload)
		if mag, err := h.flow.Next(payload); err == nil && mag != nil {
			h.window.AppendOpticalFlow(*mag)
		}
		return false, nil
	}

	var env inboundEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false, nil // malformed control frame; ignore rather than abort the session
	}

	switch env.Type {
	case "imu_batch":
		var batch imuBatchPayload
		if err := json.Unmarshal(env.Payload, &batch.Payload); err != nil {
			return false, nil
		}
		h.window.AppendIMUBatch(batch.Payload)
		return false, nil

	case "phase_complete":
		var pc phaseCompletePayload
		if err := json.Unmarshal(env.Payload, &pc); err != nil {
			return false, nil
		}
		return h.advancePhase(ctx, pc.Phase)

	default:
		return false, nil
	}
}

// advancePhase drives baseline->pan->return->ANALYZING. Reaching ANALYZING
// triggers scoring and returns done=true either way (success or error
// close), since the connection's work is finished at that point.
func (h *Handler) advancePhase(ctx context.Context, phase string) (bool, error) {
	switch phase {
	case "baseline":
		h.window.Phase = "pan"
		return false, h.conn.WriteJSON(phaseChangeMessage("pan"))
	case "pan":
		h.window.Phase = "return"
		return false, h.conn.WriteJSON(phaseChangeMessage("return"))
	case "return":
		h.window.Phase = "analyzing"
		if err := h.deps.Sessions.SetState(ctx, h.sessionID, data.SessionAnalyzing); err != nil {
			log.Printf("verify: set_state analyzing failed for %s: %v", h.sessionID, err)
		}
		if err := h.conn.WriteJSON(phaseChangeMessage("analyzing")); err != nil {
			return true, nil
		}
		return true, h.analyze(ctx)
	default:
		return false, nil
	}
}

// analyze runs the two-tier scoring pipeline against the buffered sensor
// streams and persists the outcome. A returned error means the session
// could not be scored at all (insufficient data); everything else is
// handled internally per the degraded-mode policy.
func (h *Handler) analyze(ctx context.Context) error {
	g := h.window.GyroGamma
	f := h.window.OpticalFlowX

	if len(f) == 0 && h.deps.SyntheticOpticalFlow {
		f = syntheticFlow(g)
		log.Printf("verify: %s using synthetic optical flow (dev mode)", h.sessionID)
	}

	if len(g) < minAlignedSamples || len(f) < minAlignedSamples {
		return errInsufficientData
	}

	fusionResult := fusion.Score(g, f)

	var tier2 *int
	if fusionResult.TriggerTier2 && h.deps.Classifier != nil {
		metrics.Tier2TriggeredTotal.Inc()
		score, ok := h.runClassifier(ctx)
		if ok {
			tier2 = &score
		}
	}

	combined := trust.Combine(fusionResult.Tier1Score, tier2)

	videoKey, imuKey, flowKey := h.uploadArtifacts(ctx)

	tier2Value := 0
	if tier2 != nil {
		tier2Value = *tier2
	}
	if err := h.deps.Sessions.SetResults(ctx, h.sessionID, fusionResult.Tier1Score, tier2Value, combined.FinalScore, fusionResult.Correlation, combined.Reasoning); err != nil {
		log.Printf("verify: set_results failed for %s: %v", h.sessionID, err)
	}
	if err := h.deps.Sessions.SetArtifactKeys(ctx, h.sessionID, videoKey, imuKey, flowKey); err != nil {
		log.Printf("verify: set_artifact_keys failed for %s: %v", h.sessionID, err)
	}

	metrics.SessionsCompletedTotal.WithLabelValues(string(combined.Verdict)).Inc()

	h.deps.Webhooks.Dispatch(context.Background(), h.tenantID, h.sessionID, "verification.complete", map[string]any{
		"session_id":          h.sessionID,
		"tier_1_score":        fusionResult.Tier1Score,
		"tier_2_score":        tier2,
		"final_trust_score":   combined.FinalScore,
		"verification_status": string(combined.Verdict),
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	})

	_ = h.conn.WriteJSON(resultMessage(string(combined.Verdict), combined.FinalScore, fusionResult.Correlation, combined.Reasoning))
	_ = h.conn.Close(1000, "complete")
	return nil
}

// runClassifier invokes the Tier-2 classifier with a bounded deadline;
// failure is recovered locally per the CLASSIFIER_UNAVAILABLE policy, not
// surfaced as a session error.
func (h *Handler) runClassifier(ctx context.Context) (int, bool) {
	cctx, cancel := context.WithTimeout(ctx, h.deps.ClassifierTimeout)
	defer cancel()

	videoRef := h.sessionID
	start := time.Now()
	result, err := h.deps.Classifier.Classify(cctx, videoRef)
	metrics.ClassifierLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Printf("verify: classifier unavailable for %s: %v", h.sessionID, err)
		return 0, false
	}
	return classifier.Tier2Score(result), true
}

// uploadArtifacts persists video, IMU, and flow data and returns whatever
// keys the sink produced, nil for any artifact that failed (the sink's own
// degraded-mode marker is not surfaced to the caller as a key).
func (h *Handler) uploadArtifacts(ctx context.Context) (videoKey, imuKey, flowKey *string) {
	if v, err := h.deps.Artifacts.PutVideo(ctx, h.tenantID, h.sessionID, h.window.videoBytes()); err == nil && !strings.HasPrefix(v, artifact.DegradedKeyPrefix) {
		videoKey = &v
	}
	if v, err := h.deps.Artifacts.PutIMU(ctx, h.tenantID, h.sessionID, h.window.IMUSamples); err == nil && !strings.HasPrefix(v, artifact.DegradedKeyPrefix) {
		imuKey = &v
	}
	if v, err := h.deps.Artifacts.PutFlow(ctx, h.tenantID, h.sessionID, h.window.OpticalFlowX); err == nil && !strings.HasPrefix(v, artifact.DegradedKeyPrefix) {
		flowKey = &v
	}
	return
}

// fail leaves the session's last stored state untouched (per the non-
// terminal-failure contract), emits a client error event, and closes.
func (h *Handler) fail(ctx context.Context, message string) {
	_ = h.conn.WriteJSON(errorMessage(message))
	_ = h.conn.Close(1011, message)
}

func (h *Handler) closeWithError(code int, message string) {
	_ = h.conn.WriteJSON(errorMessage(message))
	_ = h.conn.Close(code, message)
}

var errInsufficientData = insufficientDataErr{}

type insufficientDataErr struct{}

func (insufficientDataErr) Error() string { return "insufficient sensor data to score session" }

// syntheticFlow deterministically derives a development-mode stand-in for F
// from G with a bounded perturbation, used only when SyntheticOpticalFlow is
// enabled. Production must never reach this path; callers gate it on the flag.
func syntheticFlow(g []float64) []float64 {
	f := make([]float64, len(g))
	for i, v := range g {
		f[i] = v*2 + math.Sin(float64(i))*0.05
	}
	return f
}
