package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dermassist/client/internal/backend"
	"dermassist/client/internal/diagnosis"
	"dermassist/client/internal/models"
)

var ErrNoImage = errors.New("no image selected")

const (
	MsgNoImage        = "Please select an image first"
	MsgAnalyzeFailure = "Failed to analyze image. Please ensure the backend server is running."
)

// AnalysisStages are the steps of the progress indicator.
var AnalysisStages = []string{
	"Preparing Image",
	"Lesion Segmentation",
	"Pattern Analysis",
	"Risk Classification",
}

type Predictor interface {
	Predict(ctx context.Context, token string, image *models.CapturedImage) (models.Prediction, error)
}

// AnalysisError carries the message shown in the error banner.
type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string { return "analyze: " + e.Err.Error() }
func (e *AnalysisError) Unwrap() error { return e.Err }

// AnalysisMessage returns the banner text for an Analyze error.
func AnalysisMessage(err error) string {
	var analysisErr *AnalysisError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoImage):
		return MsgNoImage
	case errors.As(err, &analysisErr):
		return analysisErr.Message
	default:
		return MsgAnalyzeFailure
	}
}

type AnalysisService struct {
	predictor   Predictor
	minDuration time.Duration
	log         zerolog.Logger
}

func NewAnalysisService(predictor Predictor, minDuration time.Duration, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		predictor:   predictor,
		minDuration: minDuration,
		log:         log.With().Str("component", "analysis").Logger(),
	}
}

// Analyze submits the image to /predict. A successful result is held back
// until minDuration has passed since the call started, so the caller sees
// max(minDuration, latency). Failures are returned as soon as they happen
// and are never retried. An empty token submits anonymously.
func (s *AnalysisService) Analyze(ctx context.Context, image *models.CapturedImage, token string) (models.Prediction, error) {
	if image == nil || len(image.Data) == 0 {
		return models.Prediction{}, ErrNoImage
	}

	pacing := time.NewTimer(s.minDuration)
	defer pacing.Stop()

	started := time.Now()
	prediction, err := s.predictor.Predict(ctx, token, image)
	if err != nil {
		if ctx.Err() != nil {
			return models.Prediction{}, ctx.Err()
		}
		message := backend.Detail(err)
		if message == "" {
			message = MsgAnalyzeFailure
		}
		s.log.Warn().Err(err).Str("image_id", image.ID).Msg("analysis failed")
		return models.Prediction{}, &AnalysisError{Message: message, Err: err}
	}

	s.log.Info().
		Str("image_id", image.ID).
		Str("diagnosis", prediction.Diagnosis).
		Float64("confidence", prediction.Confidence).
		Dur("latency", time.Since(started)).
		Msg("analysis complete")

	select {
	case <-pacing.C:
		return prediction, nil
	case <-ctx.Done():
		return models.Prediction{}, ctx.Err()
	}
}

// AnalysisStatus is what the home page polls while a run is in progress.
type AnalysisStatus struct {
	Analyzing  bool               `json:"analyzing"`
	Stage      int                `json:"stage"`
	StageLabel string             `json:"stage_label,omitempty"`
	Stages     []string           `json:"stages"`
	ImageID    string             `json:"image_id,omitempty"`
	Prediction *models.Prediction `json:"prediction,omitempty"`
	Result     *diagnosis.Result  `json:"-"`
	Error      string             `json:"error,omitempty"`
}

// Runner keeps the state of the current analysis for the web UI. Only one
// run is live at a time; starting a new one or resetting cancels the old.
type Runner struct {
	svc           *AnalysisService
	stageInterval time.Duration
	log           zerolog.Logger
	now           func() time.Time

	mu         sync.Mutex
	run        uint64
	cancel     context.CancelFunc
	analyzing  bool
	started    time.Time
	imageID    string
	prediction *models.Prediction
	errMsg     string
}

func NewRunner(svc *AnalysisService, stageInterval time.Duration, log zerolog.Logger) *Runner {
	if stageInterval <= 0 {
		stageInterval = 1200 * time.Millisecond
	}
	return &Runner{
		svc:           svc,
		stageInterval: stageInterval,
		log:           log.With().Str("component", "runner").Logger(),
		now:           time.Now,
	}
}

// Start begins analysing image in the background. The returned channel is
// closed when this run settles or is superseded.
func (r *Runner) Start(image *models.CapturedImage, token string) (<-chan struct{}, error) {
	done := make(chan struct{})

	r.mu.Lock()
	r.stopLocked()
	if image == nil {
		r.errMsg = MsgNoImage
		r.mu.Unlock()
		close(done)
		return done, ErrNoImage
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.run++
	run := r.run
	r.cancel = cancel
	r.analyzing = true
	r.started = r.now()
	r.imageID = image.ID
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		prediction, err := r.svc.Analyze(ctx, image, token)

		r.mu.Lock()
		defer r.mu.Unlock()
		if run != r.run {
			return
		}
		r.analyzing = false
		r.cancel = nil
		if err != nil {
			r.errMsg = AnalysisMessage(err)
			return
		}
		r.prediction = &prediction
	}()

	return done, nil
}

// Reset cancels any run in flight and discards its result.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// DismissError clears the error banner.
func (r *Runner) DismissError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = ""
}

func (r *Runner) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.run++
	r.analyzing = false
	r.imageID = ""
	r.prediction = nil
	r.errMsg = ""
}

func (r *Runner) Status() AnalysisStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := AnalysisStatus{
		Analyzing: r.analyzing,
		Stages:    AnalysisStages,
		ImageID:   r.imageID,
		Error:     r.errMsg,
	}
	if r.analyzing {
		elapsed := r.now().Sub(r.started)
		st.Stage = int(elapsed/r.stageInterval) % len(AnalysisStages)
		st.StageLabel = AnalysisStages[st.Stage]
	}
	if r.prediction != nil {
		prediction := *r.prediction
		result := diagnosis.Present(prediction)
		st.Prediction = &prediction
		st.Result = &result
	}
	return st
}
