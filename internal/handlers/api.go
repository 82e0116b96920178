package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dermassist/client/internal/capture"
	"dermassist/client/internal/diagnosis"
	"dermassist/client/internal/service"
)

const feedInterval = 100 * time.Millisecond

type uploadResponse struct {
	Accepted bool           `json:"accepted"`
	Capture  capture.Status `json:"capture"`
}

func (h HandlerSet) CaptureStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.capture.Status())
}

// Upload takes the "file" part of a multipart form. Unsupported types are
// ignored and reported as accepted=false with the state untouched.
func (h HandlerSet) Upload(c *gin.Context) {
	if limit := h.cfg.Analysis.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
		return
	}

	accepted := h.capture.Upload(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	c.JSON(http.StatusOK, uploadResponse{Accepted: accepted, Capture: h.capture.Status()})
}

type modeRequest struct {
	Mode string `json:"mode" form:"mode"`
}

func (h HandlerSet) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	mode, err := capture.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_mode"})
		return
	}
	h.cameraOp(c, func(ctx context.Context) error { return h.capture.SetMode(ctx, mode) })
}

func (h HandlerSet) ClearCapture(c *gin.Context) {
	h.cameraOp(c, h.capture.Clear)
}

func (h HandlerSet) OpenCamera(c *gin.Context) {
	h.cameraOp(c, h.capture.Open)
}

func (h HandlerSet) RetryCamera(c *gin.Context) {
	h.cameraOp(c, h.capture.Retry)
}

func (h HandlerSet) FlipCamera(c *gin.Context) {
	h.cameraOp(c, h.capture.Flip)
}

// cameraOp runs a capture operation. Camera failures are part of the
// returned status, not an HTTP error.
func (h HandlerSet) cameraOp(c *gin.Context, op func(context.Context) error) {
	if err := op(c.Request.Context()); err != nil {
		var camErr *capture.CameraError
		if !errors.As(err, &camErr) {
			h.log.Error().Err(err).Msg("capture operation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "capture_failed"})
			return
		}
	}
	c.JSON(http.StatusOK, h.capture.Status())
}

func (h HandlerSet) Shutter(c *gin.Context) {
	if _, err := h.capture.Shutter(c.Request.Context()); err != nil {
		if errors.Is(err, capture.ErrNoStream) {
			c.JSON(http.StatusConflict, gin.H{"error": "camera_not_active"})
			return
		}
		h.log.Warn().Err(err).Msg("snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot_failed"})
		return
	}
	c.JSON(http.StatusOK, h.capture.Status())
}

// CameraFeed streams the live preview as binary JPEG websocket messages.
func (h HandlerSet) CameraFeed(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything; reading detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.capture.Frames(ctx, feedInterval, func(frame []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.BinaryMessage, frame)
	})

	reason := "stream ended"
	if errors.Is(err, capture.ErrNoStream) {
		reason = "camera not active"
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(time.Second))
}

func (h HandlerSet) Analyze(c *gin.Context) {
	if _, err := h.runner.Start(h.capture.Image(), h.sessions.Token()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.AnalysisMessage(err)})
		return
	}
	c.JSON(http.StatusAccepted, newAnalysisResponse(h.runner.Status()))
}

func (h HandlerSet) AnalysisStatus(c *gin.Context) {
	c.JSON(http.StatusOK, newAnalysisResponse(h.runner.Status()))
}

func (h HandlerSet) DismissAnalysisError(c *gin.Context) {
	h.runner.DismissError()
	c.JSON(http.StatusOK, newAnalysisResponse(h.runner.Status()))
}

func (h HandlerSet) HistoryJSON(c *gin.Context) {
	history := h.history.Load(c.Request.Context(), h.sessions.Token())
	scans := make([]gin.H, 0, len(history.Scans))
	for _, s := range history.Scans {
		scans = append(scans, gin.H{
			"id":         s.ID,
			"code":       s.Code,
			"name":       s.Name,
			"risk_level": s.Tier.Label(),
			"confidence": s.Confidence,
			"date":       s.Date,
			"image_url":  s.ImageURL,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"scans":     scans,
		"total":     history.Total,
		"high_risk": history.HighRisk,
		"safe":      history.Safe,
		"error":     history.Error,
	})
}

type featureJSON struct {
	Aspect string `json:"aspect"`
	Text   string `json:"text"`
}

type scoreJSON struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type recommendationJSON struct {
	Title   string   `json:"title"`
	Urgency string   `json:"urgency"`
	Actions []string `json:"actions"`
}

type resultJSON struct {
	Code              string             `json:"code"`
	Name              string             `json:"name"`
	ConfidencePercent float64            `json:"confidence_percent"`
	RiskLevel         string             `json:"risk_level"`
	RiskColor         string             `json:"risk_color"`
	Features          []featureJSON      `json:"features"`
	Recommendation    recommendationJSON `json:"recommendation"`
	Differential      []scoreJSON        `json:"differential"`
}

type analysisResponse struct {
	service.AnalysisStatus
	View *resultJSON `json:"result,omitempty"`
}

func newAnalysisResponse(st service.AnalysisStatus) analysisResponse {
	resp := analysisResponse{AnalysisStatus: st}
	if st.Result != nil {
		resp.View = newResultJSON(*st.Result)
	}
	return resp
}

func newResultJSON(r diagnosis.Result) *resultJSON {
	out := &resultJSON{
		Code:              r.Code,
		Name:              r.Name,
		ConfidencePercent: r.ConfidencePercent(),
		RiskLevel:         r.Tier.Label(),
		RiskColor:         r.Tier.Color(),
		Features:          make([]featureJSON, 0, len(r.Features)),
		Differential:      make([]scoreJSON, 0, len(r.Differential)),
	}
	for _, f := range r.Features {
		out.Features = append(out.Features, featureJSON{Aspect: string(f.Aspect), Text: f.Text})
	}
	out.Recommendation = recommendationJSON{
		Title:   r.Recommendation.Title,
		Urgency: r.Recommendation.Urgency,
		Actions: r.Recommendation.Actions,
	}
	for _, s := range r.Differential {
		out.Differential = append(out.Differential, scoreJSON{Code: s.Code.String(), Name: s.Code.DisplayName(), Percent: s.Percent()})
	}
	return out
}
