package service

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"dermassist/client/internal/diagnosis"
	"dermassist/client/internal/models"
)

const MsgHistoryUnavailable = "Could not load your scan history."

type ScanLister interface {
	Scans(ctx context.Context, token string) ([]models.Scan, error)
}

type ScanView struct {
	ID         int64
	Code       string
	Name       string
	Tier       diagnosis.Tier
	Confidence int
	Date       string
	ImageURL   string
}

type History struct {
	Scans    []ScanView
	Total    int
	HighRisk int
	Safe     int
	Error    string
}

type HistoryService struct {
	scans ScanLister
	log   zerolog.Logger
}

func NewHistoryService(scans ScanLister, log zerolog.Logger) *HistoryService {
	return &HistoryService{scans: scans, log: log.With().Str("component", "history").Logger()}
}

// Load fetches the scan history. A failure is reported in History.Error
// with an empty list and is never fatal to the page.
func (s *HistoryService) Load(ctx context.Context, token string) History {
	scans, err := s.scans.Scans(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Msg("scan history fetch failed")
		return History{Error: MsgHistoryUnavailable}
	}
	return BuildHistory(scans)
}

func BuildHistory(scans []models.Scan) History {
	h := History{Scans: make([]ScanView, 0, len(scans)), Total: len(scans)}
	for _, scan := range scans {
		view := ScanView{
			ID:   scan.ID,
			Code: scan.PredictedLabel,
			Name: diagnosis.DisplayNameFor(scan.PredictedLabel),
			Tier: scanTier(scan),
			Date: formatScanDate(scan.CreatedAt),
		}
		if scan.ConfidenceScore != nil {
			view.Confidence = int(math.Round(*scan.ConfidenceScore * 100))
		}
		if scan.ImageURL != nil {
			view.ImageURL = *scan.ImageURL
		}
		if view.Tier == diagnosis.TierHigh {
			h.HighRisk++
		}
		h.Scans = append(h.Scans, view)
	}
	h.Safe = h.Total - h.HighRisk
	return h
}

func scanTier(scan models.Scan) diagnosis.Tier {
	if scan.RiskLevel == "" {
		return diagnosis.TierLow
	}
	return diagnosis.ParseTier(scan.RiskLevel)
}

var scanDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

func formatScanDate(raw string) string {
	if raw == "" {
		return "Unknown date"
	}
	for _, layout := range scanDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2 Jan 2006, 03:04 PM")
		}
	}
	return raw
}

// Initials takes the first letter of up to two words of the name.
func Initials(fullName string) string {
	var initials []rune
	for _, word := range strings.Fields(fullName) {
		initials = append(initials, unicode.ToUpper([]rune(word)[0]))
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}
