package export

import (
	"context"
	"fmt"

	"gavel/api/internal/archive"
)

// Archive defines the data access the exporter needs
type Archive interface {
	GetSession(ctx context.Context, id string) (archive.SessionRecord, error)
	ListMotions(ctx context.Context, sessionID string) ([]archive.MotionRecord, error)
	ListSpeeches(ctx context.Context, sessionID string) ([]archive.SpeechRecord, error)
	ListResolutions(ctx context.Context, sessionID string) ([]archive.ResolutionRecord, error)
}

// Service provides session minutes export functionality
type Service struct {
	store Archive
}

// NewService creates a new export service
func NewService(store Archive) *Service {
	return &Service{store: store}
}

// Export generates session minutes in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	data, err := s.buildMinutes(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	html, err := RenderMinutesHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, data.SessionName)
	case FormatDOCX:
		return exportDOCX(html, data.SessionName)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func (s *Service) buildMinutes(ctx context.Context, sessionID string) (TemplateData, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	motions, err := s.store.ListMotions(ctx, sessionID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list motions: %w", err)
	}
	speeches, err := s.store.ListSpeeches(ctx, sessionID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list speeches: %w", err)
	}
	resolutions, err := s.store.ListResolutions(ctx, sessionID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list resolutions: %w", err)
	}

	data := TemplateData{
		SessionName: session.Name,
		Chair:       session.Chair,
		Topic:       session.Topic,
		ClosedAt:    session.ClosedAt,
	}

	for _, m := range motions {
		data.Motions = append(data.Motions, TemplateMotion{
			Type:     m.Type,
			Proposal: m.Proposal,
			Proposer: m.Proposer,
			Seconder: m.Seconder,
			Duration: formatClock(m.CaucusSeconds),
		})
	}

	// Speeches arrive ordered by caucus then position, so grouping
	// preserves the delivery order within each caucus.
	var current *TemplateCaucus
	for _, sp := range speeches {
		name := caucusTitle(sp.Caucus)
		if current == nil || current.Name != name {
			data.Caucuses = append(data.Caucuses, TemplateCaucus{Name: name})
			current = &data.Caucuses[len(data.Caucuses)-1]
		}
		current.Speeches = append(current.Speeches, TemplateSpeech{
			Who:      sp.Who,
			Stance:   sp.Stance,
			Duration: formatClock(sp.Duration),
		})
	}

	for _, r := range resolutions {
		data.Resolutions = append(data.Resolutions, TemplateResolution{
			Name:     r.Name,
			Proposer: r.Proposer,
			Seconder: r.Seconder,
			Status:   r.Status,
		})
	}

	return data, nil
}

// caucusTitle turns a caucus key into a heading
func caucusTitle(key string) string {
	switch key {
	case "speakersList":
		return "Speakers List"
	case "":
		return "General Debate"
	default:
		return key
	}
}

// formatClock renders a duration in whole seconds as m:ss
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
