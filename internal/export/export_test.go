package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"gavel/api/internal/archive"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Security Council I", "Security-Council-I"},
		{"ECOSOC 2026 (Spring)", "ECOSOC-2026-Spring"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "minutes"},
		{"Very Long Committee Name That Exceeds Fifty Characters Limit", "Very-Long-Committee-Name-That-Exceeds-Fifty-Charac"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{90, "1:30"},
		{600, "10:00"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		if got := formatClock(tt.seconds); got != tt.expected {
			t.Errorf("formatClock(%d) = %q, want %q", tt.seconds, got, tt.expected)
		}
	}
}

func TestRenderMinutesHTML(t *testing.T) {
	data := TemplateData{
		SessionName: "Security Council I",
		Chair:       "chair@example.org",
		Topic:       "Maritime disputes",
		ClosedAt:    time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC),
		Motions: []TemplateMotion{
			{Type: "Moderated Caucus", Proposal: "Sanctions", Proposer: "France", Seconder: "Kenya", Duration: "10:00"},
		},
		Caucuses: []TemplateCaucus{
			{Name: "Speakers List", Speeches: []TemplateSpeech{
				{Who: "France", Stance: "for", Duration: "1:00"},
			}},
		},
		Resolutions: []TemplateResolution{
			{Name: "Draft Resolution 1.0", Proposer: "France", Seconder: "Kenya", Status: "passed"},
		},
	}

	html, err := RenderMinutesHTML(data)
	if err != nil {
		t.Fatalf("RenderMinutesHTML() error = %v", err)
	}

	for _, want := range []string{
		"Security Council I",
		"Maritime disputes",
		"Sanctions",
		"Speakers List",
		"France",
		"Draft Resolution 1.0",
		"Mar 14, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

type fakeArchive struct {
	session     archive.SessionRecord
	motions     []archive.MotionRecord
	speeches    []archive.SpeechRecord
	resolutions []archive.ResolutionRecord
}

func (f *fakeArchive) GetSession(ctx context.Context, id string) (archive.SessionRecord, error) {
	return f.session, nil
}

func (f *fakeArchive) ListMotions(ctx context.Context, sessionID string) ([]archive.MotionRecord, error) {
	return f.motions, nil
}

func (f *fakeArchive) ListSpeeches(ctx context.Context, sessionID string) ([]archive.SpeechRecord, error) {
	return f.speeches, nil
}

func (f *fakeArchive) ListResolutions(ctx context.Context, sessionID string) ([]archive.ResolutionRecord, error) {
	return f.resolutions, nil
}

func TestBuildMinutesGroupsSpeechesByCaucus(t *testing.T) {
	store := &fakeArchive{
		session: archive.SessionRecord{
			ID:    "ses_1",
			Name:  "ECOSOC",
			Chair: "chair@example.org",
		},
		speeches: []archive.SpeechRecord{
			{Caucus: "speakersList", Who: "France", Stance: "for", Duration: 60, Position: 0},
			{Caucus: "speakersList", Who: "Kenya", Stance: "against", Duration: 60, Position: 1},
			{Caucus: "cauc_sanctions", Who: "Brazil", Stance: "neutral", Duration: 30, Position: 0},
		},
	}

	svc := NewService(store)
	data, err := svc.buildMinutes(context.Background(), "ses_1")
	if err != nil {
		t.Fatalf("buildMinutes: %v", err)
	}

	if len(data.Caucuses) != 2 {
		t.Fatalf("got %d caucuses, want 2", len(data.Caucuses))
	}
	if data.Caucuses[0].Name != "Speakers List" {
		t.Errorf("first caucus = %q, want Speakers List", data.Caucuses[0].Name)
	}
	if len(data.Caucuses[0].Speeches) != 2 {
		t.Fatalf("speakers list has %d speeches, want 2", len(data.Caucuses[0].Speeches))
	}
	if data.Caucuses[0].Speeches[0].Who != "France" || data.Caucuses[0].Speeches[1].Who != "Kenya" {
		t.Errorf("speakers list order wrong: %+v", data.Caucuses[0].Speeches)
	}
	if data.Caucuses[1].Name != "cauc_sanctions" || len(data.Caucuses[1].Speeches) != 1 {
		t.Errorf("second caucus wrong: %+v", data.Caucuses[1])
	}
}
