package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"gavel/api/internal/archive"
	"gavel/api/internal/committee"
	"gavel/api/internal/config"
	"gavel/api/internal/docstore"
	"gavel/api/internal/export"
	"gavel/api/internal/notify"
	"gavel/api/internal/present"
	"gavel/api/internal/resrepo"
	"gavel/api/internal/search"
	"gavel/api/internal/timer"
	"gavel/api/internal/util"
)

// sessionDoc is the assembled subtree at sessions/{id}: the session leaf
// merged with its child collections.
type sessionDoc struct {
	committee.Session
	Caucuses    map[string]committee.CaucusState    `json:"caucuses"`
	Motions     map[string]committee.MotionData     `json:"motions"`
	Members     map[string]committee.Member         `json:"members"`
	Resolutions map[string]committee.ResolutionData `json:"resolutions"`
	UnmodTimer  committee.TimerState                `json:"unmodTimer"`
}

// RankedMotion is one motion with its computed agenda position.
type RankedMotion struct {
	Key      string               `json:"key"`
	Position int                  `json:"position"`
	Verb     string               `json:"verb"`
	Motion   committee.MotionData `json:"motion"`
}

// EnqueueSpeakerInput describes a speaker joining a queue.
type EnqueueSpeakerInput struct {
	Who      string           `json:"who"`
	Stance   committee.Stance `json:"stance"`
	Duration int              `json:"duration"`
}

// AmendResolutionInput carries an amended operative text.
type AmendResolutionInput struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

type archiveStore interface {
	RecordSession(ctx context.Context, session archive.SessionRecord, motions []archive.MotionRecord, speeches []archive.SpeechRecord, resolutions []archive.ResolutionRecord) error
	GetSession(ctx context.Context, id string) (archive.SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]archive.SessionRecord, error)
	ListMotions(ctx context.Context, sessionID string) ([]archive.MotionRecord, error)
	ListSpeeches(ctx context.Context, sessionID string) ([]archive.SpeechRecord, error)
	ListResolutions(ctx context.Context, sessionID string) ([]archive.ResolutionRecord, error)
	Ping(ctx context.Context) error
}

type timerHandle struct {
	engine *timer.Engine
	cancel context.CancelFunc
}

// Service owns the live session state in the document store and the
// downstream archive, search, export and resolution-history services.
type Service struct {
	cfg      config.Config
	store    *docstore.RedisStore
	notifier *notify.Notifier
	archive  archiveStore
	search   *search.Service
	export   *export.Service
	resrepos *resrepo.Service

	mu     sync.Mutex
	hubs   map[string]*present.Hub
	timers map[string]*timerHandle
}

// New creates the service. archiveStore, search, export and resrepos may be
// nil when the corresponding subsystem is not configured.
func New(cfg config.Config, store *docstore.RedisStore, notifier *notify.Notifier, arch archiveStore, searchSvc *search.Service, exportSvc *export.Service, resrepos *resrepo.Service) *Service {
	if notifier == nil {
		notifier = notify.New()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		archive:  arch,
		search:   searchSvc,
		export:   exportSvc,
		resrepos: resrepos,
		hubs:     make(map[string]*present.Hub),
		timers:   make(map[string]*timerHandle),
	}
}

// Close stops all running timer engines.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, handle := range s.timers {
		handle.cancel()
		delete(s.timers, id)
	}
}

func (s *Service) Notifier() *notify.Notifier {
	return s.notifier
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Ping(ctx); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func (s *Service) clientFor(actor docstore.Actor) *docstore.Client {
	return s.store.As(actor, docstore.DefaultRules, s.notifier)
}

// ActorFrom resolves the acting viewer. A matching chair token grants the
// chair role regardless of the member header; a member name alone makes a
// delegate; everyone else observes.
func (s *Service) ActorFrom(token, member string) docstore.Actor {
	if token != "" && token == s.cfg.ChairToken {
		if member == "" {
			member = "chair"
		}
		return docstore.Actor{ID: member, Role: docstore.RoleChair}
	}
	if member != "" {
		return docstore.Actor{ID: member, Role: docstore.RoleDelegate}
	}
	return docstore.Actor{ID: "anonymous", Role: docstore.RoleObserver}
}

func sessionPath(id string) string { return docstore.Join("sessions", id) }

func caucusPath(sessionID, caucusID string) string {
	return docstore.Join("sessions", sessionID, "caucuses", caucusID)
}

func motionPath(sessionID, motionID string) string {
	return docstore.Join("sessions", sessionID, "motions", motionID)
}

func memberPath(sessionID, name string) string {
	return docstore.Join("sessions", sessionID, "members", name)
}

func resolutionPath(sessionID, resolutionID string) string {
	return docstore.Join("sessions", sessionID, "resolutions", resolutionID)
}

func unmodTimerPath(sessionID string) string {
	return docstore.Join("sessions", sessionID, "unmodTimer")
}

func requireChair(actor docstore.Actor) error {
	if actor.Role != docstore.RoleChair {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Chair only", nil)
	}
	return nil
}

// systemActor writes on behalf of the service itself (timer ticks,
// approval side effects driven by the chair).
var systemActor = docstore.Actor{ID: "system", Role: docstore.RoleChair}

// CreateSession opens a new committee session with a default unmoderated
// timer and an open speakers list.
func (s *Service) CreateSession(ctx context.Context, actor docstore.Actor, name, topic string) (string, error) {
	if err := requireChair(actor); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	id := util.NewID("ses")
	client := s.clientFor(actor)
	client.Write(ctx, sessionPath(id), committee.Session{
		Name:   name,
		Chair:  actor.ID,
		Topic:  topic,
		Status: committee.SessionOpen,
	})
	client.Write(ctx, unmodTimerPath(id), committee.DefaultTimer())
	client.Write(ctx, caucusPath(id, "speakersList"), committee.DefaultCaucus("Speakers List"))

	s.ensureTimer(id)
	return id, nil
}

// GetSession returns the assembled session subtree.
func (s *Service) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := s.store.Get(ctx, sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if raw == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
	}
	return raw, nil
}

func (s *Service) sessionDoc(ctx context.Context, id string) (sessionDoc, error) {
	raw, err := s.GetSession(ctx, id)
	if err != nil {
		return sessionDoc{}, err
	}
	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return sessionDoc{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return doc, nil
}

// CloseSession records the session into the archive, indexes it for search
// and marks the live record closed. The live subtree stays in the store;
// Redis owns live state and the archive is a one-shot downstream record.
func (s *Service) CloseSession(ctx context.Context, actor docstore.Actor, id string) (map[string]any, error) {
	if err := requireChair(actor); err != nil {
		return nil, err
	}
	doc, err := s.sessionDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == committee.SessionClosed {
		return nil, domainError(http.StatusConflict, "ALREADY_CLOSED", "Session already closed", nil)
	}

	archived := false
	if s.archive != nil {
		record, motions, speeches, resolutions := buildArchiveRecords(id, doc)
		if err := s.archive.RecordSession(ctx, record, motions, speeches, resolutions); err != nil {
			return nil, fmt.Errorf("archive session: %w", err)
		}
		archived = true
		if s.search != nil {
			for _, m := range motions {
				s.search.IndexMotion(search.MotionDoc{
					ID:        m.ID,
					Proposal:  m.Proposal,
					Proposer:  m.Proposer,
					Type:      m.Type,
					SessionID: id,
				})
			}
			for _, r := range resolutions {
				s.search.IndexResolution(search.ResolutionDoc{
					ID:        r.ID,
					Name:      r.Name,
					Text:      r.Text,
					Proposer:  r.Proposer,
					Status:    r.Status,
					SessionID: id,
				})
			}
		}
	}

	client := s.clientFor(actor)
	client.Write(ctx, docstore.Join("sessions", id, "status"), committee.SessionClosed)

	s.stopTimers(id)
	return map[string]any{"sessionId": id, "archived": archived}, nil
}

func buildArchiveRecords(id string, doc sessionDoc) (archive.SessionRecord, []archive.MotionRecord, []archive.SpeechRecord, []archive.ResolutionRecord) {
	record := archive.SessionRecord{
		ID:       id,
		Name:     doc.Name,
		Chair:    doc.Chair,
		Topic:    doc.Topic,
		ClosedAt: time.Now().UTC(),
	}

	var motions []archive.MotionRecord
	for position, key := range committee.Rank(doc.Motions) {
		m := doc.Motions[key]
		motions = append(motions, archive.MotionRecord{
			ID:             id + ":" + key,
			SessionID:      id,
			Proposal:       m.Proposal,
			Proposer:       m.Proposer,
			Seconder:       m.Seconder,
			Type:           string(m.Type),
			CaucusSeconds:  m.CaucusSeconds(),
			SpeakerSeconds: m.SpeakerSeconds(),
			Position:       position,
		})
	}

	var speeches []archive.SpeechRecord
	for _, caucusKey := range sortedMapKeys(doc.Caucuses) {
		caucus := doc.Caucuses[caucusKey]
		position := 0
		for _, eventKey := range sortedMapKeys(caucus.History) {
			ev := caucus.History[eventKey]
			speeches = append(speeches, archive.SpeechRecord{
				ID:        id + ":" + caucusKey + ":" + eventKey,
				SessionID: id,
				Caucus:    caucusKey,
				Who:       ev.Who,
				Stance:    string(ev.Stance),
				Duration:  ev.Duration,
				Position:  position,
			})
			position++
		}
		if caucus.Speaking != nil {
			speeches = append(speeches, archive.SpeechRecord{
				ID:        id + ":" + caucusKey + ":speaking",
				SessionID: id,
				Caucus:    caucusKey,
				Who:       caucus.Speaking.Who,
				Stance:    string(caucus.Speaking.Stance),
				Duration:  caucus.Speaking.Duration,
				Position:  position,
			})
		}
	}

	var resolutions []archive.ResolutionRecord
	for _, key := range sortedMapKeys(doc.Resolutions) {
		r := doc.Resolutions[key]
		resolutions = append(resolutions, archive.ResolutionRecord{
			ID:        id + ":" + key,
			SessionID: id,
			Name:      r.Name,
			Proposer:  r.Proposer,
			Seconder:  r.Seconder,
			Status:    string(r.Status),
			Text:      r.Text,
		})
	}

	return record, motions, speeches, resolutions
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpsertMember records attendance. The chair can set anyone; a delegate can
// only update their own record (enforced by the store rules).
func (s *Service) UpsertMember(ctx context.Context, actor docstore.Actor, sessionID, name string, member committee.Member) error {
	if strings.TrimSpace(name) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "member name is required", nil)
	}
	member.Name = name
	s.clientFor(actor).Write(ctx, memberPath(sessionID, name), member)
	return nil
}

// Thresholds derives quorum and motion thresholds from present voting members.
func (s *Service) Thresholds(ctx context.Context, sessionID string) (committee.Stats, error) {
	doc, err := s.sessionDoc(ctx, sessionID)
	if err != nil {
		return committee.Stats{}, err
	}
	return committee.Thresholds(doc.Members), nil
}

// CreateCaucus opens a moderated caucus with explicit timer lengths.
func (s *Service) CreateCaucus(ctx context.Context, actor docstore.Actor, sessionID, topic string, caucusSeconds, speakerSeconds int) (string, error) {
	if err := requireChair(actor); err != nil {
		return "", err
	}
	if _, err := s.sessionDoc(ctx, sessionID); err != nil {
		return "", err
	}

	id := util.NewID("cauc")
	state := committee.DefaultCaucus(topic)
	if caucusSeconds > 0 {
		state.CaucusTimer = committee.TimerState{Remaining: caucusSeconds}
	}
	if speakerSeconds > 0 {
		state.SpeakerTimer = committee.TimerState{Remaining: speakerSeconds}
	}
	s.clientFor(actor).Write(ctx, caucusPath(sessionID, id), state)
	return id, nil
}

// GetCaucus returns the caucus state with queue and history assembled.
func (s *Service) GetCaucus(ctx context.Context, sessionID, caucusID string) (committee.CaucusState, error) {
	raw, err := s.store.Get(ctx, caucusPath(sessionID, caucusID))
	if err != nil {
		return committee.CaucusState{}, fmt.Errorf("read caucus: %w", err)
	}
	if raw == nil {
		return committee.CaucusState{}, domainError(http.StatusNotFound, "NOT_FOUND", "Caucus not found", nil)
	}
	var state committee.CaucusState
	if err := json.Unmarshal(raw, &state); err != nil {
		return committee.CaucusState{}, fmt.Errorf("decode caucus: %w", err)
	}
	return state, nil
}

// EnqueueSpeaker appends a speaker to a caucus queue and returns the queue key.
func (s *Service) EnqueueSpeaker(ctx context.Context, actor docstore.Actor, sessionID, caucusID string, input EnqueueSpeakerInput) (string, error) {
	switch input.Stance {
	case committee.StanceFor, committee.StanceNeutral, committee.StanceAgainst:
	default:
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "stance must be For, Neutral or Against", nil)
	}
	if strings.TrimSpace(input.Who) == "" {
		input.Who = actor.ID
	}

	caucus, err := s.GetCaucus(ctx, sessionID, caucusID)
	if err != nil {
		return "", err
	}
	if caucus.Status == committee.CaucusClosed {
		return "", domainError(http.StatusConflict, "CAUCUS_CLOSED", "Caucus is closed", nil)
	}
	if input.Duration <= 0 {
		input.Duration = caucus.SpeakerTimer.Elapsed + caucus.SpeakerTimer.Remaining
	}

	key := s.clientFor(actor).Push(ctx, docstore.Join(caucusPath(sessionID, caucusID), "queue"), committee.SpeakerEvent{
		Who:      input.Who,
		Stance:   input.Stance,
		Duration: input.Duration,
	})
	return key, nil
}

// AdvanceSpeaker gives the floor to the oldest queued speaker. The previous
// speaker moves to history and the speaker timer resets.
func (s *Service) AdvanceSpeaker(ctx context.Context, actor docstore.Actor, sessionID, caucusID string) (committee.CaucusState, error) {
	if err := requireChair(actor); err != nil {
		return committee.CaucusState{}, err
	}
	caucus, err := s.GetCaucus(ctx, sessionID, caucusID)
	if err != nil {
		return committee.CaucusState{}, err
	}

	next, ok := committee.NextSpeaker(caucus, s.store.NewKey())
	if !ok {
		return committee.CaucusState{}, domainError(http.StatusConflict, "QUEUE_EMPTY", "No speaker queued", nil)
	}
	s.clientFor(actor).Write(ctx, caucusPath(sessionID, caucusID), next)
	return next, nil
}

// RemoveQueuedSpeaker strikes a speaker from a queue.
func (s *Service) RemoveQueuedSpeaker(ctx context.Context, actor docstore.Actor, sessionID, caucusID, key string) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	s.clientFor(actor).Remove(ctx, docstore.Join(caucusPath(sessionID, caucusID), "queue", key))
	return nil
}

// CloseCaucus marks a caucus closed. Queue and history stay readable.
func (s *Service) CloseCaucus(ctx context.Context, actor docstore.Actor, sessionID, caucusID string) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	if _, err := s.GetCaucus(ctx, sessionID, caucusID); err != nil {
		return err
	}
	s.clientFor(actor).Write(ctx, docstore.Join(caucusPath(sessionID, caucusID), "status"), committee.CaucusClosed)
	return nil
}

// ProposeMotion validates and stores a new motion; returns its push key.
func (s *Service) ProposeMotion(ctx context.Context, actor docstore.Actor, sessionID string, motion committee.MotionData) (string, error) {
	if !motion.Type.Known() {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown motion type", map[string]any{"type": motion.Type})
	}
	if strings.TrimSpace(motion.Proposer) == "" {
		motion.Proposer = actor.ID
	}
	defaults := committee.DefaultMotion(motion.Proposer)
	if motion.SpeakerDuration == 0 {
		motion.SpeakerDuration, motion.SpeakerUnit = defaults.SpeakerDuration, defaults.SpeakerUnit
	}
	if motion.CaucusDuration == 0 {
		motion.CaucusDuration, motion.CaucusUnit = defaults.CaucusDuration, defaults.CaucusUnit
	}
	if motion.SpeakerUnit == "" {
		motion.SpeakerUnit = committee.UnitSeconds
	}
	if motion.CaucusUnit == "" {
		motion.CaucusUnit = committee.UnitMinutes
	}

	if _, err := s.sessionDoc(ctx, sessionID); err != nil {
		return "", err
	}
	key := s.clientFor(actor).Push(ctx, docstore.Join("sessions", sessionID, "motions"), motion)
	return key, nil
}

// SecondMotion records a seconder on a pending motion.
func (s *Service) SecondMotion(ctx context.Context, actor docstore.Actor, sessionID, motionID, seconder string) (committee.MotionData, error) {
	motion, err := s.getMotion(ctx, sessionID, motionID)
	if err != nil {
		return committee.MotionData{}, err
	}
	if !motion.Type.RequiresSeconder() {
		return committee.MotionData{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "motion does not take a second", nil)
	}
	if strings.TrimSpace(seconder) == "" {
		seconder = actor.ID
	}
	if motion.Proposer == seconder {
		return committee.MotionData{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "proposer cannot second their own motion", nil)
	}
	motion.Seconder = seconder
	s.clientFor(actor).Write(ctx, motionPath(sessionID, motionID), motion)
	return motion, nil
}

func (s *Service) getMotion(ctx context.Context, sessionID, motionID string) (committee.MotionData, error) {
	raw, err := s.store.Get(ctx, motionPath(sessionID, motionID))
	if err != nil {
		return committee.MotionData{}, fmt.Errorf("read motion: %w", err)
	}
	if raw == nil {
		return committee.MotionData{}, domainError(http.StatusNotFound, "NOT_FOUND", "Motion not found", nil)
	}
	var motion committee.MotionData
	if err := json.Unmarshal(raw, &motion); err != nil {
		return committee.MotionData{}, fmt.Errorf("decode motion: %w", err)
	}
	return motion, nil
}

// RankedMotions returns the pending motions in agenda order, most
// disruptive first.
func (s *Service) RankedMotions(ctx context.Context, sessionID string) ([]RankedMotion, error) {
	doc, err := s.sessionDoc(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedMotion, 0, len(doc.Motions))
	for position, key := range committee.Rank(doc.Motions) {
		m := doc.Motions[key]
		ranked = append(ranked, RankedMotion{
			Key:      key,
			Position: position,
			Verb:     m.Type.ActionVerb(),
			Motion:   m,
		})
	}
	return ranked, nil
}

// ApproveMotion entertains a motion: the motion leaves the agenda and its
// effect is applied (caucus created, timer set, resolution introduced).
func (s *Service) ApproveMotion(ctx context.Context, actor docstore.Actor, sessionID, motionID string) (map[string]any, error) {
	if err := requireChair(actor); err != nil {
		return nil, err
	}
	motion, err := s.getMotion(ctx, sessionID, motionID)
	if err != nil {
		return nil, err
	}
	if motion.Type.RequiresSeconder() && strings.TrimSpace(motion.Seconder) == "" {
		return nil, domainError(http.StatusConflict, "MOTION_NEEDS_SECOND", "Motion requires a second", nil)
	}

	client := s.clientFor(actor)
	result := map[string]any{"approved": true, "type": motion.Type}

	switch motion.Type {
	case committee.MotionOpenModerated, committee.MotionExtendModerated:
		caucusID, err := s.CreateCaucus(ctx, actor, sessionID, motion.Proposal, motion.CaucusSeconds(), motion.SpeakerSeconds())
		if err != nil {
			return nil, err
		}
		result["caucusId"] = caucusID

	case committee.MotionOpenUnmoderated:
		state := committee.TimerState{Remaining: motion.CaucusSeconds()}
		client.Write(ctx, unmodTimerPath(sessionID), state)
		result["timer"] = state

	case committee.MotionExtendUnmoderated:
		doc, err := s.sessionDoc(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		state := doc.UnmodTimer
		state.Remaining += motion.CaucusSeconds()
		client.Write(ctx, unmodTimerPath(sessionID), state)
		result["timer"] = state

	case committee.MotionIntroduceDraftResolution:
		resolutionID := util.NewID("res")
		data := committee.ResolutionData{
			Name:     motion.Proposal,
			Proposer: motion.Proposer,
			Seconder: motion.Seconder,
			Status:   committee.ResolutionIntroduced,
		}
		client.Write(ctx, resolutionPath(sessionID, resolutionID), data)
		if s.resrepos != nil {
			if err := s.resrepos.EnsureResolutionRepo(resolutionID, resrepo.Content{
				Name:     data.Name,
				Proposer: data.Proposer,
				Seconder: data.Seconder,
			}, motion.Proposer); err != nil {
				return nil, fmt.Errorf("init resolution history: %w", err)
			}
		}
		result["resolutionId"] = resolutionID
	}

	client.Remove(ctx, motionPath(sessionID, motionID))
	return result, nil
}

// DenyMotion strikes a motion from the agenda without effect.
func (s *Service) DenyMotion(ctx context.Context, actor docstore.Actor, sessionID, motionID string) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	if _, err := s.getMotion(ctx, sessionID, motionID); err != nil {
		return err
	}
	s.clientFor(actor).Remove(ctx, motionPath(sessionID, motionID))
	return nil
}

// MotionTypeTable exposes the procedural metadata for every known motion type.
func (s *Service) MotionTypeTable() []map[string]any {
	types := committee.MotionTypes()
	table := make([]map[string]any, 0, len(types))
	for _, t := range types {
		table = append(table, map[string]any{
			"type":           t,
			"precedence":     t.Precedence(),
			"hasDetail":      t.HasDetail(),
			"hasDuration":    t.HasDuration(),
			"hasSpeakers":    t.HasSpeakers(),
			"requiresSecond": t.RequiresSeconder(),
			"procedural":     t.Procedural(),
			"verb":           t.ActionVerb(),
		})
	}
	return table
}

func (s *Service) getResolution(ctx context.Context, sessionID, resolutionID string) (committee.ResolutionData, error) {
	raw, err := s.store.Get(ctx, resolutionPath(sessionID, resolutionID))
	if err != nil {
		return committee.ResolutionData{}, fmt.Errorf("read resolution: %w", err)
	}
	if raw == nil {
		return committee.ResolutionData{}, domainError(http.StatusNotFound, "NOT_FOUND", "Resolution not found", nil)
	}
	var data committee.ResolutionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return committee.ResolutionData{}, fmt.Errorf("decode resolution: %w", err)
	}
	return data, nil
}

// AmendResolution replaces the operative text and commits a revision to the
// resolution's history repo.
func (s *Service) AmendResolution(ctx context.Context, actor docstore.Actor, sessionID, resolutionID string, input AmendResolutionInput) (map[string]any, error) {
	data, err := s.getResolution(ctx, sessionID, resolutionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	data.Text = input.Text
	s.clientFor(actor).Write(ctx, resolutionPath(sessionID, resolutionID), data)

	result := map[string]any{"resolutionId": resolutionID}
	if s.resrepos != nil {
		message := input.Message
		if strings.TrimSpace(message) == "" {
			message = "Amend resolution text"
		}
		if err := s.resrepos.EnsureResolutionRepo(resolutionID, resrepo.Content{
			Name:     data.Name,
			Proposer: data.Proposer,
			Seconder: data.Seconder,
		}, data.Proposer); err != nil {
			return nil, fmt.Errorf("init resolution history: %w", err)
		}
		rev, err := s.resrepos.CommitRevision(resolutionID, resrepo.Content{
			Name:     data.Name,
			Proposer: data.Proposer,
			Seconder: data.Seconder,
			Text:     data.Text,
		}, actor.ID, message)
		if err != nil {
			return nil, fmt.Errorf("commit revision: %w", err)
		}
		result["revision"] = rev
	}
	return result, nil
}

// ResolutionHistory lists the amendment revisions, newest first.
func (s *Service) ResolutionHistory(ctx context.Context, sessionID, resolutionID string, limit int) ([]resrepo.RevisionInfo, error) {
	if _, err := s.getResolution(ctx, sessionID, resolutionID); err != nil {
		return nil, err
	}
	if s.resrepos == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Resolution history not configured", nil)
	}
	history, err := s.resrepos.History(resolutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return history, nil
}

// SetResolutionStatus records a vote outcome on a resolution.
func (s *Service) SetResolutionStatus(ctx context.Context, actor docstore.Actor, sessionID, resolutionID string, status committee.ResolutionStatus) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	switch status {
	case committee.ResolutionIntroduced, committee.ResolutionPassed, committee.ResolutionFailed:
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid resolution status", nil)
	}
	data, err := s.getResolution(ctx, sessionID, resolutionID)
	if err != nil {
		return err
	}
	data.Status = status
	s.clientFor(actor).Write(ctx, resolutionPath(sessionID, resolutionID), data)
	return nil
}

// ensureTimer starts the shared unmoderated timer engine for a session.
func (s *Service) ensureTimer(sessionID string) *timer.Engine {
	return s.ensureTimerAt(unmodTimerPath(sessionID))
}

// ensureTimerAt runs one engine per timer path; engines for caucus clocks
// start lazily on first use.
func (s *Service) ensureTimerAt(path string) *timer.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.timers[path]; ok {
		return handle.engine
	}

	engine := timer.New(s.clientFor(systemActor), path, s.cfg.TickInterval)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = engine.Run(ctx) }()
	s.timers[path] = &timerHandle{engine: engine, cancel: cancel}
	return engine
}

// stopTimers cancels every engine ticking under the session.
func (s *Service) stopTimers(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := sessionPath(sessionID) + "/"
	for path, handle := range s.timers {
		if strings.HasPrefix(path, prefix) {
			handle.cancel()
			delete(s.timers, path)
		}
	}
}

// ToggleTimer starts or pauses the session's unmoderated timer.
func (s *Service) ToggleTimer(ctx context.Context, actor docstore.Actor, sessionID string) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	if _, err := s.sessionDoc(ctx, sessionID); err != nil {
		return err
	}
	s.ensureTimer(sessionID).Toggle(ctx)
	return nil
}

// SetTimerDuration resets the unmoderated timer to amount*unit seconds.
// Non-numeric or non-positive amounts are a no-op, mirroring the engine.
func (s *Service) SetTimerDuration(ctx context.Context, actor docstore.Actor, sessionID, amount string, unit committee.Unit) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	if _, err := s.sessionDoc(ctx, sessionID); err != nil {
		return err
	}
	s.ensureTimer(sessionID).SetDuration(ctx, amount, unit)
	return nil
}

// TimerDisplay returns the current timer state with its rendered clock.
func (s *Service) TimerDisplay(ctx context.Context, sessionID string) (map[string]any, error) {
	doc, err := s.sessionDoc(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := doc.UnmodTimer
	return map[string]any{
		"state":   state,
		"display": timer.Format(state),
		"percent": timer.Percent(state),
	}, nil
}

func caucusTimerField(which string) (string, bool) {
	switch which {
	case "caucus":
		return "caucusTimer", true
	case "speaker":
		return "speakerTimer", true
	}
	return "", false
}

func (s *Service) caucusTimerPath(ctx context.Context, sessionID, caucusID, which string) (string, error) {
	field, ok := caucusTimerField(which)
	if !ok {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown caucus timer", map[string]any{"timer": which})
	}
	if _, err := s.GetCaucus(ctx, sessionID, caucusID); err != nil {
		return "", err
	}
	return docstore.Join(caucusPath(sessionID, caucusID), field), nil
}

// ToggleCaucusTimer starts or pauses one of a caucus's two clocks. which
// selects "caucus" for the overall clock or "speaker" for the current
// speaker's clock.
func (s *Service) ToggleCaucusTimer(ctx context.Context, actor docstore.Actor, sessionID, caucusID, which string) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	path, err := s.caucusTimerPath(ctx, sessionID, caucusID, which)
	if err != nil {
		return err
	}
	s.ensureTimerAt(path).Toggle(ctx)
	return nil
}

// SetCaucusTimerDuration resets one of a caucus's clocks to amount*unit
// seconds. Non-numeric or non-positive amounts are a no-op, mirroring the
// engine.
func (s *Service) SetCaucusTimerDuration(ctx context.Context, actor docstore.Actor, sessionID, caucusID, which, amount string, unit committee.Unit) error {
	if err := requireChair(actor); err != nil {
		return err
	}
	path, err := s.caucusTimerPath(ctx, sessionID, caucusID, which)
	if err != nil {
		return err
	}
	s.ensureTimerAt(path).SetDuration(ctx, amount, unit)
	return nil
}

// CaucusTimerDisplay returns both caucus clocks with their rendered faces.
func (s *Service) CaucusTimerDisplay(ctx context.Context, sessionID, caucusID string) (map[string]any, error) {
	caucus, err := s.GetCaucus(ctx, sessionID, caucusID)
	if err != nil {
		return nil, err
	}
	render := func(state committee.TimerState) map[string]any {
		return map[string]any{
			"state":   state,
			"display": timer.Format(state),
			"percent": timer.Percent(state),
		}
	}
	return map[string]any{
		"caucus":  render(caucus.CaucusTimer),
		"speaker": render(caucus.SpeakerTimer),
	}, nil
}

// Hub returns the presentation hub for a session, creating it on first use.
func (s *Service) Hub(sessionID string) *present.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[sessionID]
	if !ok {
		hub = present.NewHub()
		s.hubs[sessionID] = hub
	}
	return hub
}

// SetPresentation switches the projection display: idle, the unmoderated
// timer, a moderated caucus, or a resolution.
func (s *Service) SetPresentation(ctx context.Context, actor docstore.Actor, sessionID string, mode present.Kind, target string) error {
	if err := requireChair(actor); err != nil {
		return err
	}

	var snapshot present.Snapshot
	switch mode {
	case present.KindIdle:
		snapshot = present.Idle()
	case present.KindUnmod:
		doc, err := s.sessionDoc(ctx, sessionID)
		if err != nil {
			return err
		}
		snapshot = present.Unmod(doc.UnmodTimer)
	case present.KindMod:
		caucus, err := s.GetCaucus(ctx, sessionID, target)
		if err != nil {
			return err
		}
		snapshot = present.Mod(caucus)
	case present.KindResolution:
		data, err := s.getResolution(ctx, sessionID, target)
		if err != nil {
			return err
		}
		snapshot = present.Resolution(data)
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown presentation mode", map[string]any{"mode": mode})
	}

	s.Hub(sessionID).Publish(snapshot)
	return nil
}

// SubscribeSession streams the assembled session subtree: an initial
// snapshot, then one update per committed mutation beneath the path.
func (s *Service) SubscribeSession(ctx context.Context, sessionID string) (*docstore.Subscription, error) {
	return s.store.Subscribe(ctx, sessionPath(sessionID))
}

// Search queries archived motions and resolutions.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ExportMinutes renders an archived session's minutes.
func (s *Service) ExportMinutes(ctx context.Context, sessionID string, format export.Format) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	result, err := s.export.Export(ctx, export.Request{SessionID: sessionID, Format: format})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, export.ErrSessionUnavailable):
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Session not archived", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
	default:
		return nil, fmt.Errorf("export minutes: %w", err)
	}
}

// ArchivedSessions lists recently closed sessions.
func (s *Service) ArchivedSessions(ctx context.Context, limit int) ([]archive.SessionRecord, error) {
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive not configured", nil)
	}
	return s.archive.ListSessions(ctx, limit)
}

// ArchivedSession returns one archived session with its motions, speeches
// and resolutions.
func (s *Service) ArchivedSession(ctx context.Context, id string) (map[string]any, error) {
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive not configured", nil)
	}
	session, err := s.archive.GetSession(ctx, id)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Session not archived", nil)
	}
	motions, err := s.archive.ListMotions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list motions: %w", err)
	}
	speeches, err := s.archive.ListSpeeches(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list speeches: %w", err)
	}
	resolutions, err := s.archive.ListResolutions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	return map[string]any{
		"session":     session,
		"motions":     motions,
		"speeches":    speeches,
		"resolutions": resolutions,
	}, nil
}
