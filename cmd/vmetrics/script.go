package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vmetrics/internal/app"
	"vmetrics/internal/domain"
	store "vmetrics/internal/storage/badger"
)

var validate = validator.New()

// Script is a scoring session written down in YAML.
//
//	match_id: m1
//	first_server: our
//	lineup:
//	  starters:
//	    - {slot: 1, player: p1, role: S}
//	  liberos: [L1]
//	steps:
//	  - {op: rally, rally: {attack: SPIKE, result: KILL, spiker: p2}}
//	  - {op: undo}
type Script struct {
	MatchID     string       `yaml:"match_id"`
	FirstServer domain.Team  `yaml:"first_server"`
	Lineup      scriptLineup `yaml:"lineup"`
	Steps       []Step       `yaml:"steps" validate:"dive"`
}

type scriptLineup struct {
	Starters []scriptEntry `yaml:"starters"`
	Liberos  []string      `yaml:"liberos"`
}

type scriptEntry struct {
	Slot   int         `yaml:"slot"`
	Player string      `yaml:"player"`
	Role   domain.Role `yaml:"role"`
}

func (l scriptLineup) lineup() domain.Lineup {
	out := domain.Lineup{Liberos: append([]string(nil), l.Liberos...)}
	for _, e := range l.Starters {
		out.Starters = append(out.Starters, domain.RosterEntry{StartingSlot: e.Slot, PlayerID: e.Player, Role: e.Role})
	}
	return out
}

type scriptRally struct {
	Attack   domain.AttackType   `yaml:"attack"`
	Result   domain.Result       `yaml:"result"`
	Spiker   string              `yaml:"spiker"`
	Setter   string              `yaml:"setter"`
	Tosser   string              `yaml:"tosser"`
	Pass     domain.PassPosition `yaml:"pass"`
	Area     domain.TossArea     `yaml:"area"`
	Distance domain.TossQuality  `yaml:"distance"`
	Length   domain.TossQuality  `yaml:"length"`
	Height   domain.TossQuality  `yaml:"height"`
	TossMiss bool                `yaml:"toss_miss"`
}

func (r scriptRally) input() app.RallyInput {
	return app.RallyInput{
		AttackType:   r.Attack,
		Result:       r.Result,
		SpikerID:     r.Spiker,
		SetterID:     r.Setter,
		TosserID:     r.Tosser,
		PassZone:     r.Pass,
		TossArea:     r.Area,
		TossDistance: r.Distance,
		TossLength:   r.Length,
		TossHeight:   r.Height,
		TossMiss:     r.TossMiss,
	}
}

// Step is one operator action.
type Step struct {
	Op          string        `yaml:"op" validate:"required,oneof=rally edit delete undo correct finish_set next_set start_set discard_set libero_in libero_out swap_libero substitute designate_setter adjust toggle_serve"`
	Rally       scriptRally   `yaml:"rally"`
	PlayID      int64         `yaml:"play_id" validate:"required_if=Op edit,required_if=Op delete"`
	Lineup      *scriptLineup `yaml:"lineup"`
	FirstServer domain.Team   `yaml:"first_server"`
	Original    string        `yaml:"original" validate:"required_if=Op libero_in,required_if=Op libero_out,required_if=Op swap_libero"`
	Libero      string        `yaml:"libero" validate:"required_if=Op libero_in,required_if=Op swap_libero"`
	Out         string        `yaml:"out" validate:"required_if=Op substitute"`
	In          string        `yaml:"in" validate:"required_if=Op substitute"`
	Player      string        `yaml:"player" validate:"required_if=Op designate_setter"`
	Team        domain.Team   `yaml:"team" validate:"required_if=Op adjust"`
	Delta       int           `yaml:"delta" validate:"required_if=Op adjust"`
}

// loadScript reads and validates a script file.
func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal script: %w", err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

// runner feeds script steps through the scoring service and logs what happened.
type runner struct {
	svc     *app.Service
	session *domain.MatchSession
	logger  *log.Logger
}

func newRunner(svc *app.Service, session *domain.MatchSession, logger *log.Logger) *runner {
	return &runner{svc: svc, session: session, logger: logger}
}

func (r *runner) start(ctx context.Context, matchID string, lineup domain.Lineup, firstServer domain.Team) error {
	events, err := r.svc.StartMatch(ctx, r.session, matchID, lineup, firstServer)
	if err != nil {
		return fmt.Errorf("start match: %w", err)
	}
	r.report(events)
	return nil
}

// resume rebuilds the match and, unless it is over, starts the interrupted set again.
func (r *runner) resume(ctx context.Context, st *store.MatchStore, matchID string, lineup domain.Lineup, firstServer domain.Team) error {
	events, err := r.svc.ResumeMatch(ctx, r.session, matchID)
	if err != nil {
		return fmt.Errorf("resume match: %w", err)
	}
	r.report(events)
	if r.session.Phase() != domain.PhaseNextSetSetup {
		return nil
	}

	setNumber := r.session.State().SetNumber
	lineup, err = resumeSet(ctx, st, matchID, setNumber, lineup)
	if err != nil {
		return err
	}
	if firstServer == "" {
		firstServer = domain.TeamOurs
	}
	events, err = r.svc.StartSet(ctx, r.session, lineup, firstServer)
	if err != nil {
		return fmt.Errorf("start set %d: %w", setNumber, err)
	}
	r.report(events)
	r.logger.Info("resumed", "match", matchID, "set", setNumber)
	return nil
}

func (r *runner) run(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		events, err := r.apply(ctx, step)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		r.report(events)
	}
	return nil
}

func (r *runner) apply(ctx context.Context, step Step) ([]app.Event, error) {
	svc, s := r.svc, r.session

	switch step.Op {
	case "rally":
		return svc.RecordRally(ctx, s, step.Rally.input())
	case "edit":
		return svc.EditRally(ctx, s, step.PlayID, step.Rally.input())
	case "delete":
		return svc.DeleteRally(ctx, s, step.PlayID)
	case "undo":
		return svc.Undo(ctx, s)
	case "correct":
		return svc.CorrectLastRally(ctx, s)
	case "finish_set":
		return svc.FinishSet(ctx, s)
	case "next_set", "start_set":
		lineup := s.Lineup()
		if step.Lineup != nil {
			lineup = step.Lineup.lineup()
		}
		if step.Op == "start_set" {
			return svc.StartSet(ctx, s, lineup, step.FirstServer)
		}
		return svc.ProceedToNextSet(ctx, s, lineup, step.FirstServer)
	case "discard_set":
		return svc.DiscardSet(ctx, s)
	case "libero_in":
		return svc.LiberoIn(s, step.Original, step.Libero)
	case "libero_out":
		return svc.LiberoOut(s, step.Original)
	case "swap_libero":
		return svc.SwapLibero(s, step.Original, step.Libero)
	case "substitute":
		return svc.Substitute(s, step.Out, step.In)
	case "designate_setter":
		return svc.DesignateSetter(s, step.Player)
	case "adjust":
		return svc.AdjustScore(s, step.Team, step.Delta)
	case "toggle_serve":
		return svc.ToggleServe(s)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (r *runner) report(events []app.Event) {
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case app.RallyRecordedPayload:
			st := r.session.State()
			r.logger.Info("rally", "play", p.Record.PlayID, "reason", p.Record.Reason, "score", fmt.Sprintf("%d-%d", st.OurScore, st.OpponentScore), "rotated", p.Rotated)
		case app.RallyEditedPayload:
			r.logger.Info("rally edited", "play", p.Updated.PlayID, "reason", p.Updated.Reason)
		case app.RallyDeletedPayload:
			r.logger.Info("rally deleted", "play", p.Record.PlayID)
		case app.NoticePayload:
			if p.Cause != nil {
				r.logger.Warn(p.Message, "err", p.Cause)
			} else {
				r.logger.Warn(p.Message)
			}
		case app.SetEndedPayload:
			r.logger.Info("set ended", "set", p.Result.SetNumber, "score", fmt.Sprintf("%d-%d", p.Result.OurScore, p.Result.OpponentScore), "result", p.Result.Result)
		case app.MatchEndedPayload:
			r.logger.Info("match ended", "sets", fmt.Sprintf("%d-%d", p.OurSetsWon, p.OpponentSetsWon))
		case app.CorrectionPayload:
			r.logger.Info("re-enter rally", "spiker", p.Record.SpikerID, "attack", p.Record.AttackType)
		case app.StateChangedPayload:
			r.logger.Debug("state", "phase", p.View.Phase, "set", p.View.State.SetNumber)
		}
	}
}
