package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Event is anything that can be written to the EVENT| stream: a Go value
// whose JSON object gets an injected "type" discriminator alongside its
// own fields (internally tagged, not nested under a "data" key).
type Event interface {
	eventType() string
}

type InitMapEvent struct {
	Width, Height int
}

func (InitMapEvent) eventType() string { return "InitMap" }

type MoveEvent struct {
	Pid      uint32
	From, To Location
}

func (MoveEvent) eventType() string { return "Move" }

type AttackEvent struct {
	AttackerPid, DefenderPid uint32
}

func (AttackEvent) eventType() string { return "Attack" }

type NewProcessEvent struct {
	Pid, ParentPid uint32
	OwnerUID       uint32
	Location       Location
}

func (NewProcessEvent) eventType() string { return "NewProcess" }

type RenicesEvent struct {
	Pid     uint32
	NewNice uint16
}

func (RenicesEvent) eventType() string { return "Renice" }

type KillEvent struct {
	Pid    uint32
	Reason string
}

func (KillEvent) eventType() string { return "Kill" }

type DetachEvent struct {
	Pid uint32
}

func (DetachEvent) eventType() string { return "Detach" }

type NewChallengeEvent struct {
	Location   Location
	Kind       ChallengeKind
	Difficulty uint32
}

func (NewChallengeEvent) eventType() string { return "NewChallenge" }

type ChallengeSolvedEvent struct {
	Pid      uint32
	Location Location
	Kind     ChallengeKind
}

func (ChallengeSolvedEvent) eventType() string { return "ChallengeSolved" }

type ScoreUpdateEvent struct {
	UID   uint32
	Score int64
}

func (ScoreUpdateEvent) eventType() string { return "ScoreUpdate" }

type WalletUpdateEvent struct {
	UID    uint32
	Wallet Wallet
}

func (WalletUpdateEvent) eventType() string { return "WalletUpdate" }

// EventWriter serializes Events as line-delimited, EVENT|-prefixed JSON.
// It is the only thing permitted to write to the process's stdout; all
// diagnostic logging goes through logrus to stderr instead.
type EventWriter struct {
	w *bufio.Writer
}

func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: bufio.NewWriter(w)}
}

// Emit marshals ev to JSON with an injected "type" field and writes one
// EVENT|<json>\n line. A marshal failure here indicates a programmer
// error (an event field that cannot round-trip through JSON), so it is
// returned rather than swallowed.
func (ew *EventWriter) Emit(ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.eventType(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshal event %s fields: %w", ev.eventType(), err)
	}
	typeJSON, _ := json.Marshal(ev.eventType())
	fields["type"] = typeJSON
	tagged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal tagged event %s: %w", ev.eventType(), err)
	}
	if _, err := fmt.Fprintf(ew.w, "EVENT|%s\n", tagged); err != nil {
		return fmt.Errorf("write event %s: %w", ev.eventType(), err)
	}
	return nil
}

// Flush flushes any buffered event lines. The kernel calls this at the
// end of every tick so a consumer tailing stdout sees complete ticks
// promptly.
func (ew *EventWriter) Flush() error {
	return ew.w.Flush()
}
