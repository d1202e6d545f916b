// Package lifecycle drives the technician side of an order: the accept or
// decline decision followed by the pricing questions.
package lifecycle

import (
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/pestbot/internal/domain"
)

// Step is the cursor of a Dialogue.
type Step string

const (
	AwaitingAcceptDecision Step = "awaiting_decision"
	AwaitingPoisonType     Step = "awaiting_poison_type"
	AwaitingInsectType     Step = "awaiting_insect_type"
	AwaitingArea           Step = "awaiting_area"
	AwaitingEstimate       Step = "awaiting_estimate"
	Complete               Step = "complete"
	Declined               Step = "declined"
)

// Decision values carried by the accept/decline buttons.
const (
	DecisionAccept  = "accept"
	DecisionDecline = "decline"
)

// Event reports a transition the caller must persist.
type Event int

const (
	EventNone Event = iota
	EventAccepted
	EventDeclined
	EventPriced
)

func (e Event) String() string {
	switch e {
	case EventAccepted:
		return "accepted"
	case EventDeclined:
		return "declined"
	case EventPriced:
		return "priced"
	}
	return "none"
}

// Choice sets offered to the technician.
var (
	PoisonTypes = []domain.Option{
		{Value: "cypermethrin", Label: "Cypermethrin"},
		{Value: "fipronil", Label: "Fipronil"},
		{Value: "imidacloprid", Label: "Imidacloprid"},
		{Value: "chlorpyrifos", Label: "Chlorpyrifos"},
	}
	InsectTypes = []domain.Option{
		{Value: "cockroaches", Label: "Cockroaches"},
		{Value: "bedbugs", Label: "Bedbugs"},
		{Value: "ants", Label: "Ants"},
		{Value: "fleas", Label: "Fleas"},
		{Value: "moths", Label: "Moths"},
	}
)

// OptionsFor returns the choice set accepted at step, or nil for free-text steps.
func OptionsFor(step Step) []domain.Option {
	switch step {
	case AwaitingPoisonType:
		return PoisonTypes
	case AwaitingInsectType:
		return InsectTypes
	}
	return nil
}

// Input is one inbound value. Choice is true for button presses.
type Input struct {
	Choice bool
	Value  string
}

// Result describes the outcome of applying one input.
type Result struct {
	Step     Step
	Advanced bool
	Event    Event
	Err      error
	Pricing  *domain.Pricing
}

// Dialogue holds one technician's progress on a single order.
type Dialogue struct {
	OrderCode  string  `json:"order_code"`
	Step       Step    `json:"step"`
	PoisonType string  `json:"poison_type,omitempty"`
	InsectType string  `json:"insect_type,omitempty"`
	Area       float64 `json:"area,omitempty"`
	Estimate   float64 `json:"estimate,omitempty"`
}

// Start opens a dialogue for a freshly notified order.
func Start(orderCode string) *Dialogue {
	return &Dialogue{OrderCode: orderCode, Step: AwaitingAcceptDecision}
}

// Accepted opens a dialogue for an order already accepted, skipping the decision.
func Accepted(orderCode string) *Dialogue {
	return &Dialogue{OrderCode: orderCode, Step: AwaitingPoisonType}
}

// Done reports whether the dialogue reached a terminal step.
func (d *Dialogue) Done() bool {
	return d.Step == Complete || d.Step == Declined
}

// Apply feeds one input. Invalid input leaves the step unchanged.
func (d *Dialogue) Apply(in Input) Result {
	switch d.Step {
	case AwaitingAcceptDecision:
		if !in.Choice {
			return d.reject("decision", "use the buttons")
		}
		switch strings.TrimSpace(in.Value) {
		case DecisionAccept:
			d.Step = AwaitingPoisonType
			return Result{Step: d.Step, Advanced: true, Event: EventAccepted}
		case DecisionDecline:
			d.Step = Declined
			return Result{Step: d.Step, Advanced: true, Event: EventDeclined}
		}
		return d.reject("decision", "unknown option")

	case AwaitingPoisonType:
		return d.choose(in, PoisonTypes, "poison_type", func(v string) { d.PoisonType = v }, AwaitingInsectType)

	case AwaitingInsectType:
		return d.choose(in, InsectTypes, "insect_type", func(v string) { d.InsectType = v }, AwaitingArea)

	case AwaitingArea:
		if in.Choice {
			return d.reject("area", "expected a number")
		}
		v, err := ParsePositive("area", in.Value)
		if err != nil {
			return Result{Step: d.Step, Err: err}
		}
		d.Area = v
		d.Step = AwaitingEstimate
		return Result{Step: d.Step, Advanced: true}

	case AwaitingEstimate:
		if in.Choice {
			return d.reject("estimate", "expected a number")
		}
		v, err := ParsePositive("estimate", in.Value)
		if err != nil {
			return Result{Step: d.Step, Err: err}
		}
		d.Estimate = v
		d.Step = Complete
		p := d.pricing()
		return Result{Step: d.Step, Advanced: true, Event: EventPriced, Pricing: &p}

	case Complete:
		// Re-emit so a failed write can be retried without re-asking.
		p := d.pricing()
		return Result{Step: d.Step, Event: EventPriced, Pricing: &p}
	}
	return d.reject("step", "dialogue is closed")
}

func (d *Dialogue) choose(in Input, opts []domain.Option, field string, set func(string), next Step) Result {
	if !in.Choice {
		return d.reject(field, "use the buttons")
	}
	v := strings.TrimSpace(in.Value)
	if !domain.HasOption(opts, v) {
		return d.reject(field, "unknown option")
	}
	set(v)
	d.Step = next
	return Result{Step: d.Step, Advanced: true}
}

func (d *Dialogue) reject(field, reason string) Result {
	return Result{Step: d.Step, Err: &domain.ValidationError{Field: field, Reason: reason}}
}

func (d *Dialogue) pricing() domain.Pricing {
	return domain.Pricing{
		PoisonType:     d.PoisonType,
		InsectType:     d.InsectType,
		Area:           d.Area,
		EstimatedPrice: d.Estimate,
	}
}

// ParsePositive parses a positive finite number. A comma is accepted as the
// decimal separator.
func ParsePositive(field, raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &domain.ValidationError{Field: field, Reason: "not a number"}
	}
	if v <= 0 {
		return 0, &domain.ValidationError{Field: field, Reason: "must be positive"}
	}
	return v, nil
}
