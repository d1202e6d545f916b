// Package intake drives the client-side request form. A Form is a plain value
// with no I/O: callers feed it inputs and act on the returned Result.
package intake

import (
	"strings"

	"github.com/m3rciful/pestbot/internal/domain"
)

// Step is the cursor of a Form: the next expected input.
type Step string

const (
	AwaitingName                  Step = "awaiting_name"
	AwaitingObjectType            Step = "awaiting_object_type"
	AwaitingInsectQuantityBracket Step = "awaiting_insect_quantity"
	AwaitingExperienceFlag        Step = "awaiting_experience"
	AwaitingPhone                 Step = "awaiting_phone"
	AwaitingAddress               Step = "awaiting_address"
	Complete                      Step = "complete"
)

// InputKind tags the category of an inbound event.
type InputKind int

const (
	InputText InputKind = iota
	InputChoice
	InputContact
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputChoice:
		return "choice"
	case InputContact:
		return "contact"
	}
	return "unknown"
}

// Input is a single inbound value.
type Input struct {
	Kind  InputKind
	Value string
}

// Text builds a free-text input.
func Text(s string) Input { return Input{Kind: InputText, Value: s} }

// Choice builds a button-press input.
func Choice(v string) Input { return Input{Kind: InputChoice, Value: v} }

// Contact builds a shared-contact input carrying a phone number.
func Contact(phone string) Input { return Input{Kind: InputContact, Value: phone} }

// Submission is emitted when the form reaches Complete.
type Submission struct {
	Name           string
	ObjectType     string
	InsectQuantity string
	HasExperience  bool
	Phone          string
	Address        string
	// ClientID is non-zero once the client record was persisted by an earlier attempt.
	ClientID int64
}

// Result describes the outcome of applying one input.
type Result struct {
	Step       Step
	Advanced   bool
	Err        error
	Submission *Submission
}

// Form holds the values collected so far.
type Form struct {
	Step           Step   `json:"step"`
	Name           string `json:"name,omitempty"`
	ObjectType     string `json:"object_type,omitempty"`
	InsectQuantity string `json:"insect_quantity,omitempty"`
	Experience     string `json:"experience,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	ClientID       int64  `json:"client_id,omitempty"`
}

// New returns a form positioned at the first step.
func New() *Form {
	return &Form{Step: AwaitingName}
}

type transition struct {
	field string
	kinds []InputKind
	apply func(*Form, string) error
	next  Step
}

var transitions = map[Step]transition{
	AwaitingName: {
		field: "name",
		kinds: []InputKind{InputText},
		apply: func(f *Form, v string) error {
			name, err := NormalizeName(v)
			if err != nil {
				return err
			}
			f.Name = name
			return nil
		},
		next: AwaitingObjectType,
	},
	AwaitingObjectType: {
		field: "object_type",
		kinds: []InputKind{InputChoice},
		apply: choose(ObjectTypes, "object_type", func(f *Form, v string) { f.ObjectType = v }),
		next:  AwaitingInsectQuantityBracket,
	},
	AwaitingInsectQuantityBracket: {
		field: "insect_quantity",
		kinds: []InputKind{InputChoice},
		apply: choose(QuantityBrackets, "insect_quantity", func(f *Form, v string) { f.InsectQuantity = v }),
		next:  AwaitingExperienceFlag,
	},
	AwaitingExperienceFlag: {
		field: "experience",
		kinds: []InputKind{InputChoice},
		apply: choose(ExperienceFlags, "experience", func(f *Form, v string) { f.Experience = v }),
		next:  AwaitingPhone,
	},
	AwaitingPhone: {
		field: "phone",
		kinds: []InputKind{InputContact, InputText},
		apply: func(f *Form, v string) error {
			phone, err := NormalizePhone(v)
			if err != nil {
				return err
			}
			f.Phone = phone
			return nil
		},
		next: AwaitingAddress,
	},
	AwaitingAddress: {
		field: "address",
		kinds: []InputKind{InputText},
		apply: func(f *Form, v string) error {
			addr, err := NormalizeAddress(v)
			if err != nil {
				return err
			}
			f.Address = addr
			return nil
		},
		next: Complete,
	},
}

func choose(opts []domain.Option, field string, set func(*Form, string)) func(*Form, string) error {
	return func(f *Form, v string) error {
		v = strings.TrimSpace(v)
		if !domain.HasOption(opts, v) {
			return &domain.ValidationError{Field: field, Reason: "unknown option"}
		}
		set(f, v)
		return nil
	}
}

// Apply feeds one input into the form. Invalid input leaves the step unchanged.
// Any input at Complete re-emits the submission so the final step can be retried.
func (f *Form) Apply(in Input) Result {
	if f.Step == "" {
		f.Step = AwaitingName
	}
	if f.Step == Complete {
		s := f.submission()
		return Result{Step: Complete, Submission: &s}
	}

	tr, ok := transitions[f.Step]
	if !ok {
		return Result{Step: f.Step, Err: &domain.ValidationError{Field: "step", Reason: "unknown step " + string(f.Step)}}
	}
	if !accepts(tr.kinds, in.Kind) {
		return Result{Step: f.Step, Err: &domain.ValidationError{Field: tr.field, Reason: "unexpected " + in.Kind.String() + " input"}}
	}
	if err := tr.apply(f, in.Value); err != nil {
		return Result{Step: f.Step, Err: err}
	}

	f.Step = tr.next
	res := Result{Step: f.Step, Advanced: true}
	if f.Step == Complete {
		s := f.submission()
		res.Submission = &s
	}
	return res
}

// Pending returns the submission of a completed form awaiting a successful write.
func (f *Form) Pending() (Submission, bool) {
	if f.Step != Complete {
		return Submission{}, false
	}
	return f.submission(), true
}

func (f *Form) submission() Submission {
	return Submission{
		Name:           f.Name,
		ObjectType:     f.ObjectType,
		InsectQuantity: f.InsectQuantity,
		HasExperience:  f.Experience == "yes",
		Phone:          f.Phone,
		Address:        f.Address,
		ClientID:       f.ClientID,
	}
}

func accepts(kinds []InputKind, k InputKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
