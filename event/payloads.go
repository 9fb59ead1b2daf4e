package event

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypePersonCreated   = "PersonCreated"
	TypePersonUpdated   = "PersonUpdated"
	TypeGroupCreated    = "GroupCreated"
	TypeGroupUpdated    = "GroupUpdated"
	TypeDocumentExpired = "DocumentExpired"
	TypePaymentOverdue  = "PaymentOverdue"
)

// Aggregate types.
const (
	AggregatePerson   = "Person"
	AggregateGroup    = "Group"
	AggregateDocument = "Document"
	AggregatePayment  = "Payment"
)

// PersonCreated is published by the registry service when a person is first
// recorded. Pointer fields are optional.
type PersonCreated struct {
	PersonID      uuid.UUID  `json:"personId"`
	Nome          string     `json:"nome"`
	Cognome       string     `json:"cognome"`
	CodiceFiscale *string    `json:"codiceFiscale,omitempty"`
	Email         *string    `json:"email,omitempty"`
	DataNascita   *time.Time `json:"dataNascita,omitempty"`
}

func (PersonCreated) EventType() string { return TypePersonCreated }
func (PersonCreated) AggregateType() string { return AggregatePerson }
func (p PersonCreated) AggregateID() string { return p.PersonID.String() }
func (p PersonCreated) BusinessKey() uuid.UUID { return p.PersonID }

func (p PersonCreated) Fields() map[string]any {
	f := map[string]any{
		"nome":    p.Nome,
		"cognome": p.Cognome,
	}
	putString(f, "codiceFiscale", p.CodiceFiscale)
	putString(f, "email", p.Email)
	putTime(f, "dataNascita", p.DataNascita)
	return f
}

// PersonUpdated carries only the fields that changed; nil means unchanged.
type PersonUpdated struct {
	PersonID      uuid.UUID  `json:"personId"`
	Nome          *string    `json:"nome,omitempty"`
	Cognome       *string    `json:"cognome,omitempty"`
	CodiceFiscale *string    `json:"codiceFiscale,omitempty"`
	Email         *string    `json:"email,omitempty"`
	DataNascita   *time.Time `json:"dataNascita,omitempty"`
}

func (PersonUpdated) EventType() string { return TypePersonUpdated }
func (PersonUpdated) AggregateType() string { return AggregatePerson }
func (p PersonUpdated) AggregateID() string { return p.PersonID.String() }
func (p PersonUpdated) BusinessKey() uuid.UUID { return p.PersonID }

func (p PersonUpdated) Fields() map[string]any {
	f := map[string]any{}
	putString(f, "nome", p.Nome)
	putString(f, "cognome", p.Cognome)
	putString(f, "codiceFiscale", p.CodiceFiscale)
	putString(f, "email", p.Email)
	putTime(f, "dataNascita", p.DataNascita)
	return f
}

// GroupCreated is published when a training group is opened for a season.
type GroupCreated struct {
	GroupID    uuid.UUID `json:"groupId"`
	AsdID      uuid.UUID `json:"asdId"`
	SeasonID   uuid.UUID `json:"seasonId"`
	Nome       string    `json:"nome"`
	Disciplina string    `json:"disciplina"`
}

func (GroupCreated) EventType() string { return TypeGroupCreated }
func (GroupCreated) AggregateType() string { return AggregateGroup }
func (g GroupCreated) AggregateID() string { return g.GroupID.String() }
func (g GroupCreated) BusinessKey() uuid.UUID { return g.GroupID }

func (g GroupCreated) Fields() map[string]any {
	return map[string]any{
		"asdId":      g.AsdID.String(),
		"seasonId":   g.SeasonID.String(),
		"nome":       g.Nome,
		"disciplina": g.Disciplina,
	}
}

// GroupUpdated carries only the fields that changed; nil means unchanged.
type GroupUpdated struct {
	GroupID    uuid.UUID `json:"groupId"`
	Nome       *string   `json:"nome,omitempty"`
	Disciplina *string   `json:"disciplina,omitempty"`
}

func (GroupUpdated) EventType() string { return TypeGroupUpdated }
func (GroupUpdated) AggregateType() string { return AggregateGroup }
func (g GroupUpdated) AggregateID() string { return g.GroupID.String() }
func (g GroupUpdated) BusinessKey() uuid.UUID { return g.GroupID }

func (g GroupUpdated) Fields() map[string]any {
	f := map[string]any{}
	putString(f, "nome", g.Nome)
	putString(f, "disciplina", g.Disciplina)
	return f
}

// DocumentExpired is emitted once when a compliance document (medical
// certificate, membership card...) moves into EXPIRED.
type DocumentExpired struct {
	DocumentID uuid.UUID `json:"documentId"`
	PersonID   uuid.UUID `json:"personId"`
	AsdID      uuid.UUID `json:"asdId"`
	Tipo       string    `json:"tipo"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (DocumentExpired) EventType() string { return TypeDocumentExpired }
func (DocumentExpired) AggregateType() string { return AggregateDocument }
func (d DocumentExpired) AggregateID() string { return d.DocumentID.String() }

// PaymentOverdue is emitted once when a fee passes its due date unpaid.
type PaymentOverdue struct {
	PaymentID uuid.UUID `json:"paymentId"`
	PersonID  uuid.UUID `json:"personId"`
	AsdID     uuid.UUID `json:"asdId"`
	Causale   string    `json:"causale"`
	DueDate   time.Time `json:"dueDate"`
}

func (PaymentOverdue) EventType() string { return TypePaymentOverdue }
func (PaymentOverdue) AggregateType() string { return AggregatePayment }
func (p PaymentOverdue) AggregateID() string { return p.PaymentID.String() }

// Unknown holds a payload whose event type this process does not know.
type Unknown struct {
	Type      string
	Aggregate string
	ID        string
	Raw       []byte
}

func (u Unknown) EventType() string { return u.Type }
func (u Unknown) AggregateType() string { return u.Aggregate }
func (u Unknown) AggregateID() string { return u.ID }

func putString(f map[string]any, key string, v *string) {
	if v != nil {
		f[key] = *v
	}
}

func putTime(f map[string]any, key string, v *time.Time) {
	if v != nil {
		f[key] = v.UTC().Format(time.RFC3339)
	}
}
