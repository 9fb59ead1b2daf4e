package aggregate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"github.com/google/uuid"
)

// Dashboard section names.
const (
	SectionMembers      = "members"
	SectionCompliance   = "compliance"
	SectionFinance      = "finance"
	SectionCompetitions = "competitions"

	satelliteSectionPrefix = "satellite:"
)

// ErrNoData is returned when not a single section of a dashboard could be
// loaded.
var ErrNoData = errors.New("no dashboard data available")

// MembersSummary is served by the members backend.
type MembersSummary struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	NewThisSeason int `json:"newThisSeason"`
}

// ComplianceSummary counts documents by status.
type ComplianceSummary struct {
	Valid        int `json:"valid"`
	ExpiringSoon int `json:"expiringSoon"`
	Expired      int `json:"expired"`
}

// FinanceSummary is served by the payments backend. Amounts are in cents.
type FinanceSummary struct {
	CollectedCents   int64 `json:"collectedCents"`
	OutstandingCents int64 `json:"outstandingCents"`
	OverdueCount     int   `json:"overdueCount"`
}

type CompetitionRef struct {
	ID   uuid.UUID `json:"id"`
	Nome string    `json:"nome"`
	Date time.Time `json:"date"`
}

type CompetitionsSummary struct {
	Upcoming int              `json:"upcoming"`
	Next     []CompetitionRef `json:"next"`
}

// DashboardView is the typed club dashboard. Absent sections are nil and
// listed in Missing.
type DashboardView struct {
	AsdID        uuid.UUID                    `json:"asdId"`
	SeasonID     uuid.UUID                    `json:"seasonId"`
	Members      *MembersSummary              `json:"members"`
	Compliance   *ComplianceSummary           `json:"compliance"`
	Finance      *FinanceSummary              `json:"finance"`
	Competitions *CompetitionsSummary         `json:"competitions"`
	Satellites   map[string]*satellite.Roster `json:"satellites"`
	Missing      []string                     `json:"missingSections"`
	PartialData  bool                         `json:"partialData"`
}

// JSONGetter is the read side of a generic backend. remote.Client satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Rosters loads a club roster from the satellite of a discipline.
type Rosters interface {
	Roster(ctx context.Context, disciplina string, asdID, seasonID uuid.UUID) (*satellite.Roster, error)
}

// Backends groups the generic backends feeding the dashboard. A nil backend
// makes its section permanently absent.
type Backends struct {
	Members      JSONGetter
	Compliance   JSONGetter
	Finance      JSONGetter
	Competitions JSONGetter
}

type Dashboard struct {
	aggregator  *Aggregator
	backends    Backends
	rosters     Rosters
	disciplines []string
}

// NewDashboard builds a dashboard over the given backends and one roster
// section per discipline.
func NewDashboard(a *Aggregator, b Backends, rosters Rosters, disciplines []string) *Dashboard {
	if a == nil {
		panic("aggregator is mandatory")
	}
	if rosters == nil && len(disciplines) > 0 {
		panic("rosters source is mandatory when disciplines are configured")
	}
	return &Dashboard{
		aggregator:  a,
		backends:    b,
		rosters:     rosters,
		disciplines: append([]string(nil), disciplines...),
	}
}

// Build loads the dashboard of a club for a season. It returns ErrNoData,
// together with the empty view, when every section is absent.
func (d *Dashboard) Build(ctx context.Context, asdID, seasonID uuid.UUID) (*DashboardView, error) {
	query := url.Values{"season": []string{seasonID.String()}}
	sections := []Section{
		backendSection[MembersSummary](SectionMembers, d.backends.Members, asdID, "members", query),
		backendSection[ComplianceSummary](SectionCompliance, d.backends.Compliance, asdID, "documents", query),
		backendSection[FinanceSummary](SectionFinance, d.backends.Finance, asdID, "payments", query),
		backendSection[CompetitionsSummary](SectionCompetitions, d.backends.Competitions, asdID, "competitions", query),
	}
	for _, disciplina := range d.disciplines {
		disciplina := disciplina
		sections = append(sections, Section{
			Name:    satelliteSectionPrefix + disciplina,
			Backend: disciplina,
			Fetch: Typed(func(ctx context.Context) (*satellite.Roster, error) {
				return d.rosters.Roster(ctx, disciplina, asdID, seasonID)
			}),
		})
	}

	v := d.aggregator.Aggregate(ctx, sections)

	view := &DashboardView{
		AsdID:       asdID,
		SeasonID:    seasonID,
		Satellites:  make(map[string]*satellite.Roster, len(d.disciplines)),
		Missing:     v.Missing,
		PartialData: v.PartialData,
	}
	view.Members, _ = section[MembersSummary](v, SectionMembers)
	view.Compliance, _ = section[ComplianceSummary](v, SectionCompliance)
	view.Finance, _ = section[FinanceSummary](v, SectionFinance)
	view.Competitions, _ = section[CompetitionsSummary](v, SectionCompetitions)
	for _, disciplina := range d.disciplines {
		if r, ok := section[satellite.Roster](v, satelliteSectionPrefix+disciplina); ok {
			view.Satellites[disciplina] = r
		}
	}

	if len(v.Sections) == 0 {
		return view, ErrNoData
	}
	return view, nil
}

func backendSection[T any](name string, backend JSONGetter, asdID uuid.UUID, resource string, query url.Values) Section {
	return Section{
		Name:    name,
		Backend: resource,
		Fetch: Typed(func(ctx context.Context) (*T, error) {
			if backend == nil {
				return nil, fmt.Errorf("no backend configured for '%s'", resource)
			}
			out := new(T)
			path := fmt.Sprintf("/api/asd/%s/%s/summary", asdID, resource)
			if err := backend.GetJSON(ctx, path, query, out); err != nil {
				return nil, err
			}
			return out, nil
		}),
	}
}

func section[T any](v *View, name string) (*T, bool) {
	s, ok := v.Get(name)
	if !ok {
		return nil, false
	}
	t, ok := s.(*T)
	return t, ok
}
