package domain

import (
	"strings"
	"time"
)

// ListingEntry is one candidate row scraped from a directory listing page.
// ProfileURL is canonical: query string and fragment stripped. Two entries
// with the same ProfileURL are considered the same provider.
type ListingEntry struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
}

// CanonicalProfileURL strips the query string and fragment from a raw
// profile link so entries can be deduplicated by identity.
func CanonicalProfileURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// ProfileRecord holds the passively-extracted fields of a provider profile
// page. AcceptedPlans preserves insertion order and is deduplicated; it is
// the only field mutated after initial extraction (verification results are
// merged in).
type ProfileRecord struct {
	Name          string   `json:"name,omitempty"`
	Specialty     string   `json:"specialty,omitempty"`
	Addresses     []string `json:"addresses,omitempty"`
	Phones        []string `json:"phones,omitempty"`
	AcceptedPlans []string `json:"accepted_plans,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Rating        string   `json:"rating,omitempty"`
}

// AddAcceptedPlan appends a plan unless it is already present. Order of
// first appearance is preserved.
func (p *ProfileRecord) AddAcceptedPlan(plan string) {
	for _, existing := range p.AcceptedPlans {
		if existing == plan {
			return
		}
	}
	p.AcceptedPlans = append(p.AcceptedPlans, plan)
}

// ChecklistItem names one insurance plan to verify against a profile.
type ChecklistItem struct {
	Label string `json:"label"`
}

// DefaultChecklist is the fixed roster of plans verified on every run.
func DefaultChecklist() []ChecklistItem {
	return []ChecklistItem{
		{Label: "Aetna"},
		{Label: "Blue Cross Blue Shield"},
		{Label: "Cigna"},
		{Label: "UnitedHealthcare"},
		{Label: "Humana"},
	}
}

// VerificationOutcome is the result of one insurance probe session.
type VerificationOutcome struct {
	Plan     string `json:"plan"`
	Accepted bool   `json:"accepted"`
	Evidence string `json:"evidence,omitempty"`
}

// Review is one place review contributed by the places source.
type Review struct {
	Author string  `json:"author,omitempty"`
	Rating float64 `json:"rating,omitempty"`
	Text   string  `json:"text,omitempty"`
	Time   int64   `json:"time,omitempty"`
}

// PracticeLocation is one practice address contributed by a source.
type PracticeLocation struct {
	Address string  `json:"address,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Source  string  `json:"source,omitempty"`
}

// AggregateRecord is the final merged provider record. Single-valued fields
// follow first-writer-wins across source priority order; AcceptedPlans and
// ServicesOffered accumulate. Sources records which collaborators
// contributed data, in the order they contributed.
type AggregateRecord struct {
	Name              string             `json:"name"`
	Specialty         string             `json:"specialty"`
	Address           string             `json:"address,omitempty"`
	Phone             string             `json:"phone_number,omitempty"`
	LicenseNumber     string             `json:"license_number,omitempty"`
	Rating            string             `json:"rating,omitempty"`
	Website           string             `json:"website,omitempty"`
	Hours             []string           `json:"opening_hours,omitempty"`
	AcceptedPlans     []string           `json:"affiliated_insurance_networks"`
	ServicesOffered   []string           `json:"services_offered"`
	Languages         []string           `json:"languages,omitempty"`
	PracticeLocations []PracticeLocation `json:"practice_locations,omitempty"`
	Reviews           []Review           `json:"reviews,omitempty"`
	ProfileURL        string             `json:"profile_url,omitempty"`
	Sources           []string           `json:"scraped_sources"`
	RetrievedAt       time.Time          `json:"retrieved_at"`
}

// SetAddress fills Address only if it is still empty and the incoming value
// is non-empty.
func (r *AggregateRecord) SetAddress(addr string) {
	if r.Address == "" && addr != "" {
		r.Address = addr
	}
}

// SetPhone fills Phone only if it is still empty and the incoming value is
// non-empty.
func (r *AggregateRecord) SetPhone(phone string) {
	if r.Phone == "" && phone != "" {
		r.Phone = phone
	}
}

// SetRating fills Rating only if it is still empty and the incoming value is
// non-empty.
func (r *AggregateRecord) SetRating(rating string) {
	if r.Rating == "" && rating != "" {
		r.Rating = rating
	}
}

// AddAcceptedPlans merges plans into the accumulated set, preserving the
// order of first appearance.
func (r *AggregateRecord) AddAcceptedPlans(plans ...string) {
	for _, plan := range plans {
		if plan == "" {
			continue
		}
		dup := false
		for _, existing := range r.AcceptedPlans {
			if existing == plan {
				dup = true
				break
			}
		}
		if !dup {
			r.AcceptedPlans = append(r.AcceptedPlans, plan)
		}
	}
}

// AddServices merges offered services, preserving first-appearance order.
func (r *AggregateRecord) AddServices(services ...string) {
	for _, svc := range services {
		if svc == "" {
			continue
		}
		dup := false
		for _, existing := range r.ServicesOffered {
			if existing == svc {
				dup = true
				break
			}
		}
		if !dup {
			r.ServicesOffered = append(r.ServicesOffered, svc)
		}
	}
}

// AddSource records that a collaborator contributed data to this record.
func (r *AggregateRecord) AddSource(source string) {
	for _, existing := range r.Sources {
		if existing == source {
			return
		}
	}
	r.Sources = append(r.Sources, source)
}
