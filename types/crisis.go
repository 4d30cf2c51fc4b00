package types

import "time"

type SituationType string

const (
	Disaster SituationType = "disaster"
	Disease  SituationType = "disease"
	Other    SituationType = "other"
)

type Status string

const (
	Open       Status = "OPEN"
	InProgress Status = "IN_PROGRESS"
	Resolved   Status = "RESOLVED"
	FalseAlarm Status = "FALSE_ALARM"
)

// ActiveStatuses are the statuses that count towards responder scoring.
var ActiveStatuses = []Status{Open, InProgress}

// UnknownLocation is the placeholder name used when no place could be determined.
const UnknownLocation = "Unknown"

// Location sources, recorded so (0,0) can be told apart from a real origin fix.
const (
	SourceRefined    = "refined"
	SourceRaw        = "raw"
	SourceGeocoder   = "geocoder"
	SourceUnresolved = "unresolved"
)

type Location struct {
	Name   string  `firestore:"name" json:"name"`
	Lon    float64 `firestore:"lon" json:"lon"`
	Lat    float64 `firestore:"lat" json:"lat"`
	Source string  `firestore:"source" json:"source"`
}

// HasCoordinates reports whether the location carries a real fix.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lon != 0
}

type CrisisRecord struct {
	ID               string        `firestore:"-" json:"id"`
	Title            string        `firestore:"title" json:"title"`
	Description      string        `firestore:"description" json:"description"`
	SituationType    SituationType `firestore:"situationType" json:"situationType"`
	Severity         float64       `firestore:"severity" json:"severity"`
	Status           Status        `firestore:"status" json:"status"`
	Location         Location      `firestore:"location" json:"location"`
	Analysis         Assessment    `firestore:"analysis" json:"analysis"`
	HandledBy        []string      `firestore:"handledBy" json:"handledBy"`
	NotificationSent bool          `firestore:"notificationSent" json:"notificationSent"`
	RaisedBy         string        `firestore:"raisedBy,omitempty" json:"raisedBy,omitempty"`
	Source           string        `firestore:"source" json:"source"`
	CreatedAt        time.Time     `firestore:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `firestore:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the record still counts as an ongoing situation.
func (r CrisisRecord) IsActive() bool {
	for _, s := range ActiveStatuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

// ResponderOrganization is read-only from the pipeline's point of view.
type ResponderOrganization struct {
	ID           string  `firestore:"-" json:"id"`
	Name         string  `firestore:"name" json:"name"`
	Address      string  `firestore:"address" json:"address"`
	CurrentFunds float64 `firestore:"currentFund" json:"currentFunds"`
	Category     string  `firestore:"type" json:"category"`
}

// ScoringCandidate is built per scoring invocation and never persisted.
type ScoringCandidate struct {
	OrganizationID          string  `json:"organizationId"`
	Name                    string  `json:"name"`
	Address                 string  `json:"address"`
	Category                string  `json:"category"`
	CurrentFunds            float64 `json:"currentFunds"`
	AggregateNearbySeverity float64 `json:"aggregateNearbySeverity"`
	NearbyIncidentCount     int     `json:"nearbyIncidentCount"`
	UrgencyScore            float64 `json:"urgencyScore"`
	Rationale               string  `json:"rationale,omitempty"`
}
