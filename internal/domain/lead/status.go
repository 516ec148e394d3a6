// internal/domain/lead/status.go
package lead

// Status is the lifecycle status of a lead. Statuses are mutually
// exclusive; some require companion fields enforced by ApplyStatusChange.
type Status string

const (
	StatusNew           Status = "New"
	StatusInterested    Status = "Interested"
	StatusNotInterested Status = "Not Interested"
	StatusHot           Status = "Hot"
	StatusFollowUp      Status = "Follow-up"
	StatusWon           Status = "Won"
	StatusLost          Status = "Lost"
	StatusDead          Status = "Dead"
)

// CallStatus tracks whether the currently assigned owner has acted on the
// lead since the last (re)assignment. It resets to Pending whenever the
// assignee changes.
type CallStatus string

const (
	CallStatusPending     CallStatus = "Pending"
	CallStatusInProgress  CallStatus = "In Progress"
	CallStatusCompleted   CallStatus = "Completed"
	CallStatusNotRequired CallStatus = "Not Required"
)

// Sector classifies the lead's business segment.
type Sector string

const (
	SectorRealEstate Sector = "Real Estate"
	SectorInsurance  Sector = "Insurance"
	SectorBanking    Sector = "Banking"
	SectorEducation  Sector = "Education"
	SectorHealthcare Sector = "Healthcare"
	SectorIT         Sector = "IT"
	SectorOther      Sector = "Other"
)

// Region is the administrative region a lead belongs to.
type Region string

const (
	RegionNorth       Region = "North"
	RegionSouth       Region = "South"
	RegionEast        Region = "East"
	RegionWest        Region = "West"
	RegionCentral     Region = "Central"
	RegionUnspecified Region = "Unspecified"
)

// DeadLeadReason is required when a lead is moved to Dead.
type DeadLeadReason string

const (
	DeadReasonInvalidNumber DeadLeadReason = "Invalid Number"
	DeadReasonNotReachable  DeadLeadReason = "Not Reachable"
	DeadReasonDuplicate     DeadLeadReason = "Duplicate"
	DeadReasonDoNotCall     DeadLeadReason = "Do Not Call"
	DeadReasonOther         DeadLeadReason = "Other"
)

var validStatuses = map[Status]bool{
	StatusNew:           true,
	StatusInterested:    true,
	StatusNotInterested: true,
	StatusHot:           true,
	StatusFollowUp:      true,
	StatusWon:           true,
	StatusLost:          true,
	StatusDead:          true,
}

var validCallStatuses = map[CallStatus]bool{
	CallStatusPending:     true,
	CallStatusInProgress:  true,
	CallStatusCompleted:   true,
	CallStatusNotRequired: true,
}

var validSectors = map[Sector]bool{
	SectorRealEstate: true,
	SectorInsurance:  true,
	SectorBanking:    true,
	SectorEducation:  true,
	SectorHealthcare: true,
	SectorIT:         true,
	SectorOther:      true,
}

var validRegions = map[Region]bool{
	RegionNorth:       true,
	RegionSouth:       true,
	RegionEast:        true,
	RegionWest:        true,
	RegionCentral:     true,
	RegionUnspecified: true,
}

var validDeadReasons = map[DeadLeadReason]bool{
	DeadReasonInvalidNumber: true,
	DeadReasonNotReachable:  true,
	DeadReasonDuplicate:     true,
	DeadReasonDoNotCall:     true,
	DeadReasonOther:         true,
}

func (s Status) Valid() bool { return validStatuses[s] }

func (cs CallStatus) Valid() bool { return validCallStatuses[cs] }

func (sec Sector) Valid() bool { return validSectors[sec] }

func (r Region) Valid() bool { return validRegions[r] }

func (d DeadLeadReason) Valid() bool { return validDeadReasons[d] }
