package models

import "time"

// StageStatus captures per-stage states of a clearance request.
type StageStatus string

const (
	StagePending       StageStatus = "pending"
	StageApproved      StageStatus = "approved"
	StageRejected      StageStatus = "rejected"
	StageNotApplicable StageStatus = "not_applicable"
)

// OverallStatus is the derived status of the whole request.
type OverallStatus string

const (
	OverallPending        OverallStatus = "Pending"
	OverallApproved       OverallStatus = "Approved"
	OverallRejected       OverallStatus = "Rejected"
	OverallActionRequired OverallStatus = "Action Required"
)

// ClearanceStage identifies which approval stage a decision targets.
type ClearanceStage string

const (
	StageClub       ClearanceStage = "club"
	StageDepartment ClearanceStage = "department"
	StageSSG        ClearanceStage = "ssg"
)

// ClearanceRequest is a student's clearance application moving through the
// club → department → SSG approval stages. Department and club names are
// snapshots taken when the request is created; they are never re-derived.
type ClearanceRequest struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"studentId"`
	StudentName    string    `db:"student_name" json:"studentName"`
	DepartmentID   string    `db:"department_id" json:"departmentId"`
	DepartmentName string    `db:"department_name" json:"departmentName"`
	ClubID         *string   `db:"club_id" json:"clubId,omitempty"`
	ClubName       *string   `db:"club_name" json:"clubName,omitempty"`
	RequestedAt    time.Time `db:"requested_at" json:"requestedAt"`

	ClubApprovalStatus StageStatus `db:"club_approval_status" json:"clubApprovalStatus"`
	ClubApproverID     *string     `db:"club_approver_id" json:"clubApproverId,omitempty"`
	ClubApprovalDate   *time.Time  `db:"club_approval_date" json:"clubApprovalDate,omitempty"`
	ClubApprovalNotes  *string     `db:"club_approval_notes" json:"clubApprovalNotes,omitempty"`

	DepartmentApprovalStatus StageStatus `db:"department_approval_status" json:"departmentApprovalStatus"`
	DepartmentApproverID     *string     `db:"department_approver_id" json:"departmentApproverId,omitempty"`
	DepartmentApprovalDate   *time.Time  `db:"department_approval_date" json:"departmentApprovalDate,omitempty"`
	DepartmentApprovalNotes  *string     `db:"department_approval_notes" json:"departmentApprovalNotes,omitempty"`

	SSGStatus        StageStatus `db:"ssg_status" json:"ssgStatus"`
	SSGApproverID    *string     `db:"ssg_approver_id" json:"ssgApproverId,omitempty"`
	SSGApprovalDate  *time.Time  `db:"ssg_approval_date" json:"ssgApprovalDate,omitempty"`
	SSGApprovalNotes *string     `db:"ssg_approval_notes" json:"ssgApprovalNotes,omitempty"`

	OverallStatus      OverallStatus `db:"overall_status" json:"overallStatus"`
	UnifiedClearanceID *string       `db:"unified_clearance_id" json:"unifiedClearanceID,omitempty"`
}

// Terminal reports whether the request can no longer change.
func (r *ClearanceRequest) Terminal() bool {
	return r.OverallStatus == OverallApproved || r.OverallStatus == OverallRejected
}

// StageState returns the current status of the given stage.
func (r *ClearanceRequest) StageState(stage ClearanceStage) StageStatus {
	switch stage {
	case StageClub:
		return r.ClubApprovalStatus
	case StageDepartment:
		return r.DepartmentApprovalStatus
	case StageSSG:
		return r.SSGStatus
	}
	return ""
}

// ClearanceFilter constrains clearance listing queries.
type ClearanceFilter struct {
	StudentID    string
	DepartmentID string
	ClubID       string
	Overall      []OverallStatus
	Limit        int
	Offset       int
}

// ClearanceSummary aggregates request counts by overall status.
type ClearanceSummary struct {
	Pending     int       `json:"pending"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generatedAt"`
}
