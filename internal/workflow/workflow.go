// Package workflow models workflow definitions (types, versions, stages,
// approval levels, formviews) and the application state machine that moves
// applications through them.
package workflow

import "time"

// Status is the lifecycle status shared by workflow versions, assignments
// and other activatable records.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// StageType tags a stage with its behaviour. The set is closed; each type
// has a dedicated state manager.
type StageType string

const (
	StageFormSubmission StageType = "FORM_SUBMISSION"
	StageApprovals      StageType = "APPROVALS"
	StageWaiting        StageType = "WAITING"
	StageFinished       StageType = "FINISHED"
)

// FormviewVisibility controls how a form field appears at a stage.
type FormviewVisibility string

const (
	FormviewEditable         FormviewVisibility = "EDITABLE"
	FormviewEditableRequired FormviewVisibility = "EDITABLE_REQUIRED"
	FormviewReadOnly         FormviewVisibility = "READ_ONLY"
	FormviewHidden           FormviewVisibility = "HIDDEN"
)

// WorkflowType is the human-facing category a workflow belongs to.
type WorkflowType struct {
	ID   int64
	Name string
}

// Workflow is a workflow definition. Versions carry the actual stage graph.
type Workflow struct {
	ID                  int64
	WorkflowTypeID      int64
	WorkflowTypeName    string
	Name                string
	IDNumber            string
	DefaultAssignmentID int64
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// WorkflowVersion is one published revision of a workflow's stage graph.
type WorkflowVersion struct {
	ID         int64
	WorkflowID int64
	Status     Status
	Stages     []*Stage // ascending ordinal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether applications may be created against this version.
func (v *WorkflowVersion) IsActive() bool {
	return v.Status == StatusActive
}

// FirstStage returns the lowest-ordinal stage, or nil for an empty version.
func (v *WorkflowVersion) FirstStage() *Stage {
	if len(v.Stages) == 0 {
		return nil
	}
	return v.Stages[0]
}

// StageByID returns the stage with the given id, or nil.
func (v *WorkflowVersion) StageByID(id int64) *Stage {
	for _, s := range v.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// NextStage returns the stage after the given one, or nil at the end.
func (v *WorkflowVersion) NextStage(stageID int64) *Stage {
	for i, s := range v.Stages {
		if s.ID == stageID && i+1 < len(v.Stages) {
			return v.Stages[i+1]
		}
	}
	return nil
}

// PreviousStage returns the stage before the given one, or nil at the start.
func (v *WorkflowVersion) PreviousStage(stageID int64) *Stage {
	for i, s := range v.Stages {
		if s.ID == stageID && i > 0 {
			return v.Stages[i-1]
		}
	}
	return nil
}

// LevelByID returns the approval level with the given id from any stage in
// this version, or nil.
func (v *WorkflowVersion) LevelByID(id int64) *ApprovalLevel {
	for _, s := range v.Stages {
		for _, l := range s.ApprovalLevels {
			if l.ID == id {
				return l
			}
		}
	}
	return nil
}

// HasApprovalLevel reports whether the level belongs to this version.
func (v *WorkflowVersion) HasApprovalLevel(id int64) bool {
	return v.LevelByID(id) != nil
}

// Stage is one step of a workflow version.
type Stage struct {
	ID                int64
	WorkflowVersionID int64
	Name              string
	Type              StageType
	Ordinal           int // 1-based position within the version
	Active            bool
	ApprovalLevels    []*ApprovalLevel // ascending ordinal; only for APPROVALS stages
	Formviews         []*Formview
}

// FirstLevel returns the lowest-ordinal approval level, or nil.
func (s *Stage) FirstLevel() *ApprovalLevel {
	if len(s.ApprovalLevels) == 0 {
		return nil
	}
	return s.ApprovalLevels[0]
}

// LastLevel returns the highest-ordinal approval level, or nil.
func (s *Stage) LastLevel() *ApprovalLevel {
	if len(s.ApprovalLevels) == 0 {
		return nil
	}
	return s.ApprovalLevels[len(s.ApprovalLevels)-1]
}

// LevelByID returns the approval level with the given id, or nil.
func (s *Stage) LevelByID(id int64) *ApprovalLevel {
	for _, l := range s.ApprovalLevels {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// NextLevel returns the level after the given one within this stage, or nil.
func (s *Stage) NextLevel(levelID int64) *ApprovalLevel {
	for i, l := range s.ApprovalLevels {
		if l.ID == levelID && i+1 < len(s.ApprovalLevels) {
			return s.ApprovalLevels[i+1]
		}
	}
	return nil
}

// HasEditableFormviews reports whether at least one form field can be edited
// at this stage.
func (s *Stage) HasEditableFormviews() bool {
	for _, fv := range s.Formviews {
		if fv.Visibility == FormviewEditable || fv.Visibility == FormviewEditableRequired {
			return true
		}
	}
	return false
}

// ApprovalLevel is an ordered sign-off checkpoint within an APPROVALS stage.
type ApprovalLevel struct {
	ID      int64
	StageID int64
	Name    string
	Ordinal int // 1-based within the stage
	Active  bool
}

// IsFirst reports whether this is the lowest-ordinal level of its stage.
func (l *ApprovalLevel) IsFirst() bool {
	return l.Ordinal == 1
}

// Formview binds a form field to a stage with a visibility rule.
type Formview struct {
	ID           int64
	StageID      int64
	FieldKey     string
	Visibility   FormviewVisibility
	DefaultValue string
	Active       bool
}
