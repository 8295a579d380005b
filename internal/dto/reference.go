package dto

// CreateSubjectRequest registers a subject.
type CreateSubjectRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Hours       int    `json:"hours" validate:"required,min=1"`
	RequiresLab bool   `json:"requiresLab"`
	Priority    *int   `json:"priority" validate:"omitempty,min=1,max=3"`
}

// CreateTeacherRequest registers a teacher with qualifications and eligible years.
type CreateTeacherRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	SubjectIDs []string `json:"subjectIds" validate:"omitempty,dive,required"`
	Years      []int    `json:"years" validate:"omitempty,dive,min=1"`
}

// CreateClassRequest registers a year/section cohort.
type CreateClassRequest struct {
	Year          int    `json:"year" validate:"required,min=1"`
	Section       string `json:"section" validate:"required,max=20"`
	StudentsCount int    `json:"studentsCount" validate:"required,min=1"`
}

// MessageResponse carries a human readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
