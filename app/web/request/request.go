// Package request contains validated input types for the web handlers and the seed loader
package request

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/umputun/jobboard/app/web/enums"
)

// ErrInvalidJobType returned when job_type is not one of enums.JobTypeValues
var ErrInvalidJobType = errors.New("invalid job type")

// MissingFieldsError lists required fields absent or blank in the input
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewPosting contains all fields needed to publish a posting
type NewPosting struct {
	Title        string
	Company      string
	Location     string
	JobType      string
	Description  string
	Requirements string
	SalaryRange  string
	HowToApply   string
}

// form field names, in the order they are shown and reported
const (
	FieldTitle        = "title"
	FieldCompany      = "company"
	FieldLocation     = "location"
	FieldJobType      = "job_type"
	FieldDescription  = "description"
	FieldRequirements = "requirements"
	FieldSalaryRange  = "salary_range"
	FieldHowToApply   = "how_to_apply"
)

// ParseNewPosting reads posting fields from submitted form values.
// Surrounding whitespace is trimmed, the result is not validated.
func ParseNewPosting(form url.Values) NewPosting {
	get := func(key string) string { return strings.TrimSpace(form.Get(key)) }
	return NewPosting{
		Title:        get(FieldTitle),
		Company:      get(FieldCompany),
		Location:     get(FieldLocation),
		JobType:      get(FieldJobType),
		Description:  get(FieldDescription),
		Requirements: get(FieldRequirements),
		SalaryRange:  get(FieldSalaryRange),
		HowToApply:   get(FieldHowToApply),
	}
}

// Validate checks all required fields are present and job type is known.
// Returns *MissingFieldsError first, ErrInvalidJobType (wrapped) second.
func (p NewPosting) Validate() (enums.JobType, error) {
	fields := []struct {
		name, value string
	}{
		{FieldTitle, p.Title},
		{FieldCompany, p.Company},
		{FieldLocation, p.Location},
		{FieldJobType, p.JobType},
		{FieldDescription, p.Description},
		{FieldRequirements, p.Requirements},
		{FieldSalaryRange, p.SalaryRange},
		{FieldHowToApply, p.HowToApply},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return enums.JobType{}, &MissingFieldsError{Fields: missing}
	}

	jt, err := enums.ParseJobType(p.JobType)
	if err != nil {
		return enums.JobType{}, fmt.Errorf("%w: %q", ErrInvalidJobType, p.JobType)
	}
	return jt, nil
}

// Credentials submitted by the login form
type Credentials struct {
	Username string
	Password string
}

// ParseCredentials reads login fields from submitted form values
func ParseCredentials(form url.Values) Credentials {
	return Credentials{Username: strings.TrimSpace(form.Get("username")), Password: form.Get("password")}
}
