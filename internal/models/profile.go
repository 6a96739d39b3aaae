// internal/models/profile.go
package models

// Profile holds the business attributes used as matching input. It is owned
// by the applicant; the matching engine never mutates it.
type Profile struct {
	ID              string `json:"id"`
	BusinessName    string `json:"businessName,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Region          string `json:"region,omitempty"`
	Country         string `json:"country,omitempty"`
	YearsInBusiness int    `json:"yearsInBusiness"` // -1 when unknown
	RevenueBracket  string `json:"revenueBracket,omitempty"`
	WomanOwned      *bool  `json:"womanOwned,omitempty"`    // nil = unknown
	MinorityOwned   *bool  `json:"minorityOwned,omitempty"` // nil = unknown
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

// HasYears reports whether years-in-business is known.
func (p *Profile) HasYears() bool {
	return p.YearsInBusiness >= 0
}
