package ghl

import (
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/contact"
)

const (
	// ImportTag is added to every imported contact next to the smart-list tag.
	ImportTag = "EXA_IMPORT"
	// ImportSource is the contact source label shown in the CRM.
	ImportSource = "EXA_AI_IMPORT"
	// SmartListColor is the color used for smart-list tags.
	SmartListColor = "#3b82f6"

	importSourceField = "EXA_AI"
	defaultCategory   = "Business"
)

type CustomField struct {
	Key        string `json:"key"`
	FieldValue string `json:"field_value"`
}

// ContactPayload is the body of POST /contacts/.
type ContactPayload struct {
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	Website      string        `json:"website,omitempty"`
	CompanyName  string        `json:"companyName"`
	LocationID   string        `json:"locationId"`
	Tags         []string      `json:"tags"`
	Source       string        `json:"source"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// SplitName returns the first whitespace-separated token and the rest of the name.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// BuildContactPayload maps a contact onto the CRM contact body. The business name doubles as
// the company name. The rating custom field is the synthetic page-quality score, not a review.
func BuildContactPayload(c contact.Contact, listName string, now time.Time) ContactPayload {
	first, last := SplitName(c.Name)
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = defaultCategory
	}
	fields := []CustomField{
		{Key: "business_category", FieldValue: category},
		{Key: "rating", FieldValue: strconv.FormatFloat(c.Rating, 'f', -1, 64)},
		{Key: "description", FieldValue: strings.TrimSpace(c.Description)},
		{Key: "import_source", FieldValue: importSourceField},
		{Key: "import_date", FieldValue: now.UTC().Format(time.DateOnly)},
	}
	if c.EmailGenerated {
		fields = append(fields, CustomField{Key: "email_generated", FieldValue: "true"})
	}
	kept := fields[:0]
	for _, f := range fields {
		if f.FieldValue != "" {
			kept = append(kept, f)
		}
	}

	tags := []string{ImportTag}
	if list := strings.TrimSpace(listName); list != "" {
		tags = []string{list, ImportTag}
	}

	return ContactPayload{
		FirstName:    first,
		LastName:     last,
		Name:         strings.TrimSpace(c.Name),
		Email:        strings.TrimSpace(c.Email),
		Phone:        strings.TrimSpace(c.Phone),
		Address1:     strings.TrimSpace(c.Address),
		Website:      strings.TrimSpace(c.Website),
		CompanyName:  strings.TrimSpace(c.Name),
		Tags:         tags,
		Source:       ImportSource,
		CustomFields: kept,
	}
}
