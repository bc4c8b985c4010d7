// Package resources knows the Open Referral HSDS resource types and where
// each one's table schema comes from.
package resources

import "sort"

// Type names an HSDS resource, such as "organization" or "service".
type Type string

const (
	Organization                 Type = "organization"
	Program                      Type = "program"
	Service                      Type = "service"
	ServiceAtLocation            Type = "service_at_location"
	Location                     Type = "location"
	Phone                        Type = "phone"
	Contact                      Type = "contact"
	PhysicalAddress              Type = "physical_address"
	PostalAddress                Type = "postal_address"
	RegularSchedule              Type = "regular_schedule"
	HolidaySchedule              Type = "holiday_schedule"
	Funding                      Type = "funding"
	Eligibility                  Type = "eligibility"
	ServiceArea                  Type = "service_area"
	RequiredDocument             Type = "required_document"
	PaymentAccepted              Type = "payment_accepted"
	Language                     Type = "language"
	AccessibilityForDisabilities Type = "accessibility_for_disabilities"
	Taxonomy                     Type = "taxonomy"
	ServiceTaxonomy              Type = "service_taxonomy"
	Metadata                     Type = "metadata"
	MetaTableDescription         Type = "meta_table_description"
)

var known = map[Type]bool{
	Organization:                 true,
	Program:                      true,
	Service:                      true,
	ServiceAtLocation:            true,
	Location:                     true,
	Phone:                        true,
	Contact:                      true,
	PhysicalAddress:              true,
	PostalAddress:                true,
	RegularSchedule:              true,
	HolidaySchedule:              true,
	Funding:                      true,
	Eligibility:                  true,
	ServiceArea:                  true,
	RequiredDocument:             true,
	PaymentAccepted:              true,
	Language:                     true,
	AccessibilityForDisabilities: true,
	Taxonomy:                     true,
	ServiceTaxonomy:              true,
	Metadata:                     true,
	MetaTableDescription:         true,
}

// Known reports whether t is one of the HSDS resource types.
func Known(t Type) bool {
	return known[t]
}

// AllTypes returns every HSDS resource type, sorted by name.
func AllTypes() []Type {
	out := make([]Type, 0, len(known))
	for t := range known {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Type) String() string { return string(t) }
