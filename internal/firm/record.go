// Package firm implements component B (FirmExtractor): parsing the daily
// IAPD feed XML into FirmRecords and writing the stage-1 CSV.
package firm

// Record is the identity+attribute projection of one <Firm> element
// (spec.md §3). firm_crd_number is required and non-empty for any record
// that reaches the stage-1 file; missing attributes are always the empty
// string, never a sentinel.
type Record struct {
	CRDNumber        string
	SECRegionCode    string
	SECNumber        string
	SECMemberFlag    string
	BusinessName     string
	LegalName        string
	Street1          string
	Street2          string
	City             string
	State            string
	Country          string
	PostalCode       string
	Phone            string
	Fax              string
	FirmType         string
	RegistrationState string
	RegistrationDate string
	FilingDate       string // MM/DD/YYYY
	FilingVersion    string
	TotalEmployees   string
	AUM              string
	TotalAccounts    string
}

// Header is the stage-1 CSV column order, fixed per spec.md §4.B.
// BrochureURL is always empty at this stage; it exists only to keep the
// column contract identical across the pipeline.
var Header = []string{
	"dateAdded", "SECRgmCD", "FirmCrdNb", "SECMb", "Business Name", "Legal Name",
	"Street 1", "Street 2", "City", "State", "Country", "Postal Code",
	"Telephone #", "Fax #", "Registration Firm Type", "Registration State",
	"Registration Date", "Filing Date", "Filing Version", "Total Employees",
	"AUM", "Total Accounts", "BrochureURL",
}

// Row renders r as a stage-1 CSV record for the given run date
// (MM/DD/YYYY, already formatted by the caller).
func (r Record) Row(dateAdded string) []string {
	return []string{
		dateAdded, r.SECRegionCode, r.CRDNumber, r.SECMemberFlag, r.BusinessName,
		r.LegalName, r.Street1, r.Street2, r.City, r.State, r.Country,
		r.PostalCode, r.Phone, r.Fax, r.FirmType, r.RegistrationState,
		r.RegistrationDate, r.FilingDate, r.FilingVersion, r.TotalEmployees,
		r.AUM, r.TotalAccounts, "",
	}
}
