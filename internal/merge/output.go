// Package merge implements component F (OutputMerger): joining FirmRecords
// with downloaded brochures and their classification into the final
// denormalized rows, and maintaining the append-only master CSV.
package merge

import (
	"strings"

	"github.com/sells-group/iapd-pipeline/internal/classify"
	"github.com/sells-group/iapd-pipeline/internal/firm"
)

// Header is the final 38-column output header (spec.md §6).
var Header = []string{
	"dateAdded", "SECRgmCD", "FirmCrdNb", "SECMb", "Business Name", "Legal Name",
	"Street 1", "Street 2", "City", "State", "Country", "Postal Code",
	"Telephone #", "Fax #", "Registration Firm Type", "Registration State",
	"Registration Date", "Filing Date", "Filing Version", "Total Employees",
	"AUM", "Total Accounts", "BrochureURL",
	"brochureVersionId", "brochureName", "dateSubmitted", "dateConfirmed", "File Name",
	"Proxy Provider", "Class Action Provider", "ESG Provider", "ESG Investment Language",
	"Email -- Compliance", "Email -- Proxy", "Email -- Brochure", "Email -- Item 17", "Email -- All",
	"Does Not Vote String",
}

// setSep joins set-valued fields in first-match order (spec.md §6).
const setSep = "|"

// Row is one (firm, brochure) output row.
type Row struct {
	Firm          firm.Record
	DateAdded     string
	VersionID     string
	BrochureName  string
	DateSubmitted string
	DateConfirmed string
	FileName      string
	Analysis      classify.Analysis
}

// Render produces the CSV record for r in Header order.
func (r Row) Render() []string {
	a := r.Analysis
	return []string{
		r.DateAdded, r.Firm.SECRegionCode, r.Firm.CRDNumber, r.Firm.SECMemberFlag,
		r.Firm.BusinessName, r.Firm.LegalName, r.Firm.Street1, r.Firm.Street2,
		r.Firm.City, r.Firm.State, r.Firm.Country, r.Firm.PostalCode,
		r.Firm.Phone, r.Firm.Fax, r.Firm.FirmType, r.Firm.RegistrationState,
		r.Firm.RegistrationDate, r.Firm.FilingDate, r.Firm.FilingVersion,
		r.Firm.TotalEmployees, r.Firm.AUM, r.Firm.TotalAccounts, "",
		r.VersionID, r.BrochureName, r.DateSubmitted, r.DateConfirmed, r.FileName,
		strings.Join(a.ProxyProviders, setSep),
		strings.Join(a.ClassActionProviders, setSep),
		strings.Join(a.ESGProviders, setSep),
		a.ESGLanguageExcerpt,
		strings.Join(a.EmailCompliance, setSep),
		strings.Join(a.EmailProxy, setSep),
		strings.Join(a.EmailBrochure, setSep),
		strings.Join(a.EmailItem17, setSep),
		strings.Join(a.EmailAll, setSep),
		a.DoesNotVoteMarker,
	}
}
