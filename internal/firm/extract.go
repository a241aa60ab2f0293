package firm

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/iapd-pipeline/internal/pipelineerr"
)

// streamXML decodes XML elements matching elementName and sends them to a
// channel; both channels close when decoding finishes. Ported from the
// generic fetcher.StreamXML primitive and kept local to this package since
// firm extraction is its only caller in this module.
func streamXML[T any](ctx context.Context, r io.Reader, elementName string) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := xml.NewDecoder(r)
		decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, eris.Wrapf(err, "firm: unsupported charset %q", charset)
			}
			return enc.NewDecoder().Reader(input), nil
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "firm: context cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "firm: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != elementName {
				continue
			}

			var item T
			if err := decoder.DecodeElement(&item, &se); err != nil {
				errCh <- eris.Wrap(err, "firm: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "firm: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// xmlFirm mirrors the attribute-heavy <Firm> subtree spec.md §6 names.
// Only the attributes the pipeline consumes are declared; everything else
// in the feed is ignored by encoding/xml's default "unknown element" skip.
type xmlFirm struct {
	Info     xmlInfo     `xml:"Info"`
	Rgstn    xmlRgstn    `xml:"Rgstn"`
	Filing   xmlFiling   `xml:"Filing"`
	MainAddr xmlMainAddr `xml:"MainAddr"`
	FormInfo xmlFormInfo `xml:"FormInfo"`
}

type xmlInfo struct {
	SECRegionCode string `xml:"SECRgnCD,attr"`
	CRDNumber     string `xml:"FirmCrdNb,attr"`
	SECNumber     string `xml:"SECNb,attr"`
	BusinessName  string `xml:"BusNm,attr"`
	LegalName     string `xml:"LegalNm,attr"`
}

type xmlRgstn struct {
	FirmType string `xml:"FirmType,attr"`
	State    string `xml:"St,attr"`
	Date     string `xml:"Dt,attr"`
}

type xmlFiling struct {
	Date    string `xml:"Dt,attr"`
	Version string `xml:"FormVrsn,attr"`
}

type xmlMainAddr struct {
	Street1    string `xml:"Strt1,attr"`
	Street2    string `xml:"Strt2,attr"`
	City       string `xml:"City,attr"`
	State      string `xml:"State,attr"`
	Country    string `xml:"Cntry,attr"`
	PostalCode string `xml:"PostlCd,attr"`
	Phone      string `xml:"PhNb,attr"`
	Fax        string `xml:"FaxNb,attr"`
}

type xmlFormInfo struct {
	Part1A xmlPart1A `xml:"Part1A"`
}

type xmlPart1A struct {
	Item5A xmlItem5A `xml:"Item5A"`
	Item5F xmlItem5F `xml:"Item5F"`
}

type xmlItem5A struct {
	TotalEmployees string `xml:"TtlEmp,attr"`
}

type xmlItem5F struct {
	AUM         string `xml:"Q5F2C,attr"`
	NumAccounts string `xml:"Q5F2F,attr"`
}

// filingDateLayout is the feed's <Filing Dt> attribute format (ISO
// YYYY-MM-DD), confirmed against the sample feed.
const filingDateLayout = "2006-01-02"

// formatFilingDate converts the feed's ISO filing date to the stage-1/final
// CSV's MM/DD/YYYY, zero-padded format (spec.md §6's date-formats table).
// Dates that don't match the expected layout pass through unchanged rather
// than being silently blanked.
func formatFilingDate(raw string) string {
	t, err := time.Parse(filingDateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format("01/02/2006")
}

func (f xmlFirm) toRecord() Record {
	return Record{
		CRDNumber:         f.Info.CRDNumber,
		SECRegionCode:     f.Info.SECRegionCode,
		SECNumber:         f.Info.SECNumber,
		SECMemberFlag:     "",
		BusinessName:      f.Info.BusinessName,
		LegalName:         f.Info.LegalName,
		Street1:           f.MainAddr.Street1,
		Street2:           f.MainAddr.Street2,
		City:              f.MainAddr.City,
		State:             f.MainAddr.State,
		Country:           f.MainAddr.Country,
		PostalCode:        f.MainAddr.PostalCode,
		Phone:             f.MainAddr.Phone,
		Fax:               f.MainAddr.Fax,
		FirmType:          f.Rgstn.FirmType,
		RegistrationState: f.Rgstn.State,
		RegistrationDate:  f.Rgstn.Date,
		FilingDate:        formatFilingDate(f.Filing.Date),
		FilingVersion:     f.Filing.Version,
		TotalEmployees:    f.FormInfo.Part1A.Item5A.TotalEmployees,
		AUM:               f.FormInfo.Part1A.Item5F.AUM,
		TotalAccounts:     f.FormInfo.Part1A.Item5F.NumAccounts,
	}
}

// Extract streams <Firm> elements out of the already-decompressed feed
// file FeedAcquirer produces, stopping after indexLimit records (0 means
// unlimited), and returns every parsed Record in feed order. A malformed
// individual element aborts the whole extraction, matching
// ErrXMLParseFatal in spec.md §9: the feed is a single daily snapshot,
// there is no per-record partial-success mode.
func Extract(ctx context.Context, log *zap.Logger, feedPath string, indexLimit int) ([]Record, error) {
	f, err := os.Open(feedPath)
	if err != nil {
		return nil, eris.Wrapf(err, "firm: open feed %s", feedPath)
	}
	defer f.Close() //nolint:errcheck

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	firmCh, errCh := streamXML[xmlFirm](streamCtx, f, "Firm")

	var records []Record
	limitReached := false
	for raw := range firmCh {
		records = append(records, raw.toRecord())
		if indexLimit > 0 && len(records) >= indexLimit {
			log.Info("firm: index_limit reached, stopping extraction", zap.Int("limit", indexLimit))
			limitReached = true
			cancel()
			break
		}
	}

	if err := <-errCh; err != nil && err != io.EOF && !limitReached {
		if ctx.Err() != nil {
			return records, eris.Wrap(err, "firm: stream feed")
		}
		return records, eris.Wrapf(pipelineerr.ErrXMLParseFatal, "firm: stream feed: %v", err)
	}

	log.Info("firm: extraction complete", zap.Int("count", len(records)))
	return records, nil
}
