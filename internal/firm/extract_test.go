package firm

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleFeed = `<?xml version="1.0"?>
<IAFirms>
  <Firm>
    <Info SECRgnCD="NER" FirmCrdNb="123456" SECNb="801-1" BusNm="Acme Advisors" LegalNm="Acme Advisors LLC"/>
    <Rgstn FirmType="Investment Adviser" St="NY" Dt="2020-01-15"/>
    <Filing Dt="2025-04-03" FormVrsn="2024-10"/>
    <MainAddr Strt1="1 Main St" Strt2="" City="New York" State="NY" Cntry="United States" PostlCd="10001" PhNb="2125551212" FaxNb=""/>
    <FormInfo><Part1A>
      <Item5A TtlEmp="19"/>
      <Item5F Q5F2C="1000000" Q5F2F="7"/>
    </Part1A></FormInfo>
  </Firm>
  <Firm>
    <Info SECRgnCD="SER" FirmCrdNb="654321" SECNb="801-2" BusNm="Beta Capital" LegalNm="Beta Capital LP"/>
    <Rgstn FirmType="Investment Adviser" St="FL" Dt="2019-06-01"/>
    <Filing Dt="2025-04-03" FormVrsn="2024-10"/>
    <MainAddr Strt1="2 Ocean Dr" Strt2="Suite 5" City="Miami" State="FL" Cntry="United States" PostlCd="33101" PhNb="3055551212" FaxNb="3055551213"/>
    <FormInfo><Part1A>
      <Item5A TtlEmp="4"/>
      <Item5F Q5F2C="500000" Q5F2F="2"/>
    </Part1A></FormInfo>
  </Firm>
</IAFirms>`

func writeFeedFile(t *testing.T, dir, xmlBody string) string {
	t.Helper()
	path := filepath.Join(dir, "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(xmlBody), 0o644))
	return path
}

func TestExtractParsesAllFirms(t *testing.T) {
	dir := t.TempDir()
	path := writeFeedFile(t, dir, sampleFeed)

	records, err := Extract(context.Background(), zap.NewNop(), path, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "123456", records[0].CRDNumber)
	assert.Equal(t, "NER", records[0].SECRegionCode)
	assert.Equal(t, "Acme Advisors", records[0].BusinessName)
	assert.Equal(t, "Acme Advisors LLC", records[0].LegalName)
	assert.Equal(t, "New York", records[0].City)
	assert.Equal(t, "19", records[0].TotalEmployees)
	assert.Equal(t, "1000000", records[0].AUM)
	assert.Equal(t, "7", records[0].TotalAccounts)
	assert.Equal(t, "04/03/2025", records[0].FilingDate)
	assert.Equal(t, "2020-01-15", records[0].RegistrationDate)
	assert.Equal(t, "", records[0].SECMemberFlag)

	assert.Equal(t, "654321", records[1].CRDNumber)
	assert.Equal(t, "Suite 5", records[1].Street2)
}

func TestExtractRespectsIndexLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFeedFile(t, dir, sampleFeed)

	records, err := Extract(context.Background(), zap.NewNop(), path, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "123456", records[0].CRDNumber)
}

func TestExtractMalformedXMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xml")
	require.NoError(t, os.WriteFile(path, []byte("<IAFirms><Firm><Info"), 0o644))

	_, err := Extract(context.Background(), zap.NewNop(), path, 0)
	assert.Error(t, err)
}

func TestExtractMissingFileErrors(t *testing.T) {
	_, err := Extract(context.Background(), zap.NewNop(), filepath.Join(t.TempDir(), "missing.xml"), 0)
	assert.Error(t, err)
}

func TestWriteStage1ProducesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "stage1.csv")

	records, err := Extract(context.Background(), zap.NewNop(), writeFeedFile(t, dir, sampleFeed), 0)
	require.NoError(t, err)

	require.NoError(t, WriteStage1(out, "04/03/2025", records))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("dateAdded,SECRgmCD,FirmCrdNb")))
	assert.Contains(t, string(data), "Acme Advisors")
}

func TestFormatFilingDateConvertsISOToSlashFormat(t *testing.T) {
	assert.Equal(t, "04/03/2025", formatFilingDate("2025-04-03"))
	assert.Equal(t, "01/05/2019", formatFilingDate("2019-01-05"))
}

func TestFormatFilingDatePassesThroughUnparseable(t *testing.T) {
	assert.Equal(t, "", formatFilingDate(""))
	assert.Equal(t, "garbage", formatFilingDate("garbage"))
}

func TestByCRDIndexesNonEmptyCRDs(t *testing.T) {
	m := ByCRD([]Record{{CRDNumber: "1"}, {CRDNumber: ""}, {CRDNumber: "2"}})
	assert.Len(t, m, 2)
	_, ok := m["1"]
	assert.True(t, ok)
}
