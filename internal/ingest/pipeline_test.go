package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/standardize"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

const scenarioCSV = "Customer,Total Cost,Bill Amount,Tracking ID\n" +
	"Globex,10,15,T1\n" +
	"Globex,$20.00,25,T2\n" +
	"Initech,,5,T3\n" +
	"Initech,0,0,T4\n"

func newPipeline(t *testing.T, opts Options) (*Pipeline, *billing.Service) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.NewMemoryBackend(), "", zap.NewNop())
	require.NoError(t, err)
	svc, err := billing.Open(ctx, st, billing.Options{})
	require.NoError(t, err)
	return New(svc, opts), svc
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunScenario(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	path := writeFile(t, "acme.csv", scenarioCSV)

	res := p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "acme.csv", res.Filename)
	assert.Len(t, res.FileHash, 16)
	assert.Equal(t, standardize.Counts{RowsRead: 4, MissingAmounts: 1, ZeroAmounts: 1, Valid: 2}, res.Counts)
	assert.Contains(t, res.Message, "Successfully imported 2 shipments for Acme (2024-01)")
	assert.Contains(t, res.Message, "skipped 2 of 4 rows")

	aggs := svc.Aggregates(types.Filter{})
	require.Len(t, aggs, 1)
	assert.Equal(t, "Globex", aggs[0].Client)
	assert.Equal(t, 2, aggs[0].ShipmentCount)
	assert.Equal(t, "30", aggs[0].TotalCost.String())
	assert.Equal(t, "40", aggs[0].TotalBillable.String())
	assert.Equal(t, "10", aggs[0].Profit.String())
	assert.Equal(t, "25", aggs[0].ProfitMargin.Decimal.String())

	records := svc.Query(types.Filter{})
	require.Len(t, records, 2)
	assert.Equal(t, res.FileHash, records[0].FileHash)
	assert.Equal(t, "T1", records[0].TrackingNumber)
}

func TestRunRejectsDuplicateFile(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	path := writeFile(t, "acme.csv", scenarioCSV)
	ctx := context.Background()

	require.True(t, p.Run(ctx, Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"}).Success)

	res := p.Run(ctx, Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	assert.False(t, res.Success)
	var dup *billing.DuplicateFileError
	assert.True(t, errors.As(res.Error, &dup))
	assert.Len(t, svc.Query(types.Filter{}), 2)
}

func TestRunReplace(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	ctx := context.Background()
	require.True(t, p.Run(ctx, Request{Path: writeFile(t, "a.csv", scenarioCSV), Carrier: "Acme", CyclePeriod: "2024-01"}).Success)

	corrected := "Customer,Total Cost,Bill Amount\nGlobex,11,15\nGlobex,21,25\nInitech,1,2\n"
	path := writeFile(t, "a2.csv", corrected)

	res := p.Run(ctx, Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	var dupKey *billing.DuplicateLogicalKeyError
	require.True(t, errors.As(res.Error, &dupKey))
	assert.Equal(t, 2, dupKey.ExistingCount)

	res = p.Run(ctx, Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01", Replace: true})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Stats.RecordsReplaced)

	_, n := svc.CheckExisting(types.CarrierCycle{Carrier: "Acme", CyclePeriod: "2024-01"})
	assert.Equal(t, 3, n)
}

func TestRunDropsOutOfRangeAmounts(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	content := "Customer,Total Cost,Bill Amount\n" +
		"Globex,10,15\n" +
		"Globex,1e90000000,25\n" +
		"Globex,20,1e400\n"
	path := writeFile(t, "a.csv", content)

	res := p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, standardize.Counts{RowsRead: 3, MissingAmounts: 2, Valid: 1}, res.Counts)

	aggs := svc.Aggregates(types.Filter{})
	require.Len(t, aggs, 1)
	assert.Equal(t, "10", aggs[0].TotalCost.String())
	assert.Equal(t, "15", aggs[0].TotalBillable.String())
}

func TestRunMissingColumns(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	path := writeFile(t, "a.csv", "Customer,Bill Amount\nGlobex,15\n")

	res := p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	require.False(t, res.Success)
	var missing *columnmap.MissingColumnsError
	require.True(t, errors.As(res.Error, &missing))
	assert.Equal(t, []columnmap.Field{columnmap.FieldCost}, missing.Missing)
	assert.Empty(t, svc.UploadHistory(0, true))
}

func TestRunNoValidRecords(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	path := writeFile(t, "a.csv", "Customer,Cost,Billable\nGlobex,,\nGlobex,0,0\n")

	res := p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	require.False(t, res.Success)
	var none *standardize.NoValidRecordsError
	assert.True(t, errors.As(res.Error, &none))
	assert.Equal(t, 2, res.Counts.RowsRead)
	assert.Empty(t, svc.Query(types.Filter{}))
}

func TestRunFileErrors(t *testing.T) {
	cfg := config.Default()
	cfg.MaxFileMB = 1
	p, _ := newPipeline(t, Options{Config: cfg})
	ctx := context.Background()

	res := p.Run(ctx, Request{Path: filepath.Join(t.TempDir(), "missing.csv"), Carrier: "A", CyclePeriod: "c"})
	var notFound *FileNotFoundError
	assert.True(t, errors.As(res.Error, &notFound))

	res = p.Run(ctx, Request{Path: writeFile(t, "invoice.pdf", "%PDF"), Carrier: "A", CyclePeriod: "c"})
	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(res.Error, &unsupported))
	assert.Equal(t, ".pdf", unsupported.Ext)

	big := strings.Repeat("x", 1<<20+1)
	res = p.Run(ctx, Request{Reader: strings.NewReader(big), Filename: "big.csv", Carrier: "A", CyclePeriod: "c"})
	var tooLarge *FileTooLargeError
	assert.True(t, errors.As(res.Error, &tooLarge))

	res = p.Run(ctx, Request{Path: writeFile(t, "a.csv", scenarioCSV), CyclePeriod: "c"})
	assert.ErrorIs(t, res.Error, billing.ErrMissingKey)
}

func TestRunXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Client", "Cost", "Billable", "Ship Date"},
		{"Globex", 10, 15, "2024-01-05"},
		{"Initech", 2.5, 4, "2024-01-06"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	p, svc := newPipeline(t, Options{})
	res := p.Run(context.Background(), Request{
		Reader: &buf, Filename: "Fedex_2024-01.xlsx", Carrier: "Fedex", CyclePeriod: "2024-01",
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Counts.Valid)

	records := svc.Query(types.Filter{Client: "Initech"})
	require.Len(t, records, 1)
	assert.Equal(t, "2.5", records[0].Cost.String())
	require.NotNil(t, records[0].ShipDate)
	assert.Equal(t, "2024-01-06", records[0].ShipDate.Format("2006-01-02"))
}

func TestRunAppliesCarrierProfile(t *testing.T) {
	profiles := config.Profiles{
		"acme": {
			Carrier:         "Acme",
			CSVSettings:     config.CSVSettings{Delimiter: ";"},
			ColumnOverrides: map[string]string{"Acct": "client", "Net": "cost"},
			ValueRules: []config.ValueRule{{
				Column: "Acct",
				Actions: []config.ValueAction{
					{Type: "trim"},
					{Type: "lookup", LookupTable: map[string]string{"ACME INC": "Acme Inc"}},
				},
			}},
		},
	}
	p, svc := newPipeline(t, Options{Profiles: profiles})
	path := writeFile(t, "acme.csv", "Acct;Net;Gross;Billable\n ACME INC ;1;9;2\n")

	res := p.Run(context.Background(), Request{
		Path: path, Carrier: "ACME", CyclePeriod: "2024-01",
		Overrides: map[string]columnmap.Field{"Gross": columnmap.FieldBillableAmount},
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, columnmap.FieldBillableAmount, res.Mapping["Gross"])

	records := svc.Query(types.Filter{})
	require.Len(t, records, 1)
	assert.Equal(t, "Acme Inc", records[0].Client)
	assert.Equal(t, "9", records[0].BillableAmount.String())
}

func TestRunRecordsSourcePath(t *testing.T) {
	p, svc := newPipeline(t, Options{})
	path := writeFile(t, "acme.csv", scenarioCSV)

	res := p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01", SourcePath: path})
	require.True(t, res.Success)
	assert.True(t, svc.IsProcessed(path))
}

func TestRunRecoversPanic(t *testing.T) {
	p := New(nil, Options{})
	path := writeFile(t, "acme.csv", scenarioCSV)

	var res Result
	assert.NotPanics(t, func() {
		res = p.Run(context.Background(), Request{Path: path, Carrier: "Acme", CyclePeriod: "2024-01"})
	})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, ErrPanic)
}

func TestHashIsContentOnly(t *testing.T) {
	assert.Equal(t, Hash([]byte(scenarioCSV)), Hash([]byte(scenarioCSV)))
	assert.NotEqual(t, Hash([]byte(scenarioCSV)), Hash([]byte(scenarioCSV+"\n")))
	assert.Len(t, Hash(nil), 16)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.CSV"))
	assert.True(t, IsSupported("a.xlsx"))
	assert.False(t, IsSupported("a.xls"))
	assert.False(t, IsSupported("a"))
}
