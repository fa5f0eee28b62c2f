package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

var (
	periodKPISchema = arrow.NewSchema([]arrow.Field{
		{Name: "period", Type: arrow.BinaryTypes.String},
		{Name: "rent_base", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "collected", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "accounts_receivable", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "leased_area", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "total_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "occupancy_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "occupancy_pct_excl_own_use", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "collection_rate_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "price_per_area_yr", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "fixed_expenses", Type: arrow.PrimitiveTypes.Float64},
		{Name: "variable_expenses", Type: arrow.PrimitiveTypes.Float64},
		{Name: "other_expenses", Type: arrow.PrimitiveTypes.Float64},
		{Name: "total_expenses", Type: arrow.PrimitiveTypes.Float64},
		{Name: "noi_proxy", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "noi_margin_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "noi_basis", Type: arrow.BinaryTypes.String},
		{Name: "has_metrics", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "has_leases", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	buildingKPISchema = arrow.NewSchema([]arrow.Field{
		{Name: "period", Type: arrow.BinaryTypes.String},
		{Name: "building", Type: arrow.BinaryTypes.String},
		{Name: "suite_count", Type: arrow.PrimitiveTypes.Int32},
		{Name: "vacant_count", Type: arrow.PrimitiveTypes.Int32},
		{Name: "own_use_count", Type: arrow.PrimitiveTypes.Int32},
		{Name: "total_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "occupied_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "vacant_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "own_use_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "effective_occupied_area", Type: arrow.PrimitiveTypes.Float64},
		{Name: "occupancy_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "occupancy_pct_excl_own_use", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "rent_monthly", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	windowSchema = arrow.NewSchema([]arrow.Field{
		{Name: "end_period", Type: arrow.BinaryTypes.String},
		{Name: "window_size", Type: arrow.PrimitiveTypes.Int32},
		{Name: "start_period", Type: arrow.BinaryTypes.String},
		{Name: "period_count", Type: arrow.PrimitiveTypes.Int32},
		{Name: "is_partial", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "avg_occupancy_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "avg_collection_rate_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "avg_price_per_area_yr", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "total_rent_base", Type: arrow.PrimitiveTypes.Float64},
		{Name: "total_collected", Type: arrow.PrimitiveTypes.Float64},
		{Name: "total_accounts_receivable", Type: arrow.PrimitiveTypes.Float64},
		{Name: "avg_noi_proxy", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "total_noi_proxy", Type: arrow.PrimitiveTypes.Float64},
		{Name: "avg_noi_margin_pct", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
)

// ExportToParquet grava prop_kpi_monthly, building_kpi_monthly e kpi_windows
// como arquivos parquet de nome estável.
func (r *ExportRepositoryImpl) ExportToParquet(gold entity.GoldTables, outputDir string) ([]string, error) {
	dir, err := ensureDir(outputDir)
	if err != nil {
		return nil, err
	}
	pool := memory.NewGoAllocator()

	writers := []struct {
		name   string
		schema *arrow.Schema
		fill   func(b *array.RecordBuilder)
	}{
		{"prop_kpi_monthly", periodKPISchema, func(b *array.RecordBuilder) { fillPeriodKPIs(b, gold.PeriodKPIs) }},
		{"building_kpi_monthly", buildingKPISchema, func(b *array.RecordBuilder) { fillBuildingKPIs(b, gold.BuildingKPIs) }},
		{"kpi_windows", windowSchema, func(b *array.RecordBuilder) { fillWindows(b, gold.Windows) }},
	}

	var files []string
	for _, w := range writers {
		builder := array.NewRecordBuilder(pool, w.schema)
		w.fill(builder)
		record := builder.NewRecord()
		builder.Release()

		path := filepath.Join(dir, w.name+".parquet")
		err := writeParquet(path, w.schema, record)
		record.Release()
		if err != nil {
			return files, fmt.Errorf("writing %s: %w", w.name, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return files, err
		}
		files = append(files, abs)
	}
	return files, nil
}

func writeParquet(path string, schema *arrow.Schema, record arrow.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating parquet file: %w", err)
	}
	defer file.Close()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy("leasing-bi"),
	)
	writer, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	return writer.Close()
}

func appendOpt(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func fillPeriodKPIs(b *array.RecordBuilder, rows []entity.PeriodKPI) {
	str := func(i int) *array.StringBuilder { return b.Field(i).(*array.StringBuilder) }
	f64 := func(i int) *array.Float64Builder { return b.Field(i).(*array.Float64Builder) }
	boolean := func(i int) *array.BooleanBuilder { return b.Field(i).(*array.BooleanBuilder) }

	for _, k := range rows {
		str(0).Append(k.Period.String())
		appendOpt(f64(1), k.RentBase)
		appendOpt(f64(2), k.Collected)
		appendOpt(f64(3), k.AccountsReceivable)
		appendOpt(f64(4), k.LeasedArea)
		f64(5).Append(k.TotalArea)
		appendOpt(f64(6), k.OccupancyPct)
		appendOpt(f64(7), k.OccupancyPctExclOwnUse)
		appendOpt(f64(8), k.CollectionRatePct)
		appendOpt(f64(9), k.PricePerAreaYr)
		f64(10).Append(k.FixedExpenses)
		f64(11).Append(k.VariableExpenses)
		f64(12).Append(k.OtherExpenses)
		f64(13).Append(k.TotalExpenses)
		appendOpt(f64(14), k.NOIProxy)
		appendOpt(f64(15), k.NOIMarginPct)
		str(16).Append(k.NOIBasis)
		boolean(17).Append(k.HasMetrics)
		boolean(18).Append(k.HasLeases)
	}
}

func fillBuildingKPIs(b *array.RecordBuilder, rows []entity.BuildingKPI) {
	str := func(i int) *array.StringBuilder { return b.Field(i).(*array.StringBuilder) }
	i32 := func(i int) *array.Int32Builder { return b.Field(i).(*array.Int32Builder) }
	f64 := func(i int) *array.Float64Builder { return b.Field(i).(*array.Float64Builder) }

	for _, r := range rows {
		str(0).Append(r.Period.String())
		str(1).Append(r.Building)
		i32(2).Append(int32(r.SuiteCount))
		i32(3).Append(int32(r.VacantCount))
		i32(4).Append(int32(r.OwnUseCount))
		f64(5).Append(r.TotalArea)
		f64(6).Append(r.OccupiedArea)
		f64(7).Append(r.VacantArea)
		f64(8).Append(r.OwnUseArea)
		f64(9).Append(r.EffectiveOccupiedArea)
		appendOpt(f64(10), r.OccupancyPct)
		appendOpt(f64(11), r.OccupancyPctExclOwnUse)
		f64(12).Append(r.RentMonthly)
	}
}

func fillWindows(b *array.RecordBuilder, rows []entity.RollingWindow) {
	str := func(i int) *array.StringBuilder { return b.Field(i).(*array.StringBuilder) }
	i32 := func(i int) *array.Int32Builder { return b.Field(i).(*array.Int32Builder) }
	f64 := func(i int) *array.Float64Builder { return b.Field(i).(*array.Float64Builder) }
	boolean := func(i int) *array.BooleanBuilder { return b.Field(i).(*array.BooleanBuilder) }

	for _, w := range rows {
		str(0).Append(w.EndPeriod.String())
		i32(1).Append(int32(w.WindowSize))
		str(2).Append(w.StartPeriod.String())
		i32(3).Append(int32(w.PeriodCount))
		boolean(4).Append(w.IsPartial)
		appendOpt(f64(5), w.AvgOccupancyPct)
		appendOpt(f64(6), w.AvgCollectionRatePct)
		appendOpt(f64(7), w.AvgPricePerAreaYr)
		f64(8).Append(w.TotalRentBase)
		f64(9).Append(w.TotalCollected)
		f64(10).Append(w.TotalReceivable)
		appendOpt(f64(11), w.AvgNOIProxy)
		f64(12).Append(w.TotalNOIProxy)
		appendOpt(f64(13), w.AvgNOIMarginPct)
	}
}
