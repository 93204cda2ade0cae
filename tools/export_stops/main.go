// Export the bus stop master data to an XLSX workbook, one sheet per
// district plus an "all" sheet.
//
//	go run ./tools/export_stops -dsn "$DATABASE_URL" -out stops.xlsx
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
	transitpostgres "github.com/EILE23/BusTrackr/internal/transit/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dsn := flag.String("dsn", envDefault("DATABASE_URL", os.Getenv("PG_DSN")), "postgres dsn")
	out := flag.String("out", "stops.xlsx", "output path")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("-dsn, DATABASE_URL, or PG_DSN is required")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	stops, err := transitpostgres.NewStopRepository(db).List(context.Background())
	if err != nil {
		log.Fatalf("list stops: %v", err)
	}
	if len(stops) == 0 {
		log.Fatal("no stops to export; run a station sync or the seed tool first")
	}

	data, err := buildWorkbook(stops)
	if err != nil {
		log.Fatalf("build workbook: %v", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("exported %d stops to %s", len(stops), *out)
}

func buildWorkbook(stops []transit.Stop) ([]byte, error) {
	f := excelize.NewFile()
	allSheet := "all"
	f.SetSheetName("Sheet1", allSheet)

	writeSheet(f, allSheet, stops)

	byDistrict := map[string][]transit.Stop{}
	for _, stop := range stops {
		if stop.District == "" {
			continue
		}
		byDistrict[stop.District] = append(byDistrict[stop.District], stop)
	}
	districts := make([]string, 0, len(byDistrict))
	for district := range byDistrict {
		districts = append(districts, district)
	}
	sort.Strings(districts)
	for _, district := range districts {
		if _, err := f.NewSheet(district); err != nil {
			return nil, err
		}
		writeSheet(f, district, byDistrict[district])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, stops []transit.Stop) {
	_ = f.SetCellValue(sheet, "A1", "ID")
	_ = f.SetCellValue(sheet, "B1", "Name")
	_ = f.SetCellValue(sheet, "C1", "Latitude")
	_ = f.SetCellValue(sheet, "D1", "Longitude")
	_ = f.SetCellValue(sheet, "E1", "Direction")
	_ = f.SetCellValue(sheet, "F1", "District")
	_ = f.SetCellValue(sheet, "G1", "Route")

	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	for i, stop := range stops {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), stop.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), stop.Name)
		if stop.Latitude != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), *stop.Latitude)
		}
		if stop.Longitude != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), *stop.Longitude)
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), stop.Direction)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), stop.District)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), stop.RouteID)
	}
}

func envDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
