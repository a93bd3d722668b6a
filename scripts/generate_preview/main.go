package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

type options struct {
	count    int
	seed     int64
	parallel bool
	grid     bool
	asJSON   bool
	fallback string
}

func main() {
	var (
		entitiesPath string
		opts         options
	)

	flag.StringVar(&entitiesPath, "entities", filepath.Join("scripts", "generate_preview", "sample.json"), "Path to JSON file with subjects, faculty and classrooms")
	flag.IntVar(&opts.count, "n", 5, "Number of candidates to generate")
	flag.Int64Var(&opts.seed, "seed", 42, "Base seed for the trials")
	flag.BoolVar(&opts.parallel, "parallel", true, "Run trials concurrently")
	flag.BoolVar(&opts.grid, "grid", false, "Print the best candidate's weekly grid")
	flag.BoolVar(&opts.asJSON, "json", false, "Print candidates as JSON")
	flag.StringVar(&opts.fallback, "fallback", string(scheduler.FallbackDepartment), "Faculty fallback policy: department or none")
	flag.Parse()

	entities, err := loadEntities(entitiesPath)
	if err != nil {
		log.Fatalf("failed to load entities: %v", err)
	}
	if err := preview(context.Background(), entities, opts, os.Stdout); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func loadEntities(path string) (scheduler.Entities, error) {
	var entities scheduler.Entities
	raw, err := os.ReadFile(path)
	if err != nil {
		return entities, err
	}
	if err := json.Unmarshal(raw, &entities); err != nil {
		return entities, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(entities.Subjects) == 0 {
		return entities, fmt.Errorf("%s lists no subjects", path)
	}
	return entities, nil
}

func preview(ctx context.Context, entities scheduler.Entities, opts options, w io.Writer) error {
	cfg := scheduler.DefaultConfig()
	if opts.fallback == string(scheduler.FallbackNone) {
		cfg.FacultyFallback = scheduler.FallbackNone
	}
	candidates, err := scheduler.NewGenerator(cfg, opts.parallel).GenerateCandidates(ctx, entities, opts.count, opts.seed)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSEED\tSCORE\tPLACEMENT\tLABS\tTHEORY\tEXTRA\tCONFLICTS\tUNFILLED\tFALLBACKS")
	for i, c := range candidates {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			i+1, c.Seed, c.Score, c.PlacementScore, c.LabsPlaced, c.TheoryPlaced, c.ExtraPlaced,
			len(c.Conflicts), unfilledPeriods(c.Unfilled), len(c.Fallbacks))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, conflict := range best.Conflicts {
		fmt.Fprintf(w, "conflict: %s\n", conflict)
	}
	for _, u := range best.Unfilled {
		fmt.Fprintf(w, "unfilled: %s (%s) %d period(s): %s\n", u.SubjectName, u.Type, u.Periods, u.Reason)
	}
	if opts.grid {
		return printGrid(w, best.Schedule, cfg.PeriodsPerDay)
	}
	return nil
}

func unfilledPeriods(unfilled []scheduler.UnfilledDemand) int {
	total := 0
	for _, u := range unfilled {
		total += u.Periods
	}
	return total
}

func printGrid(w io.Writer, schedule models.Schedule, periods int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"DAY"}
	for p := 1; p <= periods; p++ {
		header = append(header, models.PeriodKey(p))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, day := range models.Weekdays {
		row := []string{day}
		for p := 1; p <= periods; p++ {
			cell := "-"
			if entry := schedule.Entry(day, models.PeriodKey(p)); entry != nil {
				cell = entry.SubjectName
			}
			row = append(row, cell)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
