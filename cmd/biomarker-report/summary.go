package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

func printSummary(w io.Writer, vm *models.ViewModel) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BIOMARKER ANALYSIS SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Patient: %s\n", vm.Patient.DisplayName)
	fmt.Fprintf(w, "Age: %s\n", vm.Patient.Age)
	fmt.Fprintf(w, "Gender: %s\n", vm.Patient.Gender)
	fmt.Fprintf(w, "Total Reports: %d\n", vm.Summary.ReportCount)
	fmt.Fprintf(w, "Monitoring Period: %s days\n", optionalDays(vm.Summary.MonitoringDurationDays))
	fmt.Fprintf(w, "Data Density: %s days between tests\n", optionalDays(vm.Summary.DataDensityDays))
	fmt.Fprintf(w, "Total Biomarkers: %d\n", vm.Summary.UniqueBiomarkerCount)
	fmt.Fprintf(w, "Critical Alerts: %d\n", vm.Summary.CriticalAlertCount)

	names := make([]string, 0, len(vm.Trends))
	for name := range vm.Trends {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "\nTREND ANALYSIS:")
	for _, name := range names {
		t := vm.Trends[name]
		forecast := "-"
		if t.Forecast != nil {
			forecast = fmt.Sprintf("%.2f", *t.Forecast)
		}
		fmt.Fprintf(w, "  %s: %s (%+.1f%%), next %s\n", name, t.Direction, t.ChangePercentage, forecast)
	}

	fmt.Fprintf(w, "\nALERTS (%d):\n", len(vm.Alerts))
	for _, a := range vm.Alerts {
		fmt.Fprintf(w, "  • [%s] %s\n", a.Severity, a.Message)
	}
	if len(vm.Summary.CriticalValues) > 0 {
		fmt.Fprintf(w, "\nCRITICAL VALUES (%d):\n", len(vm.Summary.CriticalValues))
		for _, c := range vm.Summary.CriticalValues {
			fmt.Fprintf(w, "  • %s %s: %s on %s\n", c.Biomarker, strconv.FormatFloat(c.Value, 'f', -1, 64), c.Status, c.Date)
		}
	}
	if vm.Banner != "" {
		fmt.Fprintf(w, "\n%s\n", vm.Banner)
	}
	fmt.Fprintln(w, rule)
}

func optionalDays(days *int) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *days)
}
