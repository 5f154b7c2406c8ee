package evaluation

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Row statuses.
const (
	StatusEvaluated = "evaluated"
	StatusFailed    = "failed"
)

// Outcome pairs a submission with either its result or the error that prevented one.
type Outcome struct {
	SubmissionID uint    `json:"submission_id"`
	Label        string  `json:"label"`
	Result       *Result `json:"result,omitempty"`
	Err          error   `json:"-"`
}

// Succeeded reports whether the outcome carries a result.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// GradeDistribution counts successes per letter grade by percentage of max score.
type GradeDistribution struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
	F int `json:"F"`
}

func (g *GradeDistribution) add(percentage float64) {
	switch p := math.Round(percentage); {
	case p >= 81:
		g.A++
	case p >= 61:
		g.B++
	case p >= 41:
		g.C++
	case p >= 21:
		g.D++
	default:
		g.F++
	}
}

// Summary holds batch statistics. Count and averages cover successes only.
type Summary struct {
	Count             int               `json:"count"`
	FailedCount       int               `json:"failed_count"`
	Total             int               `json:"total"`
	AverageScore      float64           `json:"average_score"`
	AveragePercentage float64           `json:"average_percentage"`
	AverageCoverage   float64           `json:"average_keyword_coverage"`
	LowEffortCount    int               `json:"low_effort_count"`
	GradeDistribution GradeDistribution `json:"grade_distribution"`
}

// ReportRow is one exportable line per submission.
type ReportRow struct {
	SubmissionID          uint    `json:"submission_id"`
	Label                 string  `json:"label"`
	Status                string  `json:"status"`
	TotalScore            float64 `json:"total_score"`
	MaxScore              float64 `json:"max_score"`
	KeywordCoverage       float64 `json:"keyword_coverage"`
	MatchedCount          int     `json:"matched_count"`
	KeywordCount          int     `json:"keyword_count"`
	ContentQuality        float64 `json:"content_quality"`
	StructureOrganization float64 `json:"structure_organization"`
	CriticalThinking      float64 `json:"critical_thinking"`
	IsLowEffort           bool    `json:"is_low_effort"`
	Warning               string  `json:"warning,omitempty"`
	Feedback              string  `json:"feedback,omitempty"`
	Error                 string  `json:"error,omitempty"`
}

// Report is the derived summary plus its rows, in input order.
type Report struct {
	Summary Summary     `json:"summary"`
	Rows    []ReportRow `json:"rows"`
}

// BatchAggregator accumulates outcomes into a Report.
type BatchAggregator struct {
	rows           []ReportRow
	scoreSum       float64
	percentageSum  float64
	coverageSum    float64
	successes      int
	failures       int
	lowEffortCount int
	distribution   GradeDistribution
}

// Aggregate builds a report from outcomes in order.
func Aggregate(outcomes []Outcome) Report {
	var aggregator BatchAggregator
	for _, outcome := range outcomes {
		aggregator.Add(outcome)
	}
	return aggregator.Report()
}

// Add records one outcome.
func (a *BatchAggregator) Add(outcome Outcome) {
	row := ReportRow{SubmissionID: outcome.SubmissionID, Label: outcome.Label}

	if !outcome.Succeeded() {
		a.failures++
		row.Status = StatusFailed
		if outcome.Err != nil {
			row.Error = UserMessage(outcome.Err)
		} else {
			row.Error = "not evaluated"
		}
		a.rows = append(a.rows, row)
		return
	}

	result := outcome.Result
	a.successes++
	a.scoreSum += result.TotalScore
	a.coverageSum += result.KeywordCoverage
	if result.IsLowEffort {
		a.lowEffortCount++
	}

	percentage := 0.0
	if result.MaxScore > 0 {
		percentage = 100 * result.TotalScore / result.MaxScore
	}
	a.percentageSum += percentage
	a.distribution.add(percentage)

	row.Status = StatusEvaluated
	row.TotalScore = result.TotalScore
	row.MaxScore = result.MaxScore
	row.KeywordCoverage = result.KeywordCoverage
	row.MatchedCount = len(result.MatchedKeywords)
	row.KeywordCount = len(result.MatchedKeywords) + len(result.MissingKeywords)
	row.ContentQuality = result.Rubric.ContentQuality
	row.StructureOrganization = result.Rubric.StructureOrganization
	row.CriticalThinking = result.Rubric.CriticalThinking
	row.IsLowEffort = result.IsLowEffort
	row.Warning = result.Warning
	row.Feedback = result.Feedback

	a.rows = append(a.rows, row)
}

// Report returns the summary and rows accumulated so far.
func (a *BatchAggregator) Report() Report {
	summary := Summary{
		Count:             a.successes,
		FailedCount:       a.failures,
		Total:             a.successes + a.failures,
		LowEffortCount:    a.lowEffortCount,
		GradeDistribution: a.distribution,
	}
	if a.successes > 0 {
		n := float64(a.successes)
		summary.AverageScore = roundTo(a.scoreSum/n, 2)
		summary.AveragePercentage = roundTo(a.percentageSum/n, 2)
		summary.AverageCoverage = roundTo(a.coverageSum/n, 2)
	}

	rows := make([]ReportRow, len(a.rows))
	copy(rows, a.rows)
	return Report{Summary: summary, Rows: rows}
}

var csvHeader = []string{
	"Submission ID",
	"Submission",
	"Status",
	"Total Score",
	"Max Score",
	"Keyword Coverage (%)",
	"Keywords Matched",
	"Content Quality",
	"Structure & Organization",
	"Critical Thinking",
	"Low Effort",
	"Warning",
	"Feedback",
	"Error",
}

// WriteCSV renders the rows followed by a blank line and the summary block.
func (r Report) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, row := range r.Rows {
		record := []string{
			strconv.FormatUint(uint64(row.SubmissionID), 10),
			row.Label,
			row.Status,
			formatNumber(row.TotalScore),
			formatNumber(row.MaxScore),
			formatNumber(row.KeywordCoverage),
			fmt.Sprintf("%d/%d", row.MatchedCount, row.KeywordCount),
			formatNumber(row.ContentQuality),
			formatNumber(row.StructureOrganization),
			formatNumber(row.CriticalThinking),
			strconv.FormatBool(row.IsLowEffort),
			row.Warning,
			row.Feedback,
			row.Error,
		}
		if row.Status == StatusFailed {
			for i := 3; i <= 10; i++ {
				record[i] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	summary := [][]string{
		{},
		{"Total Submissions", strconv.Itoa(r.Summary.Total)},
		{"Evaluated", strconv.Itoa(r.Summary.Count)},
		{"Failed", strconv.Itoa(r.Summary.FailedCount)},
		{"Average Score", formatNumber(r.Summary.AverageScore)},
		{"Low Effort Warnings", strconv.Itoa(r.Summary.LowEffortCount)},
	}
	if err := writer.WriteAll(summary); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
