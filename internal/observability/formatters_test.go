package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/talent-pipeline/internal/catalog"
	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/types"
)

func TestPrintMatchSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	offre := uuid.New()
	talent := uuid.New()
	summary := &matching.Summary{OffreUID: offre, Scored: 12, Kept: 1, TopScore: 87, Duration: 1500 * time.Microsecond}
	matches := []types.Match{{
		TalentUID:       talent,
		Score:           87,
		MatchedRequired: []string{"Go", "Kubernetes"},
		MatchedDesired:  []string{"PostgreSQL"},
		MissingRequired: []string{"Terraform"},
	}}

	p.PrintMatchSummary(summary, matches)
	output := buf.String()

	assert.Contains(t, output, "MATCHING RUN")
	assert.Contains(t, output, offre.String())
	assert.Contains(t, output, "12 talents")
	assert.Contains(t, output, "Top score: 87")
	assert.Contains(t, output, "2ms")
	assert.Contains(t, output, talent.String())
	assert.Contains(t, output, "87/100")
	assert.Contains(t, output, "Go, Kubernetes")
	assert.Contains(t, output, "PostgreSQL")
	assert.Contains(t, output, "Terraform")
}

func TestPrintMatchSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatchSummary(nil, nil)

	assert.Empty(t, buf.String())
}

func TestPrintMatchSummary_Truncation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	matches := make([]types.Match, 8)
	for i := range matches {
		matches[i] = types.Match{TalentUID: uuid.New(), Score: 90 - i}
	}

	p.PrintMatchSummary(&matching.Summary{OffreUID: uuid.New(), Scored: 8, Kept: 8, TopScore: 90}, matches)
	output := buf.String()

	assert.Contains(t, output, "#5")
	assert.NotContains(t, output, "#6")
	assert.Contains(t, output, "... and 3 more matches")
}

func TestPrintMatchSummary_LongSkillList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	skills := make([]string, 20)
	for i := range skills {
		skills[i] = fmt.Sprintf("skill-%02d", i)
	}
	p.PrintMatchSummary(&matching.Summary{OffreUID: uuid.New()}, []types.Match{{TalentUID: uuid.New(), MatchedRequired: skills}})

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "skill-19")
}

func TestPrintImportReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintImportReport(&catalog.Report{Users: 4, Clients: 1, Talents: 2, Offres: 3})
	output := buf.String()

	assert.Contains(t, output, "CATALOG IMPORT")
	assert.Contains(t, output, "Users:   4")
	assert.Contains(t, output, "Clients: 1")
	assert.Contains(t, output, "Talents: 2")
	assert.Contains(t, output, "Offres:  3")
}

func TestPrintImportReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintImportReport(nil)
	assert.Empty(t, buf.String())
}

func TestPrintSweep_None(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSweep(0)

	assert.Contains(t, buf.String(), "NO OVERDUE INVOICES")
}

func TestPrintSweep_Flagged(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSweep(3)

	assert.Contains(t, buf.String(), "OVERDUE SWEEP")
	assert.Contains(t, buf.String(), "3 invoice(s) flagged EN_RETARD")
}

func TestPrintBox_LineWidth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), "line %q", line)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "éééé...", truncate("ééééééééé", 7))
}
