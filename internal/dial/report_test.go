package dial

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandsReport(t *testing.T) {
	tbl := CommandTable{
		100: {Label: "Radio", Action: "mpc play"},
		200: {Label: "Off", Action: "mpc stop"},
	}
	report := BandsReport(tbl, BuildBandMap(tbl, 0.10))

	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	assert.Equal(t, []string{
		"        <   -inf",
		"      100: Radio: mpc play",
		"             145 |     150 |     155",
		"      200: Off: mpc stop",
		"        >    200",
	}, lines)
}

func TestBandsReportNoOverlap(t *testing.T) {
	tbl := CommandTable{
		0:    {Label: "a", Action: "x"},
		1000: {Label: "b", Action: "y"},
		2000: {Label: "c", Action: "z"},
	}
	report := BandsReport(tbl, BuildBandMap(tbl, 0))

	assert.Contains(t, report, "             500\n")
	assert.Contains(t, report, "            1500\n")
	assert.Contains(t, report, "     2000: c: z\n")
}

func TestBandsReportEmpty(t *testing.T) {
	tbl := CommandTable{100: {Label: "only", Action: "one"}}
	report := BandsReport(tbl, BuildBandMap(tbl, 0.05))
	assert.Equal(t, "  no command bands (need at least two commands)\n", report)
}

func TestFormatMark(t *testing.T) {
	assert.Equal(t, int64(-1), FormatMark(Unset))
	assert.Equal(t, int64(250), FormatMark(250))
}
