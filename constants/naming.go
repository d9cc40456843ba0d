package constants

import (
	"path/filepath"
	"strings"
)

const (
	// OutputPrefix and OutputSuffix form the completed-workbook naming
	// convention: COMPLETED_<input-stem>_breakdown.xlsx.
	OutputPrefix = "COMPLETED_"
	OutputSuffix = "_breakdown.xlsx"

	// DefaultTemplateName is the blank company template shipped with deployments.
	DefaultTemplateName = "_Construction_Breakdown_Template_BLANK.xlsx"
)

// OutputFileName derives the completed-workbook name from an input document path.
func OutputFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return OutputPrefix + stem + OutputSuffix
}
